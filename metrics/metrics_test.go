/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nabbar/s3gw/metrics"
)

func TestMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := metrics.New()

	engine := gin.New()
	engine.Use(rec.Middleware())
	engine.GET("/:bucket", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	engine.GET("/metrics", rec.Handler())

	req := httptest.NewRequest(http.MethodGet, "/mybucket", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /mybucket status = %d, want 200", w.Code)
	}

	mreq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mw := httptest.NewRecorder()
	engine.ServeHTTP(mw, mreq)
	if mw.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", mw.Code)
	}

	body := mw.Body.String()
	if !strings.Contains(body, "s3gw_http_requests_total") {
		t.Error("expected s3gw_http_requests_total in metrics output")
	}
	if !strings.Contains(body, "s3gw_http_request_duration_seconds") {
		t.Error("expected s3gw_http_request_duration_seconds in metrics output")
	}
}
