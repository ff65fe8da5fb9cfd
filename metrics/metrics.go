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

// Package metrics exposes request-level Prometheus instrumentation for the
// gateway's HTTP surface: a counter of requests by operation and status
// class, and a duration histogram, both scraped off a /metrics handler
// mounted alongside the dispatcher's routing table.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the Prometheus collectors registered for this process.
type Recorder struct {
	reg      *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers the gateway's collectors on a fresh registry. Each Recorder
// owns its own *prometheus.Registry rather than the global default, so
// repeated New calls in tests never collide on collector registration.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		reg: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "s3gw",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled by the gateway, by method, route, and status class.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "s3gw",
			Name:      "http_request_duration_seconds",
			Help:      "Request handling latency in seconds, by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(r.requests, r.duration)
	return r
}

// Registry returns the Recorder's private registry, e.g. to register
// additional process/runtime collectors alongside it.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Middleware is a gin.HandlerFunc recording every request's outcome; mount
// it on the dispatcher's gin.Engine alongside its own middleware stack.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		elapsed := time.Since(start).Seconds()
		r.duration.WithLabelValues(c.Request.Method, route).Observe(elapsed)
		r.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status()/100)+"xx").Inc()
	}
}

// Handler returns the promhttp handler to mount at /metrics.
func (r *Recorder) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
