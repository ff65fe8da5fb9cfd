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

// Package dispatcher wires the gin-gonic routing table of spec.md §4.8 onto
// signer, streaming, objectcore, and multipart: it extracts bucket/key from
// the path, authenticates and authorizes the request, then calls through to
// the matching engine and renders its result (or failure) as S3-shaped XML.
package dispatcher

import (
	"encoding/xml"

	"github.com/gin-gonic/gin"

	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/logger"
)

// loggerFrom returns the per-request Logger envelopeMiddleware attached to
// c, or the process-wide default if none was attached (e.g. in a unit test
// driving a handler directly).
func loggerFrom(c *gin.Context) logger.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if l, ok := v.(logger.Logger); ok {
			return l
		}
	}
	return logger.Default()
}

// ErrorResponse is the `<Error>` envelope of spec.md §4.8/§7.
type ErrorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestId string   `xml:"RequestId"`
	HostId    string   `xml:"HostId"`
}

// WriteError renders err as the S3 XML error envelope with the HTTP status
// its Kind maps to, stamping the same request id used in the response
// headers.
func WriteError(c *gin.Context, err s3err.Error) {
	status := err.Kind().Status()
	if status >= 500 {
		loggerFrom(c).WithFields(logger.Fields{"kind": err.Kind(), "error": err.Error()}).Error("request failed")
	}

	resp := ErrorResponse{
		Code:      string(err.Kind()),
		Message:   err.Error(),
		Resource:  err.Resource(),
		RequestId: c.Writer.Header().Get("x-amz-request-id"),
		HostId:    c.Writer.Header().Get("x-amz-id-2"),
	}
	c.XML(status, resp)
}

// WriteInternalError is the catch-all for a bare (non-s3err.Error) failure,
// surfaced as a 500 InternalError per spec.md §7.
func WriteInternalError(c *gin.Context, cause error) {
	WriteError(c, s3err.Wrap(s3err.InternalError, cause, "internal error"))
}

// writeXML is a small helper every 2xx XML-bodied handler uses so the
// Content-Type is set consistently.
func writeXML(c *gin.Context, status int, body interface{}) {
	c.Header("Content-Type", "application/xml")
	c.Status(status)
	if body == nil {
		return
	}
	enc := xml.NewEncoder(c.Writer)
	_ = enc.Encode(body)
}
