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

package dispatcher

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/logger"
	"github.com/nabbar/s3gw/model"
	"github.com/nabbar/s3gw/signer"
)

const (
	ctxKeyUser      = "s3gw.user"
	ctxKeyRequestID = "s3gw.requestId"
	ctxKeyHostID    = "s3gw.hostId"
	ctxKeyLogger    = "s3gw.logger"
)

// envelopeMiddleware stamps every response with the x-amz-request-id,
// x-amz-id-2, Server, and Date headers spec.md §4.8 requires on both
// success and error responses, and attaches a per-request derived Logger
// the way nabbar-golib's router middleware threads a logger through gin's
// context.
func (s *Server) envelopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := s.ids.RequestID()
		hostID := s.ids.HostID()

		c.Writer.Header().Set("x-amz-request-id", reqID)
		c.Writer.Header().Set("x-amz-id-2", hostID)
		c.Writer.Header().Set("Server", "AmazonS3")
		c.Writer.Header().Set("Date", time.Now().UTC().Format(http.TimeFormat))

		c.Set(ctxKeyRequestID, reqID)
		c.Set(ctxKeyHostID, hostID)

		entry := s.log.WithFields(logger.Fields{
			"request_id": reqID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
		})
		c.Set(ctxKeyLogger, entry)

		c.Next()
	}
}

// authMiddleware validates the request's signature (header or presigned
// query string) against s.validator, per spec.md §4.4, and stores the
// resolved model.S3User in gin's context for downstream handlers'
// authorization checks. When s.authDisabled is set (spec.md §6's
// Authentication.Enabled=false), it short-circuits to an anonymous user
// with unrestricted permissions.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.authDisabled {
			c.Set(ctxKeyUser, model.S3User{
				Name:              "anonymous",
				BucketPermissions: []model.BucketPermission{{BucketName: "*", Permissions: []model.Permission{model.PermAll}}},
			})
			c.Next()
			return
		}

		req := signer.CanonicalRequestInput{
			Method:      c.Request.Method,
			Path:        c.Request.URL.Path,
			Query:       c.Request.URL.Query(),
			Headers:     headersWithHost(c.Request),
			PayloadHash: c.Request.Header.Get("x-amz-content-sha256"),
		}

		var user model.S3User
		var aerr s3err.Error

		if q := c.Request.URL.Query(); q.Get("X-Amz-Algorithm") != "" {
			user, aerr = s.validator.ValidatePresigned(req, time.Now())
		} else if authHeader := c.Request.Header.Get("Authorization"); strings.HasPrefix(authHeader, "AWS4-HMAC-SHA256 ") {
			user, aerr = s.validator.ValidateHeader(req, authHeader, c.Request.Header.Get("x-amz-date"), time.Now())
		} else {
			aerr = s3err.New(s3err.AccessDenied, "request carries no recognized AWS Signature Version 4 credentials")
		}

		if aerr != nil {
			WriteError(c, aerr)
			c.Abort()
			return
		}

		c.Set(ctxKeyUser, user)
		c.Next()
	}
}

// headersWithHost copies req's header map and injects "Host", which
// net/http strips into Request.Host and never includes in Request.Header.
// SigV4 always signs host, so the canonical request builder needs it back
// under the same key a client's raw header map would have carried it,
// per spec.md §4.4: "If Host is not present the server injects the
// request's effective host."
func headersWithHost(req *http.Request) map[string][]string {
	headers := make(map[string][]string, len(req.Header)+1)
	for k, v := range req.Header {
		headers[k] = v
	}
	if _, ok := headers["Host"]; !ok {
		headers["Host"] = []string{req.Host}
	}
	return headers
}

func userFrom(c *gin.Context) model.S3User {
	v, _ := c.Get(ctxKeyUser)
	u, _ := v.(model.S3User)
	return u
}

// authorize is the per-handler check every route calls after extracting the
// bucket name, enforcing the user's BucketPermissions against the action
// the HTTP method implies.
func (s *Server) authorize(c *gin.Context, bucket string, perm model.Permission) bool {
	user := userFrom(c)
	if err := s.validator.Authorize(user, bucket, perm); err != nil {
		WriteError(c, err)
		return false
	}
	return true
}
