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

package signer

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	s3err "github.com/nabbar/s3gw/errors"
)

const maxPresignedExpirySeconds = 7 * 24 * 3600

// PresignedAuth is the parsed content of a presigned URL's query string, per
// spec.md §4.4.
type PresignedAuth struct {
	AccessKeyId   string
	Date          string
	Region        string
	SignedHeaders []string
	Signature     string
	AmzDate       string
	ExpirySeconds int
}

// ParsePresignedQuery extracts the X-Amz-* query parameters of a presigned
// request. Returns errors.AuthorizationHeaderMalformed on any structural
// problem.
func ParsePresignedQuery(q url.Values) (PresignedAuth, s3err.Error) {
	var out PresignedAuth

	alg := q.Get("X-Amz-Algorithm")
	if alg != algorithmName {
		return out, s3err.New(s3err.AuthorizationHeaderMalformed, "unsupported X-Amz-Algorithm %q", alg)
	}

	cred := q.Get("X-Amz-Credential")
	if cred == "" {
		return out, s3err.New(s3err.AuthorizationHeaderMalformed, "missing X-Amz-Credential")
	}
	credParts := strings.Split(cred, "/")
	if len(credParts) != 5 {
		return out, s3err.New(s3err.AuthorizationHeaderMalformed, "malformed X-Amz-Credential scope")
	}
	out.AccessKeyId = credParts[0]
	out.Date = credParts[1]
	out.Region = credParts[2]

	out.AmzDate = q.Get("X-Amz-Date")
	if out.AmzDate == "" {
		return out, s3err.New(s3err.AuthorizationHeaderMalformed, "missing X-Amz-Date")
	}

	expiresStr := q.Get("X-Amz-Expires")
	expires, err := strconv.Atoi(expiresStr)
	if err != nil || expires <= 0 || expires > maxPresignedExpirySeconds {
		return out, s3err.New(s3err.AuthorizationHeaderMalformed, "invalid X-Amz-Expires %q", expiresStr)
	}
	out.ExpirySeconds = expires

	sh := q.Get("X-Amz-SignedHeaders")
	if sh == "" {
		return out, s3err.New(s3err.AuthorizationHeaderMalformed, "missing X-Amz-SignedHeaders")
	}
	out.SignedHeaders = strings.Split(sh, ";")

	sig := q.Get("X-Amz-Signature")
	if sig == "" {
		return out, s3err.New(s3err.AuthorizationHeaderMalformed, "missing X-Amz-Signature")
	}
	out.Signature = sig

	return out, nil
}

// CheckExpiry reports whether, as of now, the presigned URL signed at
// amzDate with a lifetime of expirySeconds has expired, per spec.md §4.4.
func CheckExpiry(amzDate string, expirySeconds int, now time.Time) s3err.Error {
	signedAt, err := time.Parse("20060102T150405Z", amzDate)
	if err != nil {
		return s3err.New(s3err.AuthorizationHeaderMalformed, "invalid X-Amz-Date %q", amzDate)
	}

	deadline := signedAt.Add(time.Duration(expirySeconds) * time.Second)
	if now.After(deadline) {
		return s3err.New(s3err.RequestTimeTooSkewed, "presigned URL expired at %s", deadline.UTC().Format(time.RFC3339))
	}

	return nil
}
