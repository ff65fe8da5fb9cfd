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
	"strings"

	s3err "github.com/nabbar/s3gw/errors"
)

// HeaderAuth is the parsed content of an "Authorization: AWS4-HMAC-SHA256
// Credential=..., SignedHeaders=..., Signature=..." header.
type HeaderAuth struct {
	AccessKeyId   string
	Date          string
	Region        string
	SignedHeaders []string
	Signature     string
}

// ParseAuthorizationHeader parses the header-based auth scheme of spec.md
// §4.4. Returns errors.AuthorizationHeaderMalformed on any structural
// problem.
func ParseAuthorizationHeader(header string) (HeaderAuth, s3err.Error) {
	var out HeaderAuth

	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, algorithmName+" ") {
		return out, s3err.New(s3err.AuthorizationHeaderMalformed, "missing %s prefix", algorithmName)
	}

	rest := strings.TrimSpace(strings.TrimPrefix(header, algorithmName+" "))

	fields := map[string]string{}
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return out, s3err.New(s3err.AuthorizationHeaderMalformed, "malformed component %q", part)
		}
		fields[kv[0]] = kv[1]
	}

	cred, ok := fields["Credential"]
	if !ok {
		return out, s3err.New(s3err.AuthorizationHeaderMalformed, "missing Credential")
	}
	credParts := strings.Split(cred, "/")
	if len(credParts) != 5 {
		return out, s3err.New(s3err.AuthorizationHeaderMalformed, "malformed Credential scope")
	}
	out.AccessKeyId = credParts[0]
	out.Date = credParts[1]
	out.Region = credParts[2]

	sh, ok := fields["SignedHeaders"]
	if !ok || sh == "" {
		return out, s3err.New(s3err.AuthorizationHeaderMalformed, "missing SignedHeaders")
	}
	out.SignedHeaders = strings.Split(sh, ";")

	sig, ok := fields["Signature"]
	if !ok || sig == "" {
		return out, s3err.New(s3err.AuthorizationHeaderMalformed, "missing Signature")
	}
	out.Signature = sig

	return out, nil
}
