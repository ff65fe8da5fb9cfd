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
	"crypto/subtle"
	"net/url"
	"sync/atomic"
	"time"

	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/model"
)

// MaxClockSkew bounds how far a header-signed request's X-Amz-Date may
// drift from server time before it is rejected, per spec.md §4.4.
const MaxClockSkew = 15 * time.Minute

// UnsignedPayload is the sentinel x-amz-content-sha256 value meaning the
// client opted out of payload hashing.
const UnsignedPayload = "UNSIGNED-PAYLOAD"

// CanonicalRequestInput holds the request fields the validator needs,
// already extracted from the transport layer by the dispatcher.
type CanonicalRequestInput struct {
	Method      string
	Path        string
	Query       url.Values
	Headers     map[string][]string
	PayloadHash string
}

// Validator authenticates requests per spec.md §4.4 and checks the
// resulting user's permission for the targeted bucket.
type Validator interface {
	ValidateHeader(req CanonicalRequestInput, authHeader, amzDate string, now time.Time) (model.S3User, s3err.Error)
	ValidatePresigned(req CanonicalRequestInput, now time.Time) (model.S3User, s3err.Error)
	Authorize(user model.S3User, bucket string, perm model.Permission) s3err.Error
	// SetCredentialStore hot-swaps the CredentialStore in-flight requests
	// are checked against, so config.Watch's reloaded Authentication.Users
	// (SPEC_FULL.md §10.3) take effect without restarting the process.
	SetCredentialStore(store CredentialStore)
}

// storeBox wraps a CredentialStore so every atomic.Value.Store call carries
// the same concrete type, regardless of which CredentialStore
// implementation is swapped in.
type storeBox struct {
	store CredentialStore
}

type validator struct {
	box atomic.Value // storeBox
}

// New builds a Validator backed by store.
func New(store CredentialStore) Validator {
	v := &validator{}
	v.box.Store(storeBox{store: store})
	return v
}

func (v *validator) SetCredentialStore(store CredentialStore) {
	v.box.Store(storeBox{store: store})
}

func (v *validator) credentialStore() CredentialStore {
	return v.box.Load().(storeBox).store
}

// ValidateHeader implements the header-based Authorization scheme.
func (v *validator) ValidateHeader(req CanonicalRequestInput, authHeader, amzDate string, now time.Time) (model.S3User, s3err.Error) {
	auth, perr := ParseAuthorizationHeader(authHeader)
	if perr != nil {
		return model.S3User{}, perr
	}

	if amzDate == "" {
		return model.S3User{}, s3err.New(s3err.AuthorizationHeaderMalformed, "missing X-Amz-Date")
	}
	signedAt, terr := time.Parse("20060102T150405Z", amzDate)
	if terr != nil {
		return model.S3User{}, s3err.New(s3err.AuthorizationHeaderMalformed, "invalid X-Amz-Date %q", amzDate)
	}
	if skew := now.Sub(signedAt); skew > MaxClockSkew || skew < -MaxClockSkew {
		return model.S3User{}, s3err.New(s3err.RequestTimeTooSkewed, "request time %s too far from server time", amzDate)
	}

	user, ok := v.credentialStore().Lookup(auth.AccessKeyId)
	if !ok {
		return model.S3User{}, s3err.New(s3err.InvalidAccessKeyId, "unknown access key %q", auth.AccessKeyId)
	}

	canonicalHeaders, signedHeaders := CanonicalHeaders(req.Headers, auth.SignedHeaders)
	canonicalReq := CanonicalRequest(
		req.Method,
		CanonicalURI(req.Path),
		CanonicalQueryString(req.Query),
		canonicalHeaders,
		signedHeaders,
		payloadHashOrDefault(req.PayloadHash),
	)

	date := amzDate[:8]
	scope := CredentialScope(date, auth.Region)
	sts := StringToSign(amzDate, scope, canonicalReq)
	key := SigningKey(user.SecretAccessKey, date, auth.Region)
	expected := Sign(key, sts)

	if !constantTimeEqual(expected, auth.Signature) {
		return model.S3User{}, s3err.New(s3err.SignatureDoesNotMatch, "computed signature does not match")
	}

	return user, nil
}

// ValidatePresigned implements the presigned query-string scheme.
func (v *validator) ValidatePresigned(req CanonicalRequestInput, now time.Time) (model.S3User, s3err.Error) {
	auth, perr := ParsePresignedQuery(req.Query)
	if perr != nil {
		return model.S3User{}, perr
	}

	if err := CheckExpiry(auth.AmzDate, auth.ExpirySeconds, now); err != nil {
		return model.S3User{}, err
	}

	user, ok := v.credentialStore().Lookup(auth.AccessKeyId)
	if !ok {
		return model.S3User{}, s3err.New(s3err.InvalidAccessKeyId, "unknown access key %q", auth.AccessKeyId)
	}

	canonicalHeaders, signedHeaders := CanonicalHeaders(req.Headers, auth.SignedHeaders)
	canonicalReq := CanonicalRequest(
		req.Method,
		CanonicalURI(req.Path),
		CanonicalQueryString(req.Query, "X-Amz-Signature"),
		canonicalHeaders,
		signedHeaders,
		UnsignedPayload,
	)

	scope := CredentialScope(auth.Date, auth.Region)
	sts := StringToSign(auth.AmzDate, scope, canonicalReq)
	key := SigningKey(user.SecretAccessKey, auth.Date, auth.Region)
	expected := Sign(key, sts)

	if !constantTimeEqual(expected, auth.Signature) {
		return model.S3User{}, s3err.New(s3err.SignatureDoesNotMatch, "computed signature does not match")
	}

	return user, nil
}

// Authorize checks user's configured permissions against the action implied
// by bucket/perm, per spec.md §3/§4.4.
func (v *validator) Authorize(user model.S3User, bucket string, perm model.Permission) s3err.Error {
	if !user.HasPermission(bucket, perm) {
		return s3err.New(s3err.AccessDenied, "user %q lacks %q permission on bucket %q", user.Name, perm, bucket)
	}
	return nil
}

// emptyPayloadHash is the SHA-256 hex digest of a zero-length string, the
// value spec.md §4.4 says to assume when x-amz-content-sha256 is absent.
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func payloadHashOrDefault(h string) string {
	if h == "" {
		return emptyPayloadHash
	}
	return h
}

func constantTimeEqual(a, b string) bool {
	return ConstantTimeEqual(a, b)
}

// ConstantTimeEqual compares two strings in constant time, exported for
// reuse by the streaming chunk validator when checking per-chunk
// signatures.
func ConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
