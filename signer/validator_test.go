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

package signer_test

import (
	"net/url"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/model"
	"github.com/nabbar/s3gw/signer"
)

func TestSigner(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "signer suite")
}

func signedHeaderRequest(amzDate string) (signer.CanonicalRequestInput, string) {
	headers := map[string][]string{
		"Host":                 {"s3.example.com"},
		"X-Amz-Date":           {amzDate},
		"x-amz-content-sha256": {signer.UnsignedPayload},
	}

	req := signer.CanonicalRequestInput{
		Method:      "GET",
		Path:        "/mybucket/mykey",
		Query:       url.Values{},
		Headers:     headers,
		PayloadHash: signer.UnsignedPayload,
	}

	canonicalHeaders, signedHeaders := signer.CanonicalHeaders(headers, []string{"host", "x-amz-date", "x-amz-content-sha256"})
	canonicalReq := signer.CanonicalRequest(req.Method, signer.CanonicalURI(req.Path), signer.CanonicalQueryString(req.Query), canonicalHeaders, signedHeaders, req.PayloadHash)

	date := amzDate[:8]
	scope := signer.CredentialScope(date, "us-east-1")
	sts := signer.StringToSign(amzDate, scope, canonicalReq)
	key := signer.SigningKey("secretkey", date, "us-east-1")
	sig := signer.Sign(key, sts)

	authHeader := "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/" + date + "/us-east-1/s3/aws4_request, SignedHeaders=" + signedHeaders + ", Signature=" + sig

	return req, authHeader
}

var _ = Describe("Validator", func() {
	var store signer.CredentialStore
	var v signer.Validator
	var now time.Time

	BeforeEach(func() {
		store = signer.NewStaticCredentialStore([]model.S3User{
			{
				AccessKeyId:     "AKIDEXAMPLE",
				SecretAccessKey: "secretkey",
				Name:            "tester",
				BucketPermissions: []model.BucketPermission{
					{BucketName: "mybucket", Permissions: []model.Permission{model.PermRead}},
				},
			},
		})
		v = signer.New(store)
		now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	})

	It("accepts a correctly signed header request", func() {
		req, authHeader := signedHeaderRequest("20240101T000000Z")

		user, err := v.ValidateHeader(req, authHeader, "20240101T000000Z", now)
		Expect(err).To(BeNil())
		Expect(user.Name).To(Equal("tester"))
	})

	It("rejects an unknown access key", func() {
		req, authHeader := signedHeaderRequest("20240101T000000Z")
		authHeader = "AWS4-HMAC-SHA256 Credential=UNKNOWNKEY/20240101/us-east-1/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature=deadbeef"

		_, err := v.ValidateHeader(req, authHeader, "20240101T000000Z", now)
		Expect(err).NotTo(BeNil())
		Expect(err.Kind()).To(Equal(s3err.InvalidAccessKeyId))
	})

	It("rejects a tampered signature", func() {
		req, authHeader := signedHeaderRequest("20240101T000000Z")
		authHeader = authHeader[:len(authHeader)-4] + "beef"

		_, err := v.ValidateHeader(req, authHeader, "20240101T000000Z", now)
		Expect(err).NotTo(BeNil())
		Expect(err.Kind()).To(Equal(s3err.SignatureDoesNotMatch))
	})

	It("rejects a request signed too far in the past", func() {
		req, authHeader := signedHeaderRequest("20240101T000000Z")

		farFuture := now.Add(24 * time.Hour)
		_, err := v.ValidateHeader(req, authHeader, "20240101T000000Z", farFuture)
		Expect(err).NotTo(BeNil())
		Expect(err.Kind()).To(Equal(s3err.RequestTimeTooSkewed))
	})

	It("denies a user lacking the required permission", func() {
		req, authHeader := signedHeaderRequest("20240101T000000Z")
		user, err := v.ValidateHeader(req, authHeader, "20240101T000000Z", now)
		Expect(err).To(BeNil())

		authErr := v.Authorize(user, "mybucket", model.PermWrite)
		Expect(authErr).NotTo(BeNil())
		Expect(authErr.Kind()).To(Equal(s3err.AccessDenied))
	})

	It("allows a user with the required permission", func() {
		req, authHeader := signedHeaderRequest("20240101T000000Z")
		user, err := v.ValidateHeader(req, authHeader, "20240101T000000Z", now)
		Expect(err).To(BeNil())

		authErr := v.Authorize(user, "mybucket", model.PermRead)
		Expect(authErr).To(BeNil())
	})
})
