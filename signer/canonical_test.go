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

	"github.com/nabbar/s3gw/signer"
)

func TestCanonicalURI(t *testing.T) {
	cases := map[string]string{
		"":                "/",
		"/":               "/",
		"/my bucket/key":  "/my%20bucket/key",
		"/a/b/c":          "/a/b/c",
		"/key+plus":       "/key%2Bplus",
		"/unicode/café": "/unicode/caf%C3%A9",
	}

	for in, want := range cases {
		got := signer.CanonicalURI(in)
		if got != want {
			t.Errorf("CanonicalURI(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonicalQueryString(t *testing.T) {
	q := url.Values{
		"b": {"2"},
		"a": {"1"},
		"c": {""},
	}

	got := signer.CanonicalQueryString(q)
	want := "a=1&b=2&c="
	if got != want {
		t.Errorf("CanonicalQueryString() = %q, want %q", got, want)
	}
}

func TestCanonicalQueryStringExcludesSignature(t *testing.T) {
	q := url.Values{
		"X-Amz-Signature": {"deadbeef"},
		"X-Amz-Algorithm": {"AWS4-HMAC-SHA256"},
	}

	got := signer.CanonicalQueryString(q, "X-Amz-Signature")
	want := "X-Amz-Algorithm=AWS4-HMAC-SHA256"
	if got != want {
		t.Errorf("CanonicalQueryString() = %q, want %q", got, want)
	}
}

func TestCanonicalHeaders(t *testing.T) {
	headers := map[string][]string{
		"Host":                 {"s3.amazonaws.com"},
		"X-Amz-Date":           {"20240101T000000Z"},
		"x-amz-content-sha256": {"abc123"},
	}

	canonical, signed := signer.CanonicalHeaders(headers, []string{"host", "x-amz-date", "x-amz-content-sha256"})

	wantCanonical := "host:s3.amazonaws.com\nx-amz-content-sha256:abc123\nx-amz-date:20240101T000000Z\n"
	wantSigned := "host;x-amz-content-sha256;x-amz-date"

	if canonical != wantCanonical {
		t.Errorf("CanonicalHeaders() canonical = %q, want %q", canonical, wantCanonical)
	}
	if signed != wantSigned {
		t.Errorf("CanonicalHeaders() signed = %q, want %q", signed, wantSigned)
	}
}

func TestSigningKeyDeterministic(t *testing.T) {
	k1 := signer.SigningKey("secret", "20240101", "us-east-1")
	k2 := signer.SigningKey("secret", "20240101", "us-east-1")

	if string(k1) != string(k2) {
		t.Error("SigningKey is not deterministic for identical inputs")
	}

	k3 := signer.SigningKey("other-secret", "20240101", "us-east-1")
	if string(k1) == string(k3) {
		t.Error("SigningKey did not change with a different secret")
	}
}
