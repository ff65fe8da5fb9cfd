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

package streaming_test

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/signer"
	"github.com/nabbar/s3gw/streaming"
)

const (
	testAmzDate   = "20240101T000000Z"
	testCredScope = "20240101/us-east-1/s3/aws4_request"
)

func testSigningKey() []byte {
	return signer.SigningKey("secretkey", "20240101", "us-east-1")
}

func chunkSig(key []byte, prev, data string) string {
	sts := strings.Join([]string{
		"AWS4-HMAC-SHA256-PAYLOAD",
		testAmzDate,
		testCredScope,
		prev,
		signer.SHA256Hex(nil),
		signer.SHA256Hex([]byte(data)),
	}, "\n")
	return signer.Sign(key, sts)
}

func encodeChunk(sig string, data string) string {
	return fmt.Sprintf("%x;chunk-signature=%s\r\n%s\r\n", len(data), sig, data)
}

func TestReaderDecodesTwoChunks(t *testing.T) {
	key := testSigningKey()
	seed := "seedsignature0000000000000000000000000000000000000000000000000"

	sig1 := chunkSig(key, seed, "hello")
	sig2 := chunkSig(key, sig1, "world")
	sig3 := chunkSig(key, sig2, "")

	body := encodeChunk(sig1, "hello") + encodeChunk(sig2, "world") + encodeChunk(sig3, "")

	r := streaming.NewReader(strings.NewReader(body), streaming.Config{
		SeedSignature: seed,
		SigningKey:    key,
		AmzDate:       testAmzDate,
		CredScope:     testCredScope,
	})

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(out) != "helloworld" {
		t.Fatalf("decoded = %q, want %q", out, "helloworld")
	}
	if r.DecodedLen() != 10 {
		t.Fatalf("DecodedLen() = %d, want 10", r.DecodedLen())
	}
}

func TestReaderRejectsTamperedChunk(t *testing.T) {
	key := testSigningKey()
	seed := "seedsignature0000000000000000000000000000000000000000000000000"

	sig1 := chunkSig(key, seed, "hello")
	sig2 := chunkSig(key, sig1, "")

	// Tamper with the payload without updating the signature.
	body := encodeChunk(sig1, "HELLO") + encodeChunk(sig2, "")

	r := streaming.NewReader(strings.NewReader(body), streaming.Config{
		SeedSignature: seed,
		SigningKey:    key,
		AmzDate:       testAmzDate,
		CredScope:     testCredScope,
	})

	_, err := io.ReadAll(r)
	if err == nil {
		t.Fatal("expected a signature mismatch error, got nil")
	}

	var se s3err.Error
	ok := errorsAs(err, &se)
	if !ok {
		t.Fatalf("expected an s3err.Error, got %T: %v", err, err)
	}
	if se.Kind() != s3err.InvalidChunk {
		t.Fatalf("Kind() = %v, want InvalidChunk", se.Kind())
	}
}

func TestReaderTrailerMode(t *testing.T) {
	key := testSigningKey()
	seed := "seedsignature0000000000000000000000000000000000000000000000000"

	sig1 := chunkSig(key, seed, "payload")
	sig2 := chunkSig(key, sig1, "")

	trailerLine := "x-amz-checksum-sha256:abc123\n"
	trailerSig := signer.Sign(key, strings.Join([]string{
		"AWS4-HMAC-SHA256-PAYLOAD",
		testAmzDate,
		testCredScope,
		sig2,
		signer.SHA256Hex(nil),
		signer.SHA256Hex([]byte(trailerLine)),
	}, "\n"))

	var body bytes.Buffer
	body.WriteString(encodeChunk(sig1, "payload"))
	body.WriteString(encodeChunk(sig2, ""))
	body.WriteString("x-amz-checksum-sha256: abc123\r\n")
	body.WriteString("\r\n")
	body.WriteString("x-amz-trailer-signature: " + trailerSig + "\r\n")
	body.WriteString("\r\n")

	r := streaming.NewReader(&body, streaming.Config{
		SeedSignature: seed,
		SigningKey:    key,
		AmzDate:       testAmzDate,
		CredScope:     testCredScope,
		TrailerMode:   true,
	})

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(out) != "payload" {
		t.Fatalf("decoded = %q, want %q", out, "payload")
	}
	if r.Trailers["x-amz-checksum-sha256"] != "abc123" {
		t.Fatalf("Trailers = %v", r.Trailers)
	}
}

func errorsAs(err error, target *s3err.Error) bool {
	if e, ok := err.(s3err.Error); ok {
		*target = e
		return true
	}
	return false
}
