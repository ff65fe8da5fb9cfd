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

// Package streaming decodes the aws-chunked transfer encoding of spec.md
// §4.5: a sequence of signed chunks, optionally followed by signed trailers.
// The Reader wraps an inner io.Reader the way nabbar-golib/ioutils' io.Reader
// wrappers do (a small struct holding the source plus accounting state,
// exposing only Read), but here each chunk boundary additionally carries a
// rolling HMAC signature the AWS SDK computes client-side and this gateway
// must reverify.
package streaming

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/signer"
)

// Config parameterizes one Reader instance with the signing context derived
// from the request's Authorization header.
type Config struct {
	// SeedSignature is the Authorization header's signature, used as
	// prevSignature for chunk 0.
	SeedSignature string
	SigningKey    []byte
	AmzDate       string
	CredScope     string

	// TrailerMode, when true, expects trailer header lines after the final
	// zero-length chunk, terminated by an "x-amz-trailer-signature" line.
	TrailerMode bool
}

// Reader decodes an aws-chunked body into the plain payload bytes, verifying
// each chunk's signature as it is consumed.
type Reader struct {
	src  *bufio.Reader
	cfg  Config
	prev string

	pending []byte // unread decoded bytes from the current chunk
	done    bool
	err     error

	// Trailers holds the parsed trailer key/value pairs once the stream has
	// been fully consumed in trailer mode.
	Trailers map[string]string

	decodedLen int64
}

// NewReader wraps src, which must yield the raw (still-encoded) request
// body, in a Reader that surfaces only decoded payload bytes.
func NewReader(src io.Reader, cfg Config) *Reader {
	return &Reader{
		src:  bufio.NewReaderSize(src, 64*1024),
		cfg:  cfg,
		prev: cfg.SeedSignature,
	}
}

// DecodedLen returns the number of decoded payload bytes surfaced so far.
func (r *Reader) DecodedLen() int64 {
	return r.decodedLen
}

// Read implements io.Reader, returning decoded payload bytes. Once the
// terminating zero-length chunk (and, in trailer mode, a validated trailer
// block) has been consumed, Read returns io.EOF.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	for len(r.pending) == 0 && !r.done {
		if err := r.readChunk(); err != nil {
			r.err = err
			return 0, err
		}
	}

	if len(r.pending) == 0 && r.done {
		return 0, io.EOF
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	r.decodedLen += int64(n)
	return n, nil
}

// readChunk reads one "<hexSize>;chunk-signature=<hex>\r\n<data>\r\n" unit,
// verifies its signature, and either appends its data to r.pending or, for
// the terminating zero-size chunk, consumes the trailer block (if any) and
// marks the stream done.
func (r *Reader) readChunk() error {
	line, err := readLine(r.src)
	if err != nil {
		return s3err.Wrap(s3err.InvalidChunk, err, "reading chunk header")
	}

	size, sig, perr := parseChunkHeader(line)
	if perr != nil {
		return perr
	}

	data := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r.src, data); err != nil {
			return s3err.Wrap(s3err.InvalidChunk, err, "reading %d chunk bytes", size)
		}
	}
	if err := consumeCRLF(r.src); err != nil {
		return s3err.Wrap(s3err.InvalidChunk, err, "reading chunk terminator")
	}

	expected := r.chunkSignature(data)
	if !constantTimeEq(expected, sig) {
		return s3err.New(s3err.InvalidChunk, "chunk signature mismatch")
	}
	r.prev = sig

	if size == 0 {
		if r.cfg.TrailerMode {
			if err := r.readTrailers(); err != nil {
				return err
			}
		}
		r.done = true
		return nil
	}

	r.pending = data
	return nil
}

// chunkSignature computes the expected chunk-signature per spec.md §4.5.
func (r *Reader) chunkSignature(data []byte) string {
	sts := chunkStringToSign(r.cfg.AmzDate, r.cfg.CredScope, r.prev, data)
	return signer.Sign(r.cfg.SigningKey, sts)
}

// readTrailers consumes "<name>: <value>\r\n" lines up to and including the
// "x-amz-trailer-signature: <hex>\r\n" line that directly follows them,
// verifying the trailer signature per spec.md §4.5. An empty line reached
// before that signature line is rejected as a missing signature.
func (r *Reader) readTrailers() error {
	trailers := map[string]string{}
	var raw strings.Builder

	for {
		line, err := readLine(r.src)
		if err != nil {
			return s3err.Wrap(s3err.InvalidChunk, err, "reading trailer line")
		}
		if line == "" {
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return s3err.New(s3err.InvalidChunk, "malformed trailer line %q", line)
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)

		if strings.EqualFold(name, "x-amz-trailer-signature") {
			expected := signer.Sign(r.cfg.SigningKey, chunkStringToSign(r.cfg.AmzDate, r.cfg.CredScope, r.prev, []byte(raw.String())))
			if !constantTimeEq(expected, value) {
				return s3err.New(s3err.InvalidChunk, "trailer signature mismatch")
			}
			r.Trailers = trailers
			return nil
		}

		trailers[name] = value
		raw.WriteString(name)
		raw.WriteString(":")
		raw.WriteString(value)
		raw.WriteString("\n")
	}

	return s3err.New(s3err.InvalidChunk, "missing x-amz-trailer-signature")
}

// chunkStringToSign builds the per-chunk (or trailer) string-to-sign of
// spec.md §4.5: the two inner SHA-256 hashes are of the empty string and of
// data respectively, which for a trailer block means data is the serialized
// trailer lines rather than payload bytes.
func chunkStringToSign(amzDate, credScope, prevSig string, data []byte) string {
	return strings.Join([]string{
		"AWS4-HMAC-SHA256-PAYLOAD",
		amzDate,
		credScope,
		prevSig,
		signer.SHA256Hex(nil),
		signer.SHA256Hex(data),
	}, "\n")
}

func parseChunkHeader(line string) (int, string, s3err.Error) {
	sizePart, sigPart, ok := strings.Cut(line, ";")
	if !ok {
		return 0, "", s3err.New(s3err.InvalidChunk, "malformed chunk header %q", line)
	}

	size, err := strconv.ParseInt(strings.TrimSpace(sizePart), 16, 64)
	if err != nil {
		return 0, "", s3err.New(s3err.InvalidChunk, "malformed chunk size %q", sizePart)
	}

	const prefix = "chunk-signature="
	sigPart = strings.TrimSpace(sigPart)
	if !strings.HasPrefix(sigPart, prefix) {
		return 0, "", s3err.New(s3err.InvalidChunk, "malformed chunk signature field %q", sigPart)
	}

	return int(size), strings.TrimPrefix(sigPart, prefix), nil
}

// readLine reads a single CRLF-terminated line from r, returning it without
// the trailing CRLF.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// consumeCRLF reads and discards the two bytes following a chunk's data,
// which must be "\r\n".
func consumeCRLF(r *bufio.Reader) error {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	if buf[0] != '\r' || buf[1] != '\n' {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func constantTimeEq(a, b string) bool {
	return signer.ConstantTimeEqual(a, b)
}
