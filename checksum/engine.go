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

package checksum

import (
	"encoding/base64"
	"hash"
	"io"
	"sync/atomic"

	s3err "github.com/nabbar/s3gw/errors"
)

// Incremental accepts streamed writes and yields the final base64-encoded
// checksum value, mirroring nabbar/golib/aws/pusher's atomic.Value-backed
// hash accumulation (md5Write/md5Checksum) generalized to any Algorithm.
type Incremental interface {
	io.Writer

	// Sum returns the base64(standard) encoded checksum of everything
	// written so far, without resetting the running hash.
	Sum() string

	// Algorithm returns the algorithm this Incremental computes.
	Algorithm() Algorithm
}

type incremental struct {
	alg Algorithm
	h   atomic.Value // hash.Hash
}

// NewIncremental returns an Incremental writer computing alg over every byte
// written to it.
func NewIncremental(alg Algorithm) (Incremental, s3err.Error) {
	h, err := newHash(alg)
	if err != nil {
		return nil, err
	}

	i := &incremental{alg: alg}
	i.h.Store(h)
	return i, nil
}

func (i *incremental) Write(p []byte) (int, error) {
	h := i.h.Load().(hash.Hash)
	return h.Write(p)
}

func (i *incremental) Sum() string {
	h := i.h.Load().(hash.Hash)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (i *incremental) Algorithm() Algorithm { return i.alg }

// Compute is the one-shot equivalent of NewIncremental+Write+Sum for a
// caller that already holds the full byte slice.
func Compute(alg Algorithm, data []byte) (string, s3err.Error) {
	h, err := newHash(alg)
	if err != nil {
		return "", err
	}

	if _, werr := h.Write(data); werr != nil {
		return "", s3err.Wrap(s3err.InternalError, werr, "checksum write failed")
	}

	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// Validate reports whether client and computed represent the same checksum
// value, after normalizing both through base64 decode+re-encode so that
// non-canonical padding/whitespace differences don't cause a spurious
// mismatch.
func Validate(client, computed string) bool {
	cb, err1 := base64.StdEncoding.DecodeString(client)
	sb, err2 := base64.StdEncoding.DecodeString(computed)
	if err1 != nil || err2 != nil {
		return client == computed
	}
	return base64.StdEncoding.EncodeToString(cb) == base64.StdEncoding.EncodeToString(sb)
}

// AggregateComposite implements spec.md §4.6's composite-checksum rule for
// Complete-MPU: base64(HASH(concat(base64decode(partChecksums)))).
func AggregateComposite(alg Algorithm, partChecksums []string) (string, s3err.Error) {
	h, err := newHash(alg)
	if err != nil {
		return "", err
	}

	for _, pc := range partChecksums {
		raw, derr := base64.StdEncoding.DecodeString(pc)
		if derr != nil {
			return "", s3err.New(s3err.InvalidChecksum, "malformed stored part checksum")
		}
		if _, werr := h.Write(raw); werr != nil {
			return "", s3err.Wrap(s3err.InternalError, werr, "checksum aggregate write failed")
		}
	}

	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}
