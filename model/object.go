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

package model

import "time"

// Object is the authoritative metadata record for one (Bucket, Key).
type Object struct {
	Bucket       string
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string

	// Metadata holds case-preserved user metadata, keyed without the
	// "x-amz-meta-" prefix (the dispatcher adds/strips the prefix at the
	// HTTP boundary).
	Metadata map[string]string

	// Checksums holds zero or more of the five algorithms, keyed by
	// checksum.Algorithm (stored as string to keep this package free of a
	// dependency on the checksum package).
	Checksums map[string]string

	// Tags holds any object-level tags, a supplemental feature per
	// SPEC_FULL.md §12 generalizing bucket Tags to objects. They are set
	// from PutInput.Tags and carried through Copy; the dispatcher does not
	// read the x-amz-tagging header, so HTTP requests never set them.
	Tags map[string]string
}

// Clone returns a deep-enough copy of o safe for a caller to mutate without
// affecting the backend's stored record.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}

	c := *o
	c.Metadata = cloneStringMap(o.Metadata)
	c.Checksums = cloneStringMap(o.Checksums)
	c.Tags = cloneStringMap(o.Tags)
	return &c
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
