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

// Part is one uploaded chunk of a MultipartUpload, per spec.md §3.
type Part struct {
	PartNumber   int
	ETag         string
	Size         int64
	LastModified time.Time

	// Checksums holds the per-part checksum the client supplied or the
	// server computed, keyed by checksum.Algorithm name.
	Checksums map[string]string
}

// MultipartUpload is the authoritative record for one in-progress upload.
type MultipartUpload struct {
	UploadId    string
	Bucket      string
	Key         string
	Initiated   time.Time
	ContentType string
	Metadata    map[string]string

	// ChecksumAlgorithm is the algorithm declared at Initiate time, empty if
	// none was declared.
	ChecksumAlgorithm string

	Parts []Part
}

// SortedParts returns a copy of u.Parts ordered by PartNumber ascending.
func (u *MultipartUpload) SortedParts() []Part {
	parts := make([]Part, len(u.Parts))
	copy(parts, u.Parts)

	for i := 1; i < len(parts); i++ {
		for j := i; j > 0 && parts[j-1].PartNumber > parts[j].PartNumber; j-- {
			parts[j-1], parts[j] = parts[j], parts[j-1]
		}
	}

	return parts
}

// FindPart returns the Part with the given number, and whether it exists.
func (u *MultipartUpload) FindPart(n int) (Part, bool) {
	for _, p := range u.Parts {
		if p.PartNumber == n {
			return p, true
		}
	}
	return Part{}, false
}

// TotalSize sums the size of every stored part.
func (u *MultipartUpload) TotalSize() int64 {
	var total int64
	for _, p := range u.Parts {
		total += p.Size
	}
	return total
}

// LastPartNumber returns the highest PartNumber among stored parts, or 0 if
// none exist.
func (u *MultipartUpload) LastPartNumber() int {
	max := 0
	for _, p := range u.Parts {
		if p.PartNumber > max {
			max = p.PartNumber
		}
	}
	return max
}
