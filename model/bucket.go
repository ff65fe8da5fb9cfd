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

// Package model holds the plain data types of spec.md §3: Bucket, Object,
// MultipartUpload, Part, S3User. These are the authoritative server-side
// records a storage.Backend persists and returns, reoriented from
// nabbar/golib/aws's client-side view (a Bucket/Object there describes what
// an S3 client read back from AWS) to a server's view (what this gateway
// itself computed and is the source of truth for).
package model

import (
	"regexp"
	"strings"
	"time"
)

// BucketType distinguishes the two bucket variants spec.md §3/§4.7 define.
type BucketType string

const (
	GeneralPurpose BucketType = "GeneralPurpose"
	Directory      BucketType = "Directory"
)

// Bucket is the authoritative record for one bucket.
type Bucket struct {
	Name         string
	CreationDate time.Time
	Region       string
	Type         BucketType
	StorageClass string
	Tags         map[string]string
}

const (
	expressOneZoneStorageClass = "EXPRESS_ONEZONE"
	defaultRegion              = "us-east-1"
)

// NewBucket builds a Bucket applying the defaults of spec.md §3/§6: region
// defaults to us-east-1, directory buckets default to the EXPRESS_ONEZONE
// storage class.
func NewBucket(name string, bt BucketType, region, storageClass string) *Bucket {
	if region == "" {
		region = defaultRegion
	}

	if bt == Directory && storageClass == "" {
		storageClass = expressOneZoneStorageClass
	}

	return &Bucket{
		Name:         name,
		CreationDate: time.Now().UTC().Truncate(time.Millisecond),
		Region:       region,
		Type:         bt,
		StorageClass: storageClass,
		Tags:         make(map[string]string),
	}
}

var (
	bucketNameRe   = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-]{1,61}[a-z0-9]$`)
	ipv4Re         = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	reservedPrefix = []string{"xn--", "sthree-", "amzn-s3-demo-"}
)

// ValidBucketName reports whether name satisfies spec.md §3's bucket naming
// rule: 3-63 chars, lowercase alphanumerics plus '.' and '-', not
// starting/ending with '.'/'-', no ".." "/.-"/"-.", not an IPv4 literal, and
// none of the reserved prefixes.
func ValidBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if !bucketNameRe.MatchString(name) {
		return false
	}
	if strings.Contains(name, "..") || strings.Contains(name, ".-") || strings.Contains(name, "-.") {
		return false
	}
	if ipv4Re.MatchString(name) {
		return false
	}
	for _, p := range reservedPrefix {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	return true
}
