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

// Package storage defines the Backend a gateway instance persists bucket,
// object, and multipart-upload state through. Two implementations are
// provided: memory (ephemeral, also used by tests) and filesystem (durable, temp-file-then-rename writes guarded by gofrs/
// flock). The method shapes are reoriented from nabbar-golib/aws's
// client-side bucket/object/multipart wrappers: where the teacher calls out
// to a remote S3 endpoint, a Backend call is the endpoint.
package storage

import (
	"context"
	"io"

	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/model"
)

// ListOptions parameterizes ListObjects per spec.md §3's listing rules.
type ListOptions struct {
	Prefix     string
	Delimiter  string
	Marker     string // ListObjectsV1 marker, or ListObjectsV2 continuation token
	MaxKeys    int
	StartAfter string // ListObjectsV2 only
}

// ListResult is the backend-agnostic page of a listing; the dispatcher's
// XML layer adapts it to ListObjectsV1 or V2 shape.
type ListResult struct {
	Objects        []*model.Object
	CommonPrefixes []string
	IsTruncated    bool
	NextMarker     string
}

// Backend is the storage contract every operation in objectcore/ and
// multipart/ is built on.
type Backend interface {
	// Buckets

	CreateBucket(ctx context.Context, bucket *model.Bucket) s3err.Error
	DeleteBucket(ctx context.Context, name string) s3err.Error
	GetBucket(ctx context.Context, name string) (*model.Bucket, s3err.Error)
	ListBuckets(ctx context.Context) ([]*model.Bucket, s3err.Error)
	BucketIsEmpty(ctx context.Context, name string) (bool, s3err.Error)

	// Objects

	PutObject(ctx context.Context, bucket, key string, body io.Reader, obj *model.Object) (*model.Object, s3err.Error)
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, *model.Object, s3err.Error)
	HeadObject(ctx context.Context, bucket, key string) (*model.Object, s3err.Error)
	DeleteObject(ctx context.Context, bucket, key string) s3err.Error
	ListObjects(ctx context.Context, bucket string, opts ListOptions) (*ListResult, s3err.Error)

	// Multipart uploads

	CreateUpload(ctx context.Context, upload *model.MultipartUpload) s3err.Error
	GetUpload(ctx context.Context, bucket, key, uploadId string) (*model.MultipartUpload, s3err.Error)
	PutPart(ctx context.Context, bucket, key, uploadId string, partNumber int, body io.Reader) (*model.Part, s3err.Error)

	// SetPartChecksum annotates an already-stored part with a computed
	// checksum value, for the case (spec.md §4.6) where the client supplied
	// a checksum algorithm on UploadPart and the server validated/computed
	// it only after the body had already been written to part storage.
	SetPartChecksum(ctx context.Context, bucket, key, uploadId string, partNumber int, alg, value string) s3err.Error

	ListUploadParts(ctx context.Context, bucket, key, uploadId string) ([]model.Part, s3err.Error)
	ListUploads(ctx context.Context, bucket string) ([]*model.MultipartUpload, s3err.Error)
	CompleteUpload(ctx context.Context, bucket, key, uploadId string, parts []model.Part, finalETag string, checksums map[string]string) (*model.Object, s3err.Error)
	AbortUpload(ctx context.Context, bucket, key, uploadId string) s3err.Error

	// PartReader opens the raw bytes of one already-stored part. The
	// multipart Complete step does not go through it: each backend's
	// CompleteUpload reads its own part storage directly.
	PartReader(ctx context.Context, bucket, key, uploadId string, partNumber int) (io.ReadCloser, s3err.Error)
}
