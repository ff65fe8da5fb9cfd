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

// Package objectcore implements the single-object operations of spec.md
// §4.7: PutObject, CopyObject, GetObject, HeadObject, DeleteObject, and
// ListObjectsV1/V2. Method shapes are reoriented from nabbar-golib/aws/
// object's client-side wrapper (which calls out to a remote bucket) to a
// server-side implementation backed by a storage.Backend.
package objectcore

import (
	"context"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nabbar/s3gw/checksum"
	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/model"
	"github.com/nabbar/s3gw/storage"
)

// MetadataDirective selects how CopyObject treats the destination's
// metadata, per spec.md §4.7.
type MetadataDirective string

const (
	DirectiveCopy    MetadataDirective = "COPY"
	DirectiveReplace MetadataDirective = "REPLACE"
)

// PutInput bundles a PutObject call's optional checksum declarations.
type PutInput struct {
	ContentType       string
	Metadata          map[string]string
	Tags              map[string]string
	ChecksumAlgorithm string // from x-amz-checksum-algorithm, empty if absent
	ChecksumValue     string // from x-amz-checksum-<alg>, empty if absent
}

// Engine drives the object-level operations against a storage.Backend.
type Engine interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, in PutInput) (*model.Object, s3err.Error)
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string, directive MetadataDirective, in PutInput) (*model.Object, s3err.Error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, *model.Object, s3err.Error)
	Head(ctx context.Context, bucket, key string) (*model.Object, s3err.Error)
	Delete(ctx context.Context, bucket, key string) s3err.Error
	List(ctx context.Context, bucket string, opts storage.ListOptions) (*storage.ListResult, s3err.Error)
}

type engine struct {
	backend storage.Backend
}

// New builds an Engine backed by store.
func New(store storage.Backend) Engine {
	return &engine{backend: store}
}

// Put implements spec.md §4.7's "PutObject" operation.
func (e *engine) Put(ctx context.Context, bucket, key string, body io.Reader, in PutInput) (*model.Object, s3err.Error) {
	var reader io.Reader = body
	var incr checksum.Incremental
	var alg checksum.Algorithm

	declaredAlg := in.ChecksumAlgorithm
	if declaredAlg == "" && in.ChecksumValue != "" {
		return nil, s3err.New(s3err.InvalidArgument, "x-amz-checksum value supplied without an algorithm")
	}

	if declaredAlg != "" {
		var perr s3err.Error
		alg, perr = checksum.ParseAlgorithm(declaredAlg)
		if perr != nil {
			return nil, perr
		}
		var ierr s3err.Error
		incr, ierr = checksum.NewIncremental(alg)
		if ierr != nil {
			return nil, ierr
		}
		reader = io.TeeReader(body, incr)
	}

	contentType := in.ContentType
	var sniffBuf []byte
	if contentType == "" {
		sniffBuf = make([]byte, 512)
		n, _ := io.ReadFull(reader, sniffBuf)
		sniffBuf = sniffBuf[:n]
		contentType = mimetype.Detect(sniffBuf).String()
		reader = io.MultiReader(strings.NewReader(string(sniffBuf)), reader)
	}

	obj := &model.Object{
		ContentType: contentType,
		Metadata:    in.Metadata,
		Tags:        in.Tags,
	}

	stored, err := e.backend.PutObject(ctx, bucket, key, reader, obj)
	if err != nil {
		return nil, err
	}

	if incr != nil {
		computed := incr.Sum()
		if in.ChecksumValue != "" && !checksum.Validate(in.ChecksumValue, computed) {
			return nil, s3err.New(s3err.InvalidChecksum, "uploaded object checksum does not match %s", alg)
		}
		if stored.Checksums == nil {
			stored.Checksums = map[string]string{}
		}
		stored.Checksums[string(alg)] = computed
	}

	return stored, nil
}

// Copy implements spec.md §4.7's "CopyObject" operation.
func (e *engine) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string, directive MetadataDirective, in PutInput) (*model.Object, s3err.Error) {
	src, srcMeta, err := e.backend.GetObject(ctx, srcBucket, srcKey)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	obj := &model.Object{}
	if directive == DirectiveReplace {
		obj.ContentType = in.ContentType
		obj.Metadata = in.Metadata
		obj.Tags = in.Tags
	} else {
		obj.ContentType = srcMeta.ContentType
		obj.Metadata = srcMeta.Metadata
		obj.Tags = srcMeta.Tags
	}
	obj.Checksums = srcMeta.Checksums

	return e.backend.PutObject(ctx, dstBucket, dstKey, src, obj)
}

// Get implements spec.md §4.7's "GetObject" operation. Range handling is
// left to the dispatcher, which slices the returned ReadCloser's bytes
// against the Content-Length in Object, since the storage.Backend contract
// surfaces the full object stream.
func (e *engine) Get(ctx context.Context, bucket, key string) (io.ReadCloser, *model.Object, s3err.Error) {
	return e.backend.GetObject(ctx, bucket, key)
}

// Head implements spec.md §4.7's "HeadObject" operation.
func (e *engine) Head(ctx context.Context, bucket, key string) (*model.Object, s3err.Error) {
	return e.backend.HeadObject(ctx, bucket, key)
}

// Delete implements spec.md §4.7's "DeleteObject" operation: idempotent,
// 204 whether or not the key existed.
func (e *engine) Delete(ctx context.Context, bucket, key string) s3err.Error {
	return e.backend.DeleteObject(ctx, bucket, key)
}

// List implements spec.md §4.7's "ListObjectsV1/V2" operation. Both API
// versions share the same prefix/delimiter/marker algorithm; the dispatcher
// maps each version's distinct query parameter names (marker vs
// continuation-token/start-after) onto storage.ListOptions.
func (e *engine) List(ctx context.Context, bucket string, opts storage.ListOptions) (*storage.ListResult, s3err.Error) {
	return e.backend.ListObjects(ctx, bucket, opts)
}
