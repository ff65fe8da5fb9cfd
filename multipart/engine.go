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

// Package multipart implements the multipart upload state machine of
// spec.md §4.6: Initiate, UploadPart, UploadPartCopy, ListParts, Complete,
// Abort, ListMultipartUploads, and the HEAD-on-upload metadata probe. The
// method shapes are reoriented from nabbar-golib/aws/multipart's client-side
// assembly (which sends parts to a remote S3 endpoint) to the server side of
// that same exchange: parts arrive instead of being sent, and Complete
// concatenates what is already on disk rather than waiting on a remote
// CompleteMultipartUpload call.
package multipart

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-uuid"

	"github.com/nabbar/s3gw/checksum"
	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/model"
	"github.com/nabbar/s3gw/storage"
)

const maxPartNumber = 10000

// Engine drives the multipart upload lifecycle against a storage.Backend.
type Engine interface {
	Initiate(ctx context.Context, bucket, key, contentType string, metadata map[string]string, checksumAlgorithm string) (*model.MultipartUpload, s3err.Error)
	UploadPart(ctx context.Context, bucket, key, uploadId string, partNumber int, body io.Reader, clientChecksum, checksumAlg string) (*model.Part, s3err.Error)
	UploadPartCopy(ctx context.Context, bucket, key, uploadId string, partNumber int, srcBucket, srcKey string, rangeStart, rangeEnd int64, hasRange bool) (*model.Part, s3err.Error)
	ListParts(ctx context.Context, bucket, key, uploadId string, partNumberMarker, maxParts int) ([]model.Part, bool, int, s3err.Error)
	Complete(ctx context.Context, bucket, key, uploadId string, requested []model.Part) (*model.Object, s3err.Error)
	Abort(ctx context.Context, bucket, key, uploadId string) s3err.Error
	ListUploads(ctx context.Context, bucket string) ([]*model.MultipartUpload, s3err.Error)
	HeadUpload(ctx context.Context, bucket, key, uploadId string) (partsCount int, lastPartNumber int, totalSize int64, err s3err.Error)
}

type engine struct {
	backend storage.Backend
}

// New builds an Engine backed by store.
func New(store storage.Backend) Engine {
	return &engine{backend: store}
}

// Initiate implements spec.md §4.6's "Initiate" operation.
func (e *engine) Initiate(ctx context.Context, bucket, key, contentType string, metadata map[string]string, checksumAlgorithm string) (*model.MultipartUpload, s3err.Error) {
	alg := ""
	if checksumAlgorithm != "" {
		parsed, perr := checksum.ParseAlgorithm(checksumAlgorithm)
		if perr != nil {
			return nil, perr
		}
		alg = string(parsed)
	}

	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, s3err.Wrap(s3err.InternalError, err, "generating upload id")
	}

	upload := &model.MultipartUpload{
		UploadId:          id,
		Bucket:            bucket,
		Key:               key,
		Initiated:         time.Now().UTC().Truncate(time.Millisecond),
		ContentType:       contentType,
		Metadata:          metadata,
		ChecksumAlgorithm: alg,
	}

	if cerr := e.backend.CreateUpload(ctx, upload); cerr != nil {
		return nil, cerr
	}

	return upload, nil
}

// UploadPart implements spec.md §4.6's "UploadPart" operation, including the
// optional per-part checksum validation.
func (e *engine) UploadPart(ctx context.Context, bucket, key, uploadId string, partNumber int, body io.Reader, clientChecksum, checksumAlg string) (*model.Part, s3err.Error) {
	if partNumber < 1 || partNumber > maxPartNumber {
		return nil, s3err.New(s3err.InvalidArgument, "part number %d out of range 1..%d", partNumber, maxPartNumber)
	}

	var reader io.Reader = body
	var incr checksum.Incremental

	if checksumAlg != "" {
		alg, perr := checksum.ParseAlgorithm(checksumAlg)
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

	part, err := e.backend.PutPart(ctx, bucket, key, uploadId, partNumber, reader)
	if err != nil {
		return nil, err
	}

	if incr != nil {
		computed := incr.Sum()
		if clientChecksum != "" && !checksum.Validate(clientChecksum, computed) {
			return nil, s3err.New(s3err.InvalidChecksum, "uploaded part checksum does not match %s", incr.Algorithm())
		}

		if serr := e.backend.SetPartChecksum(ctx, bucket, key, uploadId, partNumber, string(incr.Algorithm()), computed); serr != nil {
			return nil, serr
		}

		if part.Checksums == nil {
			part.Checksums = map[string]string{}
		}
		part.Checksums[string(incr.Algorithm())] = computed
	}

	return part, nil
}

// UploadPartCopy implements spec.md §4.6's "UploadPartCopy" operation.
func (e *engine) UploadPartCopy(ctx context.Context, bucket, key, uploadId string, partNumber int, srcBucket, srcKey string, rangeStart, rangeEnd int64, hasRange bool) (*model.Part, s3err.Error) {
	if partNumber < 1 || partNumber > maxPartNumber {
		return nil, s3err.New(s3err.InvalidArgument, "part number %d out of range 1..%d", partNumber, maxPartNumber)
	}

	src, meta, err := e.backend.GetObject(ctx, srcBucket, srcKey)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	var reader io.Reader = src
	if hasRange {
		if rangeStart < 0 || rangeEnd >= meta.Size || rangeStart > rangeEnd {
			return nil, s3err.New(s3err.InvalidRange, "copy range %d-%d out of bounds for object of size %d", rangeStart, rangeEnd, meta.Size)
		}
		if _, serr := io.CopyN(io.Discard, src, rangeStart); serr != nil {
			return nil, s3err.Wrap(s3err.InternalError, serr, "seeking to copy range start")
		}
		reader = io.LimitReader(src, rangeEnd-rangeStart+1)
	}

	return e.backend.PutPart(ctx, bucket, key, uploadId, partNumber, reader)
}

// ListParts implements spec.md §4.6's "ListParts" operation with
// part-number-marker/max-parts pagination.
func (e *engine) ListParts(ctx context.Context, bucket, key, uploadId string, partNumberMarker, maxParts int) ([]model.Part, bool, int, s3err.Error) {
	all, err := e.backend.ListUploadParts(ctx, bucket, key, uploadId)
	if err != nil {
		return nil, false, 0, err
	}

	if maxParts <= 0 {
		maxParts = 1000
	}

	var page []model.Part
	for _, p := range all {
		if p.PartNumber <= partNumberMarker {
			continue
		}
		if len(page) >= maxParts {
			return page, true, page[len(page)-1].PartNumber, nil
		}
		page = append(page, p)
	}

	return page, false, 0, nil
}

// Complete implements spec.md §4.6's "Complete" operation, enforcing the
// strictly-ordered validation rules before concatenating part data.
func (e *engine) Complete(ctx context.Context, bucket, key, uploadId string, requested []model.Part) (*model.Object, s3err.Error) {
	upload, err := e.backend.GetUpload(ctx, bucket, key, uploadId)
	if err != nil {
		return nil, err
	}

	lastNumber := 0
	for _, rp := range requested {
		if rp.PartNumber <= lastNumber {
			return nil, s3err.New(s3err.InvalidPartOrder, "part numbers must be strictly ascending")
		}
		lastNumber = rp.PartNumber
	}

	resolved := make([]model.Part, 0, len(requested))
	md5Concat := make([]byte, 0, len(requested)*md5.Size)

	for _, rp := range requested {
		stored, ok := upload.FindPart(rp.PartNumber)
		if !ok {
			return nil, s3err.New(s3err.InvalidPart, "part %d was not uploaded", rp.PartNumber)
		}

		wantETag := stripQuotes(rp.ETag)
		if wantETag != stored.ETag {
			return nil, s3err.New(s3err.InvalidPart, "part %d ETag mismatch", rp.PartNumber)
		}

		raw, derr := hex.DecodeString(stored.ETag)
		if derr != nil {
			return nil, s3err.Wrap(s3err.InternalError, derr, "decoding stored part ETag")
		}
		md5Concat = append(md5Concat, raw...)

		resolved = append(resolved, stored)
	}

	sum := md5.Sum(md5Concat)
	finalETag := fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:]), len(resolved))

	checksums := map[string]string{}
	if upload.ChecksumAlgorithm != "" {
		alg, _ := checksum.ParseAlgorithm(upload.ChecksumAlgorithm)
		var perPart []string
		complete := true
		for _, p := range resolved {
			v, ok := p.Checksums[upload.ChecksumAlgorithm]
			if !ok {
				complete = false
				break
			}
			perPart = append(perPart, v)
		}
		if complete && len(perPart) > 0 {
			composite, cerr := checksum.AggregateComposite(alg, perPart)
			if cerr != nil {
				return nil, cerr
			}
			checksums[upload.ChecksumAlgorithm] = composite
		}
	}

	return e.backend.CompleteUpload(ctx, bucket, key, uploadId, resolved, finalETag, checksums)
}

func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Abort implements spec.md §4.6's "Abort" operation.
func (e *engine) Abort(ctx context.Context, bucket, key, uploadId string) s3err.Error {
	return e.backend.AbortUpload(ctx, bucket, key, uploadId)
}

// ListUploads implements spec.md §4.6's "ListMultipartUploads" operation.
func (e *engine) ListUploads(ctx context.Context, bucket string) ([]*model.MultipartUpload, s3err.Error) {
	return e.backend.ListUploads(ctx, bucket)
}

// HeadUpload implements spec.md §4.6's HEAD-on-upload metadata probe.
func (e *engine) HeadUpload(ctx context.Context, bucket, key, uploadId string) (int, int, int64, s3err.Error) {
	upload, err := e.backend.GetUpload(ctx, bucket, key, uploadId)
	if err != nil {
		return 0, 0, 0, err
	}
	return len(upload.Parts), upload.LastPartNumber(), upload.TotalSize(), nil
}
