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

// Package memory is an in-process, non-durable storage.Backend. It is
// selected by the InMemory storage type and then holds every bucket, of
// either bucket type, and is the default fixture for tests throughout the
// module.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/model"
	"github.com/nabbar/s3gw/pathlock"
	"github.com/nabbar/s3gw/storage"
)

type objectRecord struct {
	meta model.Object
	data []byte
}

type uploadRecord struct {
	meta  model.MultipartUpload
	parts map[int][]byte
}

type backend struct {
	mu      sync.RWMutex
	buckets map[string]*model.Bucket
	objects map[string]map[string]*objectRecord
	uploads map[string]map[string]*uploadRecord
	locks   pathlock.Registry
}

// New builds an empty in-memory Backend.
func New() storage.Backend {
	return &backend{
		buckets: make(map[string]*model.Bucket),
		objects: make(map[string]map[string]*objectRecord),
		uploads: make(map[string]map[string]*uploadRecord),
		locks:   pathlock.New(),
	}
}

func (b *backend) CreateBucket(_ context.Context, bucket *model.Bucket) s3err.Error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.buckets[bucket.Name]; ok {
		return s3err.New(s3err.BucketAlreadyExists, "bucket %q already exists", bucket.Name)
	}

	b.buckets[bucket.Name] = bucket
	b.objects[bucket.Name] = make(map[string]*objectRecord)
	b.uploads[bucket.Name] = make(map[string]*uploadRecord)
	return nil
}

func (b *backend) DeleteBucket(_ context.Context, name string) s3err.Error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.buckets[name]; !ok {
		return s3err.New(s3err.NoSuchBucket, "bucket %q does not exist", name)
	}
	if len(b.objects[name]) > 0 {
		return s3err.New(s3err.BucketNotEmpty, "bucket %q is not empty", name)
	}

	delete(b.buckets, name)
	delete(b.objects, name)
	delete(b.uploads, name)
	return nil
}

func (b *backend) GetBucket(_ context.Context, name string) (*model.Bucket, s3err.Error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bucket, ok := b.buckets[name]
	if !ok {
		return nil, s3err.New(s3err.NoSuchBucket, "bucket %q does not exist", name)
	}
	return bucket, nil
}

func (b *backend) ListBuckets(_ context.Context) ([]*model.Bucket, s3err.Error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*model.Bucket, 0, len(b.buckets))
	for _, bucket := range b.buckets {
		out = append(out, bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (b *backend) BucketIsEmpty(_ context.Context, name string) (bool, s3err.Error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	objs, ok := b.objects[name]
	if !ok {
		return false, s3err.New(s3err.NoSuchBucket, "bucket %q does not exist", name)
	}
	return len(objs) == 0, nil
}

func (b *backend) PutObject(ctx context.Context, bucket, key string, body io.Reader, obj *model.Object) (*model.Object, s3err.Error) {
	h, werr := b.locks.AcquireWrite(ctx, objectPath(bucket, key), pathlock.DefaultTimeout)
	if werr != nil {
		return nil, werr
	}
	defer h.Release()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, s3err.Wrap(s3err.InternalError, err, "reading object body")
	}

	sum := md5.Sum(data)

	b.mu.Lock()
	defer b.mu.Unlock()

	objs, ok := b.objects[bucket]
	if !ok {
		return nil, s3err.New(s3err.NoSuchBucket, "bucket %q does not exist", bucket)
	}

	stored := obj.Clone()
	stored.Bucket = bucket
	stored.Key = key
	stored.Size = int64(len(data))
	stored.LastModified = time.Now().UTC().Truncate(time.Millisecond)
	stored.ETag = hex.EncodeToString(sum[:])

	objs[key] = &objectRecord{meta: *stored, data: data}
	return stored.Clone(), nil
}

func (b *backend) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, *model.Object, s3err.Error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	objs, ok := b.objects[bucket]
	if !ok {
		return nil, nil, s3err.New(s3err.NoSuchBucket, "bucket %q does not exist", bucket)
	}
	rec, ok := objs[key]
	if !ok {
		return nil, nil, s3err.New(s3err.NoSuchKey, "key %q does not exist", key)
	}

	return io.NopCloser(bytes.NewReader(rec.data)), rec.meta.Clone(), nil
}

func (b *backend) HeadObject(_ context.Context, bucket, key string) (*model.Object, s3err.Error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	objs, ok := b.objects[bucket]
	if !ok {
		return nil, s3err.New(s3err.NoSuchBucket, "bucket %q does not exist", bucket)
	}
	rec, ok := objs[key]
	if !ok {
		return nil, s3err.New(s3err.NoSuchKey, "key %q does not exist", key)
	}
	return rec.meta.Clone(), nil
}

func (b *backend) DeleteObject(_ context.Context, bucket, key string) s3err.Error {
	b.mu.Lock()
	defer b.mu.Unlock()

	objs, ok := b.objects[bucket]
	if !ok {
		return s3err.New(s3err.NoSuchBucket, "bucket %q does not exist", bucket)
	}
	delete(objs, key)
	return nil
}

func (b *backend) ListObjects(_ context.Context, bucket string, opts storage.ListOptions) (*storage.ListResult, s3err.Error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	objs, ok := b.objects[bucket]
	if !ok {
		return nil, s3err.New(s3err.NoSuchBucket, "bucket %q does not exist", bucket)
	}

	if bk := b.buckets[bucket]; bk != nil && bk.Type == model.Directory {
		if opts.Delimiter != "" && opts.Delimiter != "/" {
			return nil, s3err.New(s3err.InvalidArgument, "directory buckets only support \"/\" as a delimiter")
		}
		if opts.Delimiter != "" && opts.Prefix != "" && opts.Prefix[len(opts.Prefix)-1:] != opts.Delimiter {
			return nil, s3err.New(s3err.InvalidArgument, "directory bucket prefix %q must end with delimiter %q", opts.Prefix, opts.Delimiter)
		}
	}

	keys := make([]string, 0, len(objs))
	for k := range objs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	result := &storage.ListResult{}
	seenPrefixes := map[string]bool{}

	for _, k := range keys {
		if !strings.HasPrefix(k, opts.Prefix) {
			continue
		}
		if opts.Marker != "" && k <= opts.Marker {
			continue
		}
		if opts.StartAfter != "" && k <= opts.StartAfter {
			continue
		}

		if opts.Delimiter != "" {
			rest := k[len(opts.Prefix):]
			if idx := strings.Index(rest, opts.Delimiter); idx >= 0 {
				cp := opts.Prefix + rest[:idx+len(opts.Delimiter)]
				if !seenPrefixes[cp] {
					seenPrefixes[cp] = true
					result.CommonPrefixes = append(result.CommonPrefixes, cp)
				}
				continue
			}
		}

		if len(result.Objects)+len(result.CommonPrefixes) >= maxKeys {
			result.IsTruncated = true
			result.NextMarker = k
			break
		}

		result.Objects = append(result.Objects, objs[k].meta.Clone())
	}

	sort.Strings(result.CommonPrefixes)
	return result, nil
}

func (b *backend) CreateUpload(_ context.Context, upload *model.MultipartUpload) s3err.Error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ups, ok := b.uploads[upload.Bucket]
	if !ok {
		return s3err.New(s3err.NoSuchBucket, "bucket %q does not exist", upload.Bucket)
	}

	ups[upload.UploadId] = &uploadRecord{meta: *upload, parts: make(map[int][]byte)}
	return nil
}

func (b *backend) GetUpload(_ context.Context, bucket, key, uploadId string) (*model.MultipartUpload, s3err.Error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, err := b.lookupUpload(bucket, key, uploadId)
	if err != nil {
		return nil, err
	}
	meta := rec.meta
	return &meta, nil
}

func (b *backend) lookupUpload(bucket, key, uploadId string) (*uploadRecord, s3err.Error) {
	ups, ok := b.uploads[bucket]
	if !ok {
		return nil, s3err.New(s3err.NoSuchBucket, "bucket %q does not exist", bucket)
	}
	rec, ok := ups[uploadId]
	if !ok || rec.meta.Key != key {
		return nil, s3err.New(s3err.NoSuchUpload, "upload %q does not exist", uploadId)
	}
	return rec, nil
}

func (b *backend) PutPart(ctx context.Context, bucket, key, uploadId string, partNumber int, body io.Reader) (*model.Part, s3err.Error) {
	h, werr := b.locks.AcquireWrite(ctx, uploadPath(bucket, key, uploadId), pathlock.MetadataTimeout)
	if werr != nil {
		return nil, werr
	}
	defer h.Release()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, s3err.Wrap(s3err.InternalError, err, "reading part body")
	}
	sum := md5.Sum(data)

	b.mu.Lock()
	defer b.mu.Unlock()

	rec, perr := b.lookupUpload(bucket, key, uploadId)
	if perr != nil {
		return nil, perr
	}

	rec.parts[partNumber] = data

	part := model.Part{
		PartNumber:   partNumber,
		ETag:         hex.EncodeToString(sum[:]),
		Size:         int64(len(data)),
		LastModified: time.Now().UTC().Truncate(time.Millisecond),
	}

	replaced := false
	for i, p := range rec.meta.Parts {
		if p.PartNumber == partNumber {
			rec.meta.Parts[i] = part
			replaced = true
			break
		}
	}
	if !replaced {
		rec.meta.Parts = append(rec.meta.Parts, part)
	}

	return &part, nil
}

func (b *backend) SetPartChecksum(_ context.Context, bucket, key, uploadId string, partNumber int, alg, value string) s3err.Error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.lookupUpload(bucket, key, uploadId)
	if err != nil {
		return err
	}

	for i := range rec.meta.Parts {
		if rec.meta.Parts[i].PartNumber == partNumber {
			if rec.meta.Parts[i].Checksums == nil {
				rec.meta.Parts[i].Checksums = map[string]string{}
			}
			rec.meta.Parts[i].Checksums[alg] = value
			return nil
		}
	}

	return s3err.New(s3err.InvalidPart, "part %d does not exist", partNumber)
}

func (b *backend) ListUploadParts(_ context.Context, bucket, key, uploadId string) ([]model.Part, s3err.Error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, err := b.lookupUpload(bucket, key, uploadId)
	if err != nil {
		return nil, err
	}
	return rec.meta.SortedParts(), nil
}

func (b *backend) ListUploads(_ context.Context, bucket string) ([]*model.MultipartUpload, s3err.Error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ups, ok := b.uploads[bucket]
	if !ok {
		return nil, s3err.New(s3err.NoSuchBucket, "bucket %q does not exist", bucket)
	}

	out := make([]*model.MultipartUpload, 0, len(ups))
	for _, rec := range ups {
		meta := rec.meta
		out = append(out, &meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Initiated.Before(out[j].Initiated) })
	return out, nil
}

func (b *backend) CompleteUpload(_ context.Context, bucket, key, uploadId string, parts []model.Part, finalETag string, checksums map[string]string) (*model.Object, s3err.Error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.lookupUpload(bucket, key, uploadId)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	var total int64
	for _, p := range parts {
		data := rec.parts[p.PartNumber]
		buf.Write(data)
		total += int64(len(data))
	}

	objs := b.objects[bucket]
	stored := &model.Object{
		Bucket:       bucket,
		Key:          key,
		Size:         total,
		LastModified: time.Now().UTC().Truncate(time.Millisecond),
		ETag:         finalETag,
		ContentType:  rec.meta.ContentType,
		Metadata:     rec.meta.Metadata,
		Checksums:    checksums,
	}
	objs[key] = &objectRecord{meta: *stored, data: buf.Bytes()}

	delete(b.uploads[bucket], uploadId)
	return stored.Clone(), nil
}

func (b *backend) AbortUpload(_ context.Context, bucket, key, uploadId string) s3err.Error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ups, ok := b.uploads[bucket]
	if ok {
		delete(ups, uploadId)
	}
	return nil
}

func (b *backend) PartReader(_ context.Context, bucket, key, uploadId string, partNumber int) (io.ReadCloser, s3err.Error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, err := b.lookupUpload(bucket, key, uploadId)
	if err != nil {
		return nil, err
	}
	data, ok := rec.parts[partNumber]
	if !ok {
		return nil, s3err.New(s3err.InvalidPart, "part %d does not exist", partNumber)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func objectPath(bucket, key string) string {
	return bucket + "/" + key
}

func uploadPath(bucket, key, uploadId string) string {
	return bucket + "/" + key + "/.uploads/" + uploadId
}
