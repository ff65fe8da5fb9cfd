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

package memory_test

import (
	"context"
	"strings"
	"testing"

	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/model"
	"github.com/nabbar/s3gw/storage"
	"github.com/nabbar/s3gw/storage/memory"
)

func TestBucketLifecycle(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	bucket := model.NewBucket("mybucket", model.GeneralPurpose, "", "")
	if err := b.CreateBucket(ctx, bucket); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}

	if err := b.CreateBucket(ctx, bucket); err == nil {
		t.Fatal("expected BucketAlreadyExists on duplicate create")
	} else if err.Kind() != s3err.BucketAlreadyExists {
		t.Fatalf("Kind() = %v, want BucketAlreadyExists", err.Kind())
	}

	got, err := b.GetBucket(ctx, "mybucket")
	if err != nil {
		t.Fatalf("GetBucket: %v", err)
	}
	if got.Name != "mybucket" {
		t.Fatalf("Name = %q, want mybucket", got.Name)
	}

	if err := b.DeleteBucket(ctx, "mybucket"); err != nil {
		t.Fatalf("DeleteBucket: %v", err)
	}

	if _, err := b.GetBucket(ctx, "mybucket"); err == nil || err.Kind() != s3err.NoSuchBucket {
		t.Fatalf("expected NoSuchBucket after delete, got %v", err)
	}
}

func TestPutAndGetObjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	b.CreateBucket(ctx, model.NewBucket("mybucket", model.GeneralPurpose, "", ""))

	stored, err := b.PutObject(ctx, "mybucket", "dir/file.txt", strings.NewReader("hello world"), &model.Object{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if stored.ETag == "" {
		t.Fatal("expected a non-empty ETag")
	}
	if stored.Size != int64(len("hello world")) {
		t.Fatalf("Size = %d, want %d", stored.Size, len("hello world"))
	}

	r, meta, err := b.GetObject(ctx, "mybucket", "dir/file.txt")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	defer r.Close()

	if meta.ContentType != "text/plain" {
		t.Fatalf("ContentType = %q, want text/plain", meta.ContentType)
	}
}

func TestListObjectsPrefixAndDelimiter(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	b.CreateBucket(ctx, model.NewBucket("mybucket", model.GeneralPurpose, "", ""))

	for _, key := range []string{"a/1.txt", "a/2.txt", "b/1.txt", "root.txt"} {
		if _, err := b.PutObject(ctx, "mybucket", key, strings.NewReader("x"), &model.Object{}); err != nil {
			t.Fatalf("PutObject(%q): %v", key, err)
		}
	}

	result, err := b.ListObjects(ctx, "mybucket", storage.ListOptions{Prefix: "a/", Delimiter: "/"})
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if len(result.Objects) != 2 {
		t.Fatalf("len(Objects) = %d, want 2", len(result.Objects))
	}

	result, err = b.ListObjects(ctx, "mybucket", storage.ListOptions{Delimiter: "/"})
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if len(result.CommonPrefixes) != 2 {
		t.Fatalf("len(CommonPrefixes) = %d, want 2: %v", len(result.CommonPrefixes), result.CommonPrefixes)
	}
	if len(result.Objects) != 1 {
		t.Fatalf("len(Objects) = %d, want 1 (root.txt)", len(result.Objects))
	}
}

func TestMultipartUploadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	b.CreateBucket(ctx, model.NewBucket("mybucket", model.GeneralPurpose, "", ""))

	upload := &model.MultipartUpload{Bucket: "mybucket", Key: "big.bin", UploadId: "upload-1"}
	if err := b.CreateUpload(ctx, upload); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	if _, err := b.PutPart(ctx, "mybucket", "big.bin", "upload-1", 1, strings.NewReader("part-one-")); err != nil {
		t.Fatalf("PutPart(1): %v", err)
	}
	if _, err := b.PutPart(ctx, "mybucket", "big.bin", "upload-1", 2, strings.NewReader("part-two")); err != nil {
		t.Fatalf("PutPart(2): %v", err)
	}

	parts, err := b.ListUploadParts(ctx, "mybucket", "big.bin", "upload-1")
	if err != nil {
		t.Fatalf("ListUploadParts: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("len(parts) = %d, want 2", len(parts))
	}

	obj, err := b.CompleteUpload(ctx, "mybucket", "big.bin", "upload-1", parts, "deadbeef-2", nil)
	if err != nil {
		t.Fatalf("CompleteUpload: %v", err)
	}
	if obj.Size != int64(len("part-one-")+len("part-two")) {
		t.Fatalf("Size = %d, want %d", obj.Size, len("part-one-")+len("part-two"))
	}

	if _, err := b.GetUpload(ctx, "mybucket", "big.bin", "upload-1"); err == nil {
		t.Fatal("expected NoSuchUpload after CompleteUpload")
	}
}
