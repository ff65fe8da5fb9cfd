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

package filesystem_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/nabbar/s3gw/model"
	"github.com/nabbar/s3gw/storage/filesystem"
)

func TestPutGetObjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := filesystem.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := b.CreateBucket(ctx, model.NewBucket("mybucket", model.GeneralPurpose, "", "")); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}

	stored, err := b.PutObject(ctx, "mybucket", "a/b/c.txt", strings.NewReader("payload bytes"), &model.Object{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if stored.Size != int64(len("payload bytes")) {
		t.Fatalf("Size = %d, want %d", stored.Size, len("payload bytes"))
	}

	r, meta, err := b.GetObject(ctx, "mybucket", "a/b/c.txt")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "payload bytes" {
		t.Fatalf("data = %q, want %q", data, "payload bytes")
	}
	if meta.ETag != stored.ETag {
		t.Fatalf("ETag = %q, want %q", meta.ETag, stored.ETag)
	}
}

func TestMultipartCompleteConcatenatesParts(t *testing.T) {
	ctx := context.Background()
	b, err := filesystem.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.CreateBucket(ctx, model.NewBucket("mybucket", model.GeneralPurpose, "", ""))

	upload := &model.MultipartUpload{Bucket: "mybucket", Key: "big.bin", UploadId: "upload-1"}
	if err := b.CreateUpload(ctx, upload); err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	if _, err := b.PutPart(ctx, "mybucket", "big.bin", "upload-1", 1, strings.NewReader("AAAA")); err != nil {
		t.Fatalf("PutPart(1): %v", err)
	}
	if _, err := b.PutPart(ctx, "mybucket", "big.bin", "upload-1", 2, strings.NewReader("BBBB")); err != nil {
		t.Fatalf("PutPart(2): %v", err)
	}

	parts, err := b.ListUploadParts(ctx, "mybucket", "big.bin", "upload-1")
	if err != nil {
		t.Fatalf("ListUploadParts: %v", err)
	}

	obj, err := b.CompleteUpload(ctx, "mybucket", "big.bin", "upload-1", parts, "final-etag-2", nil)
	if err != nil {
		t.Fatalf("CompleteUpload: %v", err)
	}

	r, _, err := b.GetObject(ctx, "mybucket", "big.bin")
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	defer r.Close()

	data, _ := io.ReadAll(r)
	if string(data) != "AAAABBBB" {
		t.Fatalf("data = %q, want AAAABBBB", data)
	}
	if obj.ETag != "final-etag-2" {
		t.Fatalf("ETag = %q, want final-etag-2", obj.ETag)
	}
}
