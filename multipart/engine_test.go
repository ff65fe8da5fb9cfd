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

package multipart_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/model"
	"github.com/nabbar/s3gw/multipart"
	"github.com/nabbar/s3gw/storage/memory"
)

func newEngine(t *testing.T) (multipart.Engine, string) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.CreateBucket(ctx, model.NewBucket("mybucket", model.GeneralPurpose, "", "")); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	return multipart.New(store), "mybucket"
}

func TestCompleteConcatenatesPartsAndComputesETag(t *testing.T) {
	ctx := context.Background()
	eng, bucket := newEngine(t)

	upload, err := eng.Initiate(ctx, bucket, "big.bin", "application/octet-stream", nil, "")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	p1, err := eng.UploadPart(ctx, bucket, "big.bin", upload.UploadId, 1, strings.NewReader("hello "), "", "")
	if err != nil {
		t.Fatalf("UploadPart(1): %v", err)
	}
	p2, err := eng.UploadPart(ctx, bucket, "big.bin", upload.UploadId, 2, strings.NewReader("world"), "", "")
	if err != nil {
		t.Fatalf("UploadPart(2): %v", err)
	}

	obj, err := eng.Complete(ctx, bucket, "big.bin", upload.UploadId, []model.Part{
		{PartNumber: 1, ETag: fmt.Sprintf("%q", p1.ETag)},
		{PartNumber: 2, ETag: fmt.Sprintf("%q", p2.ETag)},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if !strings.HasSuffix(obj.ETag, "-2") {
		t.Fatalf("ETag = %q, want suffix -2", obj.ETag)
	}
	if obj.Size != int64(len("hello world")) {
		t.Fatalf("Size = %d, want %d", obj.Size, len("hello world"))
	}
}

func TestCompleteRejectsOutOfOrderParts(t *testing.T) {
	ctx := context.Background()
	eng, bucket := newEngine(t)

	upload, err := eng.Initiate(ctx, bucket, "big.bin", "", nil, "")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	p1, _ := eng.UploadPart(ctx, bucket, "big.bin", upload.UploadId, 1, strings.NewReader("a"), "", "")
	p2, _ := eng.UploadPart(ctx, bucket, "big.bin", upload.UploadId, 2, strings.NewReader("b"), "", "")

	_, err = eng.Complete(ctx, bucket, "big.bin", upload.UploadId, []model.Part{
		{PartNumber: 2, ETag: fmt.Sprintf("%q", p2.ETag)},
		{PartNumber: 1, ETag: fmt.Sprintf("%q", p1.ETag)},
	})
	if err == nil || err.Kind() != s3err.InvalidPartOrder {
		t.Fatalf("expected InvalidPartOrder, got %v", err)
	}
}

func TestCompleteRejectsMismatchedETag(t *testing.T) {
	ctx := context.Background()
	eng, bucket := newEngine(t)

	upload, err := eng.Initiate(ctx, bucket, "big.bin", "", nil, "")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if _, err := eng.UploadPart(ctx, bucket, "big.bin", upload.UploadId, 1, strings.NewReader("a"), "", ""); err != nil {
		t.Fatalf("UploadPart: %v", err)
	}

	_, err = eng.Complete(ctx, bucket, "big.bin", upload.UploadId, []model.Part{
		{PartNumber: 1, ETag: `"not-the-real-etag"`},
	})
	if err == nil || err.Kind() != s3err.InvalidPart {
		t.Fatalf("expected InvalidPart, got %v", err)
	}
}

func TestUploadPartRejectsBadChecksum(t *testing.T) {
	ctx := context.Background()
	eng, bucket := newEngine(t)

	upload, err := eng.Initiate(ctx, bucket, "big.bin", "", nil, "SHA256")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	_, err = eng.UploadPart(ctx, bucket, "big.bin", upload.UploadId, 1, strings.NewReader("payload"), "not-a-real-checksum==", "SHA256")
	if err == nil || err.Kind() != s3err.InvalidChecksum {
		t.Fatalf("expected InvalidChecksum, got %v", err)
	}
}

func TestListPartsPagination(t *testing.T) {
	ctx := context.Background()
	eng, bucket := newEngine(t)

	upload, err := eng.Initiate(ctx, bucket, "big.bin", "", nil, "")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if _, err := eng.UploadPart(ctx, bucket, "big.bin", upload.UploadId, i, strings.NewReader("x"), "", ""); err != nil {
			t.Fatalf("UploadPart(%d): %v", i, err)
		}
	}

	page, truncated, nextMarker, err := eng.ListParts(ctx, bucket, "big.bin", upload.UploadId, 0, 2)
	if err != nil {
		t.Fatalf("ListParts: %v", err)
	}
	if len(page) != 2 || !truncated || nextMarker != 2 {
		t.Fatalf("page=%v truncated=%v nextMarker=%d", page, truncated, nextMarker)
	}

	page, truncated, _, err = eng.ListParts(ctx, bucket, "big.bin", upload.UploadId, nextMarker, 2)
	if err != nil {
		t.Fatalf("ListParts page 2: %v", err)
	}
	if len(page) != 1 || truncated {
		t.Fatalf("page=%v truncated=%v", page, truncated)
	}
}
