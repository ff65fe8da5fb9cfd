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

package objectcore_test

import (
	"context"
	"io"
	"strings"
	"testing"

	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/model"
	"github.com/nabbar/s3gw/objectcore"
	"github.com/nabbar/s3gw/storage"
	"github.com/nabbar/s3gw/storage/memory"
)

func newEngine(t *testing.T) (objectcore.Engine, string) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.CreateBucket(ctx, model.NewBucket("mybucket", model.GeneralPurpose, "", "")); err != nil {
		t.Fatalf("CreateBucket: %v", err)
	}
	return objectcore.New(store), "mybucket"
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	eng, bucket := newEngine(t)

	stored, err := eng.Put(ctx, bucket, "a.txt", strings.NewReader("hello"), objectcore.PutInput{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if stored.ETag == "" {
		t.Fatal("expected non-empty ETag")
	}

	r, meta, err := eng.Get(ctx, bucket, "a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer r.Close()

	data, _ := io.ReadAll(r)
	if string(data) != "hello" {
		t.Fatalf("data = %q, want hello", data)
	}
	if meta.ContentType != "text/plain" {
		t.Fatalf("ContentType = %q, want text/plain", meta.ContentType)
	}
}

func TestPutRejectsBadChecksum(t *testing.T) {
	ctx := context.Background()
	eng, bucket := newEngine(t)

	_, err := eng.Put(ctx, bucket, "a.txt", strings.NewReader("hello"), objectcore.PutInput{
		ChecksumAlgorithm: "SHA256",
		ChecksumValue:     "bm90LXRoZS1yZWFsLWNoZWNrc3Vt",
	})
	if err == nil || err.Kind() != s3err.InvalidChecksum {
		t.Fatalf("expected InvalidChecksum, got %v", err)
	}
}

func TestCopyReplaceDirectiveReplacesMetadata(t *testing.T) {
	ctx := context.Background()
	eng, bucket := newEngine(t)

	_, err := eng.Put(ctx, bucket, "src.txt", strings.NewReader("content"), objectcore.PutInput{
		ContentType: "text/plain",
		Metadata:    map[string]string{"orig": "1"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	copied, err := eng.Copy(ctx, bucket, "src.txt", bucket, "dst.txt", objectcore.DirectiveReplace, objectcore.PutInput{
		ContentType: "application/json",
		Metadata:    map[string]string{"new": "2"},
	})
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if copied.ContentType != "application/json" {
		t.Fatalf("ContentType = %q, want application/json", copied.ContentType)
	}
	if _, ok := copied.Metadata["orig"]; ok {
		t.Fatal("REPLACE directive should not preserve source metadata")
	}
}

func TestCopyDefaultDirectivePreservesMetadata(t *testing.T) {
	ctx := context.Background()
	eng, bucket := newEngine(t)

	eng.Put(ctx, bucket, "src.txt", strings.NewReader("content"), objectcore.PutInput{
		ContentType: "text/plain",
		Metadata:    map[string]string{"orig": "1"},
	})

	copied, err := eng.Copy(ctx, bucket, "src.txt", bucket, "dst.txt", objectcore.DirectiveCopy, objectcore.PutInput{})
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if copied.ContentType != "text/plain" {
		t.Fatalf("ContentType = %q, want text/plain", copied.ContentType)
	}
	if copied.Metadata["orig"] != "1" {
		t.Fatalf("Metadata[orig] = %q, want 1", copied.Metadata["orig"])
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	eng, bucket := newEngine(t)

	if err := eng.Delete(ctx, bucket, "never-existed.txt"); err != nil {
		t.Fatalf("Delete of nonexistent key should succeed, got %v", err)
	}
}

func TestListObjectsV2StyleDelimiter(t *testing.T) {
	ctx := context.Background()
	eng, bucket := newEngine(t)

	for _, k := range []string{"photos/a.jpg", "photos/b.jpg", "readme.txt"} {
		if _, err := eng.Put(ctx, bucket, k, strings.NewReader("x"), objectcore.PutInput{}); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}

	result, err := eng.List(ctx, bucket, storage.ListOptions{Delimiter: "/"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.CommonPrefixes) != 1 || result.CommonPrefixes[0] != "photos/" {
		t.Fatalf("CommonPrefixes = %v, want [photos/]", result.CommonPrefixes)
	}
	if len(result.Objects) != 1 || result.Objects[0].Key != "readme.txt" {
		t.Fatalf("Objects = %v, want [readme.txt]", result.Objects)
	}
}
