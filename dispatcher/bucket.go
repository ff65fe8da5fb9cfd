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

package dispatcher

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/model"
	"github.com/nabbar/s3gw/storage"
)

// handleListBuckets implements "GET /" -> ListBuckets.
func (s *Server) handleListBuckets(c *gin.Context) {
	if !s.authorize(c, "", model.PermList) {
		return
	}

	buckets, err := s.backend.ListBuckets(c.Request.Context())
	if err != nil {
		WriteError(c, err)
		return
	}

	resp := listAllMyBucketsResult{}
	for _, b := range buckets {
		resp.Buckets = append(resp.Buckets, bucketEntry{Name: b.Name, CreationDate: b.CreationDate})
	}
	writeXML(c, http.StatusOK, resp)
}

// handleCreateBucket implements "PUT /<bucket>" -> CreateBucket, reading
// the bucket-type and storage-class headers of spec.md §4.7.
func (s *Server) handleCreateBucket(c *gin.Context) {
	name := c.Param("bucket")
	if !s.authorize(c, name, model.PermWrite) {
		return
	}
	if !model.ValidBucketName(name) {
		WriteError(c, s3err.New(s3err.InvalidArgument, "invalid bucket name %q", name).WithResource(name))
		return
	}

	bt := model.GeneralPurpose
	if c.GetHeader("x-amz-bucket-type") == string(model.Directory) {
		bt = model.Directory
	}

	bucket := model.NewBucket(name, bt, c.GetHeader("x-amz-region"), c.GetHeader("x-amz-storage-class"))
	if err := s.backend.CreateBucket(c.Request.Context(), bucket); err != nil {
		WriteError(c, err.WithResource(name))
		return
	}
	c.Header("Location", "/"+name)
	c.Status(http.StatusOK)
}

// handleDeleteBucket implements "DELETE /<bucket>" -> DeleteBucket.
func (s *Server) handleDeleteBucket(c *gin.Context) {
	name := c.Param("bucket")
	if !s.authorize(c, name, model.PermDelete) {
		return
	}
	if err := s.backend.DeleteBucket(c.Request.Context(), name); err != nil {
		WriteError(c, err.WithResource(name))
		return
	}
	c.Status(http.StatusNoContent)
}

// handleHeadBucket implements "HEAD /<bucket>" -> HeadBucket.
func (s *Server) handleHeadBucket(c *gin.Context) {
	name := c.Param("bucket")
	if !s.authorize(c, name, model.PermRead) {
		return
	}
	if _, err := s.backend.GetBucket(c.Request.Context(), name); err != nil {
		c.Status(err.Kind().Status())
		return
	}
	c.Status(http.StatusOK)
}

// handleBucketGet implements "GET /<bucket>" and "GET /<bucket>?uploads",
// per spec.md §4.8's table: the same path dispatches to ListObjects or
// ListMultipartUploads based on the presence of the uploads query key.
func (s *Server) handleBucketGet(c *gin.Context) {
	name := c.Param("bucket")

	if _, ok := c.GetQuery("uploads"); ok {
		if !s.authorize(c, name, model.PermList) {
			return
		}
		s.listMultipartUploads(c, name)
		return
	}

	if !s.authorize(c, name, model.PermList) {
		return
	}
	s.listObjects(c, name)
}

func (s *Server) listObjects(c *gin.Context, bucket string) {
	q := c.Request.URL.Query()

	b, berr := s.backend.GetBucket(c.Request.Context(), bucket)
	if berr != nil {
		WriteError(c, berr.WithResource(bucket))
		return
	}

	opts := storage.ListOptions{
		Prefix:    q.Get("prefix"),
		Delimiter: q.Get("delimiter"),
	}

	// spec.md §4.7: Directory buckets only support "/" as a delimiter, and
	// a non-empty prefix paired with a delimiter must end with it.
	if b.Type == model.Directory {
		if opts.Delimiter != "" && opts.Delimiter != "/" {
			WriteError(c, s3err.New(s3err.InvalidArgument, "directory buckets only support \"/\" as a delimiter").WithResource(bucket))
			return
		}
		if opts.Delimiter != "" && opts.Prefix != "" && opts.Prefix[len(opts.Prefix)-1:] != opts.Delimiter {
			WriteError(c, s3err.New(s3err.InvalidArgument, "directory bucket prefix %q must end with delimiter %q", opts.Prefix, opts.Delimiter).WithResource(bucket))
			return
		}
	}

	if mk, err := strconv.Atoi(q.Get("max-keys")); err == nil && mk > 0 {
		opts.MaxKeys = mk
	}

	isV2 := q.Get("list-type") == "2"
	if isV2 {
		opts.Marker = q.Get("continuation-token")
		opts.StartAfter = q.Get("start-after")
	} else {
		opts.Marker = q.Get("marker")
	}

	result, err := s.backend.ListObjects(c.Request.Context(), bucket, opts)
	if err != nil {
		WriteError(c, err.WithResource(bucket))
		return
	}

	resp := listBucketResult{
		Name:        bucket,
		Prefix:      opts.Prefix,
		Delimiter:   opts.Delimiter,
		MaxKeys:     opts.MaxKeys,
		IsTruncated: result.IsTruncated,
	}
	if isV2 {
		resp.ContinuationToken = opts.Marker
		resp.NextContinuationToken = result.NextMarker
	} else {
		resp.Marker = opts.Marker
		resp.NextMarker = result.NextMarker
	}
	for _, o := range result.Objects {
		resp.Contents = append(resp.Contents, objectEntry{Key: o.Key, LastModified: o.LastModified, ETag: o.ETag, Size: o.Size})
	}
	for _, p := range result.CommonPrefixes {
		resp.CommonPrefixes = append(resp.CommonPrefixes, commonPrefixEntry{Prefix: p})
	}
	writeXML(c, http.StatusOK, resp)
}

func (s *Server) listMultipartUploads(c *gin.Context, bucket string) {
	uploads, err := s.multipart.ListUploads(c.Request.Context(), bucket)
	if err != nil {
		WriteError(c, err.WithResource(bucket))
		return
	}

	resp := listMultipartUploadsResult{Bucket: bucket}
	for _, u := range uploads {
		resp.Uploads = append(resp.Uploads, uploadEntry{Key: u.Key, UploadId: u.UploadId, Initiated: u.Initiated})
	}
	writeXML(c, http.StatusOK, resp)
}
