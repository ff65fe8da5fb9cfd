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
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nabbar/s3gw/checksum"
	s3err "github.com/nabbar/s3gw/errors"
	"github.com/nabbar/s3gw/model"
	"github.com/nabbar/s3gw/objectcore"
	"github.com/nabbar/s3gw/signer"
	"github.com/nabbar/s3gw/streaming"
)

const metaHeaderPrefix = "x-amz-meta-"

// objectKey strips the leading "/" gin's "*key" wildcard param carries.
func objectKey(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("key"), "/")
}

// handleKeyPost implements "POST /<bucket>/<key>?uploads" (Initiate) and
// "POST /<bucket>/<key>?uploadId=..." (Complete).
func (s *Server) handleKeyPost(c *gin.Context) {
	bucket, key := c.Param("bucket"), objectKey(c)

	if _, ok := c.GetQuery("uploads"); ok {
		if !s.authorize(c, bucket, model.PermWrite) {
			return
		}
		s.initiateMultipartUpload(c, bucket, key)
		return
	}

	if uploadId, ok := c.GetQuery("uploadId"); ok {
		if !s.authorize(c, bucket, model.PermWrite) {
			return
		}
		s.completeMultipartUpload(c, bucket, key, uploadId)
		return
	}

	WriteError(c, s3err.New(s3err.InvalidArgument, "POST requires either ?uploads or ?uploadId").WithResource(bucket+"/"+key))
}

func (s *Server) initiateMultipartUpload(c *gin.Context, bucket, key string) {
	metadata := extractUserMetadata(c)
	upload, err := s.multipart.Initiate(c.Request.Context(), bucket, key, c.GetHeader("Content-Type"), metadata, c.GetHeader("x-amz-checksum-algorithm"))
	if err != nil {
		WriteError(c, err.WithResource(bucket+"/"+key))
		return
	}
	writeXML(c, http.StatusOK, initiateMultipartUploadResult{Bucket: bucket, Key: key, UploadId: upload.UploadId})
}

func (s *Server) completeMultipartUpload(c *gin.Context, bucket, key, uploadId string) {
	var reqBody completeMultipartUploadRequest
	if err := c.ShouldBindXML(&reqBody); err != nil {
		WriteError(c, s3err.Wrap(s3err.InvalidArgument, err, "malformed CompleteMultipartUpload body"))
		return
	}

	parts := make([]model.Part, 0, len(reqBody.Parts))
	for _, p := range reqBody.Parts {
		parts = append(parts, model.Part{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	obj, err := s.multipart.Complete(c.Request.Context(), bucket, key, uploadId, parts)
	if err != nil {
		WriteError(c, err.WithResource(bucket+"/"+key))
		return
	}
	writeXML(c, http.StatusOK, completeMultipartUploadResult{Bucket: bucket, Key: key, ETag: `"` + obj.ETag + `"`})
}

// handleKeyPut implements "PUT /<bucket>/<key>" (PutObject / CopyObject when
// x-amz-copy-source is present) and "PUT /<bucket>/<key>?partNumber=N&
// uploadId=..." (UploadPart / UploadPartCopy).
func (s *Server) handleKeyPut(c *gin.Context) {
	bucket, key := c.Param("bucket"), objectKey(c)
	if !s.authorize(c, bucket, model.PermWrite) {
		return
	}

	uploadId, hasUpload := c.GetQuery("uploadId")
	if hasUpload {
		partNumber, perr := strconv.Atoi(c.Query("partNumber"))
		if perr != nil {
			WriteError(c, s3err.New(s3err.InvalidArgument, "missing or invalid partNumber"))
			return
		}
		if src := c.GetHeader("x-amz-copy-source"); src != "" {
			s.uploadPartCopy(c, bucket, key, uploadId, partNumber, src)
			return
		}
		s.uploadPart(c, bucket, key, uploadId, partNumber)
		return
	}

	if src := c.GetHeader("x-amz-copy-source"); src != "" {
		s.copyObject(c, bucket, key, src)
		return
	}

	s.putObject(c, bucket, key)
}

func (s *Server) putObject(c *gin.Context, bucket, key string) {
	body, err := s.decodedBody(c)
	if err != nil {
		WriteError(c, err)
		return
	}

	in := objectcore.PutInput{
		ContentType:       c.GetHeader("Content-Type"),
		Metadata:          extractUserMetadata(c),
		ChecksumAlgorithm: c.GetHeader("x-amz-checksum-algorithm"),
	}
	in.ChecksumValue, in.ChecksumAlgorithm = checksumFromHeaders(c, in.ChecksumAlgorithm)

	obj, serr := s.objects.Put(c.Request.Context(), bucket, key, body, in)
	if serr != nil {
		WriteError(c, serr.WithResource(bucket+"/"+key))
		return
	}

	c.Header("ETag", `"`+obj.ETag+`"`)
	for alg, v := range obj.Checksums {
		c.Header(checksum.Algorithm(alg).HeaderName(), v)
	}
	c.Status(http.StatusOK)
}

func (s *Server) copyObject(c *gin.Context, dstBucket, dstKey, copySource string) {
	srcBucket, srcKey := splitCopySource(copySource)

	directive := objectcore.DirectiveCopy
	if c.GetHeader("x-amz-metadata-directive") == string(objectcore.DirectiveReplace) {
		directive = objectcore.DirectiveReplace
	}

	in := objectcore.PutInput{
		ContentType: c.GetHeader("Content-Type"),
		Metadata:    extractUserMetadata(c),
	}

	obj, err := s.objects.Copy(c.Request.Context(), srcBucket, srcKey, dstBucket, dstKey, directive, in)
	if err != nil {
		WriteError(c, err.WithResource(dstBucket+"/"+dstKey))
		return
	}
	writeXML(c, http.StatusOK, copyObjectResult{ETag: `"` + obj.ETag + `"`, LastModified: obj.LastModified})
}

func (s *Server) uploadPart(c *gin.Context, bucket, key, uploadId string, partNumber int) {
	body, err := s.decodedBody(c)
	if err != nil {
		WriteError(c, err)
		return
	}

	checksumAlg := c.GetHeader("x-amz-sdk-checksum-algorithm")
	clientChecksum, checksumAlg := checksumFromHeaders(c, checksumAlg)

	part, perr := s.multipart.UploadPart(c.Request.Context(), bucket, key, uploadId, partNumber, body, clientChecksum, checksumAlg)
	if perr != nil {
		WriteError(c, perr.WithResource(bucket+"/"+key))
		return
	}

	c.Header("ETag", `"`+part.ETag+`"`)
	for alg, v := range part.Checksums {
		c.Header(checksum.Algorithm(alg).HeaderName(), v)
	}
	c.Status(http.StatusOK)
}

func (s *Server) uploadPartCopy(c *gin.Context, bucket, key, uploadId string, partNumber int, copySource string) {
	srcBucket, srcKey := splitCopySource(copySource)

	start, end, hasRange := parseCopySourceRange(c.GetHeader("x-amz-copy-source-range"))

	part, err := s.multipart.UploadPartCopy(c.Request.Context(), bucket, key, uploadId, partNumber, srcBucket, srcKey, start, end, hasRange)
	if err != nil {
		WriteError(c, err.WithResource(bucket+"/"+key))
		return
	}
	writeXML(c, http.StatusOK, copyObjectResult{ETag: `"` + part.ETag + `"`, LastModified: part.LastModified})
}

// handleKeyGet implements "GET /<bucket>/<key>" (GetObject) and
// "GET /<bucket>/<key>?uploadId=..." (ListParts).
func (s *Server) handleKeyGet(c *gin.Context) {
	bucket, key := c.Param("bucket"), objectKey(c)

	if uploadId, ok := c.GetQuery("uploadId"); ok {
		if !s.authorize(c, bucket, model.PermRead) {
			return
		}
		s.listParts(c, bucket, key, uploadId)
		return
	}

	if !s.authorize(c, bucket, model.PermRead) {
		return
	}
	s.getObject(c, bucket, key)
}

func (s *Server) getObject(c *gin.Context, bucket, key string) {
	body, obj, err := s.objects.Get(c.Request.Context(), bucket, key)
	if err != nil {
		WriteError(c, err.WithResource(bucket+"/"+key))
		return
	}
	defer body.Close()

	for k, v := range obj.Metadata {
		c.Header(metaHeaderPrefix+k, v)
	}
	if c.GetHeader("x-amz-checksum-mode") == "ENABLED" {
		for alg, v := range obj.Checksums {
			c.Header(checksum.Algorithm(alg).HeaderName(), v)
		}
	}
	c.Header("ETag", `"`+obj.ETag+`"`)
	c.Header("Content-Type", obj.ContentType)

	status := http.StatusOK
	var reader io.Reader = body
	size := obj.Size

	if rangeHeader := c.GetHeader("Range"); rangeHeader != "" {
		start, end, ok := parseByteRange(rangeHeader, obj.Size)
		if !ok {
			WriteError(c, s3err.New(s3err.InvalidRange, "invalid Range header %q for object of size %d", rangeHeader, obj.Size))
			return
		}
		if _, serr := io.CopyN(io.Discard, body, start); serr != nil {
			WriteError(c, s3err.Wrap(s3err.InternalError, serr, "seeking to range start"))
			return
		}
		reader = io.LimitReader(body, end-start+1)
		size = end - start + 1
		status = http.StatusPartialContent
		c.Header("Content-Range", "bytes "+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10)+"/"+strconv.FormatInt(obj.Size, 10))
	}

	c.DataFromReader(status, size, obj.ContentType, reader, nil)
}

func (s *Server) listParts(c *gin.Context, bucket, key, uploadId string) {
	marker, _ := strconv.Atoi(c.Query("part-number-marker"))
	maxParts, _ := strconv.Atoi(c.Query("max-parts"))

	parts, truncated, nextMarker, err := s.multipart.ListParts(c.Request.Context(), bucket, key, uploadId, marker, maxParts)
	if err != nil {
		WriteError(c, err.WithResource(bucket+"/"+key))
		return
	}

	resp := listPartsResult{
		Bucket:               bucket,
		Key:                  key,
		UploadId:             uploadId,
		PartNumberMarker:     marker,
		NextPartNumberMarker: nextMarker,
		MaxParts:             maxParts,
		IsTruncated:          truncated,
	}
	for _, p := range parts {
		resp.Parts = append(resp.Parts, partEntry{PartNumber: p.PartNumber, ETag: `"` + p.ETag + `"`, Size: p.Size, LastModified: p.LastModified})
	}
	writeXML(c, http.StatusOK, resp)
}

// handleKeyHead implements "HEAD /<bucket>/<key>" (HeadObject) and
// "HEAD /<bucket>/<key>?uploadId=..." (HeadMultipartUpload).
func (s *Server) handleKeyHead(c *gin.Context) {
	bucket, key := c.Param("bucket"), objectKey(c)

	if uploadId, ok := c.GetQuery("uploadId"); ok {
		if !s.authorize(c, bucket, model.PermRead) {
			return
		}
		partsCount, lastPart, totalSize, err := s.multipart.HeadUpload(c.Request.Context(), bucket, key, uploadId)
		if err != nil {
			c.Status(err.Kind().Status())
			return
		}
		c.Header("x-amz-parts-count", strconv.Itoa(partsCount))
		c.Header("x-amz-last-part-number", strconv.Itoa(lastPart))
		c.Header("x-amz-total-size", strconv.FormatInt(totalSize, 10))
		c.Status(http.StatusOK)
		return
	}

	if !s.authorize(c, bucket, model.PermRead) {
		return
	}
	obj, err := s.objects.Head(c.Request.Context(), bucket, key)
	if err != nil {
		c.Status(err.Kind().Status())
		return
	}
	for k, v := range obj.Metadata {
		c.Header(metaHeaderPrefix+k, v)
	}
	c.Header("ETag", `"`+obj.ETag+`"`)
	c.Header("Content-Type", obj.ContentType)
	c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	c.Status(http.StatusOK)
}

// handleKeyDelete implements "DELETE /<bucket>/<key>" (DeleteObject) and
// "DELETE /<bucket>/<key>?uploadId=..." (AbortMultipartUpload).
func (s *Server) handleKeyDelete(c *gin.Context) {
	bucket, key := c.Param("bucket"), objectKey(c)
	if !s.authorize(c, bucket, model.PermDelete) {
		return
	}

	if uploadId, ok := c.GetQuery("uploadId"); ok {
		if err := s.multipart.Abort(c.Request.Context(), bucket, key, uploadId); err != nil {
			WriteError(c, err.WithResource(bucket+"/"+key))
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	if err := s.objects.Delete(c.Request.Context(), bucket, key); err != nil {
		WriteError(c, err.WithResource(bucket+"/"+key))
		return
	}
	c.Status(http.StatusNoContent)
}

// decodedBody wraps the request body in a streaming.Reader when the client
// used the aws-chunked transfer encoding (x-amz-content-sha256 starting
// with STREAMING-), per spec.md §4.5. Otherwise it returns the raw body.
func (s *Server) decodedBody(c *gin.Context) (io.Reader, s3err.Error) {
	sha := c.GetHeader("x-amz-content-sha256")
	if !strings.HasPrefix(sha, "STREAMING-") {
		return c.Request.Body, nil
	}

	authHeader := c.GetHeader("Authorization")
	auth, perr := signer.ParseAuthorizationHeader(authHeader)
	if perr != nil {
		return nil, perr
	}

	user := userFrom(c)
	amzDate := c.GetHeader("x-amz-date")
	date := amzDate
	if len(date) >= 8 {
		date = date[:8]
	}

	cfg := streaming.Config{
		SeedSignature: auth.Signature,
		SigningKey:    signer.SigningKey(user.SecretAccessKey, date, auth.Region),
		AmzDate:       amzDate,
		CredScope:     signer.CredentialScope(date, auth.Region),
		TrailerMode:   strings.Contains(sha, "-TRAILER"),
	}

	return streaming.NewReader(c.Request.Body, cfg), nil
}

func extractUserMetadata(c *gin.Context) map[string]string {
	meta := map[string]string{}
	for k := range c.Request.Header {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, metaHeaderPrefix) {
			meta[strings.TrimPrefix(lk, metaHeaderPrefix)] = c.GetHeader(k)
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// checksumFromHeaders looks up the x-amz-checksum-<alg> header matching a
// declared algorithm, returning the client-supplied value and the
// algorithm actually found (preferring the declared one, falling back to
// scanning all five names so a client that sets the checksum header
// without the separate algorithm header is still honored).
func checksumFromHeaders(c *gin.Context, declaredAlg string) (value string, alg string) {
	if declaredAlg != "" {
		return c.GetHeader(checksum.Algorithm(strings.ToUpper(declaredAlg)).HeaderName()), declaredAlg
	}
	for _, a := range []checksum.Algorithm{checksum.CRC32, checksum.CRC32C, checksum.CRC64NVME, checksum.SHA1, checksum.SHA256} {
		if v := c.GetHeader(a.HeaderName()); v != "" {
			return v, string(a)
		}
	}
	return "", ""
}

func splitCopySource(src string) (bucket, key string) {
	src = strings.TrimPrefix(src, "/")
	parts := strings.SplitN(src, "/", 2)
	if len(parts) != 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
