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

package errors

// Kind is the closed catalog of S3-shaped error codes this gateway can
// return. Unlike a generic uint16 error code, each Kind carries its own
// fixed HTTP status (see httpStatus) since spec.md §7 enumerates a fixed
// mapping rather than leaving it to the caller.
type Kind string

const (
	NoSuchBucket          Kind = "NoSuchBucket"
	NoSuchKey             Kind = "NoSuchKey"
	NoSuchUpload          Kind = "NoSuchUpload"
	InvalidArgument       Kind = "InvalidArgument"
	InvalidChecksum       Kind = "InvalidChecksum"
	InvalidPart           Kind = "InvalidPart"
	InvalidPartOrder      Kind = "InvalidPartOrder"
	InvalidRange          Kind = "InvalidRange"
	InvalidChunk          Kind = "InvalidChunk"
	BucketNotEmpty        Kind = "BucketNotEmpty"
	BucketAlreadyExists   Kind = "BucketAlreadyExists"
	SignatureDoesNotMatch Kind = "SignatureDoesNotMatch"
	AccessDenied          Kind = "AccessDenied"
	InvalidAccessKeyId    Kind = "InvalidAccessKeyId"
	RequestTimeTooSkewed  Kind = "RequestTimeTooSkewed"
	AuthorizationHeaderMalformed Kind = "AuthorizationHeaderMalformed"
	InternalError         Kind = "InternalError"
	Timeout               Kind = "Timeout"
)

// httpStatus maps each Kind to the HTTP status spec.md §7 requires.
var httpStatus = map[Kind]int{
	NoSuchBucket:                 404,
	NoSuchKey:                    404,
	NoSuchUpload:                 404,
	InvalidArgument:              400,
	InvalidChecksum:              400,
	InvalidPart:                  400,
	InvalidPartOrder:             400,
	InvalidRange:                 416,
	InvalidChunk:                 400,
	BucketNotEmpty:               409,
	BucketAlreadyExists:          409,
	SignatureDoesNotMatch:        403,
	AccessDenied:                 403,
	InvalidAccessKeyId:           403,
	RequestTimeTooSkewed:         403,
	AuthorizationHeaderMalformed: 400,
	InternalError:                500,
	Timeout:                      500,
}

// Status returns the HTTP status code associated with k, or 500 if k is not
// a recognized kind.
func (k Kind) Status() int {
	if s, ok := httpStatus[k]; ok {
		return s
	}
	return 500
}
