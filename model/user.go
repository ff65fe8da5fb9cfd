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

package model

import "strings"

// Permission is one of the coarse-grained permissions spec.md §3/§4.4 check
// against a request's derived action.
type Permission string

const (
	PermRead   Permission = "read"
	PermWrite  Permission = "write"
	PermDelete Permission = "delete"
	PermList   Permission = "list"
	PermAll    Permission = "*"
)

// BucketPermission grants a user a set of Permissions against one bucket
// (or "*" for every bucket).
type BucketPermission struct {
	BucketName  string
	Permissions []Permission
}

// Allows reports whether this grant covers bucket and permission p.
func (b BucketPermission) Allows(bucket string, p Permission) bool {
	if b.BucketName != "*" && !strings.EqualFold(b.BucketName, bucket) {
		return false
	}
	for _, g := range b.Permissions {
		if g == PermAll || g == p {
			return true
		}
	}
	return false
}

// S3User is one configured credential/permission set, per spec.md §3.
type S3User struct {
	AccessKeyId     string
	SecretAccessKey string
	Name            string
	BucketPermissions []BucketPermission
}

// HasPermission reports whether u is allowed permission p against bucket.
// An empty bucket name (ListBuckets) always passes, per spec.md §4.4.
func (u S3User) HasPermission(bucket string, p Permission) bool {
	if bucket == "" {
		return true
	}
	for _, bp := range u.BucketPermissions {
		if bp.Allows(bucket, p) {
			return true
		}
	}
	return false
}

// PermissionForMethod derives the required Permission from an HTTP method
// and whether the request targets a listing operation, per spec.md §4.4:
// GET/HEAD -> read (or list for bucket listings), PUT/POST -> write,
// DELETE -> delete.
func PermissionForMethod(method string, isList bool) Permission {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		if isList {
			return PermList
		}
		return PermRead
	case "PUT", "POST":
		return PermWrite
	case "DELETE":
		return PermDelete
	default:
		return PermRead
	}
}
