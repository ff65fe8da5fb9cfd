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

// Package errors provides the S3-shaped error type every component in this
// module returns across a package boundary, instead of a bare error. It
// carries enough information for the dispatcher to render the <Error> XML
// envelope of spec.md §4.8 without re-deriving the HTTP status or S3 <Code>
// from a message string.
package errors

import "fmt"

// Error is the interface every public function in this module returns in
// place of the standard library's error, when the failure originates in the
// S3 domain (as opposed to a plain I/O error bubbled up unexamined).
type Error interface {
	error

	// Kind returns the S3 error code this failure maps to.
	Kind() Kind

	// Resource is the bucket/key path this error refers to, used to fill
	// the <Resource> element of the XML envelope.
	Resource() string

	// Is reports whether err is an Error of the same Kind.
	Is(err error) bool

	// Unwrap exposes the wrapped cause, if any, for errors.Is/As chaining.
	Unwrap() error

	// WithResource returns a copy of the error with Resource() set to r.
	WithResource(r string) Error
}

type ers struct {
	k Kind
	m string
	r string
	c error
}

// New builds an Error of the given kind with a formatted message.
func New(k Kind, format string, args ...interface{}) Error {
	return &ers{k: k, m: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind, preserving cause as the unwrap
// target (so errors.Is/errors.As against the underlying I/O error still
// works after it has been classified into an S3 Kind).
func Wrap(k Kind, cause error, format string, args ...interface{}) Error {
	return &ers{k: k, m: fmt.Sprintf(format, args...), c: cause}
}

func (e *ers) Error() string {
	if e.m == "" {
		return string(e.k)
	}
	return e.m
}

func (e *ers) Kind() Kind { return e.k }

func (e *ers) Resource() string { return e.r }

func (e *ers) Unwrap() error { return e.c }

func (e *ers) Is(err error) bool {
	if err == nil {
		return false
	}
	if o, ok := err.(*ers); ok {
		return o.k == e.k
	}
	return false
}

func (e *ers) WithResource(r string) Error {
	n := *e
	n.r = r
	return &n
}

// Status is a convenience that returns the HTTP status for err if it is an
// Error, and 500 otherwise (an Error wrapped inside another error is not
// looked for).
func Status(err error) int {
	if err == nil {
		return 200
	}
	if e, ok := err.(Error); ok {
		return e.Kind().Status()
	}
	return 500
}

// KindOf extracts the Kind from err, returning InternalError if err is not
// one of ours.
func KindOf(err error) Kind {
	if e, ok := err.(Error); ok {
		return e.Kind()
	}
	return InternalError
}
