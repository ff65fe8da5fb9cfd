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

package signer

import "github.com/nabbar/s3gw/model"

// CredentialStore looks up the configured S3User owning an access key, per
// spec.md §3. Config loads the concrete implementation from the users list;
// keeping the lookup behind an interface lets the validator be tested with a
// plain map.
type CredentialStore interface {
	Lookup(accessKeyId string) (model.S3User, bool)
}

// staticStore is the in-memory CredentialStore backing config-loaded users.
type staticStore struct {
	byKey map[string]model.S3User
}

// NewStaticCredentialStore builds a CredentialStore from a fixed user list.
func NewStaticCredentialStore(users []model.S3User) CredentialStore {
	m := make(map[string]model.S3User, len(users))
	for _, u := range users {
		m[u.AccessKeyId] = u
	}
	return &staticStore{byKey: m}
}

func (s *staticStore) Lookup(accessKeyId string) (model.S3User, bool) {
	u, ok := s.byKey[accessKeyId]
	return u, ok
}
