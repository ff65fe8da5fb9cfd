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

package pathlock

import (
	"context"
	"sync"
)

// holder tracks the locks a single logical caller (one request, one
// recursive call chain) currently has open, so a second acquisition of the
// same key by the same caller doesn't deadlock against itself — spec.md
// §4.1: "Locks support reentrant acquisition by the same holder." Go's
// sync.RWMutex has no notion of ownership, so reentrancy is modeled
// explicitly via a context value rather than inferred from a goroutine id.
type holder struct {
	mu   sync.Mutex
	open map[string]*heldEntry
}

type heldEntry struct {
	count int
	li    *lockInfo
	write bool
}

type holderKeyType struct{}

var holderKey = holderKeyType{}

// WithHolder installs a fresh reentrancy scope on ctx. Call this once per
// logical operation (typically per incoming HTTP request) before passing ctx
// into a Registry; nested calls within that operation that reacquire the
// same key will not block on themselves, except that a write acquisition of
// a key this holder has open only for reading is not reentrant: it waits
// like any other writer and fails with Timeout.
func WithHolder(ctx context.Context) context.Context {
	return context.WithValue(ctx, holderKey, &holder{open: make(map[string]*heldEntry)})
}

func holderFrom(ctx context.Context) *holder {
	h, _ := ctx.Value(holderKey).(*holder)
	return h
}

type reentrantHandle struct {
	once sync.Once
	r    *registry
	key  string
	h    *holder
}

func (rh *reentrantHandle) Release() {
	rh.once.Do(func() {
		rh.h.mu.Lock()
		e, ok := rh.h.open[rh.key]
		if !ok {
			rh.h.mu.Unlock()
			return
		}

		e.count--
		if e.count > 0 {
			rh.h.mu.Unlock()
			return
		}

		delete(rh.h.open, rh.key)
		rh.h.mu.Unlock()

		if e.write {
			e.li.mu.Unlock()
		} else {
			e.li.mu.RUnlock()
		}
		rh.r.release(rh.key, e.li)
	})
}
