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

// Package pathlock implements the reference-counted reader/writer lock
// registry of spec.md §4.1: a concurrent mapping from a normalized path to a
// lock, reclaimed by a periodic sweeper once idle. The per-name lock/unlock
// shape is grounded on moby/moby's api/server/router/network nameLocker (see
// its test, name_locker_test.go, in the retrieval pack); this registry adds
// reader/writer semantics, a timeout, reentrancy, and the idle sweep that
// nameLocker itself does not have.
package pathlock

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	s3err "github.com/nabbar/s3gw/errors"
)

const (
	// DefaultTimeout is the 30s default acquisition timeout for ordinary
	// filesystem operations (spec.md §5).
	DefaultTimeout = 30 * time.Second

	// MetadataTimeout is the 2s timeout spec.md §5 prescribes for the
	// short-lived contention on an upload's metadata file.
	MetadataTimeout = 2 * time.Second

	sweepInterval = 5 * time.Minute
	idleThreshold = 10 * time.Minute
)

// Registry is the path lock service. It is safe for concurrent use; each
// storage backend constructs one in its New and holds it as a field, per
// spec.md §9 ("global mutable state... represented as an explicit service
// object").
type Registry interface {
	// AcquireRead blocks (up to timeout) for a read hold on key, returning a
	// Handle to release it.
	AcquireRead(ctx context.Context, key string, timeout time.Duration) (Handle, s3err.Error)

	// AcquireWrite blocks (up to timeout) for an exclusive hold on key.
	AcquireWrite(ctx context.Context, key string, timeout time.Duration) (Handle, s3err.Error)

	// DoRead runs fn holding a read lock on key, guaranteeing release on
	// every exit path (including panic-driven unwinding of fn, which is not
	// recovered here but whose deferred Release still fires).
	DoRead(ctx context.Context, key string, timeout time.Duration, fn func() error) error

	// DoWrite is DoRead's write-lock counterpart.
	DoWrite(ctx context.Context, key string, timeout time.Duration, fn func() error) error

	// Close stops the idle-eviction sweeper. Safe to call multiple times.
	Close()
}

// Handle represents a held lock. Release is idempotent.
type Handle interface {
	Release()
}

// Normalize lower-cases and cleans an absolute path so that lookups against
// a case-insensitive filesystem still serialize correctly; callers on a
// case-sensitive store may pass the raw path through unchanged, but this
// registry always normalizes since the same code must serve both the
// filesystem and in-memory backends behind one lock discipline.
func Normalize(p string) string {
	return strings.ToLower(filepath.ToSlash(filepath.Clean(p)))
}

type lockInfo struct {
	mu   sync.RWMutex
	refs int64
	last atomic64
}

type atomic64 struct {
	mu sync.Mutex
	t  time.Time
}

func (a *atomic64) Store(t time.Time) {
	a.mu.Lock()
	a.t = t
	a.mu.Unlock()
}

func (a *atomic64) Load() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t
}

type registry struct {
	mu      sync.Mutex
	entries map[string]*lockInfo
	done    chan struct{}
	closeO  sync.Once
}

// New builds a Registry and starts its idle-eviction sweeper goroutine.
func New() Registry {
	r := &registry{
		entries: make(map[string]*lockInfo),
		done:    make(chan struct{}),
	}
	go r.sweep()
	return r
}

func (r *registry) getOrInsert(key string) *lockInfo {
	for {
		r.mu.Lock()
		li, ok := r.entries[key]
		if !ok {
			li = &lockInfo{}
			r.entries[key] = li
		}
		r.mu.Unlock()

		newRefs := atomic.AddInt64(&li.refs, 1)
		if newRefs >= 1 {
			// Won the race: the entry is live (refcount was >= 0 before our
			// increment). A concurrent sweeper decrements to 0 and deletes
			// only when refs is observed at 0; incrementing from 0 here is
			// always safe because we hold no assumption about deletion
			// ordering beyond the double-check in sweep().
			li.last.Store(time.Now())
			return li
		}

		// Lost the race against a sweeper that had already decided to
		// reclaim this entry (refs went negative under concurrent
		// bookkeeping) — undo our increment and retry against a fresh
		// lookup.
		atomic.AddInt64(&li.refs, -1)
	}
}

func (r *registry) release(key string, li *lockInfo) {
	atomic.AddInt64(&li.refs, -1)
}

// AcquireRead implements Registry.
func (r *registry) AcquireRead(ctx context.Context, key string, timeout time.Duration) (Handle, s3err.Error) {
	return r.acquire(ctx, key, timeout, false)
}

// AcquireWrite implements Registry.
func (r *registry) AcquireWrite(ctx context.Context, key string, timeout time.Duration) (Handle, s3err.Error) {
	return r.acquire(ctx, key, timeout, true)
}

// acquire polls TryLock/TryRLock instead of blocking on the mutex outright,
// so a timed-out acquisition never leaves a goroutine parked on Lock()
// waiting to seize a mutex nobody will ever release.
func (r *registry) acquire(ctx context.Context, key string, timeout time.Duration, write bool) (Handle, s3err.Error) {
	key = Normalize(key)

	if h := holderFrom(ctx); h != nil {
		h.mu.Lock()
		if e, ok := h.open[key]; ok && (e.write || !write) {
			e.count++
			h.mu.Unlock()
			return &reentrantHandle{r: r, key: key, h: h}, nil
		}
		h.mu.Unlock()
	}

	li := r.getOrInsert(key)

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	deadline := time.Now().Add(timeout)
	backoff := time.Millisecond

	for {
		var got bool
		if write {
			got = li.mu.TryLock()
		} else {
			got = li.mu.TryRLock()
		}

		if got {
			li.last.Store(time.Now())

			if h := holderFrom(ctx); h != nil {
				h.mu.Lock()
				h.open[key] = &heldEntry{count: 1, li: li, write: write}
				h.mu.Unlock()
				return &reentrantHandle{r: r, key: key, h: h}, nil
			}

			return &handle{r: r, key: key, li: li, write: write}, nil
		}

		if time.Now().After(deadline) {
			r.release(key, li)
			return nil, s3err.New(s3err.Timeout, "timed out acquiring lock for %s", key)
		}

		select {
		case <-ctx.Done():
			r.release(key, li)
			return nil, s3err.Wrap(s3err.Timeout, ctx.Err(), "context canceled acquiring lock for %s", key)
		case <-time.After(backoff):
		}

		if backoff < 25*time.Millisecond {
			backoff *= 2
		}
	}
}

// DoRead implements Registry.
func (r *registry) DoRead(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	h, err := r.AcquireRead(ctx, key, timeout)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn()
}

// DoWrite implements Registry.
func (r *registry) DoWrite(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	h, err := r.AcquireWrite(ctx, key, timeout)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn()
}

func (r *registry) Close() {
	r.closeO.Do(func() {
		close(r.done)
	})
}

func (r *registry) sweep() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-t.C:
			r.sweepOnce()
		}
	}
}

func (r *registry) sweepOnce() {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for k, li := range r.entries {
		if atomic.LoadInt64(&li.refs) != 0 {
			continue
		}
		if now.Sub(li.last.Load()) < idleThreshold {
			continue
		}

		delete(r.entries, k)

		// Double-check: a racing acquirer may have re-inserted and
		// incremented between our refs==0 read above and the delete. If so,
		// put it back so the now-live entry isn't orphaned.
		if atomic.LoadInt64(&li.refs) != 0 {
			r.entries[k] = li
		}
	}

	runtime.Gosched()
}

type handle struct {
	once  sync.Once
	r     *registry
	key   string
	li    *lockInfo
	write bool
}

func (h *handle) Release() {
	h.once.Do(func() {
		if h.write {
			h.li.mu.Unlock()
		} else {
			h.li.mu.RUnlock()
		}
		h.r.release(h.key, h.li)
	})
}
