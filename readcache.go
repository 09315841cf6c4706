// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package aio

import (
	"container/list"
	"context"
	"time"

	"github.com/jacobsa/syncutil"
)

// ReadCache is the pluggable collaborator §6 calls out: "(io, size) ->
// cache; cache.pread(nbytes, offset) -> (rc, errno, bytes)". It must never
// violate pread's positional-read semantics -- no implicit fd offset
// mutation -- so every implementation here only ever calls File.Pread,
// never File.Read.
type ReadCache interface {
	Pread(ctx context.Context, f *File, nbytes int, offset int64, timeout time.Duration) (int, []byte, int64, error)
}

// NoReadCache is the default when Config.ReadCacheSize is 0: every call
// passes straight through to the File.
type NoReadCache struct{}

func (NoReadCache) Pread(ctx context.Context, f *File, nbytes int, offset int64, timeout time.Duration) (int, []byte, int64, error) {
	return f.Pread(ctx, nbytes, offset, nil, timeout)
}

const readCacheBlockSize = 64 * 1024

type cacheKey struct {
	fd    int
	block int64
}

type cacheEntry struct {
	key  cacheKey
	data []byte
}

// lruReadCache is a small block-aligned LRU in front of pread, sized in
// bytes by Config.ReadCacheSize (§6). No library in this module's
// dependency set supplies an LRU, so this is hand-rolled in the style the
// rest of the package uses for invariant-guarded mutable state
// (syncutil.InvariantMutex), the same way the teacher reaches for a small
// purpose-built type (internal/buffer.Buffer) rather than pulling in a
// dependency for a narrow need.
type lruReadCache struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	maxBytes int
	// GUARDED_BY(mu)
	curBytes int
	// GUARDED_BY(mu)
	order *list.List // of *cacheEntry, front = most recently used
	// GUARDED_BY(mu)
	index map[cacheKey]*list.Element
}

// NewReadCache builds the default ReadCache collaborator sized maxBytes.
// maxBytes <= 0 is equivalent to NoReadCache.
func NewReadCache(maxBytes int) ReadCache {
	if maxBytes <= 0 {
		return NoReadCache{}
	}

	c := &lruReadCache{
		maxBytes: maxBytes,
		order:    list.New(),
		index:    make(map[cacheKey]*list.Element),
	}
	c.mu = syncutil.NewInvariantMutex(c.checkInvariants)
	return c
}

func (c *lruReadCache) checkInvariants() {
	if len(c.index) != c.order.Len() {
		panic("aio: lruReadCache index/order out of sync")
	}
	if c.curBytes > c.maxBytes {
		panic("aio: lruReadCache over budget")
	}
}

// Pread satisfies whole cache blocks locally and falls through to the File
// for anything it doesn't have cached, exactly as §6 describes: "the cache
// may satisfy reads locally or delegate to the Backend". It only ever
// fronts single-block, block-aligned reads; a request spanning a block
// boundary or reading fewer than a full block near EOF just delegates.
func (c *lruReadCache) Pread(ctx context.Context, f *File, nbytes int, offset int64, timeout time.Duration) (int, []byte, int64, error) {
	if nbytes != readCacheBlockSize || offset%readCacheBlockSize != 0 {
		return f.Pread(ctx, nbytes, offset, nil, timeout)
	}

	key := cacheKey{fd: cacheFd(f), block: offset / readCacheBlockSize}

	c.mu.Lock()
	if elem, ok := c.index[key]; ok {
		c.order.MoveToFront(elem)
		data := elem.Value.(*cacheEntry).data
		c.mu.Unlock()
		return len(data), data, offset + int64(len(data)), nil
	}
	c.mu.Unlock()

	rc, data, newOffset, err := f.Pread(ctx, nbytes, offset, nil, timeout)
	if err != nil || rc <= 0 {
		return rc, data, newOffset, err
	}

	c.insert(key, data)
	return rc, data, newOffset, nil
}

func (c *lruReadCache) insert(key cacheKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another Task may have cached this block while our pread was suspended.
	if _, ok := c.index[key]; ok {
		return
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	elem := c.order.PushFront(&cacheEntry{key: key, data: cp})
	c.index[key] = elem
	c.curBytes += len(cp)

	for c.curBytes > c.maxBytes {
		back := c.order.Back()
		if back == nil {
			break
		}
		entry := back.Value.(*cacheEntry)
		c.order.Remove(back)
		delete(c.index, entry.key)
		c.curBytes -= len(entry.data)
	}
}

// cacheFd extracts the fd a cache key is scoped to. Reading File.fd
// directly (rather than through a public accessor) mirrors how the rest of
// this package treats File as a collaborator its own package can reach
// into; ReadCache lives in the same package precisely so it can do this
// without widening File's public surface.
func cacheFd(f *File) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fd
}
