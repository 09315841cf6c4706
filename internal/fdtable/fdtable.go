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

// Package fdtable holds the per-fd read/write callback bookkeeping shared
// by every Poller backend (kqueue, epoll). It exists so that backend file
// (poller_kqueue.go, poller_epoll.go) need not duplicate the "at most one
// outstanding registration per fd per direction" invariant from §3.
package fdtable

import (
	"fmt"
	"sync"
)

// Table maps (fd, direction) to an opaque completion callback; every Poller
// backend stores the *aio.Request itself. It is intentionally untyped
// (interface{} completion value) so this package has no dependency on the
// root aio package, matching the teacher's internal/ layering
// (internal/buffer knows nothing about the fuse package either).
type Table struct {
	mu    sync.Mutex
	reads map[int]interface{}
	writes map[int]interface{}
}

// New returns an empty Table.
func New() *Table {
	return &Table{
		reads:  make(map[int]interface{}),
		writes: make(map[int]interface{}),
	}
}

// PutRead records the read-direction callback for fd. It panics if one is
// already outstanding: that would violate the "at most one outstanding read
// registration per fd" invariant (§3), and is always a caller bug, not a
// runtime condition to recover from.
func (t *Table) PutRead(fd int, callback interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.reads[fd]; ok {
		panic(fmt.Sprintf("fdtable: read registration already outstanding for fd %d", fd))
	}
	t.reads[fd] = callback
}

// PutWrite is PutRead's write-direction counterpart.
func (t *Table) PutWrite(fd int, callback interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.writes[fd]; ok {
		panic(fmt.Sprintf("fdtable: write registration already outstanding for fd %d", fd))
	}
	t.writes[fd] = callback
}

// TakeRead removes and returns the read-direction callback for fd, the
// one-shot "removed on fire" behavior required by §3. ok is false if none
// was registered (e.g. it was already canceled).
func (t *Table) TakeRead(fd int) (callback interface{}, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	callback, ok = t.reads[fd]
	delete(t.reads, fd)
	return
}

// TakeWrite is TakeRead's write-direction counterpart.
func (t *Table) TakeWrite(fd int) (callback interface{}, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	callback, ok = t.writes[fd]
	delete(t.writes, fd)
	return
}

// Drop removes any registration (either direction) for fd without invoking
// its callback, used when a Request is canceled by deadline (§4.D) ahead of
// the kernel event.
func (t *Table) Drop(fd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.reads, fd)
	delete(t.writes, fd)
}
