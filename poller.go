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
	"fmt"
	"sync"
	"time"
)

// MaxEvents bounds the number of pending kernel-event registrations that
// may accumulate in a ChangeList before it must be flushed (§3).
const MaxEvents = 10

// ShortTimeout is the maximum duration a single Poller.Poll call may block
// the underlying kernel syscall before returning control to the Scheduler
// (§4.D step 3).
const ShortTimeout = time.Second

// changeOp is one pending kernel-event registration or deregistration, not
// yet submitted to the kernel.
type changeOp struct {
	fd     int
	filter eventFilter
	enable bool          // false means delete
	dur    time.Duration // meaningful only for filterTimer
}

type eventFilter int

const (
	filterRead eventFilter = iota
	filterWrite
	filterTimer
)

// ChangeList is a bounded buffer of pending registrations to be submitted
// to the kernel event queue on the next poll cycle (§3). It is
// single-writer: only the Scheduler's I/O task touches a given Poller, and
// transitively its ChangeList.
type ChangeList struct {
	mu      sync.Mutex
	pending []changeOp
}

// add appends a pending change, enforcing the MaxEvents invariant by
// returning false when the list is already full; the caller (a Poller
// implementation) must flush before accepting more.
func (cl *ChangeList) add(op changeOp) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if len(cl.pending) >= MaxEvents {
		return false
	}
	cl.pending = append(cl.pending, op)
	return true
}

// drain empties the list and returns everything that had accumulated,
// resetting change_count to zero as required on every poll() return (§4.C).
func (cl *ChangeList) drain() []changeOp {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	out := cl.pending
	cl.pending = nil
	return out
}

// Len reports the current pending-change count; callers use this as the
// back-pressure signal described in §4.C ("if more than MAX_EVENTS
// registrations are pending, poll must be called between submissions").
func (cl *ChangeList) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.pending)
}

// Poller is the portable seam called out in §9: register_read,
// register_write, register_timer, poll. A BSD kqueue implementation and a
// Linux epoll implementation both satisfy it with identical one-shot,
// at-most-one-outstanding-per-fd semantics, so the Scheduler never branches
// on platform.
type Poller interface {
	// RegisterRead arms a one-shot readability registration for fd, to be
	// fulfilled by completing req. At most one read registration may be
	// outstanding per fd at a time (§3).
	RegisterRead(fd int, req *Request) error

	// RegisterWrite is RegisterRead's writability counterpart.
	RegisterWrite(fd int, req *Request) error

	// RegisterTimer arms a one-shot timer that fires after d and completes
	// req with (0, 0).
	RegisterTimer(d time.Duration, req *Request) error

	// CancelFd removes any outstanding read/write registration for fd,
	// called when a Request is canceled by deadline (§4.D) before the
	// kernel event arrives.
	CancelFd(fd int)

	// Poll flushes the change list and waits for events, blocking the
	// underlying kernel call for at most timeout. It returns the Requests
	// that were completed as a result (possibly none, on a timeout tick).
	Poll(timeout time.Duration) ([]*Request, error)

	// Wake causes a concurrent, in-progress Poll call to return promptly,
	// even if timeout has not elapsed and no kernel event is ready. Used by
	// Scheduler to bound the latency of newly runnable work while the I/O
	// task is parked in Poll (cf. the self-pipe/eventfd "wake" trigger used
	// throughout the netpoll implementations in the wild: e.g. gnet's and
	// evio's kqueue/epoll pollers each keep a dedicated wake fd for this).
	Wake()

	// Close releases the underlying kernel event queue. Must not be called
	// concurrently with Poll.
	Close() error
}

// unknownFilterMessage formats the fatal error for an unrecognized kevent
// filter. Spec §9 flags that the source code discriminates on filter while
// reporting flags in the panic message; we discriminate and report the
// same field throughout.
func unknownFilterMessage(filter int32) string {
	return fmt.Sprintf("poller: unknown event filter %d", filter)
}
