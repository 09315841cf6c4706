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
	"sync"
	"sync/atomic"
	"time"

	"github.com/jacobsa/reqtrace"
)

// Kind identifies the POSIX operation a Request represents (§3).
type Kind int

const (
	OpOpen Kind = iota
	OpClose
	OpRead
	OpPread
	OpWrite
	OpPwrite
	OpRecv
	OpSend
	OpSendmsg
	OpAccept
	OpConnect
	OpBind
	OpListen
	OpTimer
	OpGetaddrinfo
)

func (k Kind) String() string {
	switch k {
	case OpOpen:
		return "open"
	case OpClose:
		return "close"
	case OpRead:
		return "read"
	case OpPread:
		return "pread"
	case OpWrite:
		return "write"
	case OpPwrite:
		return "pwrite"
	case OpRecv:
		return "recv"
	case OpSend:
		return "send"
	case OpSendmsg:
		return "sendmsg"
	case OpAccept:
		return "accept"
	case OpConnect:
		return "connect"
	case OpBind:
		return "bind"
	case OpListen:
		return "listen"
	case OpTimer:
		return "timer"
	case OpGetaddrinfo:
		return "getaddrinfo"
	default:
		return "unknown"
	}
}

// suspendVia classifies how a Kind reaches completion: through the Poller's
// readiness machinery (read or write direction), through its timer
// facility, or by offloading a single blocking call to a helper goroutine
// (§4.A: "the shim may release any internal concurrency lock across the
// call" -- i.e. it need not occupy the scheduler's single logical thread).
type suspendVia int

const (
	viaPollRead suspendVia = iota
	viaPollWrite
	viaTimer
	viaOffload
)

func (k Kind) suspendVia() suspendVia {
	switch k {
	case OpTimer:
		return viaTimer
	case OpOpen, OpClose, OpGetaddrinfo, OpBind, OpListen:
		return viaOffload
	case OpRead, OpPread, OpRecv, OpAccept:
		return viaPollRead
	case OpWrite, OpPwrite, OpSend, OpSendmsg, OpConnect:
		return viaPollWrite
	default:
		return viaOffload
	}
}

// Request is a per-in-flight-syscall record: descriptor, kind, parameter
// block, result slot, and continuation (§3, §4.B). Constructed by Backend,
// owned by Scheduler from submission until completion, and discarded after
// the result is delivered.
type Request struct {
	id   uint64
	Kind Kind

	// Fd is the target file descriptor, or -1 for OPEN/TIMER/GETADDRINFO.
	Fd int

	// Parameter block. Not every field is meaningful for every Kind.
	Buffer   []byte
	Offset   int64
	Flags    int
	Addr     Address
	Backlog  int
	Duration time.Duration // for OpTimer, and as a deadline on any Request
	Path     string
	OpenMode uint32

	// AcceptedFd and ResultAddr carry ACCEPT's and RECV-with-address's extra
	// results alongside the usual (rc, errno).
	AcceptedFd int
	ResultAddr Address

	// task is the continuation: the Task to resume on completion.
	task *Task

	// deadlineFor is non-nil only on the synthetic TIMER Request the
	// Scheduler races against a real request's deadline (§4.D cancellation).
	// When this Request's timer fires first, the scheduler completes
	// deadlineFor with (-1, ETIMEDOUT) instead of treating this Request's own
	// completion as meaningful.
	deadlineFor *Request

	// Result slot. once guarantees the invariant "(rc, errno) is written
	// exactly once" (§8), including under the deadline-vs-completion race of
	// §4.D: whichever writer calls complete first wins, the other is a no-op.
	once  sync.Once
	done  chan struct{}
	rc    int
	errno Errno

	report reqtrace.ReportFunc
}

var nextRequestID atomic.Uint64

// newRequest allocates a Request for kind, targeting fd (-1 if not
// applicable). The Request is not yet submitted to any Scheduler.
func newRequest(kind Kind, fd int) *Request {
	return &Request{
		id:   nextRequestID.Add(1),
		Kind: kind,
		Fd:   fd,
		done: make(chan struct{}),
	}
}

// complete writes the result exactly once and unblocks anyone waiting on
// Result. Safe to call from the Poller goroutine, an offload goroutine, or
// the timer wheel, possibly concurrently with a deadline-triggered
// cancellation of the same Request -- the first caller wins (§4.D, §8).
func (r *Request) complete(rc int, errno Errno) {
	r.once.Do(func() {
		r.rc = rc
		r.errno = errno
		if r.report != nil {
			if errno != 0 {
				r.report(errno)
			} else {
				r.report(nil)
			}
		}
		close(r.done)
	})
}

// Result blocks until the Request has completed and returns its outcome.
func (r *Request) Result() (rc int, errno Errno) {
	<-r.done
	return r.rc, r.errno
}
