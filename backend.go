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
	"context"
	"time"
)

// Backend is the thin adapter described in §4.E: build a Request from
// user-level parameters, submit it to the Scheduler, translate the
// completion. File and Socket hold one apiece; both share the same
// Scheduler (and therefore the same Poller and run queue).
type Backend struct {
	sched *Scheduler
}

// NewBackend wraps sched for use by File/Socket state machines.
func NewBackend(sched *Scheduler) *Backend {
	return &Backend{sched: sched}
}

func (b *Backend) open(ctx context.Context, path string, flags int, mode uint32, timeout time.Duration) (fd int, errno Errno) {
	req := newRequest(OpOpen, -1)
	req.Path = path
	req.Flags = flags
	req.OpenMode = mode
	req.Duration = timeout

	rc, errno := b.sched.submit(ctx, req)
	if rc != 0 {
		return -1, errno
	}
	return req.AcceptedFd, errno
}

func (b *Backend) close(ctx context.Context, fd int, timeout time.Duration) Errno {
	req := newRequest(OpClose, fd)
	req.Duration = timeout
	_, errno := b.sched.submit(ctx, req)
	return errno
}

func (b *Backend) pread(ctx context.Context, fd int, buf []byte, offset int64, timeout time.Duration) (n int, errno Errno) {
	req := newRequest(OpPread, fd)
	req.Buffer = buf
	req.Offset = offset
	req.Duration = timeout
	return b.sched.submit(ctx, req)
}

func (b *Backend) pwrite(ctx context.Context, fd int, buf []byte, offset int64, timeout time.Duration) (n int, errno Errno) {
	req := newRequest(OpPwrite, fd)
	req.Buffer = buf
	req.Offset = offset
	req.Duration = timeout
	return b.sched.submit(ctx, req)
}

func (b *Backend) read(ctx context.Context, fd int, buf []byte, timeout time.Duration) (n int, errno Errno) {
	req := newRequest(OpRead, fd)
	req.Buffer = buf
	req.Duration = timeout
	return b.sched.submit(ctx, req)
}

func (b *Backend) write(ctx context.Context, fd int, buf []byte, timeout time.Duration) (n int, errno Errno) {
	req := newRequest(OpWrite, fd)
	req.Buffer = buf
	req.Duration = timeout
	return b.sched.submit(ctx, req)
}

func (b *Backend) bind(ctx context.Context, fd int, addr Address, timeout time.Duration) Errno {
	req := newRequest(OpBind, fd)
	req.Addr = addr
	req.Duration = timeout
	_, errno := b.sched.submit(ctx, req)
	return errno
}

func (b *Backend) listen(ctx context.Context, fd, backlog int, timeout time.Duration) Errno {
	req := newRequest(OpListen, fd)
	req.Backlog = backlog
	req.Duration = timeout
	_, errno := b.sched.submit(ctx, req)
	return errno
}

func (b *Backend) accept(ctx context.Context, fd int, timeout time.Duration) (newFd int, addr Address, errno Errno) {
	req := newRequest(OpAccept, fd)
	req.Duration = timeout
	rc, errno := b.sched.submit(ctx, req)
	if rc < 0 {
		return -1, Address{}, errno
	}
	return req.AcceptedFd, req.ResultAddr, errno
}

// connect issues connect(2) directly (it never blocks on a non-blocking
// socket) and, only if the kernel reports EINPROGRESS, submits a CONNECT
// Request to suspend until the socket becomes writable and SO_ERROR reads
// back 0 (§3: "Connecting --(readiness+getsockopt SO_ERROR==0)--> Connected").
func (b *Backend) connect(ctx context.Context, fd int, addr Address, timeout time.Duration) (errno Errno, inProgress bool) {
	rc, errno0, inProgress := connectOffload(fd, addr)
	if !inProgress {
		return errno0, false
	}

	req := newRequest(OpConnect, fd)
	req.Duration = timeout
	_, errno = b.sched.submit(ctx, req)
	_ = rc
	return errno, true
}

func (b *Backend) recv(ctx context.Context, fd int, buf []byte, flags int, timeout time.Duration) (n int, addr Address, errno Errno) {
	req := newRequest(OpRecv, fd)
	req.Buffer = buf
	req.Flags = flags
	req.Duration = timeout
	rc, errno := b.sched.submit(ctx, req)
	return rc, req.ResultAddr, errno
}

func (b *Backend) send(ctx context.Context, fd int, buf []byte, flags int, timeout time.Duration) (n int, errno Errno) {
	req := newRequest(OpSend, fd)
	req.Buffer = buf
	req.Flags = flags
	req.Duration = timeout
	return b.sched.submit(ctx, req)
}

// sendmsg is the general case ssend/sendto/sendmsg cascade bottoms out at
// (§4.F): addr may be the zero Address, in which case no destination is
// attached (equivalent to plain send on a connected socket).
func (b *Backend) sendmsg(ctx context.Context, fd int, buf []byte, flags int, addr Address, hasAddr bool, timeout time.Duration) (n int, errno Errno) {
	req := newRequest(OpSendmsg, fd)
	req.Buffer = buf
	req.Flags = flags
	req.Duration = timeout
	if hasAddr {
		req.Addr = addr
	}
	return b.sched.submit(ctx, req)
}

func (b *Backend) getaddrinfo(ctx context.Context, host string, timeout time.Duration) (addr Address, errno Errno) {
	req := newRequest(OpGetaddrinfo, -1)
	req.Path = host
	req.Duration = timeout
	_, errno = b.sched.submit(ctx, req)
	return req.ResultAddr, errno
}

// sleep submits a TIMER Request for d and waits for it, implementing
// Timer.sleep (§6) in terms of the same Request/continuation protocol as
// every I/O operation rather than a separate mechanism.
func (b *Backend) sleep(ctx context.Context, d time.Duration) {
	req := newRequest(OpTimer, -1)
	req.Duration = d
	b.sched.submit(ctx, req)
}
