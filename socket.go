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

	"golang.org/x/sys/unix"

	"github.com/jacobsa/syncutil"

	"github.com/olleolleolle/aio/internal/platform"
)

// SocketState is the tagged variant for the socket lifecycle (§3, §4.F).
type SocketState int

const (
	SocketClosed SocketState = iota
	SocketBound
	SocketConnecting
	SocketConnected
	SocketListening
)

func (s SocketState) String() string {
	switch s {
	case SocketClosed:
		return "closed"
	case SocketBound:
		return "bound"
	case SocketConnecting:
		return "connecting"
	case SocketConnected:
		return "connected"
	case SocketListening:
		return "listening"
	default:
		return "unknown"
	}
}

// Socket is the per-descriptor state machine for a network socket (§3,
// §4.F). bind and connect are one-shot: calling either a second time
// returns EINVAL without touching the kernel or changing state.
type Socket struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	state SocketState
	// GUARDED_BY(mu)
	fd int

	backend *Backend
	policy  *Config
	owner   uint64
}

func (s *Socket) checkInvariants() {
	if s.state == SocketClosed && s.fd != -1 {
		panic("aio: Socket in Closed state retains a live fd")
	}
	if s.state != SocketClosed && s.fd < 0 {
		panic("aio: Socket in a non-Closed state has no fd")
	}
}

// NewSocket creates a Socket in the Closed state around a freshly opened
// socket(2) descriptor (family/typ/proto as in socket(2): e.g. AF_INET,
// SOCK_STREAM, 0). The descriptor is set non-blocking immediately, since
// every fd this runtime hands to a Poller must be (§4.F).
func NewSocket(sched *Scheduler, cfg *Config, domain, typ, proto int) (*Socket, error) {
	fd, err := platform.Socket(domain, typ, proto)
	if err != nil {
		return nil, err
	}
	if err := platform.SetNonblock(fd, true); err != nil {
		platform.Close(fd)
		return nil, err
	}

	s := &Socket{
		state:   SocketClosed,
		fd:      fd,
		backend: NewBackend(sched),
		policy:  cfg,
		owner:   currentGoroutineID(),
	}
	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)
	return s, nil
}

func newAcceptedSocket(fd int, backend *Backend, cfg *Config) *Socket {
	s := &Socket{state: SocketConnected, fd: fd, backend: backend, policy: cfg, owner: currentGoroutineID()}
	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)
	return s
}

// Bind implements Socket.bind (§6): legal only from Closed, and only once
// (§4.F "bind and connect are one-shot").
func (s *Socket) Bind(ctx context.Context, addr Address, timeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SocketClosed {
		return s.deliver("bind", s.fd, -1, EINVAL)
	}

	errno := s.backend.bind(ctx, s.fd, addr, timeout)
	if errno == 0 {
		s.state = SocketBound
	}
	return s.deliver("bind", s.fd, 0, errno)
}

// Connect implements Socket.connect (§6, §3): legal only from Closed, and
// only once. On EINPROGRESS the Socket enters Connecting until the Backend
// reports SO_ERROR==0 (success, -> Connected) or nonzero (failure, -> Closed
// with that error, per §3's Connecting error transition).
func (s *Socket) Connect(ctx context.Context, addr Address, timeout time.Duration) (int, error) {
	s.mu.Lock()
	if s.state != SocketClosed {
		defer s.mu.Unlock()
		return s.deliver("connect", s.fd, -1, EINVAL)
	}
	s.state = SocketConnecting
	fd := s.fd
	s.mu.Unlock()

	errno, _ := s.backend.connect(ctx, fd, addr, timeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	if errno == 0 {
		s.state = SocketConnected
	} else {
		s.state = SocketClosed
	}
	return s.deliver("connect", fd, 0, errno)
}

// ConnectHost resolves host via GETADDRINFO before connecting (supplemented
// feature, see SPEC_FULL.md: surfaces the GETADDRINFO Request kind §3
// already reserves as a public, non-blocking hostname resolution path,
// rather than requiring callers to resolve synchronously).
func (s *Socket) ConnectHost(ctx context.Context, host string, port uint16, timeout time.Duration) (int, error) {
	addr, errno := s.backend.getaddrinfo(ctx, host, timeout)
	if errno != 0 {
		return s.deliver("connect", s.fd, -1, errno)
	}
	switch addr.Family {
	case FamilyV4:
		addr.V4.Port = port
	case FamilyV6:
		addr.V6.Port = port
	}
	return s.Connect(ctx, addr, timeout)
}

// Listen implements Socket.listen (§6): legal only from Bound.
func (s *Socket) Listen(ctx context.Context, backlog int, timeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SocketBound {
		return s.deliver("listen", s.fd, -1, EINVAL)
	}

	errno := s.backend.listen(ctx, s.fd, backlog, timeout)
	if errno == 0 {
		s.state = SocketListening
	}
	return s.deliver("listen", s.fd, 0, errno)
}

// Accept implements Socket.accept (§6, §4.F): legal only from Listening;
// yields a new Socket already in Connected, with its accepted sockaddr
// normalized to V4 or V6 (§4.F "normalized to IPv4 or IPv6 by inspecting
// ss_family"). The listening Socket remains Listening.
func (s *Socket) Accept(ctx context.Context, timeout time.Duration) (int, Address, *Socket, error) {
	s.mu.Lock()
	state, fd, backend, policy := s.state, s.fd, s.backend, s.policy
	s.mu.Unlock()

	if state != SocketListening {
		rc, err := s.deliver("accept", fd, -1, EBADF)
		return rc, Address{}, nil, err
	}

	newFd, addr, errno := backend.accept(ctx, fd, timeout)
	if errno != 0 {
		rc, err := s.deliver("accept", fd, -1, errno)
		return rc, Address{}, nil, err
	}

	child := newAcceptedSocket(newFd, backend, policy)
	rc, err := s.deliver("accept", fd, 0, 0)
	return rc, addr, child, err
}

// Recv implements Socket.recv (§6): legal from Connected (and, in principle,
// any state with an open fd, but a socket that isn't Connected has nothing
// meaningful to receive, so every other state rejects with EBADF).
func (s *Socket) Recv(ctx context.Context, buf []byte, flags int, timeout time.Duration) (int, []byte, Address, error) {
	s.mu.Lock()
	state, fd, backend := s.state, s.fd, s.backend
	s.mu.Unlock()

	if state != SocketConnected {
		rc, err := s.deliver("recv", fd, -1, EBADF)
		return rc, nil, Address{}, err
	}

	n, addr, errno := backend.recv(ctx, fd, buf, flags, timeout)
	rc, err := s.deliver("recv", fd, n, errno)
	if err != nil {
		return rc, nil, Address{}, err
	}
	return rc, buf[:n], addr, nil
}

// Send implements the ssend member of the send family (§4.F): ssend ->
// sendto(addr=nil) -> sendmsg cascade, bottoming out at Backend.sendmsg
// with no destination address attached.
func (s *Socket) Send(ctx context.Context, buf []byte, flags int, timeout time.Duration) (int, error) {
	return s.SendTo(ctx, buf, flags, Address{}, false, timeout)
}

// SendTo implements the sendto member of the send family (§4.F). hasAddr
// distinguishes "send to addr" from ssend's "no destination" case; the zero
// Address (0.0.0.0:0) is treated as "no destination" either way.
func (s *Socket) SendTo(ctx context.Context, buf []byte, flags int, addr Address, hasAddr bool, timeout time.Duration) (int, error) {
	s.mu.Lock()
	state, fd, backend := s.state, s.fd, s.backend
	s.mu.Unlock()

	if state != SocketConnected && state != SocketBound {
		return s.deliver("sendmsg", fd, -1, EBADF)
	}

	n, errno := backend.sendmsg(ctx, fd, buf, flags, addr, hasAddr, timeout)
	return s.deliver("sendmsg", fd, n, errno)
}

// Shutdown implements an orderly half-close (supplemented feature, see
// SPEC_FULL.md: not in spec.md's op table, but a natural small addition).
// Unlike close, shutdown(2) never blocks and never changes the state
// machine out of Connected -- the fd is still open and a full Close is
// still required to release it.
func (s *Socket) Shutdown(how int) error {
	s.mu.Lock()
	state, fd := s.state, s.fd
	s.mu.Unlock()

	if state != SocketConnected {
		_, err := s.deliver("shutdown", fd, -1, EBADF)
		return err
	}

	if err := unix.Shutdown(fd, how); err != nil {
		_, derr := s.deliver("shutdown", fd, -1, toErrno(err))
		return derr
	}
	_, err := s.deliver("shutdown", fd, 0, 0)
	return err
}

// Close implements Socket.close (§6, §3 "Any -> Closed on close").
func (s *Socket) Close(ctx context.Context, timeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SocketClosed {
		return s.deliver("close", -1, -1, EBADF)
	}

	fd := s.fd
	errno := s.backend.close(ctx, fd, timeout)
	switch errno {
	case 0, EBADF, EINTR, EIO:
	default:
		fatal("Socket.Close: unexpected close(2) result fd=%d errno=%v", fd, errno)
	}

	s.state = SocketClosed
	s.fd = -1
	return s.deliver("close", fd, 0, errno)
}

// State reports the Socket's current state, for tests and diagnostics.
func (s *Socket) State() SocketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LocalAddr reports the address the kernel assigned this socket, useful
// after binding to port 0 and needing the ephemeral port the kernel picked.
// Runs getsockname(2) synchronously: it never blocks, so unlike bind/listen
// it has no Request of its own.
func (s *Socket) LocalAddr() (Address, error) {
	s.mu.Lock()
	fd := s.fd
	s.mu.Unlock()

	sa, err := unix.Getsockname(fd)
	if err != nil {
		return Address{}, err
	}
	v, err := platform.FromSockaddr(sa)
	if err != nil {
		return Address{}, err
	}
	return addressFromPlatform(v)
}

func (s *Socket) deliver(op string, fd, rc int, errno Errno) (int, error) {
	s.policy.checkThread("Socket", s.owner, currentGoroutineID())
	return s.policy.ErrorPolicy().deliver(op, fd, rc, errno)
}
