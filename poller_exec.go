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
	"golang.org/x/sys/unix"

	"github.com/olleolleolle/aio/internal/platform"
)

// executeRequest performs the actual non-blocking syscall for a Request
// once the Poller has observed readiness, the way §4.C describes: "perform
// the actual non-blocking syscall, write result to the Request, mark task
// runnable. If the syscall returns EAGAIN, re-register and leave the task
// suspended." retry is true exactly when the caller (a Poller backend)
// should re-arm the one-shot registration instead of completing req.
//
// This function is shared by every Poller backend (poller_kqueue.go,
// poller_epoll.go) so the EAGAIN retry policy (§4.F) lives in exactly one
// place.
func executeRequest(req *Request) (rc int, errno Errno, retry bool) {
	switch req.Kind {
	case OpRead:
		n, err := platform.Read(req.Fd, req.Buffer)
		return translateIOResult(n, err)

	case OpPread:
		n, err := platform.Pread(req.Fd, req.Buffer, req.Offset)
		return translateIOResult(n, err)

	case OpWrite:
		n, err := platform.Write(req.Fd, req.Buffer)
		return translateIOResult(n, err)

	case OpPwrite:
		n, err := platform.Pwrite(req.Fd, req.Buffer, req.Offset)
		return translateIOResult(n, err)

	case OpRecv:
		n, from, err := platform.Recvfrom(req.Fd, req.Buffer, req.Flags)
		if err == nil && from != nil {
			if v, aerr := platform.FromSockaddr(from); aerr == nil {
				if a, cerr := addressFromPlatform(v); cerr == nil {
					req.ResultAddr = a
				}
			}
		}
		return translateIOResult(n, err)

	case OpSend:
		n, err := platform.Send(req.Fd, req.Buffer, req.Flags)
		return translateIOResult(n, err)

	case OpSendmsg:
		var sa unix.Sockaddr
		if req.Addr != (Address{}) {
			sa, _ = platform.ToSockaddr(req.Addr.toPlatform())
		}
		n, err := platform.SendmsgN(req.Fd, req.Buffer, nil, sa, req.Flags)
		return translateIOResult(n, err)

	case OpAccept:
		nfd, sa, err := platform.Accept4(req.Fd)
		if err != nil {
			return translateIOResult(0, err)
		}
		req.AcceptedFd = nfd
		if v, aerr := platform.FromSockaddr(sa); aerr == nil {
			if a, cerr := addressFromPlatform(v); cerr == nil {
				req.ResultAddr = a
			}
		}
		return 0, 0, false

	case OpConnect:
		soErr, err := platform.GetsockoptSOError(req.Fd)
		if err != nil {
			return -1, toErrno(err), false
		}
		if soErr != 0 {
			return -1, Errno(soErr), false
		}
		return 0, 0, false

	default:
		fatal("executeRequest: unexpected poll-driven kind %v", req.Kind)
		return -1, EINVAL, false
	}
}

// translateIOResult converts a (n, err) pair from a platform call into the
// (rc, errno, retry) shape executeRequest returns, treating EAGAIN as "stay
// suspended" rather than an error surfaced to user code (§4.F).
func translateIOResult(n int, err error) (rc int, errno Errno, retry bool) {
	if err == nil {
		return n, 0, false
	}
	e := toErrno(err)
	if e == EAGAIN {
		return 0, 0, true
	}
	return -1, e, false
}

// toErrno normalizes an error returned by internal/platform (always a bare
// unix.Errno, or nil) to our Errno type.
func toErrno(err error) Errno {
	if err == nil {
		return 0
	}
	if pe, ok := err.(platform.Errno); ok {
		return Errno(pe)
	}
	return EIO
}
