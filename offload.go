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

	"golang.org/x/sys/unix"

	"github.com/olleolleolle/aio/internal/platform"
)

// executeOffload runs the handful of Kinds that never return EAGAIN and
// never partially complete (§4.A): OPEN, CLOSE, BIND, LISTEN, GETADDRINFO.
// These have nothing for a Poller to register, so Scheduler.runOffload
// calls this directly from a helper goroutine instead of routing through
// executeRequest.
func executeOffload(req *Request) (rc int, errno Errno) {
	switch req.Kind {
	case OpOpen:
		fd, err := platform.Open(req.Path, req.Flags, req.OpenMode)
		if err != nil {
			return -1, toErrno(err)
		}
		if err := platform.SetNonblock(fd, true); err != nil {
			platform.Close(fd)
			return -1, toErrno(err)
		}
		req.AcceptedFd = fd
		return 0, 0

	case OpClose:
		err := platform.Close(req.Fd)
		if err != nil {
			return -1, toErrno(err)
		}
		return 0, 0

	case OpBind:
		sa, err := platform.ToSockaddr(req.Addr.toPlatform())
		if err != nil {
			return -1, toErrno(err)
		}
		if err := platform.Bind(req.Fd, sa); err != nil {
			return -1, toErrno(err)
		}
		return 0, 0

	case OpListen:
		if err := platform.Listen(req.Fd, req.Backlog); err != nil {
			return -1, toErrno(err)
		}
		return 0, 0

	case OpGetaddrinfo:
		addrs, err := platform.GetAddrInfo(context.Background(), req.Path, "0")
		if err != nil {
			return -1, EIO
		}
		if len(addrs) == 0 {
			return -1, EINVAL
		}
		a, cerr := addressFromPlatform(addrs[0])
		if cerr != nil {
			return -1, EINVAL
		}
		req.ResultAddr = a
		return 0, 0

	default:
		fatal("executeOffload: unexpected offload kind %v", req.Kind)
		return -1, EINVAL
	}
}

// connectOffload issues connect(2) on a non-blocking socket, used by
// Socket.Connect before the Backend submits a CONNECT Request to wait for
// writability. connect(2) itself never blocks on a non-blocking fd -- it
// either succeeds immediately (rare, same-host loopback) or returns
// EINPROGRESS -- so this runs directly on the calling Task's goroutine
// rather than via runOffload.
func connectOffload(fd int, addr Address) (rc int, errno Errno, inProgress bool) {
	sa, err := platform.ToSockaddr(addr.toPlatform())
	if err != nil {
		return -1, toErrno(err), false
	}

	if err := platform.Connect(fd, sa); err != nil {
		if err == unix.EINPROGRESS {
			return 0, 0, true
		}
		return -1, toErrno(err), false
	}
	return 0, 0, false
}
