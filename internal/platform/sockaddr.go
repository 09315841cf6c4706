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

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// V4 is the packed IPv4 address/port pair, ready for unix.Bind/Connect.
type V4 struct {
	IP   [4]byte
	Port int
}

// V6 is the packed IPv6 address/port pair, with the flow-info and scope
// fields of the §6 address model. Scope maps to unix.SockaddrInet6's ZoneId;
// unix.SockaddrInet6 has no flow-info field, so ToSockaddr drops FlowInfo and
// FromSockaddr always leaves it zero.
type V6 struct {
	IP       [16]byte
	Port     int
	FlowInfo uint32
	Scope    uint32
}

// ToSockaddr builds the golang.org/x/sys/unix Sockaddr for v (a V4 or V6),
// which internally holds the packed sockaddr_in/in6 the kernel expects.
func ToSockaddr(v interface{}) (unix.Sockaddr, error) {
	switch a := v.(type) {
	case V4:
		return &unix.SockaddrInet4{Port: a.Port, Addr: a.IP}, nil
	case V6:
		return &unix.SockaddrInet6{Port: a.Port, ZoneId: a.Scope, Addr: a.IP}, nil
	default:
		return nil, fmt.Errorf("platform: unsupported address type %T", v)
	}
}

// FromSockaddr normalizes a sockaddr returned by the kernel (via accept(2),
// getsockname(2), recvfrom(2)) to a V4 or V6 value by inspecting its
// concrete type, standing in for inspecting ss_family on raw
// sockaddr_storage (§4.F: "normalized to IPv4 or IPv6 by inspecting
// ss_family").
func FromSockaddr(sa unix.Sockaddr) (v interface{}, err error) {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return V4{IP: s.Addr, Port: s.Port}, nil
	case *unix.SockaddrInet6:
		return V6{IP: s.Addr, Port: s.Port, Scope: s.ZoneId}, nil
	default:
		return nil, fmt.Errorf("platform: unsupported sockaddr type %T", sa)
	}
}

// Bind wraps bind(2).
func Bind(fd int, sa unix.Sockaddr) error { return unix.Bind(fd, sa) }

// Connect wraps connect(2). On a non-blocking socket this returns
// EINPROGRESS immediately; the caller waits for writability and then calls
// GetsockoptSOError (§3).
func Connect(fd int, sa unix.Sockaddr) error { return unix.Connect(fd, sa) }

// Accept4 wraps accept4(2) with SOCK_NONBLOCK so the accepted fd is
// immediately suitable for registration with a Poller.
func Accept4(fd int) (nfd int, sa unix.Sockaddr, err error) {
	return unix.Accept4(fd, unix.SOCK_NONBLOCK)
}

// Send wraps send(2).
func Send(fd int, buf []byte, flags int) (int, error) {
	return unix.Send(fd, buf, flags)
}

// Sendto wraps sendto(2).
func Sendto(fd int, buf []byte, flags int, sa unix.Sockaddr) error {
	return unix.Sendto(fd, buf, flags, sa)
}

// SendmsgN wraps sendmsg(2), returning the number of bytes of the primary
// buffer accepted by the kernel.
func SendmsgN(fd int, buf, oob []byte, sa unix.Sockaddr, flags int) (int, error) {
	return unix.SendmsgN(fd, buf, oob, sa, flags)
}

// Recvfrom wraps recvfrom(2).
func Recvfrom(fd int, buf []byte, flags int) (n int, from unix.Sockaddr, err error) {
	return unix.Recvfrom(fd, buf, flags)
}
