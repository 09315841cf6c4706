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
	"context"
	"net"
)

// GetAddrInfo resolves host to a set of V4/V6 addresses on the given port.
//
// The real getaddrinfo(3)/freeaddrinfo(3) pair (§4.A) requires either cgo or
// a hand-rolled resolver/stub file parser; neither golang.org/x/sys/unix nor
// any library in this module's dependency set exposes it directly. We run
// the resolution through net.DefaultResolver, which performs the same
// getaddrinfo-equivalent lookup (cgo-backed on the platforms where cgo is
// available, a pure-Go resolver otherwise) and gives GETADDRINFO Requests a
// real blocking call to offload onto a helper goroutine, matching how the
// rest of this package treats "blocking-safe" operations (§4.A).
func GetAddrInfo(ctx context.Context, host, port string) ([]interface{}, error) {
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}

	_, p, err := net.SplitHostPort(net.JoinHostPort(host, port))
	if err != nil {
		p = port
	}

	var portNum int
	for _, c := range p {
		if c < '0' || c > '9' {
			portNum = 0
			break
		}
		portNum = portNum*10 + int(c-'0')
	}

	out := make([]interface{}, 0, len(ips))
	for _, ip := range ips {
		if v4 := ip.IP.To4(); v4 != nil {
			var a [4]byte
			copy(a[:], v4)
			out = append(out, V4{IP: a, Port: portNum})
			continue
		}
		var a [16]byte
		copy(a[:], ip.IP.To16())
		out = append(out, V6{IP: a, Port: portNum})
	}
	return out, nil
}

// NtopV4 renders a packed IPv4 address as text, standing in for
// inet_ntop(AF_INET, ...) (§4.A).
func NtopV4(ip [4]byte) string {
	return net.IP(ip[:]).String()
}

// NtopV6 renders a packed IPv6 address as text, standing in for
// inet_ntop(AF_INET6, ...) (§4.A).
func NtopV6(ip [16]byte) string {
	return net.IP(ip[:]).String()
}

// Htons converts a 16-bit port number from host to network byte order, the
// way the source's htons(3) binding does (§4.A). Most callers here never
// need it directly since golang.org/x/sys/unix's Sockaddr types take
// host-order ints; nothing in this module calls it, and it is kept for
// parity with the platform shim's documented surface.
func Htons(v uint16) uint16 {
	return v<<8 | v>>8
}
