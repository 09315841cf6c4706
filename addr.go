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

	"github.com/olleolleolle/aio/internal/platform"
)

// Family discriminates the Address sum type (§6).
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
)

// Address is the normalized IPv4/IPv6 sum type described in §6: { V4{addr,
// port}, V6{addr, port, flowinfo, scope} }. Exactly one of V4/V6 is set,
// selected by Family. Use NewV4Address/NewV6Address to construct one, or
// the zero value's Family (FamilyV4) with a zero V4 as "unset".
type Address struct {
	Family Family
	V4     V4Addr
	V6     V6Addr
}

// V4Addr is the IPv4 member of the Address sum type.
type V4Addr struct {
	IP   [4]byte
	Port uint16
}

// V6Addr is the IPv6 member of the Address sum type.
type V6Addr struct {
	IP       [16]byte
	Port     uint16
	FlowInfo uint32
	Scope    uint32
}

// NewV4Address builds a FamilyV4 Address.
func NewV4Address(ip [4]byte, port uint16) Address {
	return Address{Family: FamilyV4, V4: V4Addr{IP: ip, Port: port}}
}

// NewV6Address builds a FamilyV6 Address.
func NewV6Address(ip [16]byte, port uint16, flowinfo, scope uint32) Address {
	return Address{Family: FamilyV6, V6: V6Addr{IP: ip, Port: port, FlowInfo: flowinfo, Scope: scope}}
}

func (a Address) String() string {
	switch a.Family {
	case FamilyV4:
		return fmt.Sprintf("%s:%d", platform.NtopV4(a.V4.IP), a.V4.Port)
	case FamilyV6:
		return fmt.Sprintf("[%s]:%d", platform.NtopV6(a.V6.IP), a.V6.Port)
	default:
		return "<invalid address>"
	}
}

// toPlatform converts to the value internal/platform's sockaddr helpers
// expect.
func (a Address) toPlatform() interface{} {
	switch a.Family {
	case FamilyV4:
		return platform.V4{IP: a.V4.IP, Port: int(a.V4.Port)}
	default:
		return platform.V6{IP: a.V6.IP, Port: int(a.V6.Port), FlowInfo: a.V6.FlowInfo, Scope: a.V6.Scope}
	}
}

// addressFromPlatform normalizes a value produced by
// internal/platform.FromSockaddr (itself standing in for inspecting
// ss_family on a raw sockaddr_storage, per §4.F) into our Address sum type.
func addressFromPlatform(v interface{}) (Address, error) {
	switch p := v.(type) {
	case platform.V4:
		return NewV4Address(p.IP, uint16(p.Port)), nil
	case platform.V6:
		return NewV6Address(p.IP, uint16(p.Port), p.FlowInfo, p.Scope), nil
	default:
		return Address{}, fmt.Errorf("aio: unrecognized platform address %T", v)
	}
}
