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
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestAddr(t *testing.T) { RunTests(t) }

type AddrTest struct {
}

func init() { RegisterTestSuite(&AddrTest{}) }

func (t *AddrTest) V4RoundTripsThroughPlatform() {
	addr := NewV4Address([4]byte{127, 0, 0, 1}, 8080)

	p := addr.toPlatform()
	back, err := addressFromPlatform(p)
	AssertEq(nil, err)

	ExpectEq(FamilyV4, back.Family)
	ExpectEq(addr.V4.IP, back.V4.IP)
	ExpectEq(addr.V4.Port, back.V4.Port)
}

func (t *AddrTest) V6RoundTripsThroughPlatform() {
	ip := [16]byte{0: 0x20, 1: 0x01, 15: 0x01}
	addr := NewV6Address(ip, 443, 7, 2)

	p := addr.toPlatform()
	back, err := addressFromPlatform(p)
	AssertEq(nil, err)

	ExpectEq(FamilyV6, back.Family)
	ExpectEq(addr.V6.IP, back.V6.IP)
	ExpectEq(addr.V6.Port, back.V6.Port)
	ExpectEq(addr.V6.FlowInfo, back.V6.FlowInfo)
	ExpectEq(addr.V6.Scope, back.V6.Scope)
}

func (t *AddrTest) UnrecognizedPlatformValueIsAnError() {
	_, err := addressFromPlatform("not a platform address")
	AssertNe(nil, err)
}

func (t *AddrTest) V4StringFormat() {
	addr := NewV4Address([4]byte{10, 0, 0, 5}, 22)
	ExpectEq("10.0.0.5:22", addr.String())
}

func (t *AddrTest) V6StringIsBracketed() {
	ip := [16]byte{0: 0xfe, 1: 0x80, 15: 0x01}
	addr := NewV6Address(ip, 22, 0, 0)
	ExpectThat(addr.String(), HasSubstr("]:22"))
}
