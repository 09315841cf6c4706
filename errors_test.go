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

func TestErrors(t *testing.T) { RunTests(t) }

type ErrorPolicyTest struct {
}

func init() { RegisterTestSuite(&ErrorPolicyTest{}) }

func (t *ErrorPolicyTest) ReturnCodesPassesThroughSuccess() {
	rc, err := ReturnCodes.deliver("pread", 3, 5, 0)
	ExpectEq(5, rc)
	ExpectEq(nil, err)
}

func (t *ErrorPolicyTest) ReturnCodesPassesThroughErrno() {
	rc, err := ReturnCodes.deliver("pread", 3, -1, EBADF)
	ExpectEq(-1, rc)
	ExpectEq(EBADF, err)
}

func (t *ErrorPolicyTest) ExceptionsWrapsErrno() {
	rc, err := Exceptions.deliver("connect", 7, -1, ECONNRESET)
	ExpectEq(-1, rc)
	AssertNe(nil, err)

	opErr, ok := err.(*OpError)
	AssertTrue(ok)
	ExpectEq("connect", opErr.Op)
	ExpectEq(7, opErr.Fd)
	ExpectEq(ECONNRESET, opErr.Err)
}

func (t *ErrorPolicyTest) ExceptionsPassesThroughSuccessRegardlessOfRC() {
	// A short read (rc < requested) is not an error.
	rc, err := Exceptions.deliver("read", 3, 2, 0)
	ExpectEq(2, rc)
	ExpectEq(nil, err)
}

func (t *ErrorPolicyTest) SelfCheckPassesForBothPolicies() {
	ReturnCodes.selfCheck()
	Exceptions.selfCheck()
}

func (t *ErrorPolicyTest) StringsAreHumanReadable() {
	ExpectEq("return_codes", ReturnCodes.String())
	ExpectEq("exceptions", Exceptions.String())
}

func (t *ErrorPolicyTest) OpErrorFormatsWithAndWithoutFd() {
	withFd := &OpError{Op: "pread", Fd: 4, Err: EIO}
	ExpectThat(withFd.Error(), HasSubstr("pread"))
	ExpectThat(withFd.Error(), HasSubstr("4"))

	withoutFd := &OpError{Op: "open", Fd: -1, Err: ENOENT}
	ExpectThat(withoutFd.Error(), HasSubstr("open"))
}
