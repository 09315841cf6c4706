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
	"testing"

	"github.com/kylelemons/godebug/pretty"

	. "github.com/jacobsa/ogletest"
)

func TestRequest(t *testing.T) { RunTests(t) }

type RequestTest struct {
}

func init() { RegisterTestSuite(&RequestTest{}) }

func (t *RequestTest) ResultBlocksUntilComplete() {
	r := newRequest(OpRead, 3)

	done := make(chan struct{})
	var rc int
	var errno Errno
	go func() {
		rc, errno = r.Result()
		close(done)
	}()

	r.complete(5, 0)
	<-done

	ExpectEq(5, rc)
	ExpectEq(Errno(0), errno)
}

func (t *RequestTest) CompleteIsIdempotent() {
	r := newRequest(OpPread, 3)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.complete(n, 0)
		}(i)
	}
	wg.Wait()

	rc, errno := r.Result()
	ExpectEq(Errno(0), errno)
	// Whichever goroutine won, rc must be one of the attempted values and
	// every subsequent call must have been a no-op (no panic from closing
	// the done channel twice, and a single stable result below).
	rc2, errno2 := r.Result()
	ExpectEq(rc, rc2)
	ExpectEq(errno, errno2)
}

func (t *RequestTest) DeadlineForLinksSyntheticTimerToPrimary() {
	primary := newRequest(OpRecv, 4)
	deadline := newRequest(OpTimer, -1)
	deadline.deadlineFor = primary

	ExpectEq(primary, deadline.deadlineFor)
	ExpectEq(nil, primary.deadlineFor)
}

func (t *RequestTest) SuspendViaClassifiesKinds() {
	ExpectEq(viaTimer, OpTimer.suspendVia())
	ExpectEq(viaOffload, OpOpen.suspendVia())
	ExpectEq(viaOffload, OpClose.suspendVia())
	ExpectEq(viaOffload, OpBind.suspendVia())
	ExpectEq(viaOffload, OpListen.suspendVia())
	ExpectEq(viaOffload, OpGetaddrinfo.suspendVia())
	ExpectEq(viaPollRead, OpRead.suspendVia())
	ExpectEq(viaPollRead, OpPread.suspendVia())
	ExpectEq(viaPollRead, OpRecv.suspendVia())
	ExpectEq(viaPollRead, OpAccept.suspendVia())
	ExpectEq(viaPollWrite, OpWrite.suspendVia())
	ExpectEq(viaPollWrite, OpPwrite.suspendVia())
	ExpectEq(viaPollWrite, OpSend.suspendVia())
	ExpectEq(viaPollWrite, OpSendmsg.suspendVia())
	ExpectEq(viaPollWrite, OpConnect.suspendVia())
}

func (t *RequestTest) EachRequestGetsAUniqueID() {
	a := newRequest(OpRead, 1)
	b := newRequest(OpRead, 1)
	ExpectNe(a.id, b.id)
}

// result is the outcome shape used below purely so pretty.Compare can render a
// readable failure message naming both rc and errno, rather than ogletest's
// plain scalar mismatch output.
type result struct {
	RC    int
	Errno Errno
}

func (t *RequestTest) PrettyDiffDescribesOutcomeMismatches() {
	r := newRequest(OpPwrite, 9)
	r.complete(7, EIO)

	rc, errno := r.Result()
	got := result{RC: rc, Errno: errno}
	want := result{RC: 7, Errno: EIO}

	diff := pretty.Compare(want, got)
	ExpectEq("", diff)
}
