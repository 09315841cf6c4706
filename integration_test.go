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

package aio_test

import (
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"path"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jacobsa/timeutil"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/olleolleolle/aio"
)

func TestIntegration(t *testing.T) { RunTests(t) }

type IntegrationTest struct {
	dir    string
	poller aio.Poller
	cfg    *aio.Config
	sched  *aio.Scheduler
}

var _ TearDownInterface = &IntegrationTest{}

func init() { RegisterTestSuite(&IntegrationTest{}) }

func (t *IntegrationTest) SetUp(ti *TestInfo) {
	var err error
	t.dir, err = ioutil.TempDir("", "aio_integration_test")
	AssertEq(nil, err)

	t.poller, err = aio.NewPlatformPoller()
	AssertEq(nil, err)

	t.cfg = aio.NewConfig()
	t.sched = aio.NewScheduler(t.cfg, timeutil.RealClock(), t.poller)
}

func (t *IntegrationTest) TearDown() {
	t.poller.Close()
	os.RemoveAll(t.dir)
}

// File open/pwrite/pread/close round-trips the data written (§8 scenario 1).
func (t *IntegrationTest) FileRoundTrip() {
	p := path.Join(t.dir, "roundtrip")

	var readBack []byte
	var openErr, writeErr, readErr, closeErr error

	t.sched.Spawn(context.Background(), func(ctx context.Context) {
		f, err := aio.OpenFile(ctx, t.sched, t.cfg, p, unix.O_RDWR|unix.O_CREAT, 0644, 0)
		openErr = err
		if err != nil {
			return
		}

		_, _, writeErr = f.Write(ctx, 0, []byte("hello, aio"), 0)

		buf := make([]byte, 32)
		_, data, _, err := f.Pread(ctx, len("hello, aio"), 0, buf, 0)
		readErr = err
		readBack = data

		_, closeErr = f.Close(ctx, 0)
	})

	t.sched.RunUntilIdle()

	AssertEq(nil, openErr)
	AssertEq(nil, writeErr)
	AssertEq(nil, readErr)
	AssertEq(nil, closeErr)
	ExpectEq("hello, aio", string(readBack))
}

// A pipe write smaller than the requested read size still completes the
// Request once the reader's registration fires; no data is lost across the
// re-registration that follows an EAGAIN or a short read (§8 scenario 2).
func (t *IntegrationTest) ShortReadDrivesReRegistration() {
	r, w, err := os.Pipe()
	AssertEq(nil, err)
	defer w.Close()

	var got []byte
	var readErr error

	t.sched.Spawn(context.Background(), func(ctx context.Context) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			w.Write([]byte("partial"))
		}()

		f := wrapFd(t, r)
		buf := make([]byte, 4096)
		n, err := f.Read(ctx, buf, 0)
		readErr = err
		got = buf[:n]
	})

	t.sched.RunUntilIdle()

	AssertEq(nil, readErr)
	ExpectEq("partial", string(got))
}

// A real loopback client dialing concurrently with the listener's accept
// loop is served without the scheduler serializing unrelated Tasks (§8
// scenario 3). The client lives outside the scheduler entirely (plain
// net.Dial from a regular goroutine) since nothing in this runtime needs to
// originate the connection for the property under test.
func (t *IntegrationTest) AcceptLoopServesConcurrentConnections() {
	const n = 3
	acceptedCount := 0
	portCh := make(chan uint16, 1)

	t.sched.Spawn(context.Background(), func(ctx context.Context) {
		listener, err := aio.NewSocket(t.sched, t.cfg, unix.AF_INET, unix.SOCK_STREAM, 0)
		AssertEq(nil, err)

		addr := aio.NewV4Address([4]byte{127, 0, 0, 1}, 0)
		_, err = listener.Bind(ctx, addr, 0)
		AssertEq(nil, err)
		_, err = listener.Listen(ctx, 16, 0)
		AssertEq(nil, err)

		local, err := listener.LocalAddr()
		AssertEq(nil, err)
		portCh <- local.V4.Port

		for i := 0; i < n; i++ {
			_, _, conn, err := listener.Accept(ctx, 0)
			if err == nil {
				acceptedCount++
				conn.Close(ctx, 0)
			}
		}
	})

	go func() {
		port := <-portCh
		for i := 0; i < n; i++ {
			c, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
			if err == nil {
				c.Close()
			}
		}
	}()

	t.sched.RunUntilIdle()

	ExpectEq(n, acceptedCount)
}

// Recv against a deadline on a socket that will never receive data times
// out with ETIMEDOUT rather than hanging forever (§8 scenario 4).
func (t *IntegrationTest) RecvTimesOutWithoutData() {
	excCfg := aio.NewConfig(aio.WithErrorPolicy(aio.Exceptions))
	portCh := make(chan uint16, 1)
	var errno error

	t.sched.Spawn(context.Background(), func(ctx context.Context) {
		listener, err := aio.NewSocket(t.sched, excCfg, unix.AF_INET, unix.SOCK_STREAM, 0)
		AssertEq(nil, err)

		addr := aio.NewV4Address([4]byte{127, 0, 0, 1}, 0)
		_, err = listener.Bind(ctx, addr, 0)
		AssertEq(nil, err)
		_, err = listener.Listen(ctx, 1, 0)
		AssertEq(nil, err)

		local, err := listener.LocalAddr()
		AssertEq(nil, err)
		portCh <- local.V4.Port

		_, _, conn, err := listener.Accept(ctx, 0)
		AssertEq(nil, err)

		// The client below never writes anything, so this recv has nothing
		// to read and must time out rather than hang.
		buf := make([]byte, 16)
		_, _, _, err = conn.Recv(ctx, buf, 0, 50*time.Millisecond)
		errno = err
	})

	go func() {
		port := <-portCh
		c, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			defer c.Close()
			time.Sleep(200 * time.Millisecond)
		}
	}()

	t.sched.RunUntilIdle()

	AssertNe(nil, errno)
	opErr, ok := errno.(*aio.OpError)
	AssertTrue(ok)
	ExpectEq(aio.ETIMEDOUT, opErr.Err)
}

// Ten tasks each sleeping the same short duration all complete within a
// wall-clock bound close to that duration, not N times it -- the scheduler
// does not serialize independent sleeps (§8 scenario 5).
func (t *IntegrationTest) ConcurrentSleepsCompleteTogether() {
	const n = 10
	const sleepMs = 30

	start := time.Now()
	for i := 0; i < n; i++ {
		t.sched.Spawn(context.Background(), func(ctx context.Context) {
			aio.Sleep(ctx, t.sched, aio.Duration{Millis: sleepMs})
		})
	}
	t.sched.RunUntilIdle()
	elapsed := time.Since(start)

	ExpectTrue(elapsed < n*sleepMs*time.Millisecond)
}

// Writing to a File opened read-only is rejected with EBADF without ever
// reaching a syscall (§8 scenario 6, illegal-state rejection).
func (t *IntegrationTest) IllegalWriteToReadOnlyFileIsRejected() {
	p := path.Join(t.dir, "readonly")
	AssertEq(nil, ioutil.WriteFile(p, []byte("x"), 0644))

	var writeErr error
	t.sched.Spawn(context.Background(), func(ctx context.Context) {
		f, err := aio.OpenFile(ctx, t.sched, t.cfg, p, unix.O_RDONLY, 0, 0)
		AssertEq(nil, err)

		_, _, writeErr = f.Write(ctx, 0, []byte("y"), 0)
		f.Close(ctx, 0)
	})
	t.sched.RunUntilIdle()

	AssertNe(nil, writeErr)
}

func wrapFd(t *IntegrationTest, f *os.File) *aio.File {
	// os.File's finalizer closes its fd on GC and cannot be cleared from
	// here, so the returned File gets a duplicate of f's fd and f is closed,
	// the same way File.Fallocate keeps its transient os.File wrapper away
	// from the File's own fd.
	fd, err := unix.Dup(int(f.Fd()))
	AssertEq(nil, err)
	f.Close()
	ff, err := aio.AdoptFile(t.sched, t.cfg, fd, aio.FileReadOnly)
	AssertEq(nil, err)
	return ff
}
