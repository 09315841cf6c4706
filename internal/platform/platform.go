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

// Package platform is a thin typed wrapper over the POSIX and kernel-event
// syscalls the runtime needs (§4.A). It is a pure translation layer: no
// retry policy, no state machine, no business logic lives here. Every
// function is blocking-safe in the sense §4.A describes -- callers may be
// running on a goroutine that a Poller is about to park, and that's fine,
// because these calls either return immediately (EAGAIN included) or are
// meant to be run from a helper goroutine by Backend.
package platform

import (
	"golang.org/x/sys/unix"
)

// Errno re-exports unix.Errno so callers outside this package (notably
// package aio) never need to import golang.org/x/sys/unix directly.
type Errno = unix.Errno

// Open wraps open(2).
func Open(path string, flags int, mode uint32) (fd int, err error) {
	return unix.Open(path, flags, mode)
}

// Close wraps close(2).
func Close(fd int) error {
	return unix.Close(fd)
}

// Pread wraps pread(2): a positional read that never mutates the fd's
// implicit offset.
func Pread(fd int, buf []byte, offset int64) (n int, err error) {
	return unix.Pread(fd, buf, offset)
}

// Pwrite wraps pwrite(2).
func Pwrite(fd int, buf []byte, offset int64) (n int, err error) {
	return unix.Pwrite(fd, buf, offset)
}

// Read wraps read(2), using the fd's implicit offset.
func Read(fd int, buf []byte) (n int, err error) {
	return unix.Read(fd, buf)
}

// Write wraps write(2).
func Write(fd int, buf []byte) (n int, err error) {
	return unix.Write(fd, buf)
}

// Pipe wraps pipe(2).
func Pipe(fds []int) error {
	return unix.Pipe(fds)
}

// SetNonblock wraps fcntl(2)'s O_NONBLOCK toggle. Every fd this runtime
// hands to a Poller must be non-blocking, since readiness is advisory: a
// subsequent read/write may still return EAGAIN (§4.F retry policy).
func SetNonblock(fd int, nonblocking bool) error {
	return unix.SetNonblock(fd, nonblocking)
}

// Socket wraps socket(2).
func Socket(domain, typ, proto int) (fd int, err error) {
	return unix.Socket(domain, typ, proto)
}

// Listen wraps listen(2).
func Listen(fd, backlog int) error {
	return unix.Listen(fd, backlog)
}

// GetsockoptSOError wraps getsockopt(2) for SO_ERROR, used to discover
// whether a non-blocking connect(2) that has become writable succeeded
// (§3: "Connecting --(readiness+getsockopt SO_ERROR==0)--> Connected").
func GetsockoptSOError(fd int) (int, error) {
	return unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
}
