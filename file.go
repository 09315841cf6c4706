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
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jacobsa/syncutil"

	fallocate "github.com/detailyang/go-fallocate"

	"github.com/olleolleolle/aio/internal/platform"
)

// FileState is the tagged variant §9 calls for instead of a virtual
// dispatch hierarchy: one enum tag, one switch-based operation table per
// method, rather than four State classes.
type FileState int

const (
	FileClosed FileState = iota
	FileReadOnly
	FileWriteOnly
	FileReadWrite
)

func (s FileState) String() string {
	switch s {
	case FileClosed:
		return "closed"
	case FileReadOnly:
		return "read_only"
	case FileWriteOnly:
		return "write_only"
	case FileReadWrite:
		return "read_write"
	default:
		return "unknown"
	}
}

func (s FileState) readable() bool { return s == FileReadOnly || s == FileReadWrite }
func (s FileState) writable() bool { return s == FileWriteOnly || s == FileReadWrite }

// File is the per-descriptor state machine for a regular file (§3, §4.F).
// It owns the fd exclusively: exactly one File ever references a given
// open fd, and the fd is released exactly once, on a successful close.
type File struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	state FileState
	// GUARDED_BY(mu)
	fd int

	backend *Backend
	policy  *Config
	owner   uint64
}

func (f *File) checkInvariants() {
	if f.state == FileClosed && f.fd != -1 {
		panic("aio: File in Closed state retains a live fd")
	}
	if f.state != FileClosed && f.fd < 0 {
		panic("aio: File in a non-Closed state has no fd")
	}
}

// OpenFile implements File.open (§6): flags follow the usual O_RDONLY /
// O_WRONLY / O_RDWR (optionally | O_CREAT | O_TRUNC | ...) encoding; the
// resulting State is chosen from the access-mode bits.
func OpenFile(ctx context.Context, sched *Scheduler, cfg *Config, path string, flags int, mode uint32, timeout time.Duration) (*File, error) {
	b := NewBackend(sched)
	fd, errno := b.open(ctx, path, flags, mode, timeout)
	if errno != 0 {
		_, err := cfg.ErrorPolicy().deliver("open", -1, -1, errno)
		return nil, err
	}

	f := &File{
		state:   accessModeState(flags),
		fd:      fd,
		backend: b,
		policy:  cfg,
		owner:   currentGoroutineID(),
	}
	f.mu = syncutil.NewInvariantMutex(f.checkInvariants)
	return f, nil
}

// AdoptFile wraps an already-open, non-blocking-capable fd (e.g. one end of
// a pipe obtained via os.Pipe) in a File with the given initial state,
// without going through File.open's own OPEN Request. Useful for composing
// this runtime with fds obtained elsewhere (supplemented feature, see
// SPEC_FULL.md).
func AdoptFile(sched *Scheduler, cfg *Config, fd int, state FileState) (*File, error) {
	if err := platform.SetNonblock(fd, true); err != nil {
		return nil, err
	}

	f := &File{
		state:   state,
		fd:      fd,
		backend: NewBackend(sched),
		policy:  cfg,
		owner:   currentGoroutineID(),
	}
	f.mu = syncutil.NewInvariantMutex(f.checkInvariants)
	return f, nil
}

func accessModeState(flags int) FileState {
	const accessModeMask = 0x3 // O_RDONLY=0, O_WRONLY=1, O_RDWR=2 on every POSIX platform this runtime targets
	switch flags & accessModeMask {
	case 1:
		return FileWriteOnly
	case 2:
		return FileReadWrite
	default:
		return FileReadOnly
	}
}

// Close implements File.close (§6, §4.F): transitions any non-Closed state
// to Closed with fd = -1. A close(2) return that is neither 0, EBADF,
// EINTR, nor EIO is an unrecoverable runtime bug (§4.F, §7 category 4) and
// aborts the process rather than being reported to the caller.
func (f *File) Close(ctx context.Context, timeout time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == FileClosed {
		return f.deliver("close", -1, -1, EBADF)
	}

	fd := f.fd
	errno := f.backend.close(ctx, fd, timeout)
	switch errno {
	case 0, EBADF, EINTR, EIO:
		// fall through to state transition; EINTR/EIO on close still releases
		// the fd on every POSIX implementation this runtime targets, so the
		// state machine advances regardless of errno (§4.F).
	default:
		fatal("File.Close: unexpected close(2) result fd=%d errno=%v", fd, errno)
	}

	f.state = FileClosed
	f.fd = -1
	return f.deliver("close", fd, 0, errno)
}

// Read implements File.read for the implicit-offset form (§6): rejects with
// EBADF on a state that cannot read, otherwise submits a READ Request.
func (f *File) Read(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	f.mu.Lock()
	state, fd := f.state, f.fd
	f.mu.Unlock()

	if !state.readable() {
		return f.deliver("read", fd, -1, EBADF)
	}

	n, errno := f.backend.read(ctx, fd, buf, timeout)
	return f.deliver("read", fd, n, errno)
}

// Pread implements File.read's positional form (§6): returns
// (rc, data, new_offset, err) with new_offset advancing by rc on success and
// left unchanged otherwise (§8 testable property).
func (f *File) Pread(ctx context.Context, nbytes int, offset int64, buf []byte, timeout time.Duration) (int, []byte, int64, error) {
	f.mu.Lock()
	state, fd := f.state, f.fd
	f.mu.Unlock()

	if !state.readable() {
		rc, err := f.deliver("pread", fd, -1, EBADF)
		return rc, nil, offset, err
	}

	if buf == nil {
		buf = make([]byte, nbytes)
	}

	n, errno := f.backend.pread(ctx, fd, buf[:nbytes], offset, timeout)
	newOffset := offset
	if n > 0 {
		newOffset = offset + int64(n)
	}

	rc, err := f.deliver("pread", fd, n, errno)
	if err != nil {
		return rc, nil, offset, err
	}
	return rc, buf[:n], newOffset, nil
}

// Write implements File.write's positional form (§6): returns
// (rc, errno, new_offset).
func (f *File) Write(ctx context.Context, offset int64, data []byte, timeout time.Duration) (int, int64, error) {
	f.mu.Lock()
	state, fd := f.state, f.fd
	f.mu.Unlock()

	if !state.writable() {
		rc, err := f.deliver("write", fd, -1, EBADF)
		return rc, offset, err
	}

	n, errno := f.backend.pwrite(ctx, fd, data, offset, timeout)
	newOffset := offset
	if n > 0 {
		newOffset = offset + int64(n)
	}

	rc, err := f.deliver("write", fd, n, errno)
	return rc, newOffset, err
}

// Fallocate preallocates [offset, offset+length) for the file (supplemented
// feature, see SPEC_FULL.md: a bounded, non-partial fd operation -- unlike
// read/write there is nothing to retry on EAGAIN, so it runs synchronously
// on the calling Task's goroutine rather than through a Request).
func (f *File) Fallocate(offset, length int64) error {
	f.mu.Lock()
	state, fd := f.state, f.fd
	f.mu.Unlock()

	if state == FileClosed {
		_, err := f.deliver("fallocate", fd, -1, EBADF)
		return err
	}

	// os.NewFile installs a finalizer (on its unexported inner file, so it
	// cannot be cleared from here) that closes the fd when the wrapper is
	// collected. Hand the wrapper a duplicate of fd and close it here, so
	// neither this call nor a later GC can close fd out from under the File.
	dupFd, err := unix.Dup(fd)
	if err != nil {
		_, derr := f.deliver("fallocate", fd, -1, toErrno(err))
		return derr
	}
	osFile := os.NewFile(uintptr(dupFd), "")
	defer osFile.Close()
	if err := fallocate.Fallocate(osFile, offset, length); err != nil {
		_, derr := f.deliver("fallocate", fd, -1, toErrno(err))
		return derr
	}
	_, err = f.deliver("fallocate", fd, 0, 0)
	return err
}

// State reports the File's current state, for tests and diagnostics.
func (f *File) State() FileState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *File) deliver(op string, fd, rc int, errno Errno) (int, error) {
	f.policy.checkThread("File", f.owner, currentGoroutineID())
	return f.policy.ErrorPolicy().deliver(op, fd, rc, errno)
}
