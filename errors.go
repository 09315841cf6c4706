// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package aio

import (
	"fmt"
	"syscall"
)

// Errno is a typed kernel errno, returned verbatim from the platform shim
// and inspected by state machines to decide how an operation completes.
type Errno syscall.Errno

func (e Errno) Error() string { return syscall.Errno(e).Error() }

// Errnos corresponding to the kernel error numbers called out in spec §7.
// These may be treated specially by File and Socket state machines.
const (
	EIO        = Errno(syscall.EIO)
	ENOENT     = Errno(syscall.ENOENT)
	EBADF      = Errno(syscall.EBADF)
	EINVAL     = Errno(syscall.EINVAL)
	EAGAIN     = Errno(syscall.EAGAIN)
	EINTR      = Errno(syscall.EINTR)
	ETIMEDOUT  = Errno(syscall.ETIMEDOUT)
	ECONNRESET = Errno(syscall.ECONNRESET)
	EPIPE      = Errno(syscall.EPIPE)
	EADDRINUSE = Errno(syscall.EADDRINUSE)
	EACCES     = Errno(syscall.EACCES)
)

// OpError is the typed-error shape delivered by the "exceptions" error
// policy (§4.G, §7). Its payload names the attempted operation, per spec.
type OpError struct {
	Op  string // e.g. "pread", "connect"
	Fd  int
	Err Errno
}

func (e *OpError) Error() string {
	if e.Fd >= 0 {
		return fmt.Sprintf("aio: %s (fd %d): %s", e.Op, e.Fd, e.Err.Error())
	}
	return fmt.Sprintf("aio: %s: %s", e.Op, e.Err.Error())
}

func (e *OpError) Unwrap() error { return e.Err }

// ErrorPolicy is the process-wide choice, settable at startup and mutable
// mid-flight (affecting only subsequent ops), between return-code and
// exception style error delivery (§4.G).
type ErrorPolicy int

const (
	// ReturnCodes is the default: every op returns (rc, errno, ...) and the
	// caller inspects the result.
	ReturnCodes ErrorPolicy = iota

	// Exceptions causes the policy layer to return a typed *OpError instead.
	Exceptions
)

func (p ErrorPolicy) String() string {
	switch p {
	case ReturnCodes:
		return "return_codes"
	case Exceptions:
		return "exceptions"
	default:
		return fmt.Sprintf("ErrorPolicy(%d)", int(p))
	}
}

// deliver translates a completed (rc, errno) pair through the policy. Under
// ReturnCodes it is a no-op: callers already have rc and errno in hand.
// Under Exceptions, a non-zero errno is wrapped into an *OpError and rc is
// passed through; a zero errno is unconditional success regardless of rc
// (e.g. a short read is not an error).
func (p ErrorPolicy) deliver(op string, fd int, rc int, errno Errno) (int, error) {
	if errno == 0 {
		return rc, nil
	}

	if p == Exceptions {
		return rc, &OpError{Op: op, Fd: fd, Err: errno}
	}
	return rc, errno
}

// selfCheck is the sanity probe spec §9 calls out as underspecified: prove a
// freshly configured policy does not mistranslate an unambiguous success
// into an error. Run once whenever Config.SetErrorPolicy installs a policy.
func (p ErrorPolicy) selfCheck() {
	if rc, err := p.deliver("selfCheck", -1, 0, 0); err != nil || rc != 0 {
		panic(fmt.Sprintf("aio: ErrorPolicy %v failed selfCheck: (%d, %v)", p, rc, err))
	}
}

// fatal reports an unrecoverable runtime bug (§4.F, §7 category 4: kqueue
// allocation failure, unknown kevent filter, unexpected close(2) return) and
// terminates the process. It bypasses the configured ErrorPolicy entirely.
func fatal(format string, args ...interface{}) {
	getErrorLogger().Panicf("fatal: "+format, args...)
}
