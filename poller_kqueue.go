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

//go:build darwin || freebsd || netbsd || openbsd

package aio

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/olleolleolle/aio/internal/fdtable"
)

// kqueuePoller is the BSD/Darwin half of the portable seam §9 calls for. It
// multiplexes read and write readiness plus one-shot timers on a single
// kqueue(2) descriptor, and can be woken out of a blocked Poll by writing to
// a self-pipe -- the same trick used throughout the netpoll implementations
// in the wild (gnet, evio) to bound wake latency without a busy loop.
type kqueuePoller struct {
	kq int

	changes ChangeList
	fds     *fdtable.Table

	timerMu  sync.Mutex
	timers   map[int]*Request
	nextIdent int

	wakeR int
	wakeW int
}

// NewPlatformPoller returns the Poller implementation appropriate for the
// build platform -- here, kqueue. Callers that don't care which backend
// they're getting (every sample, most tests) should use this instead of
// naming NewKqueuePoller/NewEpollPoller directly.
func NewPlatformPoller() (Poller, error) {
	return NewKqueuePoller()
}

// NewKqueuePoller opens a fresh kqueue descriptor and wake pipe.
func NewKqueuePoller() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}

	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		unix.Close(kq)
		return nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(kq)
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}

	p := &kqueuePoller{
		kq:        kq,
		fds:       fdtable.New(),
		timers:    make(map[int]*Request),
		nextIdent: 1 << 24, // well above any plausible real fd, to keep timer idents visually distinct in logs
		wakeR:     fds[0],
		wakeW:     fds[1],
	}

	if _, err := unix.Kevent(kq, []unix.Kevent_t{{
		Ident:  uint64(p.wakeR),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD,
	}}, nil, nil); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

func (p *kqueuePoller) RegisterRead(fd int, req *Request) error {
	p.fds.PutRead(fd, req)
	p.changes.add(changeOp{fd: fd, filter: filterRead, enable: true})
	return nil
}

func (p *kqueuePoller) RegisterWrite(fd int, req *Request) error {
	p.fds.PutWrite(fd, req)
	p.changes.add(changeOp{fd: fd, filter: filterWrite, enable: true})
	return nil
}

func (p *kqueuePoller) RegisterTimer(d time.Duration, req *Request) error {
	p.timerMu.Lock()
	ident := p.nextIdent
	p.nextIdent++
	p.timers[ident] = req
	p.timerMu.Unlock()

	p.changes.add(changeOp{fd: ident, filter: filterTimer, enable: true, dur: d})
	return nil
}

func (p *kqueuePoller) CancelFd(fd int) {
	p.fds.Drop(fd)
	p.changes.add(changeOp{fd: fd, filter: filterRead, enable: false})
	p.changes.add(changeOp{fd: fd, filter: filterWrite, enable: false})
}

func (p *kqueuePoller) Wake() {
	// Best-effort: if the pipe is full, Poll is already guaranteed to wake.
	unix.Write(p.wakeW, []byte{0})
}

func (p *kqueuePoller) Close() error {
	unix.Close(p.wakeR)
	unix.Close(p.wakeW)
	return unix.Close(p.kq)
}

func toKevent(op changeOp) unix.Kevent_t {
	var kev unix.Kevent_t
	kev.Ident = uint64(op.fd)

	switch op.filter {
	case filterRead:
		kev.Filter = unix.EVFILT_READ
	case filterWrite:
		kev.Filter = unix.EVFILT_WRITE
	case filterTimer:
		kev.Filter = unix.EVFILT_TIMER
		kev.Data = op.dur.Milliseconds()
	default:
		fatal(unknownFilterMessage(int32(op.filter)))
	}

	if op.enable {
		kev.Flags = unix.EV_ADD | unix.EV_ONESHOT
	} else {
		kev.Flags = unix.EV_DELETE
	}
	return kev
}

// Poll implements §4.D's step 3/4: flush pending registrations, block for at
// most timeout, then translate whatever fired back into completed Requests.
func (p *kqueuePoller) Poll(timeout time.Duration) ([]*Request, error) {
	pending := p.changes.drain()
	kevs := make([]unix.Kevent_t, 0, len(pending))
	for _, op := range pending {
		kevs = append(kevs, toKevent(op))
	}

	events := make([]unix.Kevent_t, MaxEvents+1)
	ts := unix.NsecToTimespec(timeout.Nanoseconds())

	n, err := unix.Kevent(p.kq, kevs, events, &ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	var completed []*Request
	for i := 0; i < n; i++ {
		kev := events[i]
		ident := int(kev.Ident)

		if ident == p.wakeR {
			drainWakePipe(p.wakeR)
			continue
		}

		switch kev.Filter {
		case unix.EVFILT_READ:
			cb, ok := p.fds.TakeRead(ident)
			if !ok {
				continue
			}
			req := cb.(*Request)
			completed = append(completed, finishOrRearm(p, req, ident, false)...)

		case unix.EVFILT_WRITE:
			cb, ok := p.fds.TakeWrite(ident)
			if !ok {
				continue
			}
			req := cb.(*Request)
			completed = append(completed, finishOrRearm(p, req, ident, true)...)

		case unix.EVFILT_TIMER:
			p.timerMu.Lock()
			req, ok := p.timers[ident]
			delete(p.timers, ident)
			p.timerMu.Unlock()
			if ok {
				req.complete(0, 0)
				completed = append(completed, req)
			}

		default:
			fatal(unknownFilterMessage(int32(kev.Filter)))
		}
	}

	return completed, nil
}

// finishOrRearm runs the Request's syscall now that the kernel says fd is
// ready, and re-registers for another shot if the syscall nonetheless
// returned EAGAIN (§4.F: readiness is advisory, never surfaced as an error).
func finishOrRearm(p *kqueuePoller, req *Request, fd int, write bool) []*Request {
	rc, errno, retry := executeRequest(req)
	if retry {
		if write {
			p.RegisterWrite(fd, req)
		} else {
			p.RegisterRead(fd, req)
		}
		return nil
	}
	req.complete(rc, errno)
	return []*Request{req}
}

func drainWakePipe(fd int) {
	var buf [64]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}
