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

//go:build linux

package aio

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/olleolleolle/aio/internal/fdtable"
)

// epollPoller is the Linux half of the portable seam §9 calls for. Read and
// write readiness are multiplexed on one epoll instance with EPOLLONESHOT,
// matching kqueuePoller's one-shot-per-direction semantics exactly. Timers
// are backed by one throwaway timerfd apiece rather than a wheel, since
// §3 never requires more than a handful of outstanding timers at once and a
// timerfd composes cleanly with epoll_wait's single readiness loop.
type epollPoller struct {
	epfd int

	changes ChangeList
	fds     *fdtable.Table

	timerMu  sync.Mutex
	timerFds map[int]*Request

	wakeFd int
}

// NewPlatformPoller returns the Poller implementation appropriate for the
// build platform -- here, epoll. Callers that don't care which backend
// they're getting (every sample, most tests) should use this instead of
// naming NewKqueuePoller/NewEpollPoller directly.
func NewPlatformPoller() (Poller, error) {
	return NewEpollPoller()
}

// NewEpollPoller opens a fresh epoll instance and wake eventfd.
func NewEpollPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}

	p := &epollPoller{
		epfd:     epfd,
		fds:      fdtable.New(),
		timerFds: make(map[int]*Request),
		wakeFd:   wakeFd,
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFd),
	}); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

func (p *epollPoller) RegisterRead(fd int, req *Request) error {
	p.fds.PutRead(fd, req)
	p.changes.add(changeOp{fd: fd, filter: filterRead, enable: true})
	return nil
}

func (p *epollPoller) RegisterWrite(fd int, req *Request) error {
	p.fds.PutWrite(fd, req)
	p.changes.add(changeOp{fd: fd, filter: filterWrite, enable: true})
	return nil
}

func (p *epollPoller) RegisterTimer(d time.Duration, req *Request) error {
	tfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return err
	}

	spec := unix.ItimerSpec{
		Value: unix.NsecToTimespec(d.Nanoseconds()),
	}
	if spec.Value.Sec == 0 && spec.Value.Nsec == 0 {
		// timerfd treats an all-zero value as "disarm"; round up to the
		// smallest representable duration so a zero-length timer still fires.
		spec.Value.Nsec = 1
	}
	if err := unix.TimerfdSettime(tfd, 0, &spec, nil); err != nil {
		unix.Close(tfd)
		return err
	}

	p.timerMu.Lock()
	p.timerFds[tfd] = req
	p.timerMu.Unlock()

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, tfd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLONESHOT,
		Fd:     int32(tfd),
	}); err != nil {
		p.timerMu.Lock()
		delete(p.timerFds, tfd)
		p.timerMu.Unlock()
		unix.Close(tfd)
		return err
	}

	return nil
}

func (p *epollPoller) CancelFd(fd int) {
	p.fds.Drop(fd)
	unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wake() {
	var buf [8]byte
	buf[0] = 1
	unix.Write(p.wakeFd, buf[:])
}

func (p *epollPoller) Close() error {
	unix.Close(p.wakeFd)
	return unix.Close(p.epfd)
}

func epollCtlFor(epfd int, op changeOp) error {
	var events uint32
	switch op.filter {
	case filterRead:
		events = unix.EPOLLIN | unix.EPOLLONESHOT
	case filterWrite:
		events = unix.EPOLLOUT | unix.EPOLLONESHOT
	default:
		fatal(unknownFilterMessage(int32(op.filter)))
	}

	ctlOp := unix.EPOLL_CTL_MOD
	if op.enable {
		ctlOp = unix.EPOLL_CTL_ADD
	}

	ev := &unix.EpollEvent{Events: events, Fd: int32(op.fd)}
	if err := unix.EpollCtl(epfd, ctlOp, op.fd, ev); err != nil {
		// The fd may already be registered for the opposite direction; MOD
		// widens its interest set instead of ADD-ing a duplicate registration.
		if ctlOp == unix.EPOLL_CTL_ADD {
			return unix.EpollCtl(epfd, unix.EPOLL_CTL_MOD, op.fd, ev)
		}
		return err
	}
	return nil
}

// Poll implements §4.D's step 3/4 for epoll: flush pending registrations,
// block for at most timeout, then translate whatever fired back into
// completed Requests.
func (p *epollPoller) Poll(timeout time.Duration) ([]*Request, error) {
	var completed []*Request
	pending := p.changes.drain()
	for _, op := range pending {
		if err := epollCtlFor(p.epfd, op); err != nil {
			if err == unix.EPERM {
				// epoll refuses always-ready fds such as regular files: run now.
				write := op.filter == filterWrite
				take := p.fds.TakeRead
				if write {
					take = p.fds.TakeWrite
				}
				if cb, ok := take(op.fd); ok {
					completed = append(completed, finishOrRearmEpoll(p, cb.(*Request), op.fd, write)...)
					p.Wake()
				}
				continue
			}
			getErrorLogger().Printf("epoll_ctl failed for fd %d: %v", op.fd, err)
		}
	}

	events := make([]unix.EpollEvent, MaxEvents+1)
	n, err := unix.EpollWait(p.epfd, events, int(timeout.Milliseconds()))
	if err != nil {
		if err == unix.EINTR {
			return completed, nil
		}
		return nil, err
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)

		if fd == p.wakeFd {
			var buf [8]byte
			unix.Read(p.wakeFd, buf[:])
			continue
		}

		p.timerMu.Lock()
		req, isTimer := p.timerFds[fd]
		if isTimer {
			delete(p.timerFds, fd)
		}
		p.timerMu.Unlock()

		if isTimer {
			var buf [8]byte
			unix.Read(fd, buf[:])
			unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
			unix.Close(fd)
			req.complete(0, 0)
			completed = append(completed, req)
			continue
		}

		readable := events[i].Events&unix.EPOLLIN != 0
		writable := events[i].Events&unix.EPOLLOUT != 0

		if readable {
			if cb, ok := p.fds.TakeRead(fd); ok {
				completed = append(completed, finishOrRearmEpoll(p, cb.(*Request), fd, false)...)
			}
		}
		if writable {
			if cb, ok := p.fds.TakeWrite(fd); ok {
				completed = append(completed, finishOrRearmEpoll(p, cb.(*Request), fd, true)...)
			}
		}
	}

	return completed, nil
}

func finishOrRearmEpoll(p *epollPoller, req *Request, fd int, write bool) []*Request {
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
