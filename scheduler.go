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
	"sync/atomic"

	"github.com/jacobsa/reqtrace"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// TaskState is one of the four states a Task may occupy (§3).
type TaskState int

const (
	TaskRunnable TaskState = iota
	TaskRunning
	TaskSuspended
	TaskDead
)

func (s TaskState) String() string {
	switch s {
	case TaskRunnable:
		return "runnable"
	case TaskRunning:
		return "running"
	case TaskSuspended:
		return "suspended"
	case TaskDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Task is a stackful cooperative unit of execution (§3): in this port, a
// goroutine that only ever runs while holding turn, parked otherwise. This
// is the "OS threads parked on condition variables" strategy §9 calls out
// as an acceptable faithful port of the source's fiber-based coroutines.
type Task struct {
	id uint64

	// turn is the baton: receiving from it is this Task's permission to run;
	// sending on it (by the Scheduler loop) is the only way it ever resumes.
	turn chan struct{}

	// GUARDED_BY(Scheduler.mu)
	state TaskState

	// waitingOn is the Request this Task is suspended on, used to discard
	// stale completions (e.g. a deadline timer that fires after the primary
	// Request has already completed and resumed the task for unrelated work).
	// GUARDED_BY(Scheduler.mu)
	waitingOn *Request
}

// ID returns a value unique among Tasks created by the same Scheduler,
// useful only for logging.
func (t *Task) ID() uint64 { return t.id }

type contextKey int

const taskContextKey contextKey = 0

func withTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, taskContextKey, t)
}

func taskFromContext(ctx context.Context) *Task {
	t, _ := ctx.Value(taskContextKey).(*Task)
	return t
}

var nextTaskID atomic.Uint64

// Scheduler multiplexes Tasks over a single OS thread (§4.D): whichever
// goroutine calls RunUntil is that OS thread. It owns a Poller and runs the
// step the spec calls the "I/O task" -- polling for readiness when no Task
// is runnable -- directly on the driving goroutine rather than as a
// distinct Task, since nothing about polling needs its own stack.
type Scheduler struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	runQueue []*Task
	// GUARDED_BY(mu)
	aliveCount int

	// relinquish is how a Task currently holding the turn hands control back
	// to whichever goroutine is running the scheduler loop (RunUntil).
	relinquish chan *Task

	poller Poller
	clock  timeutil.Clock
	cfg    *Config
}

// NewScheduler constructs a Scheduler backed by poller (NewPlatformPoller
// gives kqueue on BSD/Darwin, epoll on Linux). cfg and clock must be
// non-nil. The clock is stored but not consulted: timers and deadlines run
// on the Poller's kernel timer facility in real time, so a
// timeutil.SimulatedClock does not change when they fire.
func NewScheduler(cfg *Config, clock timeutil.Clock, poller Poller) *Scheduler {
	s := &Scheduler{
		relinquish: make(chan *Task),
		poller:     poller,
		clock:      clock,
		cfg:        cfg,
	}
	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)
	return s
}

func (s *Scheduler) checkInvariants() {
	// At most one Task may ever be granted the turn concurrently; that
	// invariant is structural (the turn channel has no way to be held by two
	// goroutines at once) rather than something to re-derive from runQueue
	// contents here.
}

// Spawn creates a new Task running fn and enqueues it as runnable. fn
// observes ctx carrying the Task identity that Backend.submit needs to
// register continuations. Spawn may be called from any Task's own
// goroutine, or before the scheduler loop has ever run.
func (s *Scheduler) Spawn(ctx context.Context, fn func(context.Context)) *Task {
	t := &Task{
		id:    nextTaskID.Add(1),
		turn:  make(chan struct{}),
		state: TaskRunnable,
	}

	s.mu.Lock()
	s.aliveCount++
	s.runQueue = append(s.runQueue, t)
	s.mu.Unlock()

	taskCtx := withTask(ctx, t)
	go func() {
		<-t.turn
		fn(taskCtx)

		s.mu.Lock()
		t.state = TaskDead
		s.aliveCount--
		s.mu.Unlock()

		s.relinquish <- t
	}()

	return t
}

// Yield voluntarily parks the calling Task, letting any other runnable Task
// (or, if none, the I/O step) go next (§4.D yield()).
func (s *Scheduler) Yield(ctx context.Context) {
	t := taskFromContext(ctx)
	if t == nil {
		fatal("Yield called outside a Task context")
	}

	s.mu.Lock()
	t.state = TaskRunnable
	s.runQueue = append(s.runQueue, t)
	s.mu.Unlock()

	s.relinquish <- t
	<-t.turn
}

// completeAndWake marks r's owning Task runnable if, and only if, r is
// still the Request that Task is actually suspended on. This is the
// dedup that makes the deadline-vs-completion race in submit safe: a stale
// timer firing after the primary Request already resumed the task (for
// different, later work) is silently discarded instead of spuriously
// waking it mid-stride.
func (s *Scheduler) completeAndWake(r *Request) {
	t := r.task
	if t == nil {
		return
	}

	s.mu.Lock()
	if t.state == TaskDead || t.waitingOn != r {
		s.mu.Unlock()
		return
	}
	t.waitingOn = nil
	t.state = TaskRunnable
	s.runQueue = append(s.runQueue, t)
	s.mu.Unlock()
}

// submit is Backend's only entry point into the Scheduler (§4.D submit()):
// register req for completion, suspend the calling Task, and return the
// completed (rc, errno) once resumed.
func (s *Scheduler) submit(ctx context.Context, req *Request) (int, Errno) {
	t := taskFromContext(ctx)
	if t == nil {
		fatal("submit called outside a Task context")
	}

	req.task = t

	// Set up a trace span for this Request, the way the teacher's
	// commonOp.Init sets one up per FUSE op (fuseops/common_op.go:
	// "o.ctx, o.report = reqtrace.StartSpan(ctx, o.opType)"). The traced
	// context isn't threaded any further here -- nothing downstream of
	// submit consults it -- only the report func is kept, to be invoked
	// exactly once by Request.complete.
	_, req.report = reqtrace.StartSpan(ctx, req.Kind.String())

	s.mu.Lock()
	t.state = TaskSuspended
	t.waitingOn = req
	s.mu.Unlock()

	s.registerPrimary(req)

	var deadline *Request
	if req.Kind != OpTimer && req.Duration > 0 {
		deadline = newRequest(OpTimer, -1)
		deadline.task = t
		deadline.deadlineFor = req
		s.poller.RegisterTimer(req.Duration, deadline)
	}

	s.relinquish <- t
	<-t.turn

	rc, errno := req.Result()
	_ = deadline // kept alive only for documentation; its firing is handled
	// entirely inside the scheduler loop's dispatch of completed Requests.
	return rc, errno
}

// registerPrimary arms req with whatever facility its Kind uses to reach
// completion, per Kind.suspendVia's classification.
func (s *Scheduler) registerPrimary(req *Request) {
	switch req.Kind.suspendVia() {
	case viaPollRead:
		s.poller.RegisterRead(req.Fd, req)
	case viaPollWrite:
		s.poller.RegisterWrite(req.Fd, req)
	case viaTimer:
		s.poller.RegisterTimer(req.Duration, req)
	case viaOffload:
		go s.runOffload(req)
	default:
		fatal("registerPrimary: unrecognized suspendVia for kind %v", req.Kind)
	}
}

// runOffload runs a blocking-but-non-partial syscall (OPEN/CLOSE/BIND/
// LISTEN/GETADDRINFO) on a helper goroutine (§4.A: "the shim may release
// any internal concurrency lock across the call") and wakes the owning
// Task directly, since no Poller registration is involved.
func (s *Scheduler) runOffload(req *Request) {
	rc, errno := executeOffload(req)
	req.complete(rc, errno)
	s.completeAndWake(req)
	s.poller.Wake()
}

// RunUntil pumps the scheduler -- resuming runnable Tasks FIFO, falling
// back to the Poller when none are runnable -- until pred returns true
// (§4.D run_until()). The calling goroutine is, for the duration of this
// call, the single OS thread the spec's concurrency model assumes (§5).
func (s *Scheduler) RunUntil(pred func() bool) {
	for !pred() {
		s.mu.Lock()
		if len(s.runQueue) > 0 {
			t := s.runQueue[0]
			s.runQueue = s.runQueue[1:]
			s.mu.Unlock()

			t.turn <- struct{}{}
			<-s.relinquish
			continue
		}
		s.mu.Unlock()

		s.pollOnce()
	}
}

// RunUntilIdle pumps the scheduler until every spawned Task has run to
// completion. Convenient for samples and tests that spawn a fixed set of
// Tasks and want to block until all of them are DEAD.
func (s *Scheduler) RunUntilIdle() {
	s.RunUntil(func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.aliveCount == 0
	})
}

// pollOnce performs one iteration of the "I/O task" step (§4.D steps 3-5):
// block the underlying kernel call for at most ShortTimeout, then dispatch
// whatever completed.
func (s *Scheduler) pollOnce() {
	completed, err := s.poller.Poll(ShortTimeout)
	if err != nil {
		getErrorLogger().Printf("poller.Poll: %v", err)
		return
	}

	for _, r := range completed {
		if r.deadlineFor != nil {
			primary := r.deadlineFor
			select {
			case <-primary.done:
				// The primary already completed: this deadline lost the race.
				continue
			default:
			}
			primary.complete(-1, ETIMEDOUT)
			s.completeAndWake(primary)
			if primary.Fd >= 0 {
				s.poller.CancelFd(primary.Fd)
			}
			continue
		}
		s.completeAndWake(r)
	}
}
