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
	"time"
)

// Duration carries the three components Timer.sleep takes (§6) instead of
// collapsing them into a single time.Duration at the call site. §9 flags
// that the source conflates units computing the kqueue millisecond delay
// ("(s*1000) + ms + (ns/1000)"); Milliseconds is the one place that
// arithmetic happens, so the corrected intent -- "(s*1000) + ms +
// (ns/1_000_000)" -- can never silently recur at a second call site.
type Duration struct {
	Seconds int64
	Millis  int64
	Nanos   int64
}

// Milliseconds computes the total delay in milliseconds, the resolution
// the kqueue/epoll timer facilities both operate at.
func (d Duration) Milliseconds() int64 {
	return d.Seconds*1000 + d.Millis + d.Nanos/1_000_000
}

// AsTimeDuration converts to a time.Duration for use with Poller.RegisterTimer.
func (d Duration) AsTimeDuration() time.Duration {
	return time.Duration(d.Milliseconds()) * time.Millisecond
}

// Sleep implements Timer.sleep (§6): suspend the calling Task for d,
// through the same Request/continuation protocol every I/O operation uses
// (§8 round-trip property: "returns not earlier than N milliseconds after
// the call, within scheduler tick").
func Sleep(ctx context.Context, sched *Scheduler, d Duration) {
	b := NewBackend(sched)
	b.sleep(ctx, d.AsTimeDuration())
}
