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

// Package aio provides an asynchronous POSIX I/O runtime built around a
// cooperative scheduler, a kernel-event poller, and per-descriptor state
// machines that front file and socket operations.
//
// The primary elements of interest are:
//
//  *  Scheduler, which multiplexes Tasks (cooperative units of execution)
//     over a single OS thread, using a Poller to learn when a suspended
//     Request can be completed.
//
//  *  File and Socket, whose methods are the public operation surface
//     (open, close, pread/pwrite, bind/listen/accept/connect, recv/send).
//     Each delegates to the state appropriate for its current lifecycle and
//     rejects operations that are illegal in that state without touching
//     the kernel.
//
//  *  Config, which selects the process-wide error policy, read cache size,
//     and multithread-safety policy.
//
// Every blocking operation takes a context.Context produced by
// Scheduler.Spawn; the context identifies the calling Task so that Backend
// can suspend it and resume it once its Request completes.
package aio
