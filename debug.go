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
	"flag"
	"io"
	"io/ioutil"
	"log"
	"os"
	"sync"
)

var fEnableDebug = flag.Bool(
	"aio.debug",
	false,
	"Write scheduler/poller debugging messages to stderr.")

var gDebugLogger *log.Logger
var gErrorLogger *log.Logger
var gLoggerOnce sync.Once

func initLoggers() {
	if !flag.Parsed() {
		panic("initLoggers called before flags available.")
	}

	var debugWriter io.Writer = ioutil.Discard
	if *fEnableDebug {
		debugWriter = os.Stderr
	}

	const flags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile
	gDebugLogger = log.New(debugWriter, "aio: ", flags)
	gErrorLogger = log.New(os.Stderr, "aio: ", flags)
}

// getDebugLogger returns the process-wide debug logger, discarding output
// unless -aio.debug was supplied.
func getDebugLogger() *log.Logger {
	gLoggerOnce.Do(initLoggers)
	return gDebugLogger
}

// getErrorLogger returns the process-wide error logger, which always writes
// to stderr. Used for the "should log" class of errors in Scheduler and
// Poller (cf. Connection.shouldLogError in the teacher this is ported from).
func getErrorLogger() *log.Logger {
	gLoggerOnce.Do(initLoggers)
	return gErrorLogger
}
