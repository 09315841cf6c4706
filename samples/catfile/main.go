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

// catfile is a minimal demonstration of opening and reading a file entirely
// through the asynchronous runtime: a single Task does open -> pread ->
// close, driven by a Scheduler whose RunUntilIdle call is the program's
// only event loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/sys/unix"

	"github.com/jacobsa/timeutil"

	"github.com/olleolleolle/aio"
)

var fPath = flag.String("path", "", "Path of the file to print.")

func main() {
	flag.Parse()
	if *fPath == "" {
		log.Fatal("-path is required")
	}

	poller, err := aio.NewPlatformPoller()
	if err != nil {
		log.Fatalf("NewPlatformPoller: %v", err)
	}
	defer poller.Close()

	cfg := aio.NewConfig()
	sched := aio.NewScheduler(cfg, timeutil.RealClock(), poller)

	var readErr error
	sched.Spawn(context.Background(), func(ctx context.Context) {
		f, err := aio.OpenFile(ctx, sched, cfg, *fPath, unix.O_RDONLY, 0, 0)
		if err != nil {
			readErr = err
			return
		}
		defer f.Close(ctx, 0)

		var offset int64
		buf := make([]byte, 4096)
		for {
			rc, data, newOffset, err := f.Pread(ctx, len(buf), offset, buf, 0)
			if err != nil {
				readErr = err
				return
			}
			if rc == 0 {
				return
			}
			os.Stdout.Write(data)
			offset = newOffset
		}
	})

	sched.RunUntilIdle()

	if readErr != nil {
		fmt.Fprintln(os.Stderr, readErr)
		os.Exit(1)
	}
}
