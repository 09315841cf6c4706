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

// pingpong demonstrates Timer.Sleep and cooperative fairness: N Tasks each
// sleep repeatedly and print their turn, showing that sleeps of the same
// duration complete together rather than serially (§8 scenario 5,
// "concurrency fairness").
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/jacobsa/timeutil"

	"github.com/olleolleolle/aio"
)

var fCount = flag.Int("count", 10, "Number of tasks to run.")
var fRounds = flag.Int("rounds", 3, "Number of sleep rounds per task.")

func main() {
	flag.Parse()

	poller, err := aio.NewPlatformPoller()
	if err != nil {
		log.Fatalf("NewPlatformPoller: %v", err)
	}
	defer poller.Close()

	cfg := aio.NewConfig()
	sched := aio.NewScheduler(cfg, timeutil.RealClock(), poller)

	for i := 0; i < *fCount; i++ {
		i := i
		sched.Spawn(context.Background(), func(ctx context.Context) {
			for round := 0; round < *fRounds; round++ {
				aio.Sleep(ctx, sched, aio.Duration{Millis: 10})
				fmt.Printf("task %d: round %d\n", i, round)
			}
		})
	}

	sched.RunUntilIdle()
}
