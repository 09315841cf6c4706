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

// echoserver demonstrates the Socket state machine end to end: a listening
// Task accepts connections forever, spawning one Task per accepted
// connection to echo back whatever it reads.
package main

import (
	"context"
	"flag"
	"log"

	"golang.org/x/sys/unix"

	"github.com/jacobsa/timeutil"

	"github.com/olleolleolle/aio"
)

var fPort = flag.Uint("port", 2020, "TCP port to listen on.")

func main() {
	flag.Parse()

	poller, err := aio.NewPlatformPoller()
	if err != nil {
		log.Fatalf("NewPlatformPoller: %v", err)
	}
	defer poller.Close()

	cfg := aio.NewConfig()
	sched := aio.NewScheduler(cfg, timeutil.RealClock(), poller)

	sched.Spawn(context.Background(), func(ctx context.Context) {
		listener, err := aio.NewSocket(sched, cfg, unix.AF_INET, unix.SOCK_STREAM, 0)
		if err != nil {
			log.Fatalf("NewSocket: %v", err)
		}

		addr := aio.NewV4Address([4]byte{0, 0, 0, 0}, uint16(*fPort))
		if _, err := listener.Bind(ctx, addr, 0); err != nil {
			log.Fatalf("Bind: %v", err)
		}
		if _, err := listener.Listen(ctx, 128, 0); err != nil {
			log.Fatalf("Listen: %v", err)
		}

		log.Printf("listening on port %d", *fPort)

		for {
			_, _, conn, err := listener.Accept(ctx, 0)
			if err != nil {
				log.Printf("Accept: %v", err)
				continue
			}

			sched.Spawn(ctx, func(ctx context.Context) {
				echoLoop(ctx, conn)
			})
		}
	})

	sched.RunUntilIdle()
}

func echoLoop(ctx context.Context, conn *aio.Socket) {
	defer conn.Close(ctx, 0)

	buf := make([]byte, 4096)
	for {
		rc, data, _, err := conn.Recv(ctx, buf, 0, 0)
		if err != nil || rc == 0 {
			return
		}
		if _, err := conn.Send(ctx, data, 0, 0); err != nil {
			return
		}
	}
}
