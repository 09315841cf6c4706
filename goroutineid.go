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
	"bytes"
	"runtime"
	"strconv"
)

// currentGoroutineID returns a best-effort identifier for the calling
// goroutine, for use only by Config.checkThread's diagnostic hook (§5).
// Go provides no supported API for this; we parse it out of a runtime.Stack
// dump the way several debugging libraries in the ecosystem do. Never use
// the result for anything beyond logging.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	if idx := bytes.Index(b, []byte(prefix)); idx >= 0 {
		b = b[idx+len(prefix):]
	}

	if idx := bytes.IndexByte(b, ' '); idx >= 0 {
		b = b[:idx]
	}

	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
