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
	"testing"
	"time"

	. "github.com/jacobsa/ogletest"
)

func TestTimer(t *testing.T) { RunTests(t) }

type DurationTest struct {
}

func init() { RegisterTestSuite(&DurationTest{}) }

func (t *DurationTest) ZeroIsZero() {
	ExpectEq(int64(0), Duration{}.Milliseconds())
}

func (t *DurationTest) SecondsDominate() {
	ExpectEq(int64(3000), Duration{Seconds: 3}.Milliseconds())
}

func (t *DurationTest) ComponentsSumRatherThanConflate() {
	d := Duration{Seconds: 1, Millis: 250, Nanos: 2_000_000}
	// 1000 + 250 + 2 = 1252, not the conflated 1000 + 250 + 2000 = 3250
	// misreading where nanos are mistakenly divided by 1000 instead of
	// 1_000_000.
	ExpectEq(int64(1252), d.Milliseconds())
}

func (t *DurationTest) SubMillisecondNanosTruncate() {
	d := Duration{Nanos: 999_999}
	ExpectEq(int64(0), d.Milliseconds())
}

func (t *DurationTest) AsTimeDurationConverts() {
	d := Duration{Seconds: 1, Millis: 500}
	ExpectEq(1500*time.Millisecond, d.AsTimeDuration())
}
