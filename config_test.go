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

	. "github.com/jacobsa/ogletest"
)

func TestConfig(t *testing.T) { RunTests(t) }

type ConfigTest struct {
}

func init() { RegisterTestSuite(&ConfigTest{}) }

func (t *ConfigTest) DefaultsMatchDocumentedBehavior() {
	c := NewConfig()
	ExpectEq(ReturnCodes, c.ErrorPolicy())
	ExpectEq(0, c.ReadCacheSize)
	ExpectEq(MultithreadSilent, c.MultithreadPolicy)
}

func (t *ConfigTest) OptionsOverrideDefaults() {
	c := NewConfig(
		WithErrorPolicy(Exceptions),
		WithReadCacheSize(4096),
		WithMultithreadPolicy(MultithreadFatal),
	)
	ExpectEq(Exceptions, c.ErrorPolicy())
	ExpectEq(4096, c.ReadCacheSize)
	ExpectEq(MultithreadFatal, c.MultithreadPolicy)
}

func (t *ConfigTest) SetErrorPolicyTakesEffectImmediately() {
	c := NewConfig()
	c.SetErrorPolicy(Exceptions)
	ExpectEq(Exceptions, c.ErrorPolicy())
}

func (t *ConfigTest) CheckThreadSilentPolicyNeverPanics() {
	c := NewConfig(WithMultithreadPolicy(MultithreadSilent))
	c.checkThread("File", 1, 2)
}

func (t *ConfigTest) CheckThreadSameGoroutineNeverActs() {
	c := NewConfig(WithMultithreadPolicy(MultithreadFatal))
	// Same owner/caller id: must not panic even under Fatal policy.
	c.checkThread("File", 42, 42)
}
