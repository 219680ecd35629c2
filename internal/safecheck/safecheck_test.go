/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package safecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssert(t *testing.T) {
	old := SetEnabled(true)
	defer SetEnabled(old)

	assert.NotPanics(t, func() { Assert(true, "ok") })

	var r interface{}
	func() {
		defer func() { r = recover() }()
		Assertf(1 > 2, "bad %d", 42)
	}()
	require.NotNil(t, r)
	f, ok := r.(*Failure)
	require.True(t, ok)
	assert.Equal(t, "bad 42", f.Msg)
	assert.Equal(t, "safecheck_test.go", f.File)
	assert.Contains(t, f.Func, "TestAssert")
	assert.Contains(t, f.Error(), "bad 42")
}

func TestDisabled(t *testing.T) {
	old := SetEnabled(false)
	defer SetEnabled(old)

	assert.False(t, Enabled())
	assert.NotPanics(t, func() {
		Assert(false, "ignored")
		Assertf(false, "ignored %s", "too")
	})
}

func TestParseMode(t *testing.T) {
	for _, v := range []string{"", "1", "on", "debug", "yes"} {
		assert.True(t, parseMode(v), v)
	}
	for _, v := range []string{"0", "false", "OFF", " no ", "release"} {
		assert.False(t, parseMode(v), v)
	}
}

func TestIndex(t *testing.T) {
	old := SetEnabled(true)
	defer SetEnabled(old)

	assert.NotPanics(t, func() {
		Index(0, 1)
		Index(9, 10)
		Bound(0, 0)
		Bound(10, 10)
	})

	var r interface{}
	func() {
		defer func() { r = recover() }()
		Index(3, 3)
	}()
	f, ok := r.(*Failure)
	require.True(t, ok)
	assert.Equal(t, "index 3 out of range [0:3]", f.Msg)
	assert.Equal(t, "safecheck_test.go", f.File)

	assert.Panics(t, func() { Index(-1, 3) })
	assert.Panics(t, func() { Bound(4, 3) })
	assert.Panics(t, func() { Bound(-1, 3) })

	SetEnabled(false)
	assert.NotPanics(t, func() {
		Index(5, 3)
		Bound(5, 3)
	})
}

func TestIndexNoAlloc(t *testing.T) {
	for _, on := range []bool{true, false} {
		old := SetEnabled(on)
		allocs := testing.AllocsPerRun(100, func() {
			Index(1000, 2000)
			Bound(2000, 2000)
		})
		SetEnabled(old)
		assert.Equal(t, float64(0), allocs, "enabled=%v", on)
	}
}
