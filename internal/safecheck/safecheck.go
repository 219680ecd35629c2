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

// Package safecheck reports programmer errors: bounds violations and broken
// invariants. A failed check logs the caller's location and panics.
//
// Checks can be switched off at runtime with SetEnabled(false) or by
// starting the process with ZMEM_SAFECHECK=0, in which case every check is a
// no-op and misuse of the checked operation is undefined.
package safecheck

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/exp/slog"
)

// EnvKey is the environment variable read at init to seed the mode.
const EnvKey = "ZMEM_SAFECHECK"

var enabled int32 = 1

func init() {
	if !parseMode(os.Getenv(EnvKey)) {
		enabled = 0
	}
}

// parseMode returns false only for explicit "off" spellings.
func parseMode(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "off", "no", "release":
		return false
	}
	return true
}

// Enabled reports whether checks are executed.
func Enabled() bool {
	return atomic.LoadInt32(&enabled) != 0
}

// SetEnabled switches checks on or off and returns the previous mode.
func SetEnabled(on bool) (old bool) {
	v := int32(0)
	if on {
		v = 1
	}
	return atomic.SwapInt32(&enabled, v) != 0
}

// Failure is the value passed to panic by a failed check.
type Failure struct {
	Func string
	File string
	Line int
	Msg  string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("safecheck: %s (%s at %s:%d)", f.Msg, f.Func, f.File, f.Line)
}

// Assert panics with msg if checks are enabled and cond is false.
func Assert(cond bool, msg string) {
	if cond || !Enabled() {
		return
	}
	fail(msg)
}

// Assertf is Assert with a formatted message.
// The message is only formatted when the check fails.
func Assertf(cond bool, format string, args ...interface{}) {
	if cond || !Enabled() {
		return
	}
	fail(fmt.Sprintf(format, args...))
}

// Index panics if checks are enabled and i is not in [0, n).
// Unlike Assertf it doesn't allocate when the check passes or is disabled.
func Index(i, n int) {
	if uint(i) < uint(n) || !Enabled() {
		return
	}
	fail(fmt.Sprintf("index %d out of range [0:%d]", i, n))
}

// Bound panics if checks are enabled and i is not in [0, n].
func Bound(i, n int) {
	if uint(i) <= uint(n) || !Enabled() {
		return
	}
	fail(fmt.Sprintf("bound %d out of range [0:%d]", i, n))
}

func fail(msg string) {
	f := &Failure{Func: "?", File: "?", Msg: msg}
	// skip fail and the exported check
	if pc, file, line, ok := runtime.Caller(2); ok {
		f.File = filepath.Base(file)
		f.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			f.Func = fn.Name()
		}
	}
	slog.Error("safecheck failed", "msg", f.Msg, "func", f.Func, "file", f.File, "line", f.Line)
	panic(f)
}
