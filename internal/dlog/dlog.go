// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package dlog is the diagnostic-logging hook every other package in
// this module calls through, the same shape as vm/log.go's package
// level Errorf: a settable func var a host binary can point at its
// own logger, defaulting to a no-op so library code never forces a
// logging framework on an embedder.
package dlog

import "fmt"

// Errorf is set by a host binary (cmd/databass's main sets it under
// -v) to capture diagnostic output; nil by default, so packages calling it through
// errorf below produce no output until a caller opts in.
var Errorf func(f string, args ...any)

func errorf(f string, args ...any) {
	if Errorf != nil {
		Errorf(f, args...)
	}
}

// Stage reports a named pipeline stage's diagnostic message, e.g.
// dlog.Stage("optimize", "tested %d plans", n).
func Stage(stage, f string, args ...any) {
	errorf("%s: %s", stage, fmt.Sprintf(f, args...))
}
