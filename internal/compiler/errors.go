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

package compiler

import "fmt"

// CompilationError wraps a failure from one of Compile/Run's stages
// (optimize, resolve, execute) with the stage name, so a caller logging
// a failed query can tell which phase of spec.md §4.6's pipeline broke
// without parsing the wrapped error's text.
type CompilationError struct {
	Stage string
	Err   error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compiler: %s: %v", e.Stage, e.Err)
}

func (e *CompilationError) Unwrap() error { return e.Err }
