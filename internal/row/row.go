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

// Package row is the runtime tuple representation shared by the
// catalog, the code generator and the interpreter oracle: a Row is a
// flat slot-addressed slice, matching the slot indices internal/expr
// and internal/plan bind column references to.
package row

// Value is one cell of a Row. Concretely one of: float64, string,
// bool, time.Time, or nil (SQL NULL).
type Value = any

// Row is a tuple, indexed the same way its originating schema.Schema
// is: Row[attr.Slot] holds the value of attr.
type Row []Value

// Clone returns an independent copy of r, safe to retain past the
// lifetime of the buffer the caller read r from.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Table is an in-memory sequence of rows sharing one schema; it is
// the unit catalog.Table and the interpreter's Scan both produce.
type Table []Row
