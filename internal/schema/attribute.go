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

// Package schema represents tuple shapes (ordered column attributes)
// and resolves attribute references in expressions to slot indices.
package schema

import "fmt"

// Type is the type guess attached to an attribute or expression.
type Type int

const (
	Unknown Type = iota
	Num
	Str
	List
	Bool
	Date
)

func (t Type) String() string {
	switch t {
	case Num:
		return "num"
	case Str:
		return "str"
	case List:
		return "list"
	case Bool:
		return "bool"
	case Date:
		return "date"
	default:
		return "unknown"
	}
}

// Attribute is a column attribute. It plays two roles: a schema
// attribute (fully bound: Table and Slot set) or an expression
// reference (Table/Type/Slot may start unbound).
//
// Slot is -1 until the attribute has been resolved against a
// concrete source schema.
type Attribute struct {
	Name  string
	Type  Type
	Table string // table alias this attribute originates from, "" if unbound
	Slot  int
}

// Unresolved reports whether a has not yet been bound to a slot.
func (a Attribute) Unresolved() bool { return a.Slot < 0 }

// NewRef builds an unresolved expression-side reference, optionally
// table-qualified (table == "" means unqualified).
func NewRef(table, name string) Attribute {
	return Attribute{Name: name, Table: table, Slot: -1}
}

func (a Attribute) String() string {
	if a.Table != "" {
		return fmt.Sprintf("%s.%s", a.Table, a.Name)
	}
	return a.Name
}
