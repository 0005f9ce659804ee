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

package schema

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Schema is an ordered sequence of column attributes. An operator's
// schema is fully determined by its children's schemas plus its own
// declared projection/group aliases (see plan.Resolve).
type Schema []Attribute

// Len returns the number of attributes, also the width of any tuple
// carrying this schema.
func (s Schema) Len() int { return len(s) }

// Lookup finds the unique attribute named name, optionally qualified
// by table. It returns a *NotFoundError if there is no match and an
// *AmbiguousError if more than one attribute matches.
func (s Schema) Lookup(table, name string) (Attribute, error) {
	idx := -1
	for i, a := range s {
		if a.Name != name {
			continue
		}
		if table != "" && a.Table != table {
			continue
		}
		if idx != -1 {
			return Attribute{}, &AmbiguousError{Table: table, Name: name}
		}
		idx = i
	}
	if idx == -1 {
		return Attribute{}, &NotFoundError{Table: table, Name: name}
	}
	a := s[idx]
	a.Slot = idx
	return a, nil
}

// Concat returns a new schema formed by appending right after left,
// the default schema rule for binary operators (joins).
func Concat(left, right Schema) Schema {
	out := make(Schema, 0, len(left)+len(right))
	out = append(out, left...)
	out = append(out, right...)
	return out
}

// WithAlias returns a copy of s with every attribute's Table field set
// to alias (used by Scan and SubQuerySource).
func (s Schema) WithAlias(alias string) Schema {
	out := make(Schema, len(s))
	for i, a := range s {
		a.Table = alias
		a.Slot = i
		out[i] = a
	}
	return out
}

// Matches reports whether other agrees with s on every bound field:
// same length, and for each slot, same name/type, and same table
// unless s's table is unset.
func (s Schema) Matches(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i].Name != other[i].Name || s[i].Type != other[i].Type {
			return false
		}
		if s[i].Table != "" && s[i].Table != other[i].Table {
			return false
		}
	}
	return true
}

// Names returns the sorted, deduplicated set of attribute names in s.
func Names(s Schema) []string {
	seen := make(map[string]bool, len(s))
	var out []string
	for _, a := range s {
		if seen[a.Name] {
			continue
		}
		seen[a.Name] = true
		out = append(out, a.Name)
	}
	slices.Sort(out)
	return out
}

// NotFoundError reports an attribute reference that matches nothing
// in the consulted schema.
type NotFoundError struct {
	Table, Name string
}

func (e *NotFoundError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("no such column %s.%s", e.Table, e.Name)
	}
	return fmt.Sprintf("no such column %s", e.Name)
}

// AmbiguousError reports an attribute reference matching more than
// one attribute of the consulted schema.
type AmbiguousError struct {
	Table, Name string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous column reference %q", e.Name)
}
