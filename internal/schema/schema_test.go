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

import "testing"

func TestLookup(t *testing.T) {
	s := Schema{
		{Name: "a", Type: Num, Table: "t"},
		{Name: "b", Type: Str, Table: "t"},
	}
	a, err := s.Lookup("", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Slot != 0 {
		t.Fatalf("expected slot 0, got %d", a.Slot)
	}

	if _, err := s.Lookup("", "z"); err == nil {
		t.Fatalf("expected NotFoundError")
	} else if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected *NotFoundError, got %T", err)
	}
}

func TestLookupAmbiguous(t *testing.T) {
	s := Schema{
		{Name: "a", Type: Num, Table: "l"},
		{Name: "a", Type: Num, Table: "r"},
	}
	if _, err := s.Lookup("", "a"); err == nil {
		t.Fatalf("expected AmbiguousError")
	} else if _, ok := err.(*AmbiguousError); !ok {
		t.Fatalf("expected *AmbiguousError, got %T", err)
	}
	a, err := s.Lookup("r", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Slot != 1 {
		t.Fatalf("expected slot 1, got %d", a.Slot)
	}
}

func TestConcatAndAlias(t *testing.T) {
	l := Schema{{Name: "x", Type: Num}}.WithAlias("l")
	r := Schema{{Name: "y", Type: Str}}.WithAlias("r")
	c := Concat(l, r)
	if c.Len() != 2 || c[0].Table != "l" || c[1].Table != "r" {
		t.Fatalf("unexpected concat result: %+v", c)
	}
}

func TestNames(t *testing.T) {
	s := Schema{{Name: "b"}, {Name: "a"}, {Name: "a"}}
	got := Names(s)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected: %v", got)
	}
}
