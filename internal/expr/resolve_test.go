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

package expr

import (
	"testing"

	"github.com/databass-project/databass/internal/schema"
)

func TestResolveBindsSlot(t *testing.T) {
	src := schema.Schema{{Name: "a", Type: schema.Num, Table: "t"}}
	c := Column("", "a")
	if err := Resolve(c, src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Ref.Slot != 0 {
		t.Fatalf("expected slot 0, got %d", c.Ref.Slot)
	}
	if c.Ref.Table != "t" {
		t.Fatalf("expected table t, got %q", c.Ref.Table)
	}
}

func TestResolveArithRequiresNumeric(t *testing.T) {
	src := schema.Schema{{Name: "s", Type: schema.Str}}
	e := BinaryExpr("+", Column("", "s"), Number(1))
	if err := Resolve(e, src); err == nil {
		t.Fatalf("expected TypeError")
	} else if _, ok := err.(*TypeError); !ok {
		t.Fatalf("expected *TypeError, got %T: %v", err, err)
	}
}

func TestResolveBetweenRequiresNumeric(t *testing.T) {
	src := schema.Schema{{Name: "s", Type: schema.Str}}
	e := BetweenExpr(Column("", "s"), Number(0), Number(1))
	if err := Resolve(e, src); err == nil {
		t.Fatalf("expected TypeError")
	}
}

func TestResolveNestedAggRejected(t *testing.T) {
	inner := AggCall("sum", []*Expr{Column("", "a")}, false)
	outer := AggCall("count", []*Expr{inner}, false)
	src := schema.Schema{{Name: "a", Type: schema.Num}}
	if err := Resolve(outer, src); err == nil {
		t.Fatalf("expected ResolutionError for nested aggregate")
	}
}

func TestResolveAmbiguous(t *testing.T) {
	src := schema.Schema{
		{Name: "a", Type: schema.Num, Table: "l"},
		{Name: "a", Type: schema.Num, Table: "r"},
	}
	c := Column("", "a")
	if err := Resolve(c, src); err == nil {
		t.Fatalf("expected ResolutionError")
	}
}
