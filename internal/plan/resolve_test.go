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

package plan

import (
	"testing"

	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/schema"
)

type fakeCatalog map[string]schema.Schema

func (f fakeCatalog) Schema(table string) (schema.Schema, error) {
	s, ok := f[table]
	if !ok {
		return nil, &schema.NotFoundError{Name: table}
	}
	return s, nil
}

func TestResolveScanFilterProject(t *testing.T) {
	cat := fakeCatalog{
		"data": {
			{Name: "a", Type: schema.Num},
			{Name: "b", Type: schema.Num},
		},
	}
	a := NewArena()
	scan := a.Scan("data", "data")
	filt := a.Filter(scan, expr.BinaryExpr(">", expr.Column("", "a"), expr.Number(0)))
	proj := a.Project(filt, []*expr.Expr{expr.Column("", "b")}, []string{"b"})

	if err := Resolve(a, proj, cat); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scan.Schema.Len() != 2 || scan.Schema[0].Table != "data" {
		t.Fatalf("unexpected scan schema: %+v", scan.Schema)
	}
	if proj.Schema.Len() != 1 || proj.Schema[0].Name != "b" {
		t.Fatalf("unexpected project schema: %+v", proj.Schema)
	}
	if filt.Cond.Left.Ref.Slot != 0 {
		t.Fatalf("expected filter condition column bound to slot 0")
	}
}

func TestResolveGroupByTermSchema(t *testing.T) {
	cat := fakeCatalog{
		"data": {
			{Name: "c", Type: schema.Num},
			{Name: "f", Type: schema.Num},
		},
	}
	a := NewArena()
	scan := a.Scan("data", "data")
	grp := a.GroupBy(scan,
		[]*expr.Expr{expr.Column("", "c")},
		[]*expr.Expr{expr.Column("", "c"), expr.AggCall("sum", []*expr.Expr{expr.Column("", "f")}, false)},
		[]string{"c", "total"},
	)
	if err := Resolve(a, grp, cat); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(grp.GroupTermSchema) != 1 || grp.GroupTermSchema[0].Name != "c" {
		t.Fatalf("unexpected group term schema: %+v", grp.GroupTermSchema)
	}
	if grp.Schema[0].Name != "c" || grp.Schema[1].Name != "total" {
		t.Fatalf("unexpected group schema: %+v", grp.Schema)
	}
}

func TestResolveGroupByRejectsNonGroupAttr(t *testing.T) {
	cat := fakeCatalog{"data": {{Name: "c", Type: schema.Num}, {Name: "d", Type: schema.Num}}}
	a := NewArena()
	scan := a.Scan("data", "data")
	grp := a.GroupBy(scan,
		[]*expr.Expr{expr.Column("", "c")},
		[]*expr.Expr{expr.Column("", "d")},
		[]string{"d"},
	)
	if err := Resolve(a, grp, cat); err == nil {
		t.Fatalf("expected GroupByError")
	} else if _, ok := err.(*GroupByError); !ok {
		t.Fatalf("expected *GroupByError, got %T: %v", err, err)
	}
}

func TestResolveHashJoin(t *testing.T) {
	cat := fakeCatalog{
		"l": {{Name: "k", Type: schema.Num}},
		"r": {{Name: "k", Type: schema.Num}},
	}
	a := NewArena()
	l := a.Scan("l", "l")
	r := a.Scan("r", "r")
	hj := a.HashJoin(l, r, expr.Column("l", "k"), expr.Column("r", "k"))
	if err := Resolve(a, hj, cat); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hj.Schema.Len() != 2 {
		t.Fatalf("expected concatenated schema, got %+v", hj.Schema)
	}
	if hj.RightKey.Ref.Slot != 0 {
		t.Fatalf("expected right key resolved against right schema alone")
	}
}
