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

package interp

import (
	"testing"

	"github.com/databass-project/databass/internal/catalog"
	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/plan"
	"github.com/databass-project/databass/internal/row"
	"github.com/databass-project/databass/internal/schema"
	"github.com/databass-project/databass/internal/udf"
)

func testDB() *catalog.Database {
	db := catalog.NewDatabase()
	sc := schema.Schema{
		{Name: "k", Type: schema.Num},
		{Name: "v", Type: schema.Num},
	}
	db.RegisterDataFrame("t", sc, row.Table{
		{1.0, 10.0},
		{1.0, 20.0},
		{2.0, 30.0},
	})
	return db
}

func TestEvalScanFilterProject(t *testing.T) {
	db := testDB()
	udfs := udf.NewRegistry()
	a := plan.NewArena()
	scan := a.Scan("t", "t")
	if err := plan.Resolve(a, scan, db); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	filt := a.Filter(scan, expr.BinaryExpr(">", expr.Column("t", "v"), expr.Number(15)))
	if err := plan.Resolve(a, filt, db); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	out, err := Eval(a, filt, db, udfs)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(out), out)
	}
}

func TestEvalGroupByCountSum(t *testing.T) {
	db := testDB()
	udfs := udf.NewRegistry()
	a := plan.NewArena()
	scan := a.Scan("t", "t")
	if err := plan.Resolve(a, scan, db); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	group := a.GroupBy(scan,
		[]*expr.Expr{expr.Column("t", "k")},
		[]*expr.Expr{expr.Column("t", "k"), expr.AggCall("sum", []*expr.Expr{expr.Column("t", "v")}, true), expr.AggCall("count", []*expr.Expr{expr.Column("t", "v")}, true)},
		[]string{"k", "total", "n"},
	)
	if err := plan.Resolve(a, group, db); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	out, err := Eval(a, group, db, udfs)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(out), out)
	}
	totals := map[float64]float64{}
	counts := map[float64]float64{}
	for _, r := range out {
		totals[r[0].(float64)] = r[1].(float64)
		counts[r[0].(float64)] = r[2].(float64)
	}
	if totals[1.0] != 30.0 || totals[2.0] != 30.0 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	if counts[1.0] != 2.0 || counts[2.0] != 1.0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}
