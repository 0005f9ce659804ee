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

package compiler_test

import (
	"strings"
	"testing"

	"github.com/databass-project/databass/internal/catalog"
	"github.com/databass-project/databass/internal/compiler"
	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/interp"
	"github.com/databass-project/databass/internal/lineage"
	"github.com/databass-project/databass/internal/plan"
	"github.com/databass-project/databass/internal/row"
	"github.com/databass-project/databass/internal/schema"
)

func testDB() *catalog.Database {
	db := catalog.NewDatabase()
	orders := schema.Schema{
		{Name: "id", Type: schema.Num},
		{Name: "customer", Type: schema.Str},
		{Name: "total", Type: schema.Num},
	}
	db.RegisterDataFrame("orders", orders, row.Table{
		{1.0, "alice", 10.0},
		{2.0, "alice", 25.0},
		{3.0, "bob", 40.0},
	})
	return db
}

func buildQuery(db *catalog.Database) (*plan.Arena, *plan.Op) {
	a := plan.NewArena()
	scan := a.Scan("orders", "o")
	from := a.From([]*plan.Op{scan}, nil)
	filt := a.Filter(from, expr.BinaryExpr(">", expr.Column("o", "total"), expr.Number(5)))
	group := a.GroupBy(filt,
		[]*expr.Expr{expr.Column("o", "customer")},
		[]*expr.Expr{
			expr.Column("o", "customer"),
			expr.AggCall("sum", []*expr.Expr{expr.Column("o", "total")}, true),
		},
		[]string{"customer", "total"},
	)
	sink := a.Sink(group, plan.Collect)
	return a, sink
}

func resolveAll(t *testing.T, a *plan.Arena, root *plan.Op, db *catalog.Database) {
	t.Helper()
	if err := plan.Resolve(a, root, db); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}

func TestCompileRunMatchesInterpreter(t *testing.T) {
	db := testDB()
	session := compiler.NewSession(db)

	a, sink := buildQuery(db)
	resolveAll(t, a, sink, db)

	cq, err := compiler.Compile(session, a, sink, compiler.Selinger, lineage.AllPolicy{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	compiled, err := cq.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	a2, sink2 := buildQuery(db)
	resolveAll(t, a2, sink2, db)
	interpResult, err := interp.Eval(a2, sink2, db, session.UDFs)
	if err != nil {
		t.Fatalf("interp: %v", err)
	}

	totals := map[string]float64{}
	for _, r := range compiled {
		totals[r[0].(string)] = r[1].(float64)
	}
	wantTotals := map[string]float64{}
	for _, r := range interpResult {
		wantTotals[r[0].(string)] = r[1].(float64)
	}
	if len(totals) != len(wantTotals) {
		t.Fatalf("row count mismatch: compiled=%v interp=%v", totals, wantTotals)
	}
	for k, v := range wantTotals {
		if totals[k] != v {
			t.Fatalf("customer %q: compiled=%v interp=%v", k, totals[k], v)
		}
	}

	code := cq.PrintCode()
	if !strings.Contains(code, "scan(") {
		t.Fatalf("expected PrintCode output to mention the scan, got:\n%s", code)
	}
}
