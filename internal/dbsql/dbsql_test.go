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

package dbsql_test

import (
	"strings"
	"testing"

	"github.com/databass-project/databass/internal/catalog"
	"github.com/databass-project/databass/internal/compiler"
	"github.com/databass-project/databass/internal/dbsql"
	"github.com/databass-project/databass/internal/lineage"
	"github.com/databass-project/databass/internal/plan"
	"github.com/databass-project/databass/internal/row"
	"github.com/databass-project/databass/internal/schema"
)

func seedDB() *catalog.Database {
	db := catalog.NewDatabase()
	sc := schema.Schema{
		{Name: "a", Type: schema.Num},
		{Name: "b", Type: schema.Num},
		{Name: "c", Type: schema.Num},
		{Name: "f", Type: schema.Num},
	}
	// matches S3's expectation: two groups on c (2 and 3), 10 rows each,
	// sum(f) == 200 and 220 respectively.
	var rows row.Table
	for i := 0; i < 10; i++ {
		rows = append(rows, row.Row{float64(i), float64(i * 2), 2.0, 20.0})
	}
	for i := 0; i < 10; i++ {
		rows = append(rows, row.Row{float64(i), float64(i * 2), 3.0, 22.0})
	}
	db.RegisterDataFrame("data", sc, rows)
	return db
}

func compileAndRun(t *testing.T, db *catalog.Database, sql string, policy lineage.Policy) ([]row.Row, *compiler.CompiledQuery) {
	t.Helper()
	tree, err := dbsql.Parse(sql)
	if err != nil {
		t.Fatalf("parse %q: %v", sql, err)
	}
	a := plan.NewArena()
	root, err := tree.ToPlan(a)
	if err != nil {
		t.Fatalf("to_plan %q: %v", sql, err)
	}
	if err := plan.Resolve(a, root, db); err != nil {
		t.Fatalf("resolve %q: %v", sql, err)
	}
	session := compiler.NewSession(db)
	cq, err := compiler.Compile(session, a, root, compiler.Selinger, policy)
	if err != nil {
		t.Fatalf("compile %q: %v", sql, err)
	}
	out, err := cq.Run()
	if err != nil {
		t.Fatalf("run %q: %v", sql, err)
	}
	return out, cq
}

// S1: SELECT 1 ORDER BY 1 parses, resolves, and produces one row (1).
func TestS1LiteralSelectNoFrom(t *testing.T) {
	db := catalog.NewDatabase()
	out, _ := compileAndRun(t, db, "SELECT 1 ORDER BY 1", lineage.NonePolicy{})
	if len(out) != 1 || out[0][0] != 1.0 {
		t.Fatalf("expected one row (1), got %v", out)
	}
}

// S2: SELECT * FROM data ORDER BY a, b returns data sorted ascending
// first by a then by b.
func TestS2OrderByMultiColumn(t *testing.T) {
	db := seedDB()
	out, _ := compileAndRun(t, db, "SELECT * FROM data ORDER BY a, b", lineage.NonePolicy{})
	if len(out) != 20 {
		t.Fatalf("expected 20 rows, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		prevA, prevB := out[i-1][0].(float64), out[i-1][1].(float64)
		curA, curB := out[i][0].(float64), out[i][1].(float64)
		if curA < prevA || (curA == prevA && curB < prevB) {
			t.Fatalf("rows not sorted ascending by (a, b): %v then %v", out[i-1], out[i])
		}
	}
}

// S3: grouped aggregation over the seed data.
func TestS3GroupByAggregates(t *testing.T) {
	db := seedDB()
	out, _ := compileAndRun(t, db,
		"SELECT c+2 AS c, sum(f) AS total, count(a) AS n FROM data GROUP BY c",
		lineage.NonePolicy{})
	got := map[float64][2]float64{}
	for _, r := range out {
		got[r[0].(float64)] = [2]float64{r[1].(float64), r[2].(float64)}
	}
	want := map[float64][2]float64{
		4.0: {200.0, 10.0},
		5.0: {220.0, 10.0},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d groups, got %d: %v", len(want), len(got), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("group %v: want %v, got %v", k, v, got[k])
		}
	}
}

// S4: SELECT DISTINCT * FROM data dedups exact-match rows.
func TestS4Distinct(t *testing.T) {
	db := catalog.NewDatabase()
	sc := schema.Schema{{Name: "x", Type: schema.Num}}
	db.RegisterDataFrame("tdata", sc, row.Table{{1.0}, {1.0}, {2.0}})
	out, _ := compileAndRun(t, db, "SELECT DISTINCT * FROM tdata", lineage.NonePolicy{})
	if len(out) != 2 {
		t.Fatalf("expected 2 distinct rows, got %v", out)
	}
}

// S6: compiling SELECT a+b FROM data must agree with direct
// interpretation; exercised at the compiler package level via
// TestCompileRunMatchesInterpreter, so here we only check the
// generated code mentions no aggregate state for a plain projection.
func TestS6CompiledProjectionHasNoAggState(t *testing.T) {
	db := seedDB()
	_, cq := compileAndRun(t, db, "SELECT a+b FROM data", lineage.NonePolicy{})
	code := cq.PrintCode()
	if code == "" {
		t.Fatalf("expected non-empty generated code")
	}
	if strings.Contains(code, "accumulator") {
		t.Fatalf("expected no aggregate state in generated code, got:\n%s", code)
	}
}

// S7: with the all-lineage policy, a grouped+filtered query's
// registry traces each output group back to exactly its contributing
// input rids.
func TestS7LineageTracesGroupByHaving(t *testing.T) {
	db := catalog.NewDatabase()
	sc := schema.Schema{
		{Name: "a", Type: schema.Num},
		{Name: "b", Type: schema.Num},
	}
	db.RegisterDataFrame("data", sc, row.Table{
		{1.0, 10.0},
		{1.0, 20.0},
		{2.0, 30.0},
	})

	tree, err := dbsql.Parse("SELECT sum(b) FROM data GROUP BY a HAVING a = 1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	a := plan.NewArena()
	root, err := tree.ToPlan(a)
	if err != nil {
		t.Fatalf("to_plan: %v", err)
	}
	if err := plan.Resolve(a, root, db); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	session := compiler.NewSession(db)
	cq, err := compiler.Compile(session, a, root, compiler.Selinger, lineage.AllPolicy{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	out, err := cq.Run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out) != 1 || out[0][0].(float64) != 30.0 {
		t.Fatalf("expected single group summing to 30, got %v", out)
	}

	var scan *plan.Op
	plan.Walk(cq.Arena, cq.Root, func(op *plan.Op) {
		if op.Kind == plan.KindScan {
			scan = op
		}
	})
	if scan == nil {
		t.Fatalf("expected a scan in the compiled plan")
	}
	sinkLx, ok := cq.Lineage.At(cq.Root.ID)
	if !ok || len(sinkLx.Back) != 1 {
		t.Fatalf("expected the sink to record exactly one output rid")
	}
	var outRid int
	for r := range sinkLx.Back {
		outRid = r
	}
	back := lineage.TraceBack(cq.Arena, cq.Lineage, cq.Root, outRid)
	if len(back) != 2 || back[0] == back[1] {
		t.Fatalf("expected the two distinct a=1 input rids for the group's output, got %v", back)
	}
	for _, b := range back {
		fwd := lineage.Trace(cq.Arena, cq.Lineage, scan, b)
		found := false
		for _, r := range fwd {
			if r == outRid {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected forward trace from base rid %d to reach sink output rid %d, got %v", b, outRid, fwd)
		}
	}
}
