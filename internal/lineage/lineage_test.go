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

package lineage_test

import (
	"testing"

	"github.com/databass-project/databass/internal/catalog"
	"github.com/databass-project/databass/internal/codegen"
	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/lineage"
	"github.com/databass-project/databass/internal/pipeline"
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

func TestAllPolicyTracesFilterThroughGroupBy(t *testing.T) {
	db := testDB()
	udfs := udf.NewRegistry()
	a := plan.NewArena()

	scan := a.Scan("t", "t")
	if err := plan.Resolve(a, scan, db); err != nil {
		t.Fatalf("resolve scan: %v", err)
	}
	filt := a.Filter(scan, expr.BinaryExpr(">", expr.Column("t", "v"), expr.Number(5)))
	if err := plan.Resolve(a, filt, db); err != nil {
		t.Fatalf("resolve filter: %v", err)
	}
	group := a.GroupBy(filt,
		[]*expr.Expr{expr.Column("t", "k")},
		[]*expr.Expr{expr.Column("t", "k"), expr.AggCall("sum", []*expr.Expr{expr.Column("t", "v")}, true)},
		[]string{"k", "total"},
	)
	if err := plan.Resolve(a, group, db); err != nil {
		t.Fatalf("resolve group: %v", err)
	}
	sink := a.Sink(group, plan.Collect)
	if err := plan.Resolve(a, sink, db); err != nil {
		t.Fatalf("resolve sink: %v", err)
	}

	pipelines := pipeline.Build(a, sink)
	reg := lineage.NewPlanner(lineage.AllPolicy{}).Apply(pipelines)

	out, err := codegen.Execute(a, sink, pipelines, db, udfs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(out), out)
	}

	if _, ok := reg.At(scan.ID); !ok {
		t.Fatalf("expected scan to be captured under AllPolicy")
	}
	if _, ok := reg.At(group.ID); !ok {
		t.Fatalf("expected group-by to be captured under AllPolicy")
	}

	sinkLx, ok := reg.At(sink.ID)
	if !ok || len(sinkLx.Back) == 0 {
		t.Fatalf("expected sink output rids to be captured under AllPolicy")
	}
	outRid := -1
	for r := range sinkLx.Back {
		if outRid == -1 || r < outRid {
			outRid = r
		}
	}
	base := lineage.TraceBack(a, reg, sink, outRid)
	if len(base) == 0 {
		t.Fatalf("expected at least one base rid for sink output rid %d", outRid)
	}
	fwd := lineage.Trace(a, reg, scan, base[0])
	found := false
	for _, r := range fwd {
		if r == outRid {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected forward trace from base rid %d to reach sink output rid %d, got %v", base[0], outRid, fwd)
	}
}

func TestNonePolicyCapturesNothing(t *testing.T) {
	db := testDB()
	udfs := udf.NewRegistry()
	a := plan.NewArena()

	scan := a.Scan("t", "t")
	if err := plan.Resolve(a, scan, db); err != nil {
		t.Fatalf("resolve scan: %v", err)
	}
	sink := a.Sink(scan, plan.Collect)
	if err := plan.Resolve(a, sink, db); err != nil {
		t.Fatalf("resolve sink: %v", err)
	}

	pipelines := pipeline.Build(a, sink)
	reg := lineage.NewPlanner(lineage.NonePolicy{}).Apply(pipelines)

	if _, err := codegen.Execute(a, sink, pipelines, db, udfs); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, ok := reg.At(scan.ID); ok {
		t.Fatalf("expected no capture under NonePolicy")
	}
}

func TestPathSelectedPolicyRejectsNonAncestor(t *testing.T) {
	a := plan.NewArena()
	x := a.New(plan.KindScan)
	y := a.New(plan.KindScan)
	p := lineage.NewPathSelectedPolicy()
	err := p.AddPath(a, x, y)
	if err == nil {
		t.Fatalf("expected an error adding a path between unrelated operators")
	}
	if _, ok := err.(*lineage.PathError); !ok {
		t.Fatalf("expected *lineage.PathError, got %T", err)
	}
}
