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

package pipeline

import (
	"testing"

	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/plan"
)

func TestBuildScanFilterSink(t *testing.T) {
	a := plan.NewArena()
	scan := a.Scan("t", "t")
	filt := a.Filter(scan, expr.BoolLit(true))
	sink := a.Sink(filt, plan.Collect)

	pipes := Build(a, sink)
	if len(pipes) != 1 {
		t.Fatalf("expected a single pipeline, got %d", len(pipes))
	}
	main := pipes[0]
	if len(main.Translators) != 3 {
		t.Fatalf("expected 3 translators, got %d", len(main.Translators))
	}
	if main.Translators[0].Op.Kind != plan.KindScan || main.Translators[2].Op.Kind != plan.KindSink {
		t.Fatalf("unexpected translator order: %+v", main.Translators)
	}
	if main.Breaker().Op.Kind != plan.KindSink {
		t.Fatalf("expected sink to be the breaker")
	}
}

func TestBuildHashJoinSplitsPipelines(t *testing.T) {
	a := plan.NewArena()
	l := a.Scan("l", "l")
	r := a.Scan("r", "r")
	hj := a.HashJoin(l, r, expr.Column("l", "k"), expr.Column("r", "k"))
	sink := a.Sink(hj, plan.Yield)

	pipes := Build(a, sink)
	if len(pipes) != 2 {
		t.Fatalf("expected 2 pipelines (left-build + main), got %d", len(pipes))
	}
	left := pipes[0]
	main := pipes[1]
	if left.Breaker().Role != RoleLeft {
		t.Fatalf("expected left pipeline to end in the hash-join left translator")
	}
	if left.Breaker().Sibling == nil || left.Breaker().Sibling.Role != RoleRight {
		t.Fatalf("expected left<->right sibling link")
	}
	if main.Translators[len(main.Translators)-1].Op.Kind != plan.KindSink {
		t.Fatalf("expected main pipeline to end at the sink")
	}
}

func TestBuildGroupBySplitsPipelines(t *testing.T) {
	a := plan.NewArena()
	scan := a.Scan("t", "t")
	grp := a.GroupBy(scan, []*expr.Expr{expr.Column("t", "a")}, []*expr.Expr{expr.Column("t", "a")}, []string{"a"})
	sink := a.Sink(grp, plan.Collect)

	pipes := Build(a, sink)
	if len(pipes) != 2 {
		t.Fatalf("expected 2 pipelines (bottom + main), got %d", len(pipes))
	}
	bottom := pipes[0].Breaker()
	if bottom.Role != RoleBottom {
		t.Fatalf("expected bottom translator, got role %v", bottom.Role)
	}
	if bottom.Sibling.Role != RoleTop {
		t.Fatalf("expected bottom<->top sibling link")
	}
}
