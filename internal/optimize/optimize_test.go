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

package optimize

import (
	"testing"

	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/plan"
)

type fakeCatalog struct {
	card  map[string]int
	stats map[string]ColumnStats
}

func (f *fakeCatalog) Cardinality(table string) (int, error) {
	if n, ok := f.card[table]; ok {
		return n, nil
	}
	return 100, nil
}

func (f *fakeCatalog) ColumnStats(table, column string) (ColumnStats, error) {
	if s, ok := f.stats[table+"."+column]; ok {
		return s, nil
	}
	return ColumnStats{HasMinMax: true, Min: 0, Max: 99}, nil
}

func chain(n int) (*plan.Arena, *plan.Op, *fakeCatalog) {
	a := plan.NewArena()
	cat := &fakeCatalog{card: map[string]int{}, stats: map[string]ColumnStats{}}
	children := make([]*plan.Op, n)
	var preds []*expr.Expr
	for i := 0; i < n; i++ {
		alias := string(rune('a' + i))
		children[i] = a.Scan("t", alias)
		cat.card["t"] = 100
		if i > 0 {
			prev := string(rune('a' + i - 1))
			preds = append(preds, expr.BinaryExpr("=", expr.Column(prev, "k"), expr.Column(alias, "k")))
		}
	}
	from := a.From(children, preds)
	return a, from, cat
}

func TestOptimizeTwoRelationsHashJoin(t *testing.T) {
	a, from, cat := chain(2)
	res, err := Optimize(a, from, cat, StrategySelinger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Root.Kind != plan.KindHashJoin {
		t.Fatalf("expected a hash join, got %v", res.Root.Kind)
	}
}

func TestOptimizeCrossProductNoPredicates(t *testing.T) {
	a := plan.NewArena()
	cat := &fakeCatalog{card: map[string]int{"t": 10}}
	l := a.Scan("t", "l")
	r := a.Scan("t", "r")
	from := a.From([]*plan.Op{l, r}, nil)
	res, err := Optimize(a, from, cat, StrategySelinger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Root.Kind != plan.KindThetaJoin {
		t.Fatalf("expected a cross-product ThetaJoin, got %v", res.Root.Kind)
	}
}

func TestOptimizeUnknownAliasIsOptimizerError(t *testing.T) {
	a := plan.NewArena()
	cat := &fakeCatalog{card: map[string]int{"t": 10}}
	l := a.Scan("t", "l")
	r := a.Scan("t", "r")
	pred := expr.BinaryExpr("=", expr.Column("l", "k"), expr.Column("missing", "k"))
	from := a.From([]*plan.Op{l, r}, []*expr.Expr{pred})
	_, err := Optimize(a, from, cat, StrategySelinger)
	if err == nil {
		t.Fatalf("expected OptimizerError")
	}
	if _, ok := err.(*OptimizerError); !ok {
		t.Fatalf("expected *OptimizerError, got %T: %v", err, err)
	}
}

func TestSelingerVisitsNoMoreThanExhaustive(t *testing.T) {
	for _, n := range []int{3, 4, 5} {
		a1, from1, cat1 := chain(n)
		r1, err := Optimize(a1, from1, cat1, StrategySelinger)
		if err != nil {
			t.Fatalf("selinger n=%d: %v", n, err)
		}
		a2, from2, cat2 := chain(n)
		r2, err := Optimize(a2, from2, cat2, StrategyExhaustive)
		if err != nil {
			t.Fatalf("exhaustive n=%d: %v", n, err)
		}
		if r1.PlansTested > r2.PlansTested {
			t.Fatalf("n=%d: selinger tested %d plans, exhaustive tested %d; expected selinger <= exhaustive", n, r1.PlansTested, r2.PlansTested)
		}
	}
}
