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
	"fmt"

	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/plan"
)

// OptimizerError reports a join predicate referencing an alias absent
// from the FROM fragment it was attached to.
type OptimizerError struct {
	Msg string
}

func (e *OptimizerError) Error() string { return e.Msg }

// Strategy selects which join-enumeration algorithm Optimize uses.
type Strategy int

const (
	StrategySelinger Strategy = iota
	StrategyExhaustive
)

// Result is the outcome of optimizing a single FROM fragment.
type Result struct {
	Root        *plan.Op // replacement for the From node (a join tree, possibly wrapped in Filters)
	PlansTested int
}

// Optimize converts from (a plan.KindFrom op) into a binary join tree
// per spec.md §4.2: predicates are classified into join predicates
// and leftover filters, the chosen search strategy fills in the best
// physical join tree over from's children, and any leftover filter
// predicates are re-attached as Filter nodes above the join tree (the
// spec's "stays as a Filter above the From's replacement" rule).
// Callers must call a.Replace(from, result.Root) and re-run
// plan.Resolve over the whole tree afterwards.
func Optimize(a *plan.Arena, from *plan.Op, cat Catalog, strategy Strategy) (*Result, error) {
	if len(from.Children) == 1 {
		child := a.Get(from.Children[0])
		est := NewEstimator(a, cat, nil)
		root := child
		for _, f := range from.Predicates {
			root = a.Filter(root, f)
		}
		return &Result{Root: root, PlansTested: est.PlansTested}, nil
	}

	aliases := make([]string, len(from.Children))
	aliasOp := make(map[string]*plan.Op, len(from.Children))
	aliasTable := make(map[string]string, len(from.Children))
	for i := range from.Children {
		child := a.Get(from.Children[i])
		alias := child.Alias
		aliases[i] = alias
		aliasOp[alias] = child
		if child.Kind == plan.KindScan {
			aliasTable[alias] = child.Table
		}
	}

	joinPreds, filters, aliasIndex := ClassifyPredicates(from.Predicates, aliases)
	for _, p := range from.Predicates {
		for _, ref := range expr.ColumnRefs(p) {
			if _, ok := aliasOp[ref.Ref.Table]; ref.Ref.Table != "" && !ok {
				return nil, &OptimizerError{Msg: fmt.Sprintf("predicate references alias %q not present in FROM", ref.Ref.Table)}
			}
		}
	}

	est := NewEstimator(a, cat, aliasTable)
	var best *JoinInfo
	switch strategy {
	case StrategyExhaustive:
		best = Exhaustive(a, est, aliases, aliasOp, joinPreds, aliasIndex)
	default:
		best = Selinger(a, est, aliases, aliasOp, joinPreds, aliasIndex)
	}
	if best == nil || best.BestPlan == nil {
		return nil, &OptimizerError{Msg: "join optimizer produced no plan"}
	}
	// Candidates built after a winner was fixed re-parent the subplans
	// they share with it, so the chosen tree's parent links are set
	// once more here.
	plan.Walk(a, best.BestPlan, func(op *plan.Op) {
		for i := range op.Children {
			a.SetChild(op, i, a.Child(op, i))
		}
	})

	root := best.BestPlan
	for _, f := range filters {
		root = a.Filter(root, f)
	}
	return &Result{Root: root, PlansTested: est.PlansTested}, nil
}
