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
	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/plan"
)

// crossPredicates returns the predicates among joinPreds that
// reference exactly one alias from L and one from R -- the "P"
// of spec.md §4.2's physical-alternatives rule.
func crossPredicates(L, R *JoinInfo, joinPreds []*expr.Expr) []*expr.Expr {
	inL := aliasSet(L.Relations)
	inR := aliasSet(R.Relations)
	var out []*expr.Expr
	for _, p := range joinPreds {
		refs := expr.ColumnRefs(p)
		if len(refs) != 2 {
			continue
		}
		a, b := refs[0].Ref.Table, refs[1].Ref.Table
		if (inL[a] && inR[b]) || (inL[b] && inR[a]) {
			out = append(out, p)
		}
	}
	return out
}

func aliasSet(aliases []string) map[string]bool {
	m := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		m[a] = true
	}
	return m
}

// cnf conjoins preds with AND; an empty list yields a literal `true`
// (the cross-product condition).
func cnf(preds []*expr.Expr) *expr.Expr {
	if len(preds) == 0 {
		return expr.BoolLit(true)
	}
	out := preds[0]
	for _, p := range preds[1:] {
		out = expr.BinaryExpr("and", out, p)
	}
	return out
}

// Candidates builds every physical alternative for joining L and R
// per spec.md §4.2: with no cross predicates, a single cross-product
// ThetaJoin; otherwise a HashJoin per equality predicate (both probe/
// build orderings) plus a ThetaJoin over the conjunction of the cross
// predicates (both orderings).
func Candidates(a *plan.Arena, L, R *JoinInfo, joinPreds []*expr.Expr) []*plan.Op {
	P := crossPredicates(L, R, joinPreds)
	if len(P) == 0 {
		return []*plan.Op{a.ThetaJoin(L.BestPlan, R.BestPlan, expr.BoolLit(true))}
	}
	var out []*plan.Op
	for _, p := range P {
		if p.Kind != expr.KindBinary || p.Op != "=" {
			continue
		}
		left, right := p.Left, p.Right
		inL := aliasSet(L.Relations)
		if !inL[left.Ref.Table] {
			left, right = right, left
		}
		out = append(out, a.HashJoin(L.BestPlan, R.BestPlan, left, right))
		out = append(out, a.HashJoin(R.BestPlan, L.BestPlan, right, left))
	}
	cond := cnf(P)
	out = append(out, a.ThetaJoin(L.BestPlan, R.BestPlan, cond))
	out = append(out, a.ThetaJoin(R.BestPlan, L.BestPlan, cond))
	return out
}

// fixParents re-wires chosen's children pointers after the candidate
// churn in Candidates has left L/R's Parent fields pointing at
// whichever candidate was built last; only the winning plan's parent
// links need to be correct once a JoinInfo's BestPlan is fixed.
func fixParents(a *plan.Arena, chosen *plan.Op, l, r *plan.Op) {
	a.SetChild(chosen, 0, l)
	a.SetChild(chosen, 1, r)
}
