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

// Exhaustive recomputes the best join tree for any subset of
// relations by unmemoized recursion: every non-trivial bipartition of
// the subset is tried, and for each side the best plan is recomputed
// from scratch. It is retained purely as a test oracle (spec.md §4.2)
// -- its PlansTested count grows combinatorially and is compared
// against Selinger's in spec.md §8 scenario S5.
func Exhaustive(a *plan.Arena, est *Estimator, aliases []string, aliasOp map[string]*plan.Op, joinPreds []*expr.Expr, aliasIndex map[string][]*expr.Expr) *JoinInfo {
	leaves := make([]*JoinInfo, len(aliases))
	for i, alias := range aliases {
		leaves[i] = &JoinInfo{Relations: []string{alias}, Key: NewRelSet([]string{alias}), BestPlan: aliasOp[alias]}
	}
	full := make([]int, len(aliases))
	for i := range full {
		full[i] = i
	}
	return exhaustiveBest(a, est, leaves, joinPreds, full)
}

func exhaustiveBest(a *plan.Arena, est *Estimator, leaves []*JoinInfo, joinPreds []*expr.Expr, idx []int) *JoinInfo {
	if len(idx) == 1 {
		leaf := leaves[idx[0]]
		cost := est.Cost(leaf.BestPlan)
		return &JoinInfo{Relations: leaf.Relations, Key: leaf.Key, BestPlan: leaf.BestPlan, BestCost: cost}
	}

	var best *JoinInfo
	full := 1<<len(idx) - 1
	for mask := 1; mask < full; mask++ {
		comp := full &^ mask
		if mask > comp {
			continue // consider each unordered bipartition once
		}
		leftIdx := subset(idx, mask)
		rightIdx := subset(idx, comp)

		left := exhaustiveBest(a, est, leaves, joinPreds, leftIdx)
		right := exhaustiveBest(a, est, leaves, joinPreds, rightIdx)
		merged := Merge(left, right, joinPreds, nil)
		if len(merged.Predicates) == 0 {
			// still a valid (if uninformed) cross product candidate;
			// the exhaustive oracle explores it rather than deferring.
		}
		for _, c := range Candidates(a, left, right, joinPreds) {
			cost := est.Cost(c)
			if best == nil || cost < merged.BestCost || merged.BestPlan == nil {
				if merged.BestPlan == nil || cost < merged.BestCost {
					merged.BestPlan, merged.BestCost = c, cost
				}
			}
		}
		if merged.BestPlan != nil {
			fixParents(a, merged.BestPlan, left.BestPlan, right.BestPlan)
		}
		if best == nil || merged.BestCost < best.BestCost {
			best = merged
		}
	}
	return best
}

func subset(idx []int, mask int) []int {
	var out []int
	for i, v := range idx {
		if mask&(1<<i) != 0 {
			out = append(out, v)
		}
	}
	return out
}
