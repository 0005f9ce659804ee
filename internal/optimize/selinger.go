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
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/plan"
)

// sortedKeys returns m's RelSet keys in a fixed order, so the DP's
// tie-breaking among equal-cost candidates (and PlansTested) doesn't
// depend on Go's randomized map iteration.
func sortedKeys(m map[RelSet]*JoinInfo) []RelSet {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// Selinger runs the bottom-up dynamic program of spec.md §4.2: DP[k]
// maps canonical alias-set to the best-known JoinInfo of size k.
// Left-deep splits only (extend the previous level's best plan by one
// more leaf); bushy splits are permitted by the spec but not required
// and are not attempted here, matching the "left-deep-only splits are
// acceptable" carve-out.
func Selinger(a *plan.Arena, est *Estimator, aliases []string, aliasOp map[string]*plan.Op, joinPreds []*expr.Expr, aliasIndex map[string][]*expr.Expr) *JoinInfo {
	n := len(aliases)
	dp1 := map[RelSet]*JoinInfo{}
	for _, alias := range aliases {
		ji := &JoinInfo{Relations: []string{alias}, Key: NewRelSet([]string{alias}), BestPlan: aliasOp[alias]}
		ji.BestCost = est.Cost(ji.BestPlan)
		dp1[ji.Key] = ji
	}

	levels := map[int]map[RelSet]*JoinInfo{1: dp1}
	for k := 2; k <= n; k++ {
		cur := map[RelSet]*JoinInfo{}
		prev := levels[k-1]
		for _, sKey := range sortedKeys(prev) {
			sPrime := prev[sKey]
			for _, tKey := range sortedKeys(dp1) {
				t := dp1[tKey]
				if overlapsAlias(sPrime, t.Relations[0]) {
					continue
				}
				s := Merge(sPrime, t, joinPreds, aliasIndex)
				if len(s.Predicates) == 0 {
					continue // handled by the cross-product fallback below
				}
				considerCandidates(a, est, s, sPrime, t, joinPreds)
				if existing, ok := cur[s.Key]; !ok || s.BestCost < existing.BestCost {
					cur[s.Key] = s
				}
			}
		}
		levels[k] = cur
		if len(cur) == 0 {
			// Cartesian component: fall back to cross-product absorption
			// (spec.md §4.2 step 3).
			absorbCartesian(a, est, levels, k, n, dp1, joinPreds)
			break
		}
	}
	final := pickFinal(levels, n, dp1)
	return final
}

func overlapsAlias(s *JoinInfo, alias string) bool {
	for _, r := range s.Relations {
		if r == alias {
			return true
		}
	}
	return false
}

// considerCandidates evaluates every physical alternative for
// (sPrime, t) and records the cheapest as s's BestPlan/BestCost.
func considerCandidates(a *plan.Arena, est *Estimator, s, sPrime, t *JoinInfo, joinPreds []*expr.Expr) {
	cands := Candidates(a, sPrime, t, joinPreds)
	best := s.BestPlan
	bestCost := s.BestCost
	first := best == nil
	for _, c := range cands {
		cost := est.Cost(c)
		if first || cost < bestCost {
			best, bestCost, first = c, cost, false
		}
	}
	fixParents(a, best, sPrime.BestPlan, t.BestPlan)
	s.BestPlan = best
	s.BestCost = bestCost
}

// absorbCartesian implements spec.md §4.2 step 3: take the cheapest
// JoinInfo already computed, and cross-product it in turn with each
// remaining leaf, growing a single JoinInfo through the rest of the
// DP levels until every leaf has been absorbed.
func absorbCartesian(a *plan.Arena, est *Estimator, levels map[int]map[RelSet]*JoinInfo, k, n int, dp1 map[RelSet]*JoinInfo, joinPreds []*expr.Expr) {
	prev := levels[k-1]
	var cheapest *JoinInfo
	for _, key := range sortedKeys(prev) {
		ji := prev[key]
		if cheapest == nil || ji.BestCost < cheapest.BestCost {
			cheapest = ji
		}
	}
	if cheapest == nil {
		// k-1 == 1: nothing computed yet at a joined level; start from
		// the cheapest singleton.
		for _, key := range sortedKeys(dp1) {
			ji := dp1[key]
			if cheapest == nil || ji.BestCost < cheapest.BestCost {
				cheapest = ji
			}
		}
	}
	remaining := remainingLeaves(cheapest, dp1)
	cur := cheapest
	for _, leaf := range remaining {
		merged := Merge(cur, leaf, nil, nil)
		considerCandidates(a, est, merged, cur, leaf, joinPreds)
		cur = merged
		levels[len(cur.Relations)] = map[RelSet]*JoinInfo{cur.Key: cur}
	}
}

func remainingLeaves(s *JoinInfo, dp1 map[RelSet]*JoinInfo) []*JoinInfo {
	in := aliasSet(s.Relations)
	var out []*JoinInfo
	for _, k := range sortedKeys(dp1) {
		ji := dp1[k]
		if !in[ji.Relations[0]] {
			out = append(out, ji)
		}
	}
	return out
}

func pickFinal(levels map[int]map[RelSet]*JoinInfo, n int, dp1 map[RelSet]*JoinInfo) *JoinInfo {
	if m, ok := levels[n]; ok {
		for _, ji := range m {
			return ji
		}
	}
	// Cartesian absorption may have left the final answer at whatever
	// level it finished growing to; find the JoinInfo covering all n
	// relations.
	for k := n; k >= 1; k-- {
		if m, ok := levels[k]; ok {
			for _, ji := range m {
				if len(ji.Relations) == n {
					return ji
				}
			}
		}
	}
	// single relation case
	for _, ji := range dp1 {
		return ji
	}
	return nil
}
