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
	"strings"

	"golang.org/x/exp/slices"

	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/plan"
)

// RelSet is the canonical key for a set of relations (sorted,
// comma-joined aliases), used to memoize JoinInfo by subset.
type RelSet string

// NewRelSet canonicalizes a slice of aliases into a RelSet.
func NewRelSet(aliases []string) RelSet {
	cp := append([]string(nil), aliases...)
	slices.Sort(cp)
	return RelSet(strings.Join(cp, ","))
}

// JoinInfo memoizes the best-known plan for a set of relations: the
// relation set itself, the predicates entirely contained within it,
// and the best physical plan/cost found so far.
type JoinInfo struct {
	Relations  []string
	Key        RelSet
	Predicates []*expr.Expr
	BestPlan   *plan.Op
	BestCost   float64
}

// Overlap reports whether a and b's relation sets intersect.
func Overlap(a, b *JoinInfo) bool {
	set := make(map[string]bool, len(a.Relations))
	for _, r := range a.Relations {
		set[r] = true
	}
	for _, r := range b.Relations {
		if set[r] {
			return true
		}
	}
	return false
}

// Merge unions a and b's relations and attaches every predicate of all
// whose aliases fall within that union, each at most once (the same
// *expr.Expr pointer is never added twice), including predicates that
// span a and b.
func Merge(a, b *JoinInfo, all []*expr.Expr, aliasIndex map[string][]*expr.Expr) *JoinInfo {
	relSet := make(map[string]bool)
	for _, r := range a.Relations {
		relSet[r] = true
	}
	for _, r := range b.Relations {
		relSet[r] = true
	}
	rels := make([]string, 0, len(relSet))
	for r := range relSet {
		rels = append(rels, r)
	}
	slices.Sort(rels)
	return &JoinInfo{
		Relations:  rels,
		Key:        NewRelSet(rels),
		Predicates: predicatesWithin(rels, all),
	}
}

// predicatesWithin returns the subset of all whose every referenced
// alias is a member of rels.
func predicatesWithin(rels []string, all []*expr.Expr) []*expr.Expr {
	relSet := make(map[string]bool, len(rels))
	for _, r := range rels {
		relSet[r] = true
	}
	var out []*expr.Expr
	for _, p := range all {
		within := true
		for _, ref := range expr.ColumnRefs(p) {
			if !relSet[ref.Ref.Table] {
				within = false
				break
			}
		}
		if within {
			out = append(out, p)
		}
	}
	return out
}

// ClassifyPredicates splits a FROM fragment's predicate list into
// join predicates (binary equalities whose two sides reference
// distinct children aliases) and filters (everything else, which
// stays as a Filter above the From's replacement), and builds the
// alias -> predicates-involving-alias index spec.md §4.2 describes.
func ClassifyPredicates(predicates []*expr.Expr, aliases []string) (joinPreds, filters []*expr.Expr, aliasIndex map[string][]*expr.Expr) {
	aliasSet := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		aliasSet[a] = true
	}
	aliasIndex = make(map[string][]*expr.Expr)
	for _, p := range predicates {
		if isJoinPredicate(p, aliasSet) {
			joinPreds = append(joinPreds, p)
			for _, ref := range expr.ColumnRefs(p) {
				aliasIndex[ref.Ref.Table] = append(aliasIndex[ref.Ref.Table], p)
			}
		} else {
			filters = append(filters, p)
		}
	}
	return joinPreds, filters, aliasIndex
}

func isJoinPredicate(p *expr.Expr, aliasSet map[string]bool) bool {
	if p.Kind != expr.KindBinary || p.Op != "=" {
		return false
	}
	if p.Left.Kind != expr.KindColumnRef || p.Right.Kind != expr.KindColumnRef {
		return false
	}
	if !aliasSet[p.Left.Ref.Table] || !aliasSet[p.Right.Ref.Table] {
		return false
	}
	return p.Left.Ref.Table != p.Right.Ref.Table
}
