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

package lineage

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/databass-project/databass/internal/plan"
)

// Registry is what Planner.Apply returns: the set of Lindex objects
// it wired into a compiled query's translators, keyed by the operator
// that owns each one, plus which of those were marked materialized by
// the policy. Once the query has run (codegen.Execute has driven
// every Lindex.Record call), callers use Back/Forward to answer
// per-operator lineage queries, and Trace/TraceBack to walk a rid
// across the whole captured path the way spec.md §4.5 describes
// end-to-end lineage.
type Registry struct {
	byOp         map[plan.ID]*Lindex
	materialized []plan.ID
}

// At returns the Lindex captured for op, if any was (Policy.Capture
// returned false, or op wasn't a rid-producing translator at all).
func (r *Registry) At(opID plan.ID) (*Lindex, bool) {
	lx, ok := r.byOp[opID]
	return lx, ok
}

// Materialized lists the operators whose index the policy asked to
// retain rather than treat as transient (EndToEndPolicy keeps only
// the root; AllPolicy keeps every captured operator).
func (r *Registry) Materialized() []plan.ID {
	return append([]plan.ID(nil), r.materialized...)
}

// Operators lists every operator this registry captured a Lindex for,
// in a fixed ascending order, independent of byOp's randomized Go map
// iteration order. Used wherever a caller needs to walk the whole
// registry deterministically (diagnostics, the root's PrintCode trace)
// rather than look up one operator at a time via At.
func (r *Registry) Operators() []plan.ID {
	keys := maps.Keys(r.byOp)
	slices.Sort(keys)
	return keys
}

// Back returns the input rid(s) that produced outputRid at op, or nil
// if op has no captured index or outputRid was never recorded.
func (r *Registry) Back(opID plan.ID, outputRid int) []int {
	lx, ok := r.byOp[opID]
	if !ok {
		return nil
	}
	return lx.Back[outputRid]
}

// Forward returns the output rid(s) at op that inputRid contributed
// to, or nil if op has no captured index or inputRid never fed one.
func (r *Registry) Forward(opID plan.ID, inputRid int) []int {
	lx, ok := r.byOp[opID]
	if !ok {
		return nil
	}
	return lx.Forward[inputRid]
}

// TraceBack walks op's subtree in pre-order (every operator before its
// descendants), applying each captured operator's Back map, and returns
// every base rid that (transitively) contributed to rid at op. Rids are
// unique across the whole query, so only the operator that produced a
// rid has a Back entry for it. Operators with no captured index are
// transparent: the rid passes through unchanged (the Identity case —
// Filter, Project, Limit, SubQuerySource never allocate a fresh rid, so
// there is nothing to look up); so is a scan's entry, which records a
// base rid with no inputs.
func TraceBack(a *plan.Arena, reg *Registry, op *plan.Op, rid int) []int {
	frontier := []int{rid}
	plan.Walk(a, op, func(cur *plan.Op) {
		if lx, ok := reg.At(cur.ID); ok {
			var next []int
			for _, r := range frontier {
				if ins := lx.Back[r]; len(ins) > 0 {
					next = append(next, ins...)
				} else {
					next = append(next, r)
				}
			}
			frontier = next
		}
	})
	return frontier
}

// Trace walks from op down toward the root along Parent pointers (the
// forward direction, "which output rids did this input rid reach"),
// the mirror image of TraceBack.
func Trace(a *plan.Arena, reg *Registry, op *plan.Op, rid int) []int {
	frontier := []int{rid}
	for cur := op; cur != nil; {
		if lx, ok := reg.At(cur.ID); ok {
			var next []int
			for _, r := range frontier {
				if outs, ok := lx.Forward[r]; ok {
					next = append(next, outs...)
				} else {
					next = append(next, r)
				}
			}
			frontier = next
		}
		if cur.Parent == plan.NoID {
			break
		}
		cur = a.Get(cur.Parent)
	}
	return frontier
}
