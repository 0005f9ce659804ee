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

// Package lineage captures, per compiled query, which output tuples
// descend from which input tuples. A Policy decides which operators
// along the plan bother building an index at all; Planner.Apply wires
// the chosen policy's decisions into a compiled pipeline's
// translators; Registry answers lineage queries once the query has
// run.
//
// Grounded on original_source/databass/compile/lpolicy.py's
// LineagePolicy/NoLineagePolicy/AllLineagePolicy/
// EndtoEndLineagePolicy, restated over the tagged plan.Op tree instead
// of the original's class-per-operator translators.
package lineage

import "github.com/databass-project/databass/internal/plan"

// Policy decides, per plan operator, whether a lineage index should
// be captured (an index is built at all) and materialized (retained
// for querying after the run, as opposed to discarded once consumed
// by a downstream index).
type Policy interface {
	Capture(op *plan.Op) bool
	Materialize(op *plan.Op) bool
}

// NonePolicy captures nothing: the compiled query pays zero lineage
// overhead, spec.md §4.5's default.
type NonePolicy struct{}

func (NonePolicy) Capture(*plan.Op) bool     { return false }
func (NonePolicy) Materialize(*plan.Op) bool { return false }

// AllPolicy captures and materializes lineage at every operator.
type AllPolicy struct{}

func (AllPolicy) Capture(*plan.Op) bool     { return true }
func (AllPolicy) Materialize(*plan.Op) bool { return true }

// EndToEndPolicy captures lineage at every operator (so a query can
// still be traced hop-by-hop) and marks only the root as materialized.
// The intermediate indexes stay in the Registry like any other; none
// is discarded or folded into the next operator's index.
type EndToEndPolicy struct{}

func (EndToEndPolicy) Capture(*plan.Op) bool { return true }
func (EndToEndPolicy) Materialize(op *plan.Op) bool {
	return op.Parent == plan.NoID
}

// PathSelectedPolicy captures and materializes lineage only along
// explicitly registered source->destination paths, grounded on
// LineagePolicy.add_path/bcapture/bmaterialize.
type PathSelectedPolicy struct {
	toCapture     map[plan.ID]bool
	toMaterialize map[plan.ID]bool
}

// NewPathSelectedPolicy returns an empty path-selected policy; call
// AddPath to register the operators spec.md §4.5 should track lineage
// through.
func NewPathSelectedPolicy() *PathSelectedPolicy {
	return &PathSelectedPolicy{toCapture: map[plan.ID]bool{}, toMaterialize: map[plan.ID]bool{}}
}

// AddPath walks from src up to dst along Arena parent pointers (src
// must be a descendant of dst), marking every operator on the path
// (inclusive) as captured, and src/dst as materialized.
func (p *PathSelectedPolicy) AddPath(a *plan.Arena, src, dst *plan.Op) error {
	cur := src
	for {
		p.toCapture[cur.ID] = true
		if cur.ID == dst.ID {
			break
		}
		if cur.Parent == plan.NoID {
			return &PathError{Src: src, Dst: dst}
		}
		cur = a.Get(cur.Parent)
	}
	p.toMaterialize[src.ID] = true
	p.toMaterialize[dst.ID] = true
	return nil
}

func (p *PathSelectedPolicy) Capture(op *plan.Op) bool     { return p.toCapture[op.ID] }
func (p *PathSelectedPolicy) Materialize(op *plan.Op) bool { return p.toMaterialize[op.ID] }

// PathError reports an AddPath call where dst is not an ancestor of
// src in the plan tree.
type PathError struct{ Src, Dst *plan.Op }

func (e *PathError) Error() string {
	return "lineage: " + e.Src.Kind.String() + " is not a descendant of " + e.Dst.Kind.String()
}
