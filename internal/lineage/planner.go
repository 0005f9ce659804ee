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
	"fmt"

	"github.com/databass-project/databass/internal/pipeline"
	"github.com/databass-project/databass/internal/plan"
)

// Planner decorates a compiled pipeline with lineage indexes per the
// chosen Policy, populating each captured translator's Lindexes slot
// and naming its InputRidVar/OutputRidVar (the variable names a
// textual renderer would use; internal/codegen's exec.go consults the
// indexes directly rather than the names, but the names are filled in
// so PrintCode output and the real execution path describe the same
// capture points).
type Planner struct {
	Policy Policy
}

// NewPlanner returns a planner applying policy.
func NewPlanner(policy Policy) *Planner {
	return &Planner{Policy: policy}
}

// Apply walks pipelines and, for every operator the policy says to
// capture, attaches a Lindex to the translator that actually produces
// that operator's output rid (see plan.Op.Kind / pipeline.Role:
// Scan/Sink/RoleTop/RoleRight, matching Translator.IsProducerOfRids).
// It returns a Registry the compiled query's runtime consults once
// execution has populated the indexes.
func (p *Planner) Apply(pipelines []*pipeline.Pipeline) *Registry {
	reg := &Registry{byOp: map[plan.ID]*Lindex{}}
	varSeq := 0
	for _, pl := range pipelines {
		for _, tr := range pl.Translators {
			if !tr.IsProducerOfRids() {
				continue
			}
			if !p.Policy.Capture(tr.Op) {
				continue
			}
			kind, rep := classify(tr.Op, tr.Role)
			lx := NewLindex(kind, rep)
			tr.Lindexes = append(tr.Lindexes, lx)

			varSeq++
			tr.InputRidVar = fmt.Sprintf("l_in_%d", varSeq)
			tr.OutputRidVar = fmt.Sprintf("l_out_%d", varSeq)

			reg.byOp[tr.Op.ID] = lx
			if p.Policy.Materialize(tr.Op) {
				reg.materialized = append(reg.materialized, tr.Op.ID)
			}
		}
	}
	return reg
}

// classify implements the operator -> (Kind, Representation) table of
// spec.md §4.5.
func classify(op *plan.Op, role pipeline.Role) (Kind, Representation) {
	switch op.Kind {
	case plan.KindScan, plan.KindDummyScan:
		return Identity, Preallocated
	case plan.KindSink:
		return One, Preallocated
	case plan.KindOrderBy:
		return One, Dynamic
	case plan.KindDistinct:
		return N, Sparse
	case plan.KindGroupBy:
		return N, OneToMany
	case plan.KindHashJoin, plan.KindThetaJoin:
		return N, OneToMany
	default:
		return Identity, Dynamic
	}
}
