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

// Package pipeline chops a physical plan into a sequence of linear
// pipelines, each terminated by a pipeline breaker, wrapping every
// operator with a codegen Translator (spec.md §4.3).
package pipeline

import "github.com/databass-project/databass/internal/plan"

// Role distinguishes which side of a two-translator operator (a join
// or a breaker) a Translator represents. Operators with a single
// translator use RoleSingle.
type Role int

const (
	RoleSingle Role = iota
	RoleLeft
	RoleRight
	RoleBottom
	RoleTop
)

func (r Role) String() string {
	switch r {
	case RoleLeft:
		return "left"
	case RoleRight:
		return "right"
	case RoleBottom:
		return "bottom"
	case RoleTop:
		return "top"
	default:
		return "single"
	}
}

// Translator is a 1:1 codegen wrapper around a physical operator.
// Prev/Next link it to its neighbors within one pipeline; Sibling
// links a two-translator operator's halves (left<->right for joins,
// bottom<->top for order-by/group-by/distinct).
//
// The three lineage slots (InputRidVar, OutputRidVar, Lindexes) are
// populated by internal/lineage, not by this package: Lindexes is
// typed []any here purely to avoid an import cycle (lineage.Planner
// needs to import pipeline to walk Pipelines/Translators, so
// pipeline cannot import lineage.Lindex's concrete type back).
type Translator struct {
	Op   *plan.Op
	Role Role

	Prev, Next *Translator
	Sibling    *Translator

	InputRidVar  string
	OutputRidVar string
	Lindexes     []any
}

// LineageSink is the callback internal/lineage.Lindex implements;
// declared here rather than in internal/lineage so that Translator's
// Lindexes field (typed []any, see the comment above) can be type-
// asserted back to something callable by internal/codegen without
// either package needing to import internal/lineage.
type LineageSink interface {
	// Record links a freshly produced output rid back to the input
	// rid(s) that contributed to it (one rid for a 1:1 operator, many
	// for an N-to-1 fold such as a GroupBy group or a join match set).
	Record(outputRid int, inputRids ...int)
}

// IsProducerOfRids reports whether this translator allocates a fresh
// output-rid counter (scans, sinks, tops, right sides of joins) per
// the table in spec.md §4.5.
func (t *Translator) IsProducerOfRids() bool {
	switch t.Op.Kind {
	case plan.KindScan:
		return true
	case plan.KindSink:
		return true
	}
	switch t.Role {
	case RoleTop, RoleRight:
		return true
	}
	return false
}

// Pipeline is a maximal ordered chain of translators between pipeline
// breakers (the GLOSSARY definition); Translators[len-1] is the
// breaker (or the root sink, for the main pipeline).
type Pipeline struct {
	Translators []*Translator
}

// Breaker returns the pipeline's terminal translator.
func (p *Pipeline) Breaker() *Translator {
	if len(p.Translators) == 0 {
		return nil
	}
	return p.Translators[len(p.Translators)-1]
}

// Build converts the physical plan rooted at root into an ordered
// list of pipelines (leaves-first), per the traversal rules of
// spec.md §4.3. The last element of the returned slice is the "main"
// pipeline containing root.
func Build(a *plan.Arena, root *plan.Op) []*Pipeline {
	var result []*Pipeline
	main := &Pipeline{}
	buildInto(a, root, main, &result)
	result = append(result, main)
	for _, p := range result {
		linkSequence(p)
	}
	return result
}

func linkSequence(p *Pipeline) {
	for i := 1; i < len(p.Translators); i++ {
		p.Translators[i-1].Next = p.Translators[i]
		p.Translators[i].Prev = p.Translators[i-1]
	}
}

// buildInto implements the per-kind traversal rules and returns the
// translator that represents op's "output side" (the one a caller
// higher in the tree should treat as op's producer).
func buildInto(a *plan.Arena, op *plan.Op, cur *Pipeline, result *[]*Pipeline) *Translator {
	switch op.Kind {
	case plan.KindOrderBy, plan.KindGroupBy, plan.KindDistinct:
		top := &Translator{Op: op, Role: RoleTop}
		bottom := &Translator{Op: op, Role: RoleBottom}
		top.Sibling, bottom.Sibling = bottom, top

		childPipe := &Pipeline{}
		buildInto(a, a.Child(op, 0), childPipe, result)
		childPipe.Translators = append(childPipe.Translators, bottom)
		*result = append(*result, childPipe)

		cur.Translators = append(cur.Translators, top)
		return top

	case plan.KindHashJoin:
		left := &Translator{Op: op, Role: RoleLeft}
		right := &Translator{Op: op, Role: RoleRight}
		left.Sibling, right.Sibling = right, left

		leftPipe := &Pipeline{}
		buildInto(a, a.Child(op, 0), leftPipe, result)
		leftPipe.Translators = append(leftPipe.Translators, left)
		*result = append(*result, leftPipe)

		buildInto(a, a.Child(op, 1), cur, result)
		cur.Translators = append(cur.Translators, right)
		return right

	case plan.KindThetaJoin:
		left := &Translator{Op: op, Role: RoleLeft}
		right := &Translator{Op: op, Role: RoleRight}
		left.Sibling, right.Sibling = right, left

		buildInto(a, a.Child(op, 0), cur, result)
		cur.Translators = append(cur.Translators, left)
		buildInto(a, a.Child(op, 1), cur, result)
		cur.Translators = append(cur.Translators, right)
		return right

	default:
		if len(op.Children) > 0 {
			buildInto(a, a.Child(op, 0), cur, result)
		}
		tr := &Translator{Op: op, Role: RoleSingle}
		cur.Translators = append(cur.Translators, tr)
		return tr
	}
}
