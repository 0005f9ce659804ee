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

package compiler

import (
	"github.com/google/uuid"

	"github.com/databass-project/databass/internal/codegen"
	"github.com/databass-project/databass/internal/dlog"
	"github.com/databass-project/databass/internal/lineage"
	"github.com/databass-project/databass/internal/pipeline"
	"github.com/databass-project/databass/internal/plan"
	"github.com/databass-project/databass/internal/row"
)

// CompiledQuery is the artifact Compile returns: a resolved, optimized
// physical plan, the pipeline decomposition and lineage registry built
// over it, and the session that can Run it.
type CompiledQuery struct {
	ID        uuid.UUID
	Arena     *plan.Arena
	Root      *plan.Op
	Pipelines []*pipeline.Pipeline
	Lineage   *lineage.Registry
	Program   *codegen.Program

	session *Session
}

// Compile turns a resolved logical plan into a CompiledQuery: every
// plan.KindFrom fragment is replaced by the chosen join strategy's
// best tree (internal/optimize), the whole plan is re-resolved against
// the session's catalog, the result is chopped into pipelines
// (internal/pipeline), a lineage index is wired in per policy
// (internal/lineage), and a textual trace is rendered for inspection
// (internal/codegen.EmitProgram) — spec.md §4.6's driver, restated
// as Sneller's own query package strings together its own plan/pir,
// plan and vm stages behind one Compile call.
func Compile(session *Session, a *plan.Arena, root *plan.Op, strategy OptimizeStrategy, policy lineage.Policy) (*CompiledQuery, error) {
	if err := optimizeFroms(a, root, session, strategy); err != nil {
		return nil, err
	}
	// From-fragment replacement can change child schemas (a join tree
	// has a different output shape than the From it replaced), so the
	// whole tree is re-resolved once more now that every From is gone.
	if err := plan.Resolve(a, root, session.DB); err != nil {
		return nil, &CompilationError{Stage: "resolve-after-optimize", Err: err}
	}

	pipelines := pipeline.Build(a, root)
	reg := lineage.NewPlanner(policy).Apply(pipelines)
	prog := codegen.EmitProgram(a, root, pipelines)
	dlog.Stage("compile", "built %d pipeline(s), captured lineage at %d operator(s), %d materialized", len(pipelines), len(reg.Operators()), len(reg.Materialized()))

	return &CompiledQuery{
		ID:        uuid.New(),
		Arena:     a,
		Root:      root,
		Pipelines: pipelines,
		Lineage:   reg,
		Program:   prog,
		session:   session,
	}, nil
}

// PrintCode renders the compiled query's produce/consume trace as
// pseudo-Go, per spec.md §4.4's debugging/teaching requirement. The
// rendered text itself is never parsed or compiled back — it is q.Program
// viewed as a string rather than run — but q.Program is the exact same
// value Run (below) executes, so the trace can never drift from what
// actually happens when the query runs.
func (q *CompiledQuery) PrintCode() string {
	return (codegen.GoRenderer{}).Render(q.Program)
}

// SourceOp returns the Scan or SubQuerySource operator registered under
// alias in the compiled plan, or nil if no FROM item used that alias.
// Lets a caller inspect (e.g. print) exactly which physical node a
// table name in the original query ended up bound to, after the join
// optimizer has possibly reordered and rewrapped every FROM item.
func (q *CompiledQuery) SourceOp(alias string) *plan.Op {
	var found *plan.Op
	plan.Walk(q.Arena, q.Root, func(op *plan.Op) {
		if found != nil {
			return
		}
		if (op.Kind == plan.KindScan || op.Kind == plan.KindSubQuerySource) && op.Alias == alias {
			found = op
		}
	})
	return found
}

// Run drives q.Program against the session's catalog, notifying every
// wired Lindex as rows flow through. It is q.Program.Run, not a parallel
// evaluator: the Program EmitProgram built for PrintCode above is the
// same value executed here. Each Run first empties every index in
// q.Lineage, so afterwards the registry holds that run's lineage only;
// Run does not allocate a new Registry, so a handle to q.Lineage taken
// before a later Run sees that later run's entries.
func (q *CompiledQuery) Run() (row.Table, error) {
	for _, id := range q.Lineage.Operators() {
		lx, _ := q.Lineage.At(id)
		lx.Back, lx.Forward = map[int][]int{}, map[int][]int{}
	}
	out, err := q.Program.Run(q.session.DB, q.session.UDFs)
	if err != nil {
		return nil, &CompilationError{Stage: "execute", Err: err}
	}
	return out, nil
}
