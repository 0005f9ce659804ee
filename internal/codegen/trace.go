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

package codegen

import (
	"fmt"

	"github.com/databass-project/databass/internal/pipeline"
	"github.com/databass-project/databass/internal/plan"
)

// EmitProgram builds the Program for the plan rooted at root out of
// its pipelines: a pseudo-Go trace of each translator's produce/
// consume contract from spec.md §4.4 (CompiledQuery.PrintCode, via
// GoRenderer) and the rid/lineage-instrumented index (Run, exec.go)
// that actually executes root against a catalog when the query runs.
// Both views are built from the same root/pipelines here, once, so the
// printed trace and the executed query can never disagree about which
// operators got a lineage index.
func EmitProgram(a *plan.Arena, root *plan.Op, pipelines []*pipeline.Pipeline) *Program {
	ctx := NewContext()
	for i, p := range pipelines {
		ctx.Emit.AddLine(fmt.Sprintf("// pipeline %d", i))
		for _, tr := range p.Translators {
			emitTranslator(ctx, tr)
		}
	}
	prog := ctx.Emit.Program()
	prog.a = a
	prog.root = root
	prog.idx = buildIndex(pipelines)
	return prog
}

func emitTranslator(ctx *Context, tr *pipeline.Translator) {
	op := tr.Op
	label := fmt.Sprintf("%s/%s", op.Kind, tr.Role)
	switch op.Kind {
	case plan.KindScan:
		rowVar := ctx.Emit.NewVar("row")
		close := ctx.Emit.Indent(fmt.Sprintf("for %s := range scan(%q)", rowVar, op.Table))
		ctx.Emit.AddLine(fmt.Sprintf("consume(%s) // %s", rowVar, label))
		close()

	case plan.KindDummyScan:
		ctx.Emit.AddLine(fmt.Sprintf("consume(emptyTuple) // %s", label))

	case plan.KindFilter:
		close := ctx.Emit.Indent(fmt.Sprintf("if eval(%s, %s)", op.Cond, ctx.IO()))
		ctx.Emit.AddLine(fmt.Sprintf("consume(%s) // %s", ctx.IO(), label))
		close()

	case plan.KindProject:
		outVar := ctx.Emit.NewVar("proj")
		ctx.Emit.Set(outVar, fmt.Sprintf("project(%s)", ctx.IO()))
		ctx.Emit.AddLine(fmt.Sprintf("consume(%s) // %s", outVar, label))

	case plan.KindHashJoin:
		if tr.Role == pipeline.RoleLeft {
			tableVar := ctx.Emit.NewVar("buildTable")
			ctx.Emit.Declare(tableVar, "map[any][]row")
			ctx.Emit.AddLine(fmt.Sprintf("insert(%s, key(%s, %s)) // %s", tableVar, op.LeftKey, ctx.IO(), label))
		} else {
			close := ctx.Emit.Indent(fmt.Sprintf("for match := range probe(buildTable, key(%s, %s))", op.RightKey, ctx.IO()))
			ctx.Emit.AddLine(fmt.Sprintf("consume(join(match, %s)) // %s", ctx.IO(), label))
			close()
		}

	case plan.KindThetaJoin:
		if tr.Role == pipeline.RoleLeft {
			bufVar := ctx.Emit.NewVar("leftBuf")
			ctx.Emit.Declare(bufVar, "[]row")
			ctx.Emit.AddLine(fmt.Sprintf("append(%s, %s) // %s", bufVar, ctx.IO(), label))
		} else {
			close := ctx.Emit.Indent("for left := range leftBuf")
			innerClose := ctx.Emit.Indent(fmt.Sprintf("if eval(%s, concat(left, %s))", op.Cond, ctx.IO()))
			ctx.Emit.AddLine(fmt.Sprintf("consume(concat(left, %s)) // %s", ctx.IO(), label))
			innerClose()
			close()
		}

	case plan.KindGroupBy:
		if tr.Role == pipeline.RoleBottom {
			mapVar := ctx.Emit.NewVar("groups")
			ctx.Emit.Declare(mapVar, "map[any]*accumulator")
			ctx.Emit.AddLine(fmt.Sprintf("fold(%s, groupKey(%s), %s) // %s", mapVar, op.GroupExprs, ctx.IO(), label))
		} else {
			close := ctx.Emit.Indent("for _, group := range groups")
			ctx.Emit.AddLine(fmt.Sprintf("consume(finalize(group)) // %s", label))
			close()
		}

	case plan.KindDistinct:
		if tr.Role == pipeline.RoleBottom {
			setVar := ctx.Emit.NewVar("seen")
			ctx.Emit.Declare(setVar, "map[any]bool")
			ctx.Emit.AddLine(fmt.Sprintf("markSeen(%s, %s) // %s", setVar, ctx.IO(), label))
		} else {
			close := ctx.Emit.Indent("for _, row := range dedup(seen)")
			ctx.Emit.AddLine(fmt.Sprintf("consume(row) // %s", label))
			close()
		}

	case plan.KindOrderBy:
		if tr.Role == pipeline.RoleBottom {
			bufVar := ctx.Emit.NewVar("sortBuf")
			ctx.Emit.Declare(bufVar, "[]row")
			ctx.Emit.AddLine(fmt.Sprintf("append(%s, %s) // %s", bufVar, ctx.IO(), label))
		} else {
			close := ctx.Emit.Indent("for _, row := range sorted(sortBuf)")
			ctx.Emit.AddLine(fmt.Sprintf("consume(row) // %s", label))
			close()
		}

	case plan.KindLimit:
		ctx.Emit.AddLine(fmt.Sprintf("if withinLimit() { consume(%s) } // %s", ctx.IO(), label))

	case plan.KindSink:
		ctx.Emit.AddLine(fmt.Sprintf("emit(%s) // %s", ctx.IO(), label))

	default:
		ctx.Emit.AddLine(fmt.Sprintf("// unhandled translator %s", label))
	}
}
