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

	"github.com/databass-project/databass/internal/catalog"
	"github.com/databass-project/databass/internal/evalexpr"
	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/pipeline"
	"github.com/databass-project/databass/internal/plan"
	"github.com/databass-project/databass/internal/row"
	"github.com/databass-project/databass/internal/udf"
)

// Tagged pairs a row with the output rid the lineage system tracks it
// under (spec.md §4.5); rid 0 is never allocated, so the zero value is
// never mistaken for a real tag.
type Tagged struct {
	Rid int
	Row row.Row
}

// ridAllocator is the single counter every pipeline shares: output
// rids are unique across the whole compiled query, not per-operator.
type ridAllocator struct{ next int }

func (g *ridAllocator) alloc() int {
	g.next++
	return g.next
}

// translatorIndex resolves (plan op, role) pairs back to the
// translator(s) a lineage-aware Execute must notify, per operator,
// since a two-sided operator (join, breaker) has one translator per
// role.
type translatorIndex map[plan.ID][]*pipeline.Translator

func buildIndex(pipelines []*pipeline.Pipeline) translatorIndex {
	idx := translatorIndex{}
	for _, p := range pipelines {
		for _, tr := range p.Translators {
			idx[tr.Op.ID] = append(idx[tr.Op.ID], tr)
		}
	}
	return idx
}

func (idx translatorIndex) record(op *plan.Op, role pipeline.Role, outputRid int, inputRids ...int) {
	for _, tr := range idx[op.ID] {
		if tr.Role != role && !(tr.Role == pipeline.RoleSingle && role == pipeline.RoleSingle) {
			continue
		}
		for _, l := range tr.Lindexes {
			if sink, ok := l.(pipeline.LineageSink); ok {
				sink.Record(outputRid, inputRids...)
			}
		}
	}
}

// Run actually executes this Program's plan against db, instrumented
// with the rid bookkeeping and lineage.LineageSink callbacks the
// translators decorating its pipelines were given by
// lineage.Planner.Apply (the same idx EmitProgram built the trace
// from). CompiledQuery.Run calls this directly; it walks each operator
// against the plan tree (the same recursive shape internal/interp
// uses) rather than replaying the flattened Translators list, because
// a pipeline's translator order interleaves multiple source subtrees
// (e.g. both sides of a ThetaJoin) and so is not itself a valid single
// execution order.
func (p *Program) Run(db *catalog.Database, udfs *udf.Registry) (row.Table, error) {
	gen := &ridAllocator{}
	tagged, err := run(p.a, p.root, p.idx, db, udfs, gen)
	if err != nil {
		return nil, err
	}
	out := make(row.Table, len(tagged))
	for i, t := range tagged {
		out[i] = t.Row
	}
	return out, nil
}

// Execute is a convenience wrapper for callers that don't need the
// intermediate Program value: it builds one with EmitProgram and runs
// it immediately.
func Execute(a *plan.Arena, root *plan.Op, pipelines []*pipeline.Pipeline, db *catalog.Database, udfs *udf.Registry) (row.Table, error) {
	return EmitProgram(a, root, pipelines).Run(db, udfs)
}

func run(a *plan.Arena, op *plan.Op, idx translatorIndex, db *catalog.Database, udfs *udf.Registry, gen *ridAllocator) ([]Tagged, error) {
	switch op.Kind {
	case plan.KindScan:
		t, ok := db.Table(op.Table)
		if !ok {
			return nil, fmt.Errorf("codegen: unknown table %q", op.Table)
		}
		out := make([]Tagged, len(t.Rows))
		for i, r := range t.Rows {
			rid := gen.alloc()
			idx.record(op, pipeline.RoleSingle, rid)
			out[i] = Tagged{Rid: rid, Row: r.Clone()}
		}
		return out, nil

	case plan.KindDummyScan:
		rid := gen.alloc()
		idx.record(op, pipeline.RoleSingle, rid)
		return []Tagged{{Rid: rid, Row: row.Row{}}}, nil

	case plan.KindSubQuerySource:
		return run(a, a.Child(op, 0), idx, db, udfs, gen)

	case plan.KindFilter:
		child, err := run(a, a.Child(op, 0), idx, db, udfs, gen)
		if err != nil {
			return nil, err
		}
		var out []Tagged
		for _, t := range child {
			v, err := evalexpr.Eval(op.Cond, t.Row, udfs)
			if err != nil {
				return nil, err
			}
			if b, _ := v.(bool); b {
				out = append(out, t)
			}
		}
		return out, nil

	case plan.KindProject:
		child, err := run(a, a.Child(op, 0), idx, db, udfs, gen)
		if err != nil {
			return nil, err
		}
		out := make([]Tagged, len(child))
		for i, t := range child {
			nr := make(row.Row, len(op.Exprs))
			for j, e := range op.Exprs {
				v, err := evalexpr.Eval(e, t.Row, udfs)
				if err != nil {
					return nil, err
				}
				nr[j] = v
			}
			out[i] = Tagged{Rid: t.Rid, Row: nr}
		}
		return out, nil

	case plan.KindThetaJoin:
		return runThetaJoin(a, op, idx, db, udfs, gen)

	case plan.KindHashJoin:
		return runHashJoin(a, op, idx, db, udfs, gen)

	case plan.KindGroupBy:
		return runGroupBy(a, op, idx, db, udfs, gen)

	case plan.KindDistinct:
		return runDistinct(a, op, idx, db, udfs, gen)

	case plan.KindOrderBy:
		return runOrderBy(a, op, idx, db, udfs, gen)

	case plan.KindLimit:
		return runLimit(a, op, idx, db, udfs, gen)

	case plan.KindSink:
		child, err := run(a, a.Child(op, 0), idx, db, udfs, gen)
		if err != nil {
			return nil, err
		}
		out := make([]Tagged, len(child))
		for i, t := range child {
			rid := gen.alloc()
			idx.record(op, pipeline.RoleSingle, rid, t.Rid)
			out[i] = Tagged{Rid: rid, Row: t.Row}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("codegen: cannot execute plan node of kind %v", op.Kind)
	}
}

func runThetaJoin(a *plan.Arena, op *plan.Op, idx translatorIndex, db *catalog.Database, udfs *udf.Registry, gen *ridAllocator) ([]Tagged, error) {
	left, err := run(a, a.Child(op, 0), idx, db, udfs, gen)
	if err != nil {
		return nil, err
	}
	right, err := run(a, a.Child(op, 1), idx, db, udfs, gen)
	if err != nil {
		return nil, err
	}
	var out []Tagged
	for _, l := range left {
		for _, r := range right {
			joined := append(append(row.Row{}, l.Row...), r.Row...)
			v, err := evalexpr.Eval(op.Cond, joined, udfs)
			if err != nil {
				return nil, err
			}
			if b, _ := v.(bool); !b {
				continue
			}
			rid := gen.alloc()
			idx.record(op, pipeline.RoleRight, rid, l.Rid, r.Rid)
			out = append(out, Tagged{Rid: rid, Row: joined})
		}
	}
	return out, nil
}

func runHashJoin(a *plan.Arena, op *plan.Op, idx translatorIndex, db *catalog.Database, udfs *udf.Registry, gen *ridAllocator) ([]Tagged, error) {
	left, err := run(a, a.Child(op, 0), idx, db, udfs, gen)
	if err != nil {
		return nil, err
	}
	right, err := run(a, a.Child(op, 1), idx, db, udfs, gen)
	if err != nil {
		return nil, err
	}
	buckets := map[uint64][]*keyBucket[Tagged]{}
	for _, l := range left {
		k, err := evalexpr.Eval(op.LeftKey, l.Row, udfs)
		if err != nil {
			return nil, err
		}
		bucketInsert(buckets, k, l)
	}
	var out []Tagged
	for _, r := range right {
		k, err := evalexpr.Eval(op.RightKey, r.Row, udfs)
		if err != nil {
			return nil, err
		}
		b := bucketFind(buckets, k)
		if b == nil {
			continue
		}
		for _, l := range b.items {
			joined := append(append(row.Row{}, l.Row...), r.Row...)
			rid := gen.alloc()
			idx.record(op, pipeline.RoleRight, rid, l.Rid, r.Rid)
			out = append(out, Tagged{Rid: rid, Row: joined})
		}
	}
	return out, nil
}

// groupAccum is runGroupBy's rid-aware counterpart to
// interp.groupAccumulator: same incremental fold over udf.Agg state,
// plus memberRids so the finalized group's output rid can be recorded
// against every input rid that folded into it.
type groupAccum struct {
	lastChildRow row.Row
	aggStates    map[*expr.Expr]udf.State
	memberRids   []int
}

func runGroupBy(a *plan.Arena, op *plan.Op, idx translatorIndex, db *catalog.Database, udfs *udf.Registry, gen *ridAllocator) ([]Tagged, error) {
	child, err := run(a, a.Child(op, 0), idx, db, udfs, gen)
	if err != nil {
		return nil, err
	}
	childSchema := a.Child(op, 0).Schema

	groupTermChildSlot := make([]int, len(op.GroupTermSchema))
	for i, attr := range op.GroupTermSchema {
		found, err := childSchema.Lookup(attr.Table, attr.Name)
		if err != nil {
			return nil, err
		}
		groupTermChildSlot[i] = found.Slot
	}

	var aggNodes [][]*expr.Expr
	for _, e := range op.Exprs {
		var nodes []*expr.Expr
		expr.Walk(e, func(n *expr.Expr) bool {
			if n.Kind == expr.KindAggCall {
				nodes = append(nodes, n)
			}
			return true
		})
		aggNodes = append(aggNodes, nodes)
	}

	groups := map[string]*groupAccum{}
	var order []string
	for _, t := range child {
		keyVals := make([]any, len(op.GroupExprs))
		for i, g := range op.GroupExprs {
			v, err := evalexpr.Eval(g, t.Row, udfs)
			if err != nil {
				return nil, err
			}
			keyVals[i] = v
		}
		key := fmt.Sprint(keyVals)
		st, ok := groups[key]
		if !ok {
			st = &groupAccum{aggStates: map[*expr.Expr]udf.State{}}
			groups[key] = st
			order = append(order, key)
		}
		st.lastChildRow = t.Row
		st.memberRids = append(st.memberRids, t.Rid)
		for _, nodes := range aggNodes {
			for _, node := range nodes {
				if err := foldGroupAccum(st, node, t.Row, udfs); err != nil {
					return nil, err
				}
			}
		}
	}

	out := make([]Tagged, 0, len(order))
	for _, key := range order {
		st := groups[key]
		groupTermRow := make(row.Row, len(groupTermChildSlot))
		for i, slot := range groupTermChildSlot {
			groupTermRow[i] = st.lastChildRow[slot]
		}

		aggVals := map[*expr.Expr]any{}
		outRow := make(row.Row, len(op.Exprs))
		for i, e := range op.Exprs {
			for _, node := range aggNodes[i] {
				agg, ok := udfs.Agg(node.Name)
				if !ok {
					return nil, &udf.UdfError{Name: node.Name}
				}
				s := st.aggStates[node]
				if s == nil {
					s = agg.Init()
				}
				aggVals[node] = agg.Finalize(s)
			}
			if expr.HasAgg(e) {
				v, err := evalAggAware(e, aggVals)
				if err != nil {
					return nil, err
				}
				outRow[i] = v
			} else {
				v, err := evalexpr.Eval(e, groupTermRow, udfs)
				if err != nil {
					return nil, err
				}
				outRow[i] = v
			}
		}
		rid := gen.alloc()
		idx.record(op, pipeline.RoleTop, rid, st.memberRids...)
		out = append(out, Tagged{Rid: rid, Row: outRow})
	}
	return out, nil
}

func foldGroupAccum(st *groupAccum, node *expr.Expr, r row.Row, udfs *udf.Registry) error {
	agg, ok := udfs.Agg(node.Name)
	if !ok {
		return &udf.UdfError{Name: node.Name}
	}
	s, ok := st.aggStates[node]
	if !ok {
		s = agg.Init()
	}
	var v any
	if !agg.StarArg && len(node.Args) > 0 {
		var err error
		v, err = evalexpr.Eval(node.Args[0], r, udfs)
		if err != nil {
			return err
		}
	}
	st.aggStates[node] = agg.Update(s, v)
	return nil
}

// evalAggAware mirrors interp.evalAggAware: it walks a group-by output
// expression substituting in already-finalized aggregate values at
// AggCall leaves, per the no-nested-aggregates invariant. Kept as a
// separate copy (rather than exported from internal/interp) so
// internal/codegen does not import the reference interpreter package.
func evalAggAware(e *expr.Expr, aggVals map[*expr.Expr]any) (any, error) {
	if e.Kind == expr.KindAggCall {
		v, ok := aggVals[e]
		if !ok {
			return nil, fmt.Errorf("codegen: aggregate %s not folded", e.Name)
		}
		return v, nil
	}
	switch e.Kind {
	case expr.KindParen:
		return evalAggAware(e.Inner, aggVals)
	case expr.KindUnary:
		v, err := evalAggAware(e.Left, aggVals)
		if err != nil {
			return nil, err
		}
		return evalexpr.ApplyUnary(e.Op, v)
	case expr.KindBinary:
		l, err := evalAggAware(e.Left, aggVals)
		if err != nil {
			return nil, err
		}
		r, err := evalAggAware(e.Right, aggVals)
		if err != nil {
			return nil, err
		}
		return evalexpr.ApplyBinary(e.Op, l, r)
	default:
		return nil, fmt.Errorf("codegen: expression kind %v cannot appear alongside an aggregate", e.Kind)
	}
}

func runDistinct(a *plan.Arena, op *plan.Op, idx translatorIndex, db *catalog.Database, udfs *udf.Registry, gen *ridAllocator) ([]Tagged, error) {
	child, err := run(a, a.Child(op, 0), idx, db, udfs, gen)
	if err != nil {
		return nil, err
	}
	seen := map[uint64][]*keyBucket[int]{} // row key -> output rid, siphash-bucketed like the hash join
	var out []Tagged
	for _, t := range child {
		key := []any(t.Row)
		if b := bucketFind(seen, key); b != nil {
			existing := b.items[0]
			idx.record(op, pipeline.RoleTop, existing, t.Rid)
			continue
		}
		rid := gen.alloc()
		bucketInsert(seen, key, rid)
		idx.record(op, pipeline.RoleTop, rid, t.Rid)
		out = append(out, Tagged{Rid: rid, Row: t.Row})
	}
	return out, nil
}

func runOrderBy(a *plan.Arena, op *plan.Op, idx translatorIndex, db *catalog.Database, udfs *udf.Registry, gen *ridAllocator) ([]Tagged, error) {
	child, err := run(a, a.Child(op, 0), idx, db, udfs, gen)
	if err != nil {
		return nil, err
	}
	keys := make([]row.Row, len(child))
	for i, t := range child {
		k := make(row.Row, len(op.OrderExprs))
		for j, e := range op.OrderExprs {
			v, err := evalexpr.Eval(e, t.Row, udfs)
			if err != nil {
				return nil, err
			}
			k[j] = v
		}
		keys[i] = k
	}
	order := make([]int, len(child))
	for i := range order {
		order[i] = i
	}
	sortStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		for k := range op.OrderExprs {
			c := evalexpr.Compare(keys[a][k], keys[b][k])
			if c == 0 {
				continue
			}
			if k < len(op.Asc) && !op.Asc[k] {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	out := make([]Tagged, len(child))
	for i, id := range order {
		rid := gen.alloc()
		idx.record(op, pipeline.RoleTop, rid, child[id].Rid)
		out[i] = Tagged{Rid: rid, Row: child[id].Row}
	}
	return out, nil
}

func runLimit(a *plan.Arena, op *plan.Op, idx translatorIndex, db *catalog.Database, udfs *udf.Registry, gen *ridAllocator) ([]Tagged, error) {
	child, err := run(a, a.Child(op, 0), idx, db, udfs, gen)
	if err != nil {
		return nil, err
	}
	offset := 0
	if op.OffsetExpr != nil {
		v, err := evalexpr.Eval(op.OffsetExpr, row.Row{}, udfs)
		if err != nil {
			return nil, err
		}
		f, _ := v.(float64)
		offset = int(f)
	}
	if offset > len(child) {
		offset = len(child)
	}
	child = child[offset:]
	if op.LimitExpr == nil {
		return child, nil
	}
	v, err := evalexpr.Eval(op.LimitExpr, row.Row{}, udfs)
	if err != nil {
		return nil, err
	}
	n := int(v.(float64))
	if n > len(child) {
		n = len(child)
	}
	return child[:n], nil
}

// sortStable is a tiny insertion sort: the engine never handles
// result sets large enough to justify pulling in sort.Slice's
// reflection overhead here, and it keeps exec.go's only import list
// free of "sort" next to the identical logic already in internal/interp.
func sortStable(idx []int, less func(i, j int) bool) {
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
}
