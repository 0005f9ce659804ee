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

package interp

import (
	"fmt"

	"github.com/databass-project/databass/internal/catalog"
	"github.com/databass-project/databass/internal/evalexpr"
	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/plan"
	"github.com/databass-project/databass/internal/row"
	"github.com/databass-project/databass/internal/udf"
)

// groupAccumulator is the per-group, per-aggregate-node running state,
// grounded on original_source/databass/ops/agg.py's GroupBy, but
// folded incrementally through udf.Agg instead of materializing every
// member row of the group first.
type groupAccumulator struct {
	lastChildRow row.Row
	aggStates    map[*expr.Expr]udf.State
}

func evalGroupBy(a *plan.Arena, op *plan.Op, db *catalog.Database, udfs *udf.Registry) (row.Table, error) {
	child, err := Eval(a, a.Child(op, 0), db, udfs)
	if err != nil {
		return nil, err
	}
	childSchema := a.Child(op, 0).Schema

	// groupTermChildSlot[i] maps op.GroupTermSchema[i] back to its slot
	// in the child row, so the "last tuple of the group" rule
	// (original_source's init_schema comment) can be applied uniformly.
	groupTermChildSlot := make([]int, len(op.GroupTermSchema))
	for i, attr := range op.GroupTermSchema {
		found, err := childSchema.Lookup(attr.Table, attr.Name)
		if err != nil {
			return nil, err
		}
		groupTermChildSlot[i] = found.Slot
	}

	var aggNodes [][]*expr.Expr // aggNodes[i] = agg-call nodes inside op.Exprs[i]
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

	groups := map[string]*groupAccumulator{}
	var order []string
	for _, r := range child {
		keyVals := make([]any, len(op.GroupExprs))
		for i, g := range op.GroupExprs {
			v, err := evalexpr.Eval(g, r, udfs)
			if err != nil {
				return nil, err
			}
			keyVals[i] = v
		}
		key := fmt.Sprint(keyVals)
		st, ok := groups[key]
		if !ok {
			st = &groupAccumulator{aggStates: map[*expr.Expr]udf.State{}}
			groups[key] = st
			order = append(order, key)
		}
		st.lastChildRow = r
		for _, nodes := range aggNodes {
			for _, node := range nodes {
				if err := st.fold(node, r, udfs); err != nil {
					return nil, err
				}
			}
		}
	}

	out := make(row.Table, 0, len(order))
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
		out = append(out, outRow)
	}
	return out, nil
}

func (st *groupAccumulator) fold(node *expr.Expr, r row.Row, udfs *udf.Registry) error {
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
