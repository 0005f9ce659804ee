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

// Package interp is a whole-row-at-a-time tree-walking evaluator over
// a physical plan.Op tree: the reference oracle spec.md §8's
// compile/interpret equivalence property checks the produce/consume
// compiler (internal/compiler, internal/codegen) against. It is
// grounded on original_source/databass/ops's one-class-per-operator
// __iter__ generators, restated as a single recursive Eval over the
// tagged-union plan.Op instead of a class per operator.
package interp

import (
	"fmt"
	"sort"

	"github.com/databass-project/databass/internal/catalog"
	"github.com/databass-project/databass/internal/evalexpr"
	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/plan"
	"github.com/databass-project/databass/internal/row"
	"github.com/databass-project/databass/internal/udf"
)

// Eval recursively evaluates the physical plan rooted at op (a tree
// already produced by the optimizer, with no KindFrom nodes left) and
// returns its output rows.
func Eval(a *plan.Arena, op *plan.Op, db *catalog.Database, udfs *udf.Registry) (row.Table, error) {
	switch op.Kind {
	case plan.KindScan:
		t, ok := db.Table(op.Table)
		if !ok {
			return nil, fmt.Errorf("interp: unknown table %q", op.Table)
		}
		out := make(row.Table, len(t.Rows))
		for i, r := range t.Rows {
			out[i] = r.Clone()
		}
		return out, nil

	case plan.KindDummyScan:
		return row.Table{row.Row{}}, nil

	case plan.KindSubQuerySource:
		return Eval(a, a.Child(op, 0), db, udfs)

	case plan.KindFilter:
		child, err := Eval(a, a.Child(op, 0), db, udfs)
		if err != nil {
			return nil, err
		}
		var out row.Table
		for _, r := range child {
			v, err := evalexpr.Eval(op.Cond, r, udfs)
			if err != nil {
				return nil, err
			}
			if b, _ := v.(bool); b {
				out = append(out, r)
			}
		}
		return out, nil

	case plan.KindProject:
		child, err := Eval(a, a.Child(op, 0), db, udfs)
		if err != nil {
			return nil, err
		}
		out := make(row.Table, len(child))
		for i, r := range child {
			nr := make(row.Row, len(op.Exprs))
			for j, e := range op.Exprs {
				v, err := evalexpr.Eval(e, r, udfs)
				if err != nil {
					return nil, err
				}
				nr[j] = v
			}
			out[i] = nr
		}
		return out, nil

	case plan.KindThetaJoin:
		return evalThetaJoin(a, op, db, udfs)

	case plan.KindHashJoin:
		return evalHashJoin(a, op, db, udfs)

	case plan.KindGroupBy:
		return evalGroupBy(a, op, db, udfs)

	case plan.KindDistinct:
		return evalDistinct(a, op, db, udfs)

	case plan.KindOrderBy:
		return evalOrderBy(a, op, db, udfs)

	case plan.KindLimit:
		return evalLimit(a, op, db, udfs)

	case plan.KindSink:
		return Eval(a, a.Child(op, 0), db, udfs)

	default:
		return nil, fmt.Errorf("interp: cannot evaluate plan node of kind %v", op.Kind)
	}
}

func evalThetaJoin(a *plan.Arena, op *plan.Op, db *catalog.Database, udfs *udf.Registry) (row.Table, error) {
	left, err := Eval(a, a.Child(op, 0), db, udfs)
	if err != nil {
		return nil, err
	}
	right, err := Eval(a, a.Child(op, 1), db, udfs)
	if err != nil {
		return nil, err
	}
	var out row.Table
	for _, l := range left {
		for _, r := range right {
			joined := append(append(row.Row{}, l...), r...)
			v, err := evalexpr.Eval(op.Cond, joined, udfs)
			if err != nil {
				return nil, err
			}
			if b, _ := v.(bool); b {
				out = append(out, joined)
			}
		}
	}
	return out, nil
}

func evalHashJoin(a *plan.Arena, op *plan.Op, db *catalog.Database, udfs *udf.Registry) (row.Table, error) {
	left, err := Eval(a, a.Child(op, 0), db, udfs)
	if err != nil {
		return nil, err
	}
	right, err := Eval(a, a.Child(op, 1), db, udfs)
	if err != nil {
		return nil, err
	}
	buckets := map[any][]row.Row{}
	for _, l := range left {
		k, err := evalexpr.Eval(op.LeftKey, l, udfs)
		if err != nil {
			return nil, err
		}
		buckets[k] = append(buckets[k], l)
	}
	var out row.Table
	for _, r := range right {
		k, err := evalexpr.Eval(op.RightKey, r, udfs)
		if err != nil {
			return nil, err
		}
		for _, l := range buckets[k] {
			out = append(out, append(append(row.Row{}, l...), r...))
		}
	}
	return out, nil
}

func evalDistinct(a *plan.Arena, op *plan.Op, db *catalog.Database, udfs *udf.Registry) (row.Table, error) {
	child, err := Eval(a, a.Child(op, 0), db, udfs)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out row.Table
	for _, r := range child {
		key := fmt.Sprint([]any(r))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out, nil
}

func evalOrderBy(a *plan.Arena, op *plan.Op, db *catalog.Database, udfs *udf.Registry) (row.Table, error) {
	child, err := Eval(a, a.Child(op, 0), db, udfs)
	if err != nil {
		return nil, err
	}
	keys := make([]row.Row, len(child))
	for i, r := range child {
		k := make(row.Row, len(op.OrderExprs))
		for j, e := range op.OrderExprs {
			v, err := evalexpr.Eval(e, r, udfs)
			if err != nil {
				return nil, err
			}
			k[j] = v
		}
		keys[i] = k
	}
	idx := make([]int, len(child))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := idx[i], idx[j]
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
	out := make(row.Table, len(child))
	for i, id := range idx {
		out[i] = child[id]
	}
	return out, nil
}

func evalLimit(a *plan.Arena, op *plan.Op, db *catalog.Database, udfs *udf.Registry) (row.Table, error) {
	child, err := Eval(a, a.Child(op, 0), db, udfs)
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

// evalAggAware evaluates e, a GroupBy projection expression resolved
// against the child schema, treating each AggCall node as a lookup
// into aggVals instead of an error (evalexpr.Eval's default for
// KindAggCall). Only Paren/Unary/Binary can wrap an AggCall per
// spec.md §3's no-nested-aggregates invariant, so those are the only
// kinds this function recurses through itself.
func evalAggAware(e *expr.Expr, aggVals map[*expr.Expr]any) (any, error) {
	if e.Kind == expr.KindAggCall {
		v, ok := aggVals[e]
		if !ok {
			return nil, fmt.Errorf("interp: aggregate %s not folded", e.Name)
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
		return nil, fmt.Errorf("interp: expression kind %v cannot appear alongside an aggregate", e.Kind)
	}
}
