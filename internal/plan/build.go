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

package plan

import "github.com/databass-project/databass/internal/expr"

// Scan builds a base-table scan.
func (a *Arena) Scan(table, alias string) *Op {
	op := a.New(KindScan)
	op.Table, op.Alias = table, alias
	return op
}

// DummyScan builds the empty-schema, one-empty-tuple source used for
// SELECT lists with no FROM clause.
func (a *Arena) DummyScan() *Op { return a.New(KindDummyScan) }

// SubQuerySource wraps child, overriding its top-level alias.
func (a *Arena) SubQuerySource(child *Op, alias string) *Op {
	op := a.New(KindSubQuerySource)
	op.Alias = alias
	a.SetChild(op, 0, child)
	return op
}

// Filter builds a selection over child.
func (a *Arena) Filter(child *Op, cond *expr.Expr) *Op {
	op := a.New(KindFilter)
	op.Cond = cond
	a.SetChild(op, 0, child)
	return op
}

// Project builds a projection over child.
func (a *Arena) Project(child *Op, exprs []*expr.Expr, aliases []string) *Op {
	op := a.New(KindProject)
	op.Exprs, op.Aliases = exprs, aliases
	a.SetChild(op, 0, child)
	return op
}

// From builds the N-ary FROM fragment the join optimizer consumes.
func (a *Arena) From(children []*Op, predicates []*expr.Expr) *Op {
	op := a.New(KindFrom)
	op.Predicates = predicates
	for i, c := range children {
		a.SetChild(op, i, c)
	}
	return op
}

// ThetaJoin builds a nested-loops join.
func (a *Arena) ThetaJoin(l, r *Op, cond *expr.Expr) *Op {
	op := a.New(KindThetaJoin)
	op.Cond = cond
	a.SetChild(op, 0, l)
	a.SetChild(op, 1, r)
	return op
}

// HashJoin builds an equi-join on a single key pair.
func (a *Arena) HashJoin(l, r *Op, leftKey, rightKey *expr.Expr) *Op {
	op := a.New(KindHashJoin)
	op.LeftKey, op.RightKey = leftKey, rightKey
	a.SetChild(op, 0, l)
	a.SetChild(op, 1, r)
	return op
}

// GroupBy builds a grouping operator; projection is folded into
// group-by per spec.md §3.
func (a *Arena) GroupBy(child *Op, groupExprs, projectExprs []*expr.Expr, aliases []string) *Op {
	op := a.New(KindGroupBy)
	op.GroupExprs = groupExprs
	op.Exprs, op.Aliases = projectExprs, aliases
	a.SetChild(op, 0, child)
	return op
}

// Distinct builds a row-deduplication operator (SUPPLEMENTED FEATURES
// §12, grounded on original_source/databass/ops/distinct.py).
func (a *Arena) Distinct(child *Op) *Op {
	op := a.New(KindDistinct)
	a.SetChild(op, 0, child)
	return op
}

// OrderBy builds a total sort over child.
func (a *Arena) OrderBy(child *Op, exprs []*expr.Expr, asc []bool) *Op {
	op := a.New(KindOrderBy)
	op.OrderExprs, op.Asc = exprs, asc
	a.SetChild(op, 0, child)
	return op
}

// Limit builds a row-count cap with optional offset.
func (a *Arena) Limit(child *Op, limit, offset *expr.Expr) *Op {
	op := a.New(KindLimit)
	op.LimitExpr, op.OffsetExpr = limit, offset
	a.SetChild(op, 0, child)
	return op
}

// Sink builds a terminal operator.
func (a *Arena) Sink(child *Op, kind SinkKind) *Op {
	op := a.New(KindSink)
	op.SinkKind = kind
	a.SetChild(op, 0, child)
	return op
}
