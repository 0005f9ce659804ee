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

import (
	"fmt"

	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/schema"
)

// Catalog is the minimal table-schema lookup the resolver needs. The
// concrete implementation lives in internal/catalog; Resolve only
// depends on this interface to avoid a package cycle.
type Catalog interface {
	Schema(table string) (schema.Schema, error)
}

// GroupByError reports a SELECT/HAVING reference to an attribute that
// is neither a group expression nor wrapped in an aggregate.
type GroupByError struct {
	Msg string
}

func (e *GroupByError) Error() string { return e.Msg }

// Resolve performs the post-order schema/slot-binding walk of
// spec.md §4.1: base-case schemas for Scan/SubQuerySource/DummyScan,
// unary/binary schema defaults, and resolution of every expression
// under a node against that node's correct context. It is run twice
// per compilation: once before join optimization (so attributes carry
// tablename/type for the estimator) and once after (so new
// intermediate joins get schemas and slot indices).
func Resolve(a *Arena, root *Op, cat Catalog) error {
	_, err := resolve(a, root, cat)
	return err
}

func resolve(a *Arena, op *Op, cat Catalog) (schema.Schema, error) {
	if op == nil {
		return nil, nil
	}
	childSchemas := make([]schema.Schema, len(op.Children))
	for i := range op.Children {
		s, err := resolve(a, a.Child(op, i), cat)
		if err != nil {
			return nil, err
		}
		childSchemas[i] = s
	}

	switch op.Kind {
	case KindScan:
		s, err := cat.Schema(op.Table)
		if err != nil {
			return nil, err
		}
		op.Schema = s.WithAlias(op.Alias)
	case KindDummyScan:
		op.Schema = schema.Schema{}
	case KindSubQuerySource:
		op.Schema = childSchemas[0].WithAlias(op.Alias)
	case KindFilter:
		op.Schema = childSchemas[0]
		if err := expr.Resolve(op.Cond, op.Schema); err != nil {
			return nil, err
		}
	case KindProject:
		if err := resolveProjectSchema(op, childSchemas[0]); err != nil {
			return nil, err
		}
	case KindFrom:
		s := schema.Schema{}
		for _, cs := range childSchemas {
			s = schema.Concat(s, cs)
		}
		op.Schema = s
		for _, p := range op.Predicates {
			if err := expr.Resolve(p, op.Schema); err != nil {
				return nil, err
			}
		}
	case KindThetaJoin:
		op.Schema = schema.Concat(childSchemas[0], childSchemas[1])
		if err := expr.Resolve(op.Cond, op.Schema); err != nil {
			return nil, err
		}
	case KindHashJoin:
		op.Schema = schema.Concat(childSchemas[0], childSchemas[1])
		if err := expr.Resolve(op.LeftKey, childSchemas[0]); err != nil {
			return nil, err
		}
		if err := expr.Resolve(op.RightKey, childSchemas[1]); err != nil {
			return nil, err
		}
	case KindGroupBy:
		if err := resolveGroupBy(op, childSchemas[0]); err != nil {
			return nil, err
		}
	case KindDistinct, KindOrderBy, KindLimit:
		op.Schema = childSchemas[0]
		switch op.Kind {
		case KindOrderBy:
			for _, e := range op.OrderExprs {
				if err := expr.Resolve(e, op.Schema); err != nil {
					return nil, err
				}
			}
		case KindLimit:
			if op.LimitExpr != nil {
				if err := expr.Resolve(op.LimitExpr, op.Schema); err != nil {
					return nil, err
				}
			}
			if op.OffsetExpr != nil {
				if err := expr.Resolve(op.OffsetExpr, op.Schema); err != nil {
					return nil, err
				}
			}
		}
	case KindSink:
		op.Schema = childSchemas[0]
	default:
		return nil, fmt.Errorf("plan.Resolve: unhandled kind %v", op.Kind)
	}
	return op.Schema, nil
}

func resolveProjectSchema(op *Op, child schema.Schema) error {
	out := make(schema.Schema, len(op.Exprs))
	for i, e := range op.Exprs {
		if err := expr.Resolve(e, child); err != nil {
			return err
		}
		name := op.Aliases[i]
		if name == "" {
			name = e.String()
		}
		out[i] = schema.Attribute{Name: name, Type: expr.TypeOf(e), Slot: i}
	}
	op.Schema = out
	return nil
}

// resolveGroupBy implements the group-by resolution rule of
// spec.md §4.1: group expressions resolve against the child schema;
// the group-term-schema is the deduplicated set of attributes
// referenced by the group expressions; each projection expression
// resolves against the child schema if it contains an aggregate, or
// against the group-term-schema otherwise.
func resolveGroupBy(op *Op, child schema.Schema) error {
	for _, g := range op.GroupExprs {
		if err := expr.Resolve(g, child); err != nil {
			return err
		}
	}
	op.GroupTermSchema = groupTermSchema(op.GroupExprs)

	out := make(schema.Schema, len(op.Exprs))
	for i, e := range op.Exprs {
		var err error
		if expr.HasAgg(e) {
			err = expr.Resolve(e, child)
		} else {
			err = resolveAgainstGroupTerms(e, op.GroupTermSchema)
		}
		if err != nil {
			return err
		}
		name := op.Aliases[i]
		if name == "" {
			name = e.String()
		}
		out[i] = schema.Attribute{Name: name, Type: expr.TypeOf(e), Slot: i}
	}
	op.Schema = out
	return nil
}

// groupTermSchema builds the deduplicated attribute list referenced
// by a set of group expressions, in first-seen order.
func groupTermSchema(groupExprs []*expr.Expr) schema.Schema {
	seen := map[string]bool{}
	var out schema.Schema
	for _, g := range groupExprs {
		for _, ref := range expr.ColumnRefs(g) {
			key := ref.Ref.Table + "." + ref.Ref.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, schema.Attribute{Name: ref.Ref.Name, Type: ref.Ref.Type, Table: ref.Ref.Table, Slot: len(out)})
		}
	}
	return out
}

func resolveAgainstGroupTerms(e *expr.Expr, groupTerms schema.Schema) error {
	if err := expr.Resolve(e, groupTerms); err != nil {
		return &GroupByError{Msg: "SELECT list references non-group attribute: " + err.Error()}
	}
	return nil
}
