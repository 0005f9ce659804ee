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

package expr

import (
	"fmt"

	"github.com/databass-project/databass/internal/schema"
)

// ResolutionError is returned by Resolve for an unknown or ambiguous
// column reference, or a nested aggregate.
type ResolutionError struct {
	Msg string
}

func (e *ResolutionError) Error() string { return e.Msg }

// TypeError is returned by Resolve when an operator's operand type
// invariant is violated (spec.md §3 invariants a/b).
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string { return e.Msg }

// Resolve binds every ColumnRef in n's tree against src, setting
// Ref.Slot (and Ref.Table/Ref.Type) on each. It also enforces the
// per-node type invariants from spec.md §3: arithmetic/comparison
// operands must be Num, BETWEEN operands must be Num, and aggregate
// calls must not nest.
func Resolve(n *Expr, src schema.Schema) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindColumnRef:
		a, err := src.Lookup(n.Ref.Table, n.Ref.Name)
		if err != nil {
			return &ResolutionError{Msg: err.Error()}
		}
		n.Ref = a
		return nil
	case KindAggCall:
		for _, a := range n.Args {
			if HasAgg(a) {
				return &ResolutionError{Msg: fmt.Sprintf("aggregate %q may not nest another aggregate", n.Name)}
			}
			if err := Resolve(a, src); err != nil {
				return err
			}
		}
		return nil
	}
	for _, c := range Children(n) {
		if err := Resolve(c, src); err != nil {
			return err
		}
	}
	switch n.Kind {
	case KindBinary:
		if ArithOps[n.Op] || CmpOps[n.Op] {
			if !numericOrUnknown(n.Left) || !numericOrUnknown(n.Right) {
				return &TypeError{Msg: fmt.Sprintf("operator %q requires numeric operands, got %s and %s", n.Op, TypeOf(n.Left), TypeOf(n.Right))}
			}
		}
	case KindBetween:
		if !numericOrUnknown(n.Operand) || !numericOrUnknown(n.Lo) || !numericOrUnknown(n.Hi) {
			return &TypeError{Msg: "BETWEEN requires numeric operand and bounds"}
		}
	}
	return nil
}

func numericOrUnknown(n *Expr) bool {
	t := TypeOf(n)
	return t == schema.Num || t == schema.Unknown
}

// TypeOf returns the type guess for n, computed bottom-up. Column
// references use their bound schema type; unresolved references are
// Unknown.
func TypeOf(n *Expr) schema.Type {
	if n == nil {
		return schema.Unknown
	}
	switch n.Kind {
	case KindLiteral:
		switch n.LitKind {
		case LitNumber:
			return schema.Num
		case LitString:
			return schema.Str
		case LitBool:
			return schema.Bool
		case LitDate:
			return schema.Date
		case LitList:
			return schema.List
		}
	case KindColumnRef:
		return n.Ref.Type
	case KindParen:
		return TypeOf(n.Inner)
	case KindUnary:
		if n.Op == "not" {
			return schema.Bool
		}
		return TypeOf(n.Left)
	case KindBinary:
		if CmpOps[n.Op] || BoolOps[n.Op] {
			return schema.Bool
		}
		return schema.Num
	case KindBetween:
		return schema.Bool
	case KindScalarCall, KindAggCall:
		return schema.Unknown
	case KindStar:
		return schema.Unknown
	}
	return schema.Unknown
}

// ColumnRefs returns every ColumnRef node reachable from n, in
// left-to-right order (used by the group-term-schema construction and
// the join-predicate classifier).
func ColumnRefs(n *Expr) []*Expr {
	var out []*Expr
	Walk(n, func(x *Expr) bool {
		if x.Kind == KindColumnRef {
			out = append(out, x)
		}
		return true
	})
	return out
}
