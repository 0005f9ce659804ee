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

// Package expr is the typed expression tree shared by the logical
// plan, the optimizer's selectivity estimator, and the code
// generator. Nodes are a single tagged struct (Kind discriminates the
// variant) rather than a class hierarchy, so every tree-walk is one
// pattern-match function (Walk, below) instead of a family of
// isinstance checks.
package expr

import (
	"fmt"
	"time"

	"github.com/databass-project/databass/internal/schema"
)

// Kind discriminates the variant an *Expr holds.
type Kind int

const (
	KindLiteral Kind = iota
	KindColumnRef
	KindParen
	KindUnary
	KindBinary
	KindBetween
	KindScalarCall
	KindAggCall
	KindStar
)

// LitKind discriminates the literal's underlying Go value.
type LitKind int

const (
	LitNumber LitKind = iota
	LitString
	LitBool
	LitDate
	LitList
)

// Expr is a node of the expression tree. Exactly one group of fields
// below is meaningful, selected by Kind; see the per-Kind comments.
type Expr struct {
	Kind Kind

	// KindLiteral
	LitKind LitKind
	Num     float64
	Str     string
	Bool    bool
	Date    time.Time
	List    []*Expr

	// KindColumnRef
	Ref schema.Attribute

	// KindParen, KindUnary (operand in Left)
	Inner *Expr

	// KindUnary / KindBinary
	Op    string
	Left  *Expr
	Right *Expr

	// KindBetween
	Operand *Expr
	Lo      *Expr
	Hi      *Expr

	// KindScalarCall / KindAggCall
	Name        string
	Args        []*Expr
	Incremental bool

	// KindStar
	Qualifier string
}

// Boolean, comparison and arithmetic operator symbol sets, fixed per
// spec.md §3.
var (
	BoolOps = map[string]bool{"and": true, "or": true, "not": true}
	CmpOps  = map[string]bool{"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}
	ArithOps = map[string]bool{"+": true, "-": true, "*": true, "/": true, "%": true}
)

// Number builds a numeric literal.
func Number(v float64) *Expr { return &Expr{Kind: KindLiteral, LitKind: LitNumber, Num: v} }

// StringLit builds a string literal.
func StringLit(v string) *Expr { return &Expr{Kind: KindLiteral, LitKind: LitString, Str: v} }

// BoolLit builds a boolean literal.
func BoolLit(v bool) *Expr { return &Expr{Kind: KindLiteral, LitKind: LitBool, Bool: v} }

// DateLit builds a date literal.
func DateLit(v time.Time) *Expr { return &Expr{Kind: KindLiteral, LitKind: LitDate, Date: v} }

// ListLit builds a list literal.
func ListLit(items []*Expr) *Expr { return &Expr{Kind: KindLiteral, LitKind: LitList, List: items} }

// Column builds an unresolved column reference, table == "" for
// unqualified references.
func Column(table, name string) *Expr {
	return &Expr{Kind: KindColumnRef, Ref: schema.NewRef(table, name)}
}

// Paren wraps inner in parentheses (preserved so printing round-trips).
func Paren(inner *Expr) *Expr { return &Expr{Kind: KindParen, Inner: inner} }

// UnaryExpr builds a unary operator application.
func UnaryExpr(op string, operand *Expr) *Expr {
	return &Expr{Kind: KindUnary, Op: op, Left: operand}
}

// BinaryExpr builds a binary operator application.
func BinaryExpr(op string, l, r *Expr) *Expr {
	return &Expr{Kind: KindBinary, Op: op, Left: l, Right: r}
}

// BetweenExpr builds operand BETWEEN lo AND hi.
func BetweenExpr(operand, lo, hi *Expr) *Expr {
	return &Expr{Kind: KindBetween, Operand: operand, Lo: lo, Hi: hi}
}

// ScalarCall builds a scalar UDF invocation.
func ScalarCall(name string, args []*Expr) *Expr {
	return &Expr{Kind: KindScalarCall, Name: name, Args: args}
}

// AggCall builds an aggregate UDF invocation.
func AggCall(name string, args []*Expr, incremental bool) *Expr {
	return &Expr{Kind: KindAggCall, Name: name, Args: args, Incremental: incremental}
}

// StarExpr builds a (optionally qualified) star expression.
func StarExpr(qualifier string) *Expr { return &Expr{Kind: KindStar, Qualifier: qualifier} }

// Children returns n's direct subexpressions in evaluation order; the
// single point every traversal in this package goes through.
func Children(n *Expr) []*Expr {
	switch n.Kind {
	case KindParen:
		return []*Expr{n.Inner}
	case KindUnary:
		return []*Expr{n.Left}
	case KindBinary:
		return []*Expr{n.Left, n.Right}
	case KindBetween:
		return []*Expr{n.Operand, n.Lo, n.Hi}
	case KindScalarCall, KindAggCall:
		return n.Args
	case KindLiteral:
		if n.LitKind == LitList {
			return n.List
		}
	}
	return nil
}

// Visitor is invoked once per node during Walk.
type Visitor func(n *Expr) bool

// Walk calls v on n and, if v returns true, recurses into n's
// children.
func Walk(n *Expr, v Visitor) {
	if n == nil {
		return
	}
	if !v(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, v)
	}
}

// HasAgg reports whether n contains an aggregate call anywhere in its
// tree. Per spec.md §3 invariant (c), aggregate calls must not nest,
// so a true somewhere below an AggCall node is a resolution error
// surfaced separately (see resolve.go).
func HasAgg(n *Expr) bool {
	found := false
	Walk(n, func(x *Expr) bool {
		if x.Kind == KindAggCall {
			found = true
		}
		return true
	})
	return found
}

func (n *Expr) String() string {
	switch n.Kind {
	case KindLiteral:
		switch n.LitKind {
		case LitNumber:
			return fmt.Sprintf("%v", n.Num)
		case LitString:
			return fmt.Sprintf("%q", n.Str)
		case LitBool:
			return fmt.Sprintf("%v", n.Bool)
		case LitDate:
			return n.Date.Format(time.RFC3339)
		case LitList:
			return fmt.Sprintf("%v", n.List)
		}
	case KindColumnRef:
		return n.Ref.String()
	case KindParen:
		return fmt.Sprintf("(%s)", n.Inner)
	case KindUnary:
		return fmt.Sprintf("%s %s", n.Op, n.Left)
	case KindBinary:
		return fmt.Sprintf("%s %s %s", n.Left, n.Op, n.Right)
	case KindBetween:
		return fmt.Sprintf("%s BETWEEN %s AND %s", n.Operand, n.Lo, n.Hi)
	case KindScalarCall, KindAggCall:
		return fmt.Sprintf("%s(...)", n.Name)
	case KindStar:
		if n.Qualifier != "" {
			return n.Qualifier + ".*"
		}
		return "*"
	}
	return "<expr>"
}
