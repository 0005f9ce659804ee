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

// Package evalexpr evaluates a resolved internal/expr tree against one
// row.Row. Both internal/interp (the reference oracle) and
// internal/codegen (the produce/consume compiler) evaluate scalar
// expressions through this single implementation: the property the
// two engines are meant to cross-check is operator/join/group
// semantics and the optimizer's plan choice, not scalar arithmetic, so
// duplicating BETWEEN-expansion and UDF dispatch in both would just be
// two copies of the same bug surface.
package evalexpr

import (
	"fmt"
	"time"

	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/row"
	"github.com/databass-project/databass/internal/udf"
)

// Eval evaluates e against r, dispatching scalar calls through udfs.
// AggCall and Star nodes are not valid standalone expressions and
// return an error; GroupBy evaluates aggregate arguments itself before
// folding them through udf.Agg.
func Eval(e *expr.Expr, r row.Row, udfs *udf.Registry) (any, error) {
	switch e.Kind {
	case expr.KindLiteral:
		return literal(e), nil
	case expr.KindColumnRef:
		if e.Ref.Slot < 0 || e.Ref.Slot >= len(r) {
			return nil, fmt.Errorf("evalexpr: unresolved column reference %s", e.Ref)
		}
		return r[e.Ref.Slot], nil
	case expr.KindParen:
		return Eval(e.Inner, r, udfs)
	case expr.KindUnary:
		return evalUnary(e, r, udfs)
	case expr.KindBinary:
		return evalBinary(e, r, udfs)
	case expr.KindBetween:
		return evalBetween(e, r, udfs)
	case expr.KindScalarCall:
		return evalScalarCall(e, r, udfs)
	default:
		return nil, fmt.Errorf("evalexpr: cannot evaluate %v as a scalar expression", e.Kind)
	}
}

func literal(e *expr.Expr) any {
	switch e.LitKind {
	case expr.LitNumber:
		return e.Num
	case expr.LitString:
		return e.Str
	case expr.LitBool:
		return e.Bool
	case expr.LitDate:
		return e.Date
	default:
		return nil
	}
}

func evalUnary(e *expr.Expr, r row.Row, udfs *udf.Registry) (any, error) {
	v, err := Eval(e.Left, r, udfs)
	if err != nil {
		return nil, err
	}
	return ApplyUnary(e.Op, v)
}

// ApplyUnary applies a resolved unary operator to an already-evaluated
// operand. Exported so internal/interp's aggregate-aware evaluator
// (which must special-case AggCall leaves) can reuse the same operator
// semantics instead of re-implementing them.
func ApplyUnary(op string, v any) (any, error) {
	switch op {
	case "not":
		b, _ := v.(bool)
		return !b, nil
	case "-":
		f, _ := toFloat(v)
		return -f, nil
	}
	return nil, fmt.Errorf("evalexpr: unknown unary operator %q", op)
}

func evalBetween(e *expr.Expr, r row.Row, udfs *udf.Registry) (any, error) {
	v, err := Eval(e.Operand, r, udfs)
	if err != nil {
		return nil, err
	}
	lo, err := Eval(e.Lo, r, udfs)
	if err != nil {
		return nil, err
	}
	hi, err := Eval(e.Hi, r, udfs)
	if err != nil {
		return nil, err
	}
	return Compare(v, lo) >= 0 && Compare(v, hi) <= 0, nil
}

func evalBinary(e *expr.Expr, r row.Row, udfs *udf.Registry) (any, error) {
	if e.Op == "and" || e.Op == "or" {
		l, err := Eval(e.Left, r, udfs)
		if err != nil {
			return nil, err
		}
		lb, _ := l.(bool)
		if e.Op == "and" && !lb {
			return false, nil
		}
		if e.Op == "or" && lb {
			return true, nil
		}
		rv, err := Eval(e.Right, r, udfs)
		if err != nil {
			return nil, err
		}
		rb, _ := rv.(bool)
		return rb, nil
	}

	l, err := Eval(e.Left, r, udfs)
	if err != nil {
		return nil, err
	}
	rv, err := Eval(e.Right, r, udfs)
	if err != nil {
		return nil, err
	}
	return ApplyBinary(e.Op, l, rv)
}

// ApplyBinary applies a resolved (non and/or, those short-circuit above
// Eval) binary operator to two already-evaluated operands. Exported
// for the same reason as ApplyUnary.
func ApplyBinary(op string, l, rv any) (any, error) {
	if expr.CmpOps[op] {
		c := Compare(l, rv)
		switch op {
		case "=":
			return c == 0, nil
		case "!=":
			return c != 0, nil
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		case ">=":
			return c >= 0, nil
		}
	}

	lf, _ := toFloat(l)
	rf, _ := toFloat(rv)
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("evalexpr: division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("evalexpr: modulo by zero")
		}
		return float64(int64(lf) % int64(rf)), nil
	}
	return nil, fmt.Errorf("evalexpr: unknown binary operator %q", op)
}

func evalScalarCall(e *expr.Expr, r row.Row, udfs *udf.Registry) (any, error) {
	fn, ok := udfs.Scalar(e.Name)
	if !ok {
		return nil, &udf.UdfError{Name: e.Name}
	}
	args := make([]any, len(e.Args))
	for i, a := range e.Args {
		v, err := Eval(a, r, udfs)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn.Fn(args)
}

// Compare orders two scalar values of the same dynamic type; mixed
// numeric-ish types fall back to float64 comparison.
func Compare(a, b any) int {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return int(at.Sub(bt))
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			if ab == bb {
				return 0
			}
			if !ab && bb {
				return -1
			}
			return 1
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
