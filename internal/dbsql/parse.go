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

package dbsql

import (
	"fmt"

	"github.com/databass-project/databass/internal/expr"
)

// aggregateNames is the fixed set of function names the parser treats
// as AggCall rather than ScalarCall, matching spec.md §6's standard
// UDF list (count/avg/sum/std/stddev are aggregates; lower/upper are
// scalars). A name outside either list still parses as a ScalarCall
// and is rejected later by internal/evalexpr's UdfError at resolve or
// eval time, not by the parser.
var aggregateNames = map[string]bool{
	"count": true, "sum": true, "avg": true, "std": true, "stddev": true,
}

type parser struct {
	toks []token
	pos  int
}

// Parse parses a single SELECT statement.
func Parse(sql string) (*SelectParseTree, error) {
	l := newLexer(sql)
	if err := l.tokenize(); err != nil {
		return nil, err
	}
	p := &parser{toks: l.toks}
	tree, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, &ParseError{Msg: fmt.Sprintf("unexpected trailing input at position %d", p.cur().pos)}
	}
	return tree, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance()    { p.pos++ }
func (p *parser) peekKeyword(kw string) bool { return p.cur().isKeyword(kw) }

func (p *parser) eatKeyword(kw string) bool {
	if p.peekKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.eatKeyword(kw) {
		return &ParseError{Msg: fmt.Sprintf("expected %s at position %d, got %q", kw, p.cur().pos, p.cur().text)}
	}
	return nil
}

func (p *parser) eatPunct(s string) bool {
	if p.cur().kind == tokPunct && p.cur().text == s {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectPunct(s string) error {
	if !p.eatPunct(s) {
		return &ParseError{Msg: fmt.Sprintf("expected %q at position %d, got %q", s, p.cur().pos, p.cur().text)}
	}
	return nil
}

func (p *parser) expectIdent() (string, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return "", &ParseError{Msg: fmt.Sprintf("expected identifier at position %d, got %q", t.pos, t.text)}
	}
	p.advance()
	return t.text, nil
}

func (p *parser) parseSelect() (*SelectParseTree, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	tree := &SelectParseTree{}
	if p.eatKeyword("DISTINCT") {
		tree.Distinct = true
	}

	targets, err := p.parseTargetList()
	if err != nil {
		return nil, err
	}
	tree.Targets = targets

	if p.eatKeyword("FROM") {
		from, err := p.parseFromList()
		if err != nil {
			return nil, err
		}
		tree.From = from
	}

	if p.eatKeyword("WHERE") {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		tree.Where = cond
	}

	if p.eatKeyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		group, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		tree.GroupBy = group
	}

	if p.eatKeyword("HAVING") {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		tree.Having = cond
	}

	if p.eatKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		order, err := p.parseOrderList()
		if err != nil {
			return nil, err
		}
		tree.OrderBy = order
	}

	if p.eatKeyword("LIMIT") {
		lim, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		tree.Limit = lim
		if p.eatKeyword("OFFSET") {
			off, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			tree.Offset = off
		}
	}

	return tree, nil
}

func (p *parser) parseTargetList() ([]Target, error) {
	var targets []Target
	for {
		if p.cur().kind == tokPunct && p.cur().text == "*" {
			p.advance()
			targets = append(targets, Target{Expr: expr.StarExpr("")})
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			alias := ""
			if p.eatKeyword("AS") {
				a, err := p.expectIdent()
				if err != nil {
					return nil, err
				}
				alias = a
			} else if p.cur().kind == tokIdent && !keywords[p.cur().upper()] {
				alias = p.cur().text
				p.advance()
			}
			targets = append(targets, Target{Expr: e, Alias: alias})
		}
		if !p.eatPunct(",") {
			break
		}
	}
	return targets, nil
}

func (p *parser) parseFromList() ([]RangeVar, error) {
	var rvs []RangeVar
	for {
		var rv RangeVar
		if p.eatPunct("(") {
			sub, err := p.parseSelect()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			rv.Sub = sub
		} else {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			rv.Table = name
		}
		rv.Alias = rv.Table
		if p.eatKeyword("AS") {
			a, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			rv.Alias = a
		} else if p.cur().kind == tokIdent && !keywords[p.cur().upper()] {
			rv.Alias = p.cur().text
			p.advance()
		}
		rvs = append(rvs, rv)
		if !p.eatPunct(",") {
			break
		}
	}
	return rvs, nil
}

func (p *parser) parseExprList() ([]*expr.Expr, error) {
	var out []*expr.Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if !p.eatPunct(",") {
			break
		}
	}
	return out, nil
}

func (p *parser) parseOrderList() ([]OrderTerm, error) {
	var out []OrderTerm
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		asc := true
		if p.eatKeyword("DESC") {
			asc = false
		} else {
			p.eatKeyword("ASC")
		}
		out = append(out, OrderTerm{Expr: e, Asc: asc})
		if !p.eatPunct(",") {
			break
		}
	}
	return out, nil
}

// Expression grammar, loosest to tightest:
//   expr       := orExpr
//   orExpr     := andExpr (OR andExpr)*
//   andExpr    := notExpr (AND notExpr)*
//   notExpr    := NOT notExpr | comparison
//   comparison := additive ((= | != | < | <= | > | >=) additive | BETWEEN additive AND additive)?
//   additive   := multiplicative ((+|-) multiplicative)*
//   multiplicative := unary ((*|/|%) unary)*
//   unary      := '-' unary | primary
//   primary    := NUMBER | STRING | TRUE | FALSE | '(' expr ')' | ident ['.' ident] | ident '(' args ')'

func (p *parser) parseExpr() (*expr.Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (*expr.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.eatKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = expr.BinaryExpr("or", left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (*expr.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.eatKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = expr.BinaryExpr("and", left, right)
	}
	return left, nil
}

func (p *parser) parseNot() (*expr.Expr, error) {
	if p.eatKeyword("NOT") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return expr.UnaryExpr("not", inner), nil
	}
	return p.parseComparison()
}

var cmpPunct = map[string]bool{"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseComparison() (*expr.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.eatKeyword("BETWEEN") {
		lo, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return expr.BetweenExpr(left, lo, hi), nil
	}
	if p.cur().kind == tokPunct && cmpPunct[p.cur().text] {
		op := p.cur().text
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return expr.BinaryExpr(op, left, right), nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (*expr.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct && (p.cur().text == "+" || p.cur().text == "-") {
		op := p.cur().text
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = expr.BinaryExpr(op, left, right)
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (*expr.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct && (p.cur().text == "*" || p.cur().text == "/" || p.cur().text == "%") {
		op := p.cur().text
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = expr.BinaryExpr(op, left, right)
	}
	return left, nil
}

func (p *parser) parseUnary() (*expr.Expr, error) {
	if p.cur().kind == tokPunct && p.cur().text == "-" {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return expr.UnaryExpr("-", inner), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*expr.Expr, error) {
	t := p.cur()
	switch {
	case t.kind == tokNumber:
		p.advance()
		return expr.Number(t.num), nil

	case t.kind == tokString:
		p.advance()
		return expr.StringLit(t.text), nil

	case t.isKeyword("TRUE"):
		p.advance()
		return expr.BoolLit(true), nil

	case t.isKeyword("FALSE"):
		p.advance()
		return expr.BoolLit(false), nil

	case t.kind == tokPunct && t.text == "(":
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return expr.Paren(inner), nil

	case t.kind == tokIdent && !keywords[t.upper()]:
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if p.eatPunct(".") {
			if p.cur().kind == tokPunct && p.cur().text == "*" {
				p.advance()
				return expr.StarExpr(name), nil
			}
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return expr.Column(name, col), nil
		}
		if p.eatPunct("(") {
			var star bool
			var args []*expr.Expr
			if p.cur().kind == tokPunct && p.cur().text == "*" {
				p.advance()
				star = true
			} else if !(p.cur().kind == tokPunct && p.cur().text == ")") {
				args, err = p.parseExprList()
				if err != nil {
					return nil, err
				}
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			lname := toLower(name)
			if aggregateNames[lname] {
				// count(*) names the registry's star-arg count_star
				// aggregate (internal/udf.NewRegistry), not count/1;
				// every other aggregate rejects a bare '*' argument.
				if star {
					if lname != "count" {
						return nil, &ParseError{Msg: fmt.Sprintf("%s(*) is not supported", lname)}
					}
					return expr.AggCall("count_star", nil, true), nil
				}
				return expr.AggCall(lname, args, true), nil
			}
			return expr.ScalarCall(lname, args), nil
		}
		return expr.Column("", name), nil

	default:
		return nil, &ParseError{Msg: fmt.Sprintf("unexpected token %q at position %d", t.text, t.pos)}
	}
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
