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
	"github.com/databass-project/databass/internal/expr"
	"github.com/databass-project/databass/internal/plan"
)

// Target is one SELECT-list entry.
type Target struct {
	Expr  *expr.Expr
	Alias string
}

// RangeVar is one FROM-clause entry: either a base table (Table set)
// or a parenthesized subquery (Sub set).
type RangeVar struct {
	Table string
	Sub   *SelectParseTree
	Alias string
}

// OrderTerm is one ORDER BY entry.
type OrderTerm struct {
	Expr *expr.Expr
	Asc  bool
}

// SelectParseTree is the parsed shape of a single SELECT statement,
// matching spec.md §6's parse tree API: targets, FROM range vars, an
// optional WHERE, a GROUP BY list, an optional HAVING, ORDER BY terms,
// and optional LIMIT/OFFSET.
type SelectParseTree struct {
	Distinct bool
	Targets  []Target
	From     []RangeVar
	Where    *expr.Expr
	GroupBy  []*expr.Expr
	Having   *expr.Expr
	OrderBy  []OrderTerm
	Limit    *expr.Expr
	Offset   *expr.Expr
}

// ToPlan lowers the parse tree into a plan.Op tree rooted at a Sink,
// registered in a. It does not resolve or optimize the result; callers
// run plan.Resolve and internal/compiler.Compile afterwards, the same
// two-stage split Sneller's own expr/partiql front end keeps from its
// own plan builder.
func (t *SelectParseTree) ToPlan(a *plan.Arena) (*plan.Op, error) {
	children := make([]*plan.Op, 0, len(t.From))
	for _, rv := range t.From {
		child, err := rv.toPlan(a)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 0 {
		children = append(children, a.DummyScan())
	}

	var preds []*expr.Expr
	if t.Where != nil {
		preds = splitConjuncts(t.Where)
	}
	// A HAVING with no aggregate in it is applied to the input rows as
	// a WHERE conjunct: the GroupBy's output schema carries only the
	// selected columns, so a group-by column tested there but not
	// selected would not resolve above it.
	havingOnInput := t.Having != nil && !expr.HasAgg(t.Having)
	if havingOnInput {
		preds = append(preds, splitConjuncts(t.Having)...)
	}
	cur := a.From(children, preds)

	if len(t.GroupBy) > 0 || hasAggTarget(t.Targets) {
		exprs, aliases := targetsToExprs(t.Targets)
		cur = a.GroupBy(cur, t.GroupBy, exprs, aliases)
		if t.Having != nil && !havingOnInput {
			cur = a.Filter(cur, t.Having)
		}
	} else if !isBareStar(t.Targets) {
		// A bare "SELECT *" target list needs no Project: the plan's
		// expression nodes have no star-expansion rule (Project and
		// GroupBy each resolve one Exprs entry to exactly one output
		// column), so "*" is handled here by passing the FROM
		// fragment's own schema straight through instead of wrapping
		// it in a one-column Project over a KindStar node.
		exprs, aliases := targetsToExprs(t.Targets)
		cur = a.Project(cur, exprs, aliases)
	}

	if t.Distinct {
		cur = a.Distinct(cur)
	}

	if len(t.OrderBy) > 0 {
		exprs := make([]*expr.Expr, len(t.OrderBy))
		asc := make([]bool, len(t.OrderBy))
		for i, o := range t.OrderBy {
			exprs[i] = o.Expr
			asc[i] = o.Asc
		}
		cur = a.OrderBy(cur, exprs, asc)
	}

	if t.Limit != nil {
		cur = a.Limit(cur, t.Limit, t.Offset)
	}

	return a.Sink(cur, plan.Collect), nil
}

func (rv *RangeVar) toPlan(a *plan.Arena) (*plan.Op, error) {
	if rv.Sub != nil {
		inner, err := rv.Sub.toPlanNoSink(a)
		if err != nil {
			return nil, err
		}
		return a.SubQuerySource(inner, rv.Alias), nil
	}
	return a.Scan(rv.Table, rv.Alias), nil
}

// toPlanNoSink builds the same tree as ToPlan but without the
// terminal Sink, for use as a subquery source beneath another query's
// FROM.
func (t *SelectParseTree) toPlanNoSink(a *plan.Arena) (*plan.Op, error) {
	sink, err := t.ToPlan(a)
	if err != nil {
		return nil, err
	}
	return a.Child(sink, 0), nil
}

func targetsToExprs(targets []Target) ([]*expr.Expr, []string) {
	exprs := make([]*expr.Expr, len(targets))
	aliases := make([]string, len(targets))
	for i, tg := range targets {
		exprs[i] = tg.Expr
		aliases[i] = tg.Alias
	}
	return exprs, aliases
}

func isBareStar(targets []Target) bool {
	return len(targets) == 1 && targets[0].Expr.Kind == expr.KindStar && targets[0].Expr.Qualifier == ""
}

func hasAggTarget(targets []Target) bool {
	for _, tg := range targets {
		if expr.HasAgg(tg.Expr) {
			return true
		}
	}
	return false
}

// splitConjuncts flattens a WHERE clause into its top-level AND
// operands, handing them to the From node as a flat predicate list so
// optimize.Optimize's own ClassifyPredicates decides which become
// join conditions and which get reattached as a Filter; ToPlan never
// duplicates that classification itself.
func splitConjuncts(e *expr.Expr) []*expr.Expr {
	if e.Kind == expr.KindBinary && e.Op == "and" {
		return append(splitConjuncts(e.Left), splitConjuncts(e.Right)...)
	}
	return []*expr.Expr{e}
}
