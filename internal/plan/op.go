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

// Package plan is the logical/physical operator tree: an arena of
// operator cells addressed by integer ID, with mutable parent
// pointers used only for traversal and in-place replacement (see
// Arena.Replace). Operators are a tagged union (Kind selects the
// meaningful fields) rather than a class hierarchy, per the
// REDESIGN FLAGS in spec.md §9: a plan is a tree, so parent-pointer
// edits are O(1) and introduce no cycles.
package plan

import "github.com/databass-project/databass/internal/schema"
import "github.com/databass-project/databass/internal/expr"

// ID is an index into an Arena. NoID marks "no parent"/"no child".
type ID int

const NoID ID = -1

// Kind discriminates the variant an *Op holds.
type Kind int

const (
	KindScan Kind = iota
	KindSubQuerySource
	KindDummyScan
	KindFilter
	KindProject
	KindFrom
	KindThetaJoin
	KindHashJoin
	KindGroupBy
	KindOrderBy
	KindLimit
	KindDistinct
	KindSink
)

func (k Kind) String() string {
	switch k {
	case KindScan:
		return "Scan"
	case KindSubQuerySource:
		return "SubQuerySource"
	case KindDummyScan:
		return "DummyScan"
	case KindFilter:
		return "Filter"
	case KindProject:
		return "Project"
	case KindFrom:
		return "From"
	case KindThetaJoin:
		return "ThetaJoin"
	case KindHashJoin:
		return "HashJoin"
	case KindGroupBy:
		return "GroupBy"
	case KindOrderBy:
		return "OrderBy"
	case KindLimit:
		return "Limit"
	case KindDistinct:
		return "Distinct"
	case KindSink:
		return "Sink"
	}
	return "?"
}

// SinkKind discriminates the three terminal operators.
type SinkKind int

const (
	Yield SinkKind = iota
	Collect
	Print
)

// Op is one node of a logical or physical plan tree.
type Op struct {
	ID       ID
	Kind     Kind
	Parent   ID
	Children []ID
	Schema   schema.Schema

	// Scan / SubQuerySource
	Table string
	Alias string

	// Filter / ThetaJoin condition
	Cond *expr.Expr

	// Project
	Exprs   []*expr.Expr
	Aliases []string

	// From
	Predicates []*expr.Expr

	// HashJoin
	LeftKey  *expr.Expr
	RightKey *expr.Expr

	// GroupBy
	GroupExprs      []*expr.Expr
	GroupTermSchema schema.Schema

	// OrderBy
	OrderExprs []*expr.Expr
	Asc        []bool

	// Limit
	LimitExpr  *expr.Expr
	OffsetExpr *expr.Expr

	// Sink
	SinkKind SinkKind
}

// Arena owns a set of operator cells addressed by ID.
type Arena struct {
	cells []*Op
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// New allocates a fresh cell of the given kind and returns it; its ID
// is set and its Parent is NoID.
func (a *Arena) New(k Kind) *Op {
	id := ID(len(a.cells))
	op := &Op{ID: id, Kind: k, Parent: NoID}
	a.cells = append(a.cells, op)
	return op
}

// Get returns the cell for id.
func (a *Arena) Get(id ID) *Op {
	if id == NoID {
		return nil
	}
	return a.cells[id]
}

// SetChild sets parent.Children[i] = child.ID and child.Parent =
// parent.ID, growing parent.Children if necessary.
func (a *Arena) SetChild(parent *Op, i int, child *Op) {
	for len(parent.Children) <= i {
		parent.Children = append(parent.Children, NoID)
	}
	parent.Children[i] = child.ID
	child.Parent = parent.ID
}

// AppendChild appends child to parent.Children.
func (a *Arena) AppendChild(parent *Op, child *Op) {
	parent.Children = append(parent.Children, child.ID)
	child.Parent = parent.ID
}

// Child returns the i'th child of op, or nil if there is none.
func (a *Arena) Child(op *Op, i int) *Op {
	if i >= len(op.Children) {
		return nil
	}
	return a.Get(op.Children[i])
}

// Replace rewires old's parent to point at replacement instead of
// old, and sets replacement.Parent to old's former parent. old itself
// is left dangling in the arena (dead but harmless, since the arena
// never reclaims IDs). Used by the join optimizer to swap a From
// subtree for a binary join tree, and nowhere else.
func (a *Arena) Replace(old, replacement *Op) {
	p := a.Get(old.Parent)
	replacement.Parent = old.Parent
	if p == nil {
		return
	}
	for i, c := range p.Children {
		if c == old.ID {
			p.Children[i] = replacement.ID
			return
		}
	}
}
