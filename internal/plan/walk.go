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

// Walk visits op and, recursively, every descendant in pre-order.
func Walk(a *Arena, op *Op, visit func(*Op)) {
	if op == nil {
		return
	}
	visit(op)
	for i := range op.Children {
		Walk(a, a.Child(op, i), visit)
	}
}

// Root returns the topmost ancestor of op.
func Root(a *Arena, op *Op) *Op {
	for op.Parent != NoID {
		op = a.Get(op.Parent)
	}
	return op
}

// IsBreaker reports whether op is a pipeline breaker per the
// GLOSSARY definition: group-by, order-by, the left side of a
// hash-join, or a sink. Breaker-ness of a join side is a property of
// the *edge*, not the node, so this only covers the node-level cases;
// pipeline.Build handles the hash-join-left case directly.
func IsBreaker(op *Op) bool {
	switch op.Kind {
	case KindGroupBy, KindOrderBy, KindSink:
		return true
	}
	return false
}
