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

package compiler

import (
	"github.com/databass-project/databass/internal/dlog"
	"github.com/databass-project/databass/internal/optimize"
	"github.com/databass-project/databass/internal/plan"
)

// OptimizeStrategy selects the join-enumeration algorithm Compile asks
// internal/optimize to use for every plan.KindFrom fragment in a query.
type OptimizeStrategy = optimize.Strategy

const (
	Selinger   = optimize.StrategySelinger
	Exhaustive = optimize.StrategyExhaustive
)

// optimizeFroms replaces every plan.KindFrom fragment in the tree
// rooted at root with its chosen join tree, innermost fragments first
// (a subquery's FROM must be resolved before the outer query's FROM,
// which may itself reference the subquery's output schema).
func optimizeFroms(a *plan.Arena, root *plan.Op, session *Session, strategy OptimizeStrategy) error {
	var froms []*plan.Op
	plan.Walk(a, root, func(op *plan.Op) {
		if op.Kind == plan.KindFrom {
			froms = append(froms, op)
		}
	})
	// plan.Walk is pre-order (parents before children); reverse so
	// nested FROMs are optimized before the FROMs that contain them.
	for i, j := 0, len(froms)-1; i < j; i, j = i+1, j-1 {
		froms[i], froms[j] = froms[j], froms[i]
	}

	for _, from := range froms {
		result, err := optimize.Optimize(a, from, session.DB, strategy)
		if err != nil {
			return &CompilationError{Stage: "optimize", Err: err}
		}
		dlog.Stage("optimize", "from fragment with %d children: %d plans tested", len(from.Children), result.PlansTested)
		a.Replace(from, result.Root)
	}
	return nil
}
