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

package lineage

import "github.com/databass-project/databass/internal/pipeline"

// Kind classifies the cardinality of one operator's contribution to
// lineage, grounded on original_source/databass/compile/lindex.py's
// Lindex.N / Lindex.ONE constants (their "identity" case is this
// package's Identity; Planner still attaches an index to a captured
// Identity operator, as it does to any other rid producer).
type Kind int

const (
	// Identity operators (Filter, Project, Limit, SubQuerySource)
	// never allocate a new output rid, so input rid == output rid and
	// no index is needed. Scans are classified Identity too: they
	// allocate base rids, which map to no input rid.
	Identity Kind = iota
	// One operators (OrderBy, Sink) allocate a fresh output rid per
	// input row, a 1:1 mapping.
	One
	// N operators (a join's probe side, a GroupBy/Distinct's top
	// translator) fold several input rids into one output rid.
	N
)

// Representation names the storage shape Planner picks for a Lindex's
// backward/forward maps, echoing spec.md §4.5's Preallocated/Dynamic/
// Sparse/OneToMany vocabulary. The underlying Go maps are the same
// regardless (a row-at-a-time engine has no vectorized array layout
// to specialize for), but the tag is preserved for PrintCode/
// introspection and documents which representation a fuller,
// array-backed backend would choose at this capture point.
type Representation int

const (
	// Preallocated: output rid space is known up front (base scans
	// and Sink), so a dense array indexed by rid would work.
	Preallocated Representation = iota
	// Dynamic: output rid space grows as rows are produced (an
	// OrderBy's re-tagged rows), so an append-only structure is used.
	Dynamic
	// Sparse: most rids never receive an entry (e.g. Distinct drops
	// most candidate rids), so a map beats a dense array.
	Sparse
	// OneToMany: one key fans out to many values (a GroupBy or join's
	// backward index), needing a slice per key rather than a scalar.
	OneToMany
)

// Lindex is the forward/backward lineage index pair for one captured
// operator: Back maps an output rid to the input rid(s) that produced
// it; Forward maps an input rid to the output rid(s) it contributed
// to. It implements pipeline.LineageSink so internal/codegen can
// notify it directly as rows flow through the compiled query.
type Lindex struct {
	Kind           Kind
	Representation Representation

	Back    map[int][]int
	Forward map[int][]int
}

// NewLindex returns an empty index of the given kind/representation.
func NewLindex(kind Kind, rep Representation) *Lindex {
	return &Lindex{Kind: kind, Representation: rep, Back: map[int][]int{}, Forward: map[int][]int{}}
}

// Record implements pipeline.LineageSink: Initialize/Append/Set/
// Add1/AddN/Loop from spec.md §4.5 are all instances of "link
// outputRid to these inputRids", which is exactly this one call.
func (l *Lindex) Record(outputRid int, inputRids ...int) {
	l.Back[outputRid] = append(l.Back[outputRid], inputRids...)
	for _, iid := range inputRids {
		l.Forward[iid] = append(l.Forward[iid], outputRid)
	}
}

var _ pipeline.LineageSink = (*Lindex)(nil)
