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

package catalog

import (
	"strings"
	"testing"

	"github.com/databass-project/databass/internal/row"
	"github.com/databass-project/databass/internal/schema"
)

func TestRegisterDataFrameAndSchema(t *testing.T) {
	d := NewDatabase()
	sc := schema.Schema{{Name: "a", Type: schema.Num, Table: "t", Slot: 0}}
	d.RegisterDataFrame("t", sc, row.Table{{1.0}, {2.0}})

	got, err := d.Schema("t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Matches(sc) {
		t.Fatalf("schema mismatch: %+v", got)
	}
	n, err := d.Cardinality("t")
	if err != nil || n != 2 {
		t.Fatalf("expected cardinality 2, got %d, err %v", n, err)
	}
}

func TestColumnStatsNumeric(t *testing.T) {
	d := NewDatabase()
	sc := schema.Schema{{Name: "a", Type: schema.Num, Table: "t", Slot: 0}}
	d.RegisterDataFrame("t", sc, row.Table{{1.0}, {5.0}, {3.0}})

	stats, err := d.ColumnStats("t", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stats.HasMinMax || stats.Min != 1.0 || stats.Max != 5.0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRegisterReaderDetectsDelimiterAndTypes(t *testing.T) {
	d := NewDatabase()
	csvText := "a|b\n1|x\n2|y\n"
	if err := d.registerReader("t", strings.NewReader(csvText)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tbl, ok := d.Table("t")
	if !ok {
		t.Fatalf("expected table t to be registered")
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tbl.Rows))
	}
	if tbl.Schema[0].Type != schema.Num || tbl.Schema[1].Type != schema.Str {
		t.Fatalf("unexpected inferred types: %+v", tbl.Schema)
	}
	if tbl.Rows[0][0] != 1.0 || tbl.Rows[0][1] != "x" {
		t.Fatalf("unexpected coerced row: %+v", tbl.Rows[0])
	}
}
