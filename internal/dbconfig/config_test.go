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

package dbconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/databass-project/databass/internal/lineage"
)

func TestLoadAndBuild(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "orders.csv")
	if err := os.WriteFile(csvPath, []byte("id,total\n1,10\n2,20\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	doc := []byte(`
tables:
  - name: orders
    path: ` + csvPath + `
lineagePolicy: all
`)
	cfg, err := Load(doc)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	db, err := cfg.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := db.Table("orders"); !ok {
		t.Fatalf("expected orders table to be registered")
	}
	policy, err := cfg.Policy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if _, ok := policy.(lineage.AllPolicy); !ok {
		t.Fatalf("expected AllPolicy, got %T", policy)
	}
}

func TestPolicyDefaultsToNone(t *testing.T) {
	cfg := &Config{}
	policy, err := cfg.Policy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if _, ok := policy.(lineage.NonePolicy); !ok {
		t.Fatalf("expected NonePolicy default, got %T", policy)
	}
}
