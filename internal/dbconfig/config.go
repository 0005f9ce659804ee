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

// Package dbconfig loads a YAML document describing which CSV tables
// to register in a catalog.Database and which lineage policy to run
// with by default, following Sneller's own YAML-shaped table
// definitions (db/def.go's tenant table defs) via sigs.k8s.io/yaml.
package dbconfig

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/databass-project/databass/internal/catalog"
	"github.com/databass-project/databass/internal/lineage"
)

// TableDef names one CSV file to load into the catalog under Name.
type TableDef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Config is the top-level document shape: a list of tables to load
// and the default lineage policy a session compiled from it should
// use absent an explicit override.
type Config struct {
	Tables        []TableDef `json:"tables"`
	LineagePolicy string     `json:"lineagePolicy"`
}

// Load parses a YAML document (already read into memory) into a
// Config.
func Load(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("dbconfig: %w", err)
	}
	return &c, nil
}

// LoadFile reads and parses path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dbconfig: %w", err)
	}
	return Load(data)
}

// Build registers every table the config names into a fresh
// catalog.Database, resolving each table's csv path relative to the
// process's current directory.
func (c *Config) Build() (*catalog.Database, error) {
	db := catalog.NewDatabase()
	for _, t := range c.Tables {
		if err := db.RegisterFileByPath(t.Name, t.Path); err != nil {
			return nil, fmt.Errorf("dbconfig: loading table %q: %w", t.Name, err)
		}
	}
	return db, nil
}

// Policy resolves the configured lineage policy name to a
// lineage.Policy, defaulting to lineage.NonePolicy{} when unset or
// "none"; an unrecognized name is an error.
func (c *Config) Policy() (lineage.Policy, error) {
	switch c.LineagePolicy {
	case "", "none":
		return lineage.NonePolicy{}, nil
	case "all":
		return lineage.AllPolicy{}, nil
	case "endtoend":
		return lineage.EndToEndPolicy{}, nil
	default:
		return nil, fmt.Errorf("dbconfig: unknown lineagePolicy %q", c.LineagePolicy)
	}
}
