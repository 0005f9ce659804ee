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

// Command databass is a thin, non-interactive runner: load a YAML
// table config, compile and run one SQL statement against it, print
// the result rows. Grounded in cmd/sneller's main-wiring shape
// (flag-parsed globals, a parse/do split, an exit(err) helper) but a
// small fraction of its size, since there is no object storage, auth,
// or streaming output to wire up.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/databass-project/databass/internal/compiler"
	"github.com/databass-project/databass/internal/dbconfig"
	"github.com/databass-project/databass/internal/dbsql"
	"github.com/databass-project/databass/internal/dlog"
	"github.com/databass-project/databass/internal/plan"
)

var (
	dashconfig   string
	dashg        bool
	dashexhaust  bool
	printVerbose bool
)

func init() {
	flag.StringVar(&dashconfig, "config", "", "YAML file naming CSV tables to load (required)")
	flag.BoolVar(&dashg, "g", false, "print the generated produce/consume code instead of executing")
	flag.BoolVar(&dashexhaust, "exhaustive", false, "use the exhaustive join optimizer instead of Selinger")
	flag.BoolVar(&printVerbose, "v", false, "print diagnostic stage messages to stderr")
}

func main() {
	flag.Parse()
	if printVerbose {
		dlog.Errorf = func(f string, args ...any) { fmt.Fprintf(os.Stderr, f+"\n", args...) }
	}

	args := flag.Args()
	if dashconfig == "" || len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: databass -config tables.yaml [-g] [-exhaustive] [-v] \"SELECT ...\"")
		os.Exit(1)
	}
	sql := args[0]

	cfg, err := dbconfig.LoadFile(dashconfig)
	if err != nil {
		exit(err)
	}
	db, err := cfg.Build()
	if err != nil {
		exit(err)
	}
	policy, err := cfg.Policy()
	if err != nil {
		exit(err)
	}

	tree, err := dbsql.Parse(sql)
	if err != nil {
		exit(err)
	}

	session := compiler.NewSession(db)
	a := plan.NewArena()
	root, err := tree.ToPlan(a)
	if err != nil {
		exit(err)
	}
	if err := plan.Resolve(a, root, db); err != nil {
		exit(err)
	}

	strategy := compiler.Selinger
	if dashexhaust {
		strategy = compiler.Exhaustive
	}
	cq, err := compiler.Compile(session, a, root, strategy, policy)
	if err != nil {
		exit(err)
	}

	if dashg {
		fmt.Print(cq.PrintCode())
		return
	}

	out, err := cq.Run()
	if err != nil {
		exit(err)
	}
	for _, r := range out {
		cols := make([]string, len(r))
		for i, v := range r {
			cols[i] = fmt.Sprint(v)
		}
		fmt.Println(strings.Join(cols, "\t"))
	}
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
