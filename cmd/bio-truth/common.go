// Copyright 2026 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/log"
	"github.com/grailbio/truthset/taxonomy"
	"github.com/grailbio/truthset/truth"
	"v.io/x/lib/cmdline"
)

// commonFlags are registered on every subcommand. strictConflicts is only
// registered on the subcommands that load a reference taxonomy.
type commonFlags struct {
	debug, quiet    bool
	strictConflicts bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&c.debug, "debug", false, "Output debug information, such as the coverage records without a taxonomy")
	fs.BoolVar(&c.quiet, "quiet", false, "Only output errors")
}

func (c *commonFlags) registerTaxonomy(fs *flag.FlagSet) {
	fs.BoolVar(&c.strictConflicts, "strict-conflicts", false,
		"Fail if two reference rows with different lineages resolve to the same key, instead of keeping the last one")
}

// setup applies the verbosity flags.
func (c *commonFlags) setup(env *cmdline.Env) error {
	switch {
	case c.debug && c.quiet:
		return env.UsageErrorf("-debug and -quiet are mutually exclusive")
	case c.debug:
		log.SetLevel(log.Debug)
	case c.quiet:
		log.SetLevel(log.Error)
	}
	return nil
}

func (c *commonFlags) taxonomyOpts() taxonomy.Opts {
	opts := taxonomy.DefaultOpts
	opts.StrictConflicts = c.strictConflicts
	return opts
}

// requireFlags returns a usage error naming the first empty flag. Flags are
// given as name, value pairs.
func requireFlags(env *cmdline.Env, nameValues ...string) error {
	for i := 0; i+1 < len(nameValues); i += 2 {
		if nameValues[i+1] == "" {
			return env.UsageErrorf("-%s is required", nameValues[i])
		}
	}
	return nil
}

// writeOutput writes to path through truth.WriteFile, or to stdout if path
// is empty or "-".
func writeOutput(ctx context.Context, path string, stdout io.Writer, write func(io.Writer) error) error {
	if path != "" && path != "-" {
		return truth.WriteFile(ctx, path, write)
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	w := bufio.NewWriter(stdout)
	if err := write(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write stdout: %v", err)
	}
	return nil
}

// writeTable writes the condensed table, and the genome-wise table if
// genomesPath is set.
func writeTable(ctx context.Context, table *truth.Table, condensedPath, genomesPath string, stdout io.Writer) error {
	if err := writeOutput(ctx, condensedPath, stdout, func(w io.Writer) error {
		return truth.WriteCondensed(w, table.Rows)
	}); err != nil {
		return err
	}
	if genomesPath == "" {
		return nil
	}
	if err := truth.WriteFile(ctx, genomesPath, func(w io.Writer) error {
		return truth.WriteGenomes(w, table.Genomes)
	}); err != nil {
		return err
	}
	log.Printf("wrote %d genomes to %s", len(table.Genomes), genomesPath)
	return nil
}
