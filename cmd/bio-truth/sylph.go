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
	"context"
	"io"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/truthset/coverage"
	"github.com/grailbio/truthset/taxonomy"
	"github.com/grailbio/truthset/truth"
	"v.io/x/lib/cmdline"
)

type sylphFlags struct {
	common         commonFlags
	sylphGenome    string
	sample         string
	bacTax, arcTax string
	output         string
	outputGenomes  string
	abundance      string
}

func newCmdSylph() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "sylph",
		Short: "Build a truth table from a sylph genome-wise profile",
		Long: `
Each profiled genome is joined to the reference taxonomy on its NCBI assembly
identifier (the digits of GCA_/GCF_), and abundances are summed per lineage.
Genomes without an identifier or without a reference lineage are dropped.`,
	}
	f := sylphFlags{}
	f.common.register(&cmd.Flags)
	f.common.registerTaxonomy(&cmd.Flags)
	cmd.Flags.StringVar(&f.sylphGenome, "sylph-genome", "", "sylph profile output")
	cmd.Flags.StringVar(&f.sample, "sample", "", "Sample name")
	cmd.Flags.StringVar(&f.bacTax, "bac-tax", "", "Bacterial reference taxonomy, accession<TAB>lineage")
	cmd.Flags.StringVar(&f.arcTax, "arc-tax", "", "Archaeal reference taxonomy, accession<TAB>lineage")
	cmd.Flags.StringVar(&f.output, "output-condensed", "", "Output condensed truth table. By default, stdout")
	cmd.Flags.StringVar(&f.outputGenomes, "output-genomes", "", "If set, also write the genome-wise truth table, for 'simulate'")
	cmd.Flags.StringVar(&f.abundance, "abundance-column", coverage.DefaultSylphOpts.Abundance,
		"sylph column to use as coverage: "+coverage.TaxonomicAbundance+", "+coverage.SequenceAbundance+" or "+coverage.EffectiveCoverage)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return env.UsageErrorf("sylph takes no arguments, but got %v", argv)
		}
		if err := requireFlags(env,
			"sylph-genome", f.sylphGenome,
			"sample", f.sample,
			"bac-tax", f.bacTax,
			"arc-tax", f.arcTax); err != nil {
			return err
		}
		if err := f.common.setup(env); err != nil {
			return err
		}
		return runSylph(context.Background(), f, env.Stdout)
	})
	return cmd
}

func runSylph(ctx context.Context, f sylphFlags, stdout io.Writer) error {
	src, err := coverage.NewSylph(f.sylphGenome, coverage.SylphOpts{Abundance: f.abundance})
	if err != nil {
		return err
	}
	resolver, err := taxonomy.Load(ctx, taxonomy.GenomeMode, f.common.taxonomyOpts(), f.bacTax, f.arcTax)
	if err != nil {
		return err
	}
	records, err := coverage.ReadSource(ctx, src)
	if err != nil {
		return err
	}
	table := truth.Build(f.sample, records, resolver)
	return writeTable(ctx, table, f.output, f.outputGenomes, stdout)
}
