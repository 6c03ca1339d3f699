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
	"github.com/grailbio/base/log"
	"github.com/grailbio/truthset/coverage"
	"github.com/grailbio/truthset/taxonomy"
	"github.com/grailbio/truthset/truth"
	"v.io/x/lib/cmdline"
)

type spreadsheetFlags struct {
	common        commonFlags
	coverageFile  string
	bacTax, arTax string
	output        string
	outputGenomes string
	sample        string
	genomeDir     string
	sheet         string
}

func newCmdSpreadsheet() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "spreadsheet",
		Short: "Build a truth table from a mock community spreadsheet",
		Long: `
The spreadsheet lists the community members by species and phylum, with their
measured abundance, in two sections separated by notes. Each member is joined
to the reference taxonomy on (phylum, species), and abundances are summed per
lineage.

The spreadsheet is read from an .xlsx workbook, or from a .csv or .tsv export.`,
	}
	f := spreadsheetFlags{}
	f.common.register(&cmd.Flags)
	f.common.registerTaxonomy(&cmd.Flags)
	cmd.Flags.StringVar(&f.coverageFile, "coverage-file", "", "Mock community spreadsheet (.xlsx, .csv or .tsv)")
	cmd.Flags.StringVar(&f.bacTax, "bac-tax", "", "Bacterial reference taxonomy, accession<TAB>lineage")
	cmd.Flags.StringVar(&f.arTax, "ar-tax", "", "Archaeal reference taxonomy, accession<TAB>lineage")
	cmd.Flags.StringVar(&f.output, "output-condensed", "", "Output condensed truth table")
	cmd.Flags.StringVar(&f.outputGenomes, "output-genomes", "", "If set, also write the genome-wise truth table, for 'simulate'")
	cmd.Flags.StringVar(&f.sample, "sample", "", "Sample name. By default, the base name of -coverage-file without extensions")
	cmd.Flags.StringVar(&f.genomeDir, "genome-dir", "", "Directory of reference genome FASTA files. If set, the genome-wise table gets the FASTA of each member")
	cmd.Flags.StringVar(&f.sheet, "sheet", "", "Worksheet to read from an .xlsx file. By default, the first one")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return env.UsageErrorf("spreadsheet takes no arguments, but got %v", argv)
		}
		if err := requireFlags(env,
			"coverage-file", f.coverageFile,
			"bac-tax", f.bacTax,
			"ar-tax", f.arTax,
			"output-condensed", f.output); err != nil {
			return err
		}
		if err := f.common.setup(env); err != nil {
			return err
		}
		return runSpreadsheet(context.Background(), f, env.Stdout)
	})
	return cmd
}

func runSpreadsheet(ctx context.Context, f spreadsheetFlags, stdout io.Writer) error {
	resolver, err := taxonomy.Load(ctx, taxonomy.LineageMode, f.common.taxonomyOpts(), f.bacTax, f.arTax)
	if err != nil {
		return err
	}
	opts := coverage.DefaultSpreadsheetOpts
	opts.Sheet = f.sheet
	records, err := coverage.ReadSource(ctx, coverage.NewSpreadsheet(f.coverageFile, opts))
	if err != nil {
		return err
	}
	sample := f.sample
	if sample == "" {
		sample = truth.SampleName(f.coverageFile)
	}
	table := truth.Build(sample, records, resolver)
	if f.genomeDir != "" {
		missing, err := truth.LocateGenomes(ctx, f.genomeDir, table.Genomes)
		if err != nil {
			return err
		}
		if missing > 0 {
			log.Error.Printf("%d of %d genomes have no FASTA file in %s", missing, len(table.Genomes), f.genomeDir)
		}
	}
	return writeTable(ctx, table, f.output, f.outputGenomes, stdout)
}
