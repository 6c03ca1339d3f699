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

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/truthset/simulate"
	"github.com/grailbio/truthset/truth"
	"github.com/pkg/errors"
	"v.io/x/lib/cmdline"
)

type simulateFlags struct {
	common  commonFlags
	genomes string
	opts    simulate.Opts
}

func newCmdSimulate() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "simulate",
		Short: "Simulate paired-end reads from a genome-wise truth table",
		Long: `
The simulator is run once per genome of the table, at the genome's coverage.
Its command line may use the placeholders

  {fasta}     genome FASTA file (required)
  {prefix}    output prefix (required); the simulator must write
              {prefix}1.fq and {prefix}2.fq
  {coverage}  fold coverage
  {seed}      random seed derived from the accession
  {length}    genome length
  {reads}     number of read pairs for {coverage} at -read-length

The reads of all genomes are concatenated, in table order, into the gzipped
-read1 and -read2 files. If a simulation fails, its genome is left out and
the command exits with status 2.`,
	}
	f := simulateFlags{opts: simulate.DefaultOpts}
	f.common.register(&cmd.Flags)
	cmd.Flags.StringVar(&f.genomes, "genomes", "", "Genome-wise truth table, as written by -output-genomes")
	cmd.Flags.StringVar(&f.opts.R1Output, "read1", "", "Output gzipped R1 FASTQ")
	cmd.Flags.StringVar(&f.opts.R2Output, "read2", "", "Output gzipped R2 FASTQ")
	cmd.Flags.StringVar(&f.opts.Simulator, "simulator", f.opts.Simulator, "Simulator command line")
	cmd.Flags.IntVar(&f.opts.Parallelism, "parallelism", f.opts.Parallelism, "Maximum number of concurrent simulations")
	cmd.Flags.DurationVar(&f.opts.Timeout, "timeout", f.opts.Timeout, "Time limit of one simulation. Zero means no limit")
	cmd.Flags.IntVar(&f.opts.ReadLength, "read-length", f.opts.ReadLength, "Read length, used to compute {reads}")
	cmd.Flags.StringVar(&f.opts.TmpDir, "tmp-dir", "", "Directory for intermediate reads. By default, the system temp directory")
	cmd.Flags.BoolVar(&f.opts.TagReads, "tag-reads", f.opts.TagReads, "Prefix read names with the genome accession")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return env.UsageErrorf("simulate takes no arguments, but got %v", argv)
		}
		if err := requireFlags(env,
			"genomes", f.genomes,
			"read1", f.opts.R1Output,
			"read2", f.opts.R2Output); err != nil {
			return err
		}
		if err := f.common.setup(env); err != nil {
			return err
		}
		err := runSimulate(context.Background(), f)
		if errors.Cause(err) == simulate.ErrDegraded {
			log.Error.Printf("simulate: %v", err)
			return cmdline.ErrExitCode(exitDegraded)
		}
		return err
	})
	return cmd
}

func runSimulate(ctx context.Context, f simulateFlags) error {
	genomes, err := truth.ReadGenomes(ctx, f.genomes)
	if err != nil {
		return err
	}
	_, err = simulate.Run(ctx, genomes, f.opts)
	return err
}
