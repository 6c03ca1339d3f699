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

// bio-truth builds ground-truth taxonomic abundance tables for benchmarking
// metagenomic profilers, and simulates reads from them.
//
// Usage:
//
//	bio-truth spreadsheet -coverage-file SRR606249.xlsx -bac-tax bac120_taxonomy.tsv \
//	    -ar-tax ar53_taxonomy.tsv -output-condensed SRR606249.condensed.tsv
//	bio-truth sylph -sylph-genome sample.sylph.tsv -sample S1 -bac-tax bac120_taxonomy.tsv \
//	    -arc-tax ar53_taxonomy.tsv > S1.condensed.tsv
//	bio-truth simulate -genomes S1.genomes.tsv -read1 S1_R1.fq.gz -read2 S1_R2.fq.gz
//
// All commands exit with status 1 on error. simulate exits with status 2 when
// some, but not necessarily all, genomes could not be simulated.
package main

import (
	"v.io/x/lib/cmdline"
)

// exitDegraded is the exit status of a simulation with failed genomes.
const exitDegraded = 2

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-truth",
		Short:    "Build ground-truth abundance tables for metagenomic benchmarks",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdSpreadsheet(),
			newCmdSylph(),
			newCmdSimulate(),
		},
	}
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmdRoot())
}
