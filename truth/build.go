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

// Package truth joins coverage records against reference taxonomies and
// produces the condensed (sample, coverage, taxonomy) truth table used to
// benchmark metagenomic profilers.
package truth

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/truthset/coverage"
	"github.com/grailbio/truthset/taxonomy"
)

// Genome is one coverage record joined to its reference taxonomy. This is
// the genome-wise truth, before aggregation.
type Genome struct {
	// Accession is the reference accession the record resolved to.
	Accession string
	Coverage  float64
	// Path is the genome FASTA, if the coverage source reported one.
	Path     string
	Taxonomy string
}

// Row is one line of the condensed truth table.
type Row struct {
	Sample   string
	Coverage float64
	Taxonomy string
}

// JoinStats counts the outcome of Join.
type JoinStats struct {
	// Joined is the number of records with a taxonomy.
	Joined int
	// Missed is the number of records dropped because their key is not in
	// the resolver.
	Missed int
}

// Table is the result of Build.
type Table struct {
	Sample  string
	Genomes []Genome
	Rows    []Row
	Stats   JoinStats
}

// Join keeps the records whose key resolves, in input order. Records without
// a reference taxonomy cannot be given a ground truth, so they are dropped and
// counted rather than reported as errors.
func Join(records []coverage.Record, r *taxonomy.Resolver) ([]Genome, JoinStats) {
	var (
		genomes []Genome
		stats   JoinStats
	)
	for _, rec := range records {
		e, ok := r.Lookup(rec.Key)
		if !ok {
			stats.Missed++
			if log.At(log.Debug) {
				logMiss(rec, r)
			}
			continue
		}
		stats.Joined++
		genomes = append(genomes, Genome{
			Accession: e.Accession,
			Coverage:  rec.Coverage,
			Path:      rec.Path,
			Taxonomy:  e.Taxonomy,
		})
	}
	return genomes, stats
}

func logMiss(rec coverage.Record, r *taxonomy.Resolver) {
	if rec.Species == "" {
		log.Debug.Printf("no taxonomy for genome %s (%s)", rec.Genome, rec.Path)
		return
	}
	if s := r.Suggest(rec.Phylum, rec.Species, 3); len(s) > 0 {
		log.Debug.Printf("no taxonomy for %s / %s; closest in phylum: %q", rec.Phylum, rec.Species, s)
		return
	}
	log.Debug.Printf("no taxonomy for %s / %s", rec.Phylum, rec.Species)
}

// Aggregate sums coverage per distinct taxonomy string. Rows appear in order
// of the first genome carrying each taxonomy.
func Aggregate(sample string, genomes []Genome) []Row {
	var (
		rows  []Row
		index = map[string]int{}
	)
	for _, g := range genomes {
		if i, ok := index[g.Taxonomy]; ok {
			rows[i].Coverage += g.Coverage
			continue
		}
		index[g.Taxonomy] = len(rows)
		rows = append(rows, Row{Sample: sample, Coverage: g.Coverage, Taxonomy: g.Taxonomy})
	}
	return rows
}

// Build joins records against r and aggregates the result for sample.
func Build(sample string, records []coverage.Record, r *taxonomy.Resolver) *Table {
	genomes, stats := Join(records, r)
	rows := Aggregate(sample, genomes)
	log.Printf("%s: %d of %d coverage records have a taxonomy (%d dropped), %d taxa",
		sample, stats.Joined, len(records), stats.Missed, len(rows))
	return &Table{Sample: sample, Genomes: genomes, Rows: rows, Stats: stats}
}
