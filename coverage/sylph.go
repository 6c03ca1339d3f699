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

package coverage

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/truthset/taxonomy"
)

// Abundance columns of a sylph profile that can serve as coverage.
const (
	TaxonomicAbundance = "Taxonomic_abundance"
	SequenceAbundance  = "Sequence_abundance"
	EffectiveCoverage  = "Eff_cov"
)

// SylphOpts configures a Sylph source.
type SylphOpts struct {
	// Abundance is the column used as coverage; one of TaxonomicAbundance,
	// SequenceAbundance or EffectiveCoverage.
	Abundance string
}

// DefaultSylphOpts reads the taxonomic abundance.
var DefaultSylphOpts = SylphOpts{Abundance: TaxonomicAbundance}

// One row type per abundance column. The tsv reader requires every tagged
// column in the header, so only Genome_file and the selected column are
// required; other columns are ignored.
type taxonomicRow struct {
	GenomeFile string  `tsv:"Genome_file"`
	Abundance  float64 `tsv:"Taxonomic_abundance"`
}

type sequenceRow struct {
	GenomeFile string  `tsv:"Genome_file"`
	Abundance  float64 `tsv:"Sequence_abundance"`
}

type effCovRow struct {
	GenomeFile string  `tsv:"Genome_file"`
	Abundance  float64 `tsv:"Eff_cov"`
}

// rowReader returns a function reading the genome file and the abundance of
// the next row.
func rowReader(r *tsv.Reader, column string) func() (string, float64, error) {
	switch column {
	case SequenceAbundance:
		return func() (string, float64, error) {
			var row sequenceRow
			err := r.Read(&row)
			return row.GenomeFile, row.Abundance, err
		}
	case EffectiveCoverage:
		return func() (string, float64, error) {
			var row effCovRow
			err := r.Read(&row)
			return row.GenomeFile, row.Abundance, err
		}
	default:
		return func() (string, float64, error) {
			var row taxonomicRow
			err := r.Read(&row)
			return row.GenomeFile, row.Abundance, err
		}
	}
}

// Sylph is a Source reading the genome-wise output of "sylph profile".
// Records are keyed for taxonomy.GenomeMode by the genome identifier found in
// the Genome_file column; rows without one are dropped.
type Sylph struct {
	path string
	opts SylphOpts
}

// NewSylph creates a sylph source.
func NewSylph(path string, opts SylphOpts) (*Sylph, error) {
	switch opts.Abundance {
	case TaxonomicAbundance, SequenceAbundance, EffectiveCoverage:
	default:
		return nil, errors.E(errors.Invalid, fmt.Sprintf("sylph: unknown abundance column %q", opts.Abundance))
	}
	return &Sylph{path: path, opts: opts}, nil
}

// Name implements Source.
func (s *Sylph) Name() string { return s.path }

// Mode implements Source.
func (s *Sylph) Mode() taxonomy.Mode { return taxonomy.GenomeMode }

// Read implements Source.
func (s *Sylph) Read(ctx context.Context) (records []Record, err error) {
	in, err := file.Open(ctx, s.path)
	if err != nil {
		return nil, errors.E(err, "open sylph profile", s.path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	records, err = s.parse(in.Reader(ctx))
	return
}

func (s *Sylph) parse(in io.Reader) ([]Record, error) {
	r := tsv.NewReader(in)
	r.HasHeaderRow = true
	r.UseHeaderNames = true
	r.LazyQuotes = true

	var (
		records []Record
		noID    int
	)
	next := rowReader(r, s.opts.Abundance)
	for nLine := 2; ; nLine++ {
		genomeFile, abundance, err := next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("read sylph profile %s:%d", s.path, nLine))
		}
		id, ok := taxonomy.ParseGenomeID(genomeFile)
		if !ok {
			noID++
			log.Debug.Printf("%s:%d: no genome identifier in %q", s.path, nLine, genomeFile)
			continue
		}
		records = append(records, Record{
			Key:      taxonomy.GenomeKey(id),
			Genome:   id,
			Path:     genomeFile,
			Coverage: abundance,
		})
	}
	if noID > 0 {
		log.Printf("%s: dropped %d rows without a genome identifier", s.path, noID)
	}
	return records, nil
}
