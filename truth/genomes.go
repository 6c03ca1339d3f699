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

package truth

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/truthset/taxonomy"
)

// GenomesHeader is the header line of the genome-wise table.
const GenomesHeader = "accession\tcoverage\tfasta\ttaxonomy"

type genomeRow struct {
	Accession string  `tsv:"accession"`
	Coverage  float64 `tsv:"coverage"`
	Fasta     string  `tsv:"fasta"`
	Taxonomy  string  `tsv:"taxonomy"`
}

// WriteGenomes writes the genome-wise table.
func WriteGenomes(w io.Writer, genomes []Genome) error {
	tw := tsv.NewWriter(w)
	tw.WriteString(GenomesHeader)
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, g := range genomes {
		for _, f := range [][2]string{{"accession", g.Accession}, {"fasta", g.Path}, {"taxonomy", g.Taxonomy}} {
			if err := checkField(f[0], f[1]); err != nil {
				return err
			}
		}
		tw.WriteString(g.Accession)
		tw.WriteString(formatCoverage(g.Coverage))
		tw.WriteString(g.Path)
		tw.WriteString(g.Taxonomy)
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// ReadGenomes reads a table written by WriteGenomes.
func ReadGenomes(ctx context.Context, path string) (genomes []Genome, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open genome table", path)
	}
	defer file.CloseAndReport(ctx, in, &err)

	r := tsv.NewReader(in.Reader(ctx))
	r.HasHeaderRow = true
	r.UseHeaderNames = true
	r.LazyQuotes = true
	for nLine := 2; ; nLine++ {
		var row genomeRow
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("read genome table %s:%d", path, nLine))
		}
		genomes = append(genomes, Genome{
			Accession: row.Accession,
			Coverage:  row.Coverage,
			Path:      row.Fasta,
			Taxonomy:  row.Taxonomy,
		})
	}
	return genomes, nil
}

var fastaSuffixes = []string{".fna", ".fa", ".fasta", ".fna.gz", ".fa.gz", ".fasta.gz"}

// LocateGenomes fills in the Path of genomes that have none, by looking in
// dir for a FASTA file whose name carries the genome identifier of the
// accession. It returns the number of genomes still without a path.
func LocateGenomes(ctx context.Context, dir string, genomes []Genome) (int, error) {
	byID := map[string]string{}
	lister := file.List(ctx, dir, true)
	for lister.Scan() {
		if lister.IsDir() {
			continue
		}
		p := lister.Path()
		name := strings.ToLower(path.Base(p))
		isFasta := false
		for _, s := range fastaSuffixes {
			if strings.HasSuffix(name, s) {
				isFasta = true
				break
			}
		}
		if !isFasta {
			continue
		}
		if id, ok := taxonomy.ParseGenomeID(path.Base(p)); ok {
			byID[id] = p
		}
	}
	if err := lister.Err(); err != nil {
		return 0, errors.E(err, "list genomes", dir)
	}
	missing := 0
	for i := range genomes {
		g := &genomes[i]
		if g.Path != "" {
			continue
		}
		if id, ok := taxonomy.ParseGenomeID(g.Accession); ok {
			if p, ok := byID[id]; ok {
				g.Path = p
				continue
			}
		}
		missing++
		log.Debug.Printf("no genome file for %s in %s", g.Accession, dir)
	}
	if missing > 0 {
		log.Printf("%d of %d genomes have no FASTA file in %s", missing, len(genomes), dir)
	}
	return missing, nil
}
