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

// Package coverage reads per-sample coverage measurements from the formats
// they are delivered in, and normalizes them into Records keyed for a
// taxonomy.Resolver.
package coverage

import (
	"context"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/truthset/taxonomy"
)

// Record is one coverage measurement.
type Record struct {
	// Key joins the record against a taxonomy.Resolver running in the
	// source's Mode.
	Key taxonomy.Key
	// Species and Phylum are set by sources that report organism names.
	Species, Phylum string
	// Genome is the numeric genome identifier, and Path the genome file it
	// was extracted from. They are set by genome-wise sources.
	Genome, Path string
	// Coverage is the measured abundance. It is meaningful only if Missing
	// is false.
	Coverage float64
	Missing  bool
}

// Source is a coverage input format. Implementations exist per source format;
// new formats only need to produce Records with the right Key.
type Source interface {
	// Name identifies the source in log messages, usually by its path.
	Name() string
	// Mode is the taxonomy.Resolver mode the record keys are built for.
	Mode() taxonomy.Mode
	// Read parses the whole source. Malformed input is an error; rows that
	// merely lack a usable key may be dropped.
	Read(ctx context.Context) ([]Record, error)
}

// Filter returns the records with a present, positive coverage, and the
// number of records dropped. The input slice is not modified.
func Filter(records []Record) ([]Record, int) {
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Missing || !(r.Coverage > 0) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(records) - len(kept)
}

// ReadSource reads src and filters the result.
func ReadSource(ctx context.Context, src Source) ([]Record, error) {
	records, err := src.Read(ctx)
	if err != nil {
		return nil, err
	}
	kept, dropped := Filter(records)
	log.Printf("%s: read %d coverages > 0 (%d dropped)", src.Name(), len(kept), dropped)
	return kept, nil
}

// normalizeColumn folds case and whitespace so that headers such as
// "Genome molecules /   ng gDNA" match "genome molecules / ng gdna".
func normalizeColumn(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
