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

package taxonomy

import (
	"context"
	"fmt"
	"sort"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Mode selects how reference records are keyed.
type Mode int

const (
	// LineageMode keys each record by the (phylum, species) names of its
	// lineage.
	LineageMode Mode = iota
	// GenomeMode keys each record by the numeric genome identifier in its
	// accession.
	GenomeMode
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case LineageMode:
		return "lineage"
	case GenomeMode:
		return "genome"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Opts controls how a Resolver handles duplicate keys.
type Opts struct {
	// StrictConflicts makes NewResolver fail when two records share a key but
	// carry different lineages. By default the later record wins.
	StrictConflicts bool
}

// DefaultOpts is the default Resolver configuration.
var DefaultOpts = Opts{}

// Entry is a resolved reference record.
type Entry struct {
	Key       Key
	Accession string
	// Taxonomy is the reference lineage string, unmodified.
	Taxonomy string
}

// Stats counts what happened to the input records of a Resolver.
type Stats struct {
	// Records is the number of input records.
	Records int
	// Excluded is the number of records with no resolvable key: a lineage
	// missing its phylum or species marker, or an accession without a genome
	// identifier.
	Excluded int
	// Collisions is the number of records whose key was already present.
	// The later record replaces the earlier one.
	Collisions int
	// Conflicts counts the collisions where the replaced lineage differs
	// from the new one.
	Conflicts int
}

// Resolver maps join keys to reference lineages.
//
// Records are inserted in input order, so when several records share a key
// the last one wins. This matters only for non-unique reference databases;
// Stats reports how often it happened.
type Resolver struct {
	mode    Mode
	entries map[Key]Entry
	stats   Stats

	// byPhylum lists the species names seen under each phylum. It is only
	// populated in LineageMode, for Suggest.
	byPhylum map[string][]string
}

// NewResolver builds a Resolver from records. Records without a resolvable
// key are excluded and counted; they are never an error.
func NewResolver(mode Mode, records []Record, opts Opts) (*Resolver, error) {
	r := &Resolver{
		mode:     mode,
		entries:  make(map[Key]Entry, len(records)),
		byPhylum: map[string][]string{},
	}
	for _, rec := range records {
		r.stats.Records++
		key, ok := r.keyOf(rec)
		if !ok {
			r.stats.Excluded++
			if log.At(log.Debug) {
				log.Debug.Printf("taxonomy: no %s key for %s (%s)", mode, rec.Accession, rec.Lineage)
			}
			continue
		}
		if old, ok := r.entries[key]; ok {
			r.stats.Collisions++
			if old.Taxonomy != rec.Lineage {
				r.stats.Conflicts++
				if opts.StrictConflicts {
					return nil, errors.E(errors.Invalid, fmt.Sprintf("taxonomy: %s and %s share key %q but have different lineages %q, %q",
						old.Accession, rec.Accession, key, old.Taxonomy, rec.Lineage))
				}
				log.Debug.Printf("taxonomy: %s replaces %s for key %q", rec.Accession, old.Accession, key)
			}
		}
		r.entries[key] = Entry{Key: key, Accession: rec.Accession, Taxonomy: rec.Lineage}
	}
	return r, nil
}

// keyOf computes the join key of a record, and registers its species for
// Suggest as a side effect.
func (r *Resolver) keyOf(rec Record) (Key, bool) {
	switch r.mode {
	case GenomeMode:
		id, ok := ParseGenomeID(rec.Accession)
		if !ok {
			return "", false
		}
		return GenomeKey(id), true
	default:
		// Elements that do not parse cannot hide the phylum and species
		// markers.
		lineage := scanLineage(rec.Lineage)
		phylum, ok := lineage.Name(Phylum)
		if !ok {
			return "", false
		}
		species, ok := lineage.Name(Species)
		if !ok {
			return "", false
		}
		key := LineageKey(phylum, species)
		if _, dup := r.entries[key]; !dup {
			r.byPhylum[phylum] = append(r.byPhylum[phylum], species)
		}
		return key, true
	}
}

// Load reads and concatenates the given reference tables, in order, and
// builds a Resolver from them.
func Load(ctx context.Context, mode Mode, opts Opts, paths ...string) (*Resolver, error) {
	var all []Record
	for _, path := range paths {
		records, err := ReadRecords(ctx, path)
		if err != nil {
			return nil, err
		}
		log.Debug.Printf("taxonomy: read %d records from %s", len(records), path)
		all = append(all, records...)
	}
	r, err := NewResolver(mode, all, opts)
	if err != nil {
		return nil, err
	}
	s := r.Stats()
	log.Printf("taxonomy: resolved %d keys from %d records in %s mode (%d excluded, %d collisions, %d conflicting)",
		r.Len(), s.Records, mode, s.Excluded, s.Collisions, s.Conflicts)
	return r, nil
}

// Mode returns the resolution mode.
func (r *Resolver) Mode() Mode { return r.mode }

// Len returns the number of distinct keys.
func (r *Resolver) Len() int { return len(r.entries) }

// Stats returns the load statistics.
func (r *Resolver) Stats() Stats { return r.stats }

// Lookup finds the entry for key.
func (r *Resolver) Lookup(key Key) (Entry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// Suggest returns up to n species names of the given phylum, closest to
// species by edit distance. It returns nil outside LineageMode.
func (r *Resolver) Suggest(phylum, species string, n int) []string {
	candidates := r.byPhylum[phylum]
	if r.mode != LineageMode || len(candidates) == 0 || n <= 0 {
		return nil
	}
	type scored struct {
		name string
		dist int
	}
	s := make([]scored, len(candidates))
	for i, c := range candidates {
		s[i] = scored{c, matchr.Levenshtein(species, c)}
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].dist < s[j].dist })
	if len(s) > n {
		s = s[:n]
	}
	names := make([]string, len(s))
	for i := range s {
		names[i] = s[i].name
	}
	return names
}
