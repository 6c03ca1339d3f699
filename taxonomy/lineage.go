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

// Package taxonomy resolves coverage join keys to reference lineage strings.
//
// A lineage string is a ranked taxonomy as found in GTDB taxonomy tables, for
// example
//
//   d__Bacteria;p__Proteobacteria;c__Gammaproteobacteria;o__Enterobacterales;f__Enterobacteriaceae;g__Escherichia;s__Escherichia coli
//
// The grammar accepted by ParseLineage is
//
//   lineage := element { ";" element }
//   element := [spaces] prefix "__" name
//   prefix  := one ASCII letter
//   name    := any run of bytes other than ";", possibly empty
//
// Empty names are legal (GTDB writes "s__" for unnamed species), but such an
// element does not count as a marker: Lineage.Name reports it as absent.
package taxonomy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/grailbio/base/errors"
)

// Rank prefixes used in GTDB-style lineages.
const (
	Domain  byte = 'd'
	Phylum  byte = 'p'
	Class   byte = 'c'
	Order   byte = 'o'
	Family  byte = 'f'
	Genus   byte = 'g'
	Species byte = 's'
)

// Rank is one element of a lineage.
type Rank struct {
	Prefix byte
	Name   string
}

// String renders the element as it appears in a lineage string.
func (r Rank) String() string {
	return string(r.Prefix) + "__" + r.Name
}

// Lineage is a parsed lineage string. Ranks appear in input order.
type Lineage []Rank

// Name returns the name of the first rank with the given prefix. It returns
// false if there is no such rank or its name is empty.
func (l Lineage) Name(prefix byte) (string, bool) {
	for _, r := range l {
		if r.Prefix == prefix {
			return r.Name, r.Name != ""
		}
	}
	return "", false
}

// String joins the ranks back into a lineage string.
func (l Lineage) String() string {
	parts := make([]string, len(l))
	for i, r := range l {
		parts[i] = r.String()
	}
	return strings.Join(parts, ";")
}

// ParseLineage parses a lineage string. The rank names are the exact bytes
// between "x__" and the next ';' (or the end of the string). Empty elements,
// as left by a trailing or doubled ';', are skipped.
func ParseLineage(s string) (Lineage, error) {
	return parseLineage(s, true)
}

// scanLineage returns the well-formed elements of s, ignoring the others.
func scanLineage(s string) Lineage {
	l, _ := parseLineage(s, false)
	return l
}

func parseLineage(s string, strict bool) (Lineage, error) {
	var l Lineage
	for i, elem := range strings.Split(s, ";") {
		elem = strings.TrimLeft(elem, " ")
		if elem == "" {
			continue
		}
		if len(elem) < 3 || !isLetter(elem[0]) || elem[1] != '_' || elem[2] != '_' {
			if strict {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("lineage %q: element %d (%q) is not of form x__name", s, i, elem))
			}
			continue
		}
		l = append(l, Rank{Prefix: elem[0], Name: elem[3:]})
	}
	if len(l) == 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("empty lineage %q", s))
	}
	return l, nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// genomeIDRegexp matches NCBI assembly accessions. The submatch is the
// 9-digit numeric part shared by the GenBank (GCA) and RefSeq (GCF) records
// of the same assembly.
var genomeIDRegexp = regexp.MustCompile(`GC[AF]_([0-9]{9})`)

// ParseGenomeID extracts the 9-digit genome identifier from an accession or a
// file name, e.g. "RS_GCF_000005845.2" or "foo_GCA_000000003_genomic.fna".
func ParseGenomeID(s string) (string, bool) {
	m := genomeIDRegexp.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Key is a join key shared by coverage records and reference entries.
type Key string

// LineageKey builds the key used in LineageMode.
func LineageKey(phylum, species string) Key {
	// Neither field can contain a tab: both come from tab-separated input.
	return Key(phylum + "\t" + species)
}

// GenomeKey builds the key used in GenomeMode.
func GenomeKey(id string) Key {
	return Key(id)
}
