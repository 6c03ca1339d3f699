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
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/truthset/taxonomy"
)

// Columns names the spreadsheet columns projected onto Record fields.
// Names are matched ignoring case and runs of whitespace.
type Columns struct {
	Species   string
	Phylum    string
	Abundance string
}

// Section describes one table within a spreadsheet.
type Section struct {
	// Skip is the number of lines before the header line.
	Skip int
	// Rows is the maximum number of lines after the header that belong to
	// the section. Zero means until the end of the sheet.
	Rows int
	// Nulls are cell values that mean "no value", in addition to the empty
	// cell.
	Nulls []string
	// Lenient turns unparsable abundances into missing values instead of
	// errors.
	Lenient bool
}

// SpreadsheetOpts configures a Spreadsheet source.
type SpreadsheetOpts struct {
	// Sheet is the workbook sheet to read. Empty means the first sheet.
	// Ignored for delimited text files.
	Sheet    string
	Columns  Columns
	Sections []Section
}

// DefaultSpreadsheetOpts matches the mock community spreadsheet layout: a
// 16-row archaeal table whose header is on line 3, followed by a bacterial
// table whose header is on line 21.
var DefaultSpreadsheetOpts = SpreadsheetOpts{
	Columns: Columns{
		Species:   "Organism Name",
		Phylum:    "Phylum",
		Abundance: "Genome molecules / ng gDNA",
	},
	Sections: []Section{
		{Skip: 2, Rows: 16, Nulls: []string{"x"}, Lenient: true},
		{Skip: 20},
	},
}

// Spreadsheet is a Source reading a workbook (or a delimited text export of
// one) made of several stacked tables. Records are keyed for
// taxonomy.LineageMode.
type Spreadsheet struct {
	path string
	opts SpreadsheetOpts
}

// NewSpreadsheet creates a spreadsheet source.
func NewSpreadsheet(path string, opts SpreadsheetOpts) *Spreadsheet {
	return &Spreadsheet{path: path, opts: opts}
}

// Name implements Source.
func (s *Spreadsheet) Name() string { return s.path }

// Mode implements Source.
func (s *Spreadsheet) Mode() taxonomy.Mode { return taxonomy.LineageMode }

// Read implements Source. Sections are parsed independently and
// concatenated in order.
func (s *Spreadsheet) Read(ctx context.Context) ([]Record, error) {
	if len(s.opts.Sections) == 0 {
		return nil, errors.E(errors.Invalid, "spreadsheet", s.path, "no sections configured")
	}
	grid, err := readGrid(ctx, s.path, s.opts.Sheet)
	if err != nil {
		return nil, err
	}
	var records []Record
	for i, sec := range s.opts.Sections {
		r, err := parseSection(grid, sec, s.opts.Columns)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("spreadsheet %s: section %d", s.path, i))
		}
		log.Debug.Printf("%s: section %d: %d records", s.path, i, len(r))
		records = append(records, r...)
	}
	return records, nil
}

// parseSection extracts the records of one section from grid. Lines are
// reported 1-based in errors.
func parseSection(grid [][]string, sec Section, cols Columns) ([]Record, error) {
	if sec.Skip < 0 || sec.Skip >= len(grid) {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("header line %d is past the end of the sheet (%d lines)", sec.Skip+1, len(grid)))
	}
	header := grid[sec.Skip]
	index := func(name string) (int, error) {
		want := normalizeColumn(name)
		for i, h := range header {
			if normalizeColumn(h) == want {
				return i, nil
			}
		}
		return -1, errors.E(errors.Invalid, fmt.Sprintf("line %d: column %q not found in header %q", sec.Skip+1, name, header))
	}
	speciesCol, err := index(cols.Species)
	if err != nil {
		return nil, err
	}
	phylumCol, err := index(cols.Phylum)
	if err != nil {
		return nil, err
	}
	abundanceCol, err := index(cols.Abundance)
	if err != nil {
		return nil, err
	}

	nulls := map[string]bool{"": true}
	for _, n := range sec.Nulls {
		nulls[n] = true
	}
	end := len(grid)
	if sec.Rows > 0 && sec.Skip+1+sec.Rows < end {
		end = sec.Skip + 1 + sec.Rows
	}
	var records []Record
	for line := sec.Skip + 1; line < end; line++ {
		row := grid[line]
		species := strings.TrimSpace(cell(row, speciesCol))
		if nulls[species] {
			// Blank lines, footnotes and the like.
			continue
		}
		phylum := strings.TrimSpace(cell(row, phylumCol))
		if nulls[phylum] {
			phylum = ""
		}
		rec := Record{
			Key:     taxonomy.LineageKey(phylum, species),
			Species: species,
			Phylum:  phylum,
		}
		value := strings.TrimSpace(cell(row, abundanceCol))
		if nulls[value] {
			rec.Missing = true
		} else if rec.Coverage, err = strconv.ParseFloat(value, 64); err != nil {
			if !sec.Lenient {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("line %d: abundance %q of %q is not a number", line+1, value, species))
			}
			rec.Missing = true
		}
		records = append(records, rec)
	}
	return records, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
