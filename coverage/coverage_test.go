package coverage

import (
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/truthset/taxonomy"
	"github.com/xuri/excelize/v2"
)

func TestFilter(t *testing.T) {
	records := []Record{
		{Species: "a", Coverage: 5},
		{Species: "b", Coverage: 0},
		{Species: "c", Coverage: -1},
		{Species: "d", Missing: true},
		{Species: "e", Coverage: 0.25},
	}
	kept, dropped := Filter(records)
	expect.EQ(t, dropped, 3)
	assert.EQ(t, len(kept), 2)
	expect.EQ(t, kept[0].Species, "a")
	expect.EQ(t, kept[1].Species, "e")

	again, dropped := Filter(kept)
	expect.EQ(t, dropped, 0)
	expect.EQ(t, again, kept)
}

func TestNormalizeColumn(t *testing.T) {
	expect.EQ(t, normalizeColumn("Genome molecules /   ng gDNA"), normalizeColumn("genome molecules / ng gdna"))
	expect.EQ(t, normalizeColumn("  Organism\tName "), "organism name")
}

// mockCommunity lays out two stacked tables like the mock community
// spreadsheet: header on line 3 with 3 data lines, then header on line 9
// and a footnote.
var mockCommunity = [][]string{
	{"Mock community"},
	{},
	{"Organism Name", "Phylum", "Genome molecules /   ng gDNA"},
	{"Archaeon one", "Euryarchaeota", "12.5"},
	{"Archaeon two", "Crenarchaeota", "x"},
	{"Archaeon three", "Euryarchaeota", "n/a"},
	{"not part of any section", "", ""},
	{},
	{"Organism Name", "Phylum", "Genome molecules /   ng gDNA", "Notes"},
	{"SpeciesA", "PhylumX", "5.0"},
	{"SpeciesB", "PhylumY", "0"},
	{"", "", ""},
	{"* footnote"},
}

var mockOpts = SpreadsheetOpts{
	Columns: DefaultSpreadsheetOpts.Columns,
	Sections: []Section{
		{Skip: 2, Rows: 3, Nulls: []string{"x"}, Lenient: true},
		{Skip: 8},
	},
}

func writeCSV(t *testing.T, path string, grid [][]string) {
	var b strings.Builder
	for _, row := range grid {
		b.WriteString(strings.Join(row, ","))
		// encoding/csv ignores blank lines, so pad them the way spreadsheet
		// exports do.
		if len(row) == 0 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	assert.NoError(t, ioutil.WriteFile(path, []byte(b.String()), 0600))
}

func writeXLSX(t *testing.T, path string, grid [][]string) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	for i, row := range grid {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			assert.NoError(t, err)
			assert.NoError(t, wb.SetCellStr(sheet, cell, v))
		}
	}
	assert.NoError(t, wb.SaveAs(path))
	assert.NoError(t, wb.Close())
}

func checkMockRecords(t *testing.T, records []Record) {
	assert.EQ(t, len(records), 6, fmt.Sprintf("%+v", records))
	expect.EQ(t, records[0], Record{
		Key:      taxonomy.LineageKey("Euryarchaeota", "Archaeon one"),
		Species:  "Archaeon one",
		Phylum:   "Euryarchaeota",
		Coverage: 12.5,
	})
	expect.True(t, records[1].Missing)
	// "n/a" is not a number, but the first section is lenient.
	expect.True(t, records[2].Missing)
	expect.EQ(t, records[2].Species, "Archaeon three")
	expect.EQ(t, records[3].Key, taxonomy.LineageKey("PhylumX", "SpeciesA"))
	expect.EQ(t, records[3].Coverage, 5.0)
	expect.EQ(t, records[4].Species, "SpeciesB")
	// The footnote has no abundance.
	expect.EQ(t, records[5].Species, "* footnote")
	expect.True(t, records[5].Missing)

	kept, dropped := Filter(records)
	expect.EQ(t, dropped, 4)
	expect.EQ(t, len(kept), 2)
}

func TestSpreadsheetCSV(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "community.csv")
	writeCSV(t, path, mockCommunity)

	src := NewSpreadsheet(path, mockOpts)
	expect.EQ(t, src.Mode(), taxonomy.LineageMode)
	records, err := src.Read(context.Background())
	assert.NoError(t, err)
	checkMockRecords(t, records)
}

func TestSpreadsheetXLSX(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "community.xlsx")
	writeXLSX(t, path, mockCommunity)

	records, err := NewSpreadsheet(path, mockOpts).Read(context.Background())
	assert.NoError(t, err)
	checkMockRecords(t, records)

	kept, err := ReadSource(context.Background(), NewSpreadsheet(path, mockOpts))
	assert.NoError(t, err)
	expect.EQ(t, len(kept), 2)
}

func TestSpreadsheetErrors(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	// Strict section with a non-numeric abundance.
	path := filepath.Join(dir, "strict.csv")
	writeCSV(t, path, mockCommunity)
	strict := mockOpts
	strict.Sections = []Section{{Skip: 2, Rows: 3, Nulls: []string{"x"}}}
	_, err := NewSpreadsheet(path, strict).Read(ctx)
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), `"n/a"`)
	expect.HasSubstr(t, err.Error(), path)

	// Missing column.
	renamed := mockOpts
	renamed.Columns.Phylum = "Division"
	_, err = NewSpreadsheet(path, renamed).Read(ctx)
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), `"Division"`)

	// Header past the end of the sheet.
	short := mockOpts
	short.Sections = []Section{{Skip: 100}}
	_, err = NewSpreadsheet(path, short).Read(ctx)
	expect.NotNil(t, err)
}

const sylphHeader = "Sample_file\tGenome_file\tTaxonomic_abundance\tSequence_abundance\tAdjusted_ANI\tEff_cov\tContig_name\n"

func TestSylph(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "sylph.tsv")
	data := sylphHeader +
		"s.fq\tgenomes/foo_GCA_000000003_genomic.fna\t1.25\t2.5\t99.1\t3.75\tctg1\n" +
		"s.fq\tgenomes/GCF_000000001.1.fna.gz\t0\t0\t98.0\t0\tctg2\n" +
		"s.fq\tgenomes/mag_17.fa\t4.0\t4.0\t97.0\t1.0\tctg3\n"
	assert.NoError(t, ioutil.WriteFile(path, []byte(data), 0600))

	src, err := NewSylph(path, DefaultSylphOpts)
	assert.NoError(t, err)
	expect.EQ(t, src.Mode(), taxonomy.GenomeMode)
	records, err := src.Read(context.Background())
	assert.NoError(t, err)
	assert.EQ(t, len(records), 2)
	expect.EQ(t, records[0], Record{
		Key:      taxonomy.GenomeKey("000000003"),
		Genome:   "000000003",
		Path:     "genomes/foo_GCA_000000003_genomic.fna",
		Coverage: 1.25,
	})
	expect.EQ(t, records[1].Genome, "000000001")

	kept, err := ReadSource(context.Background(), src)
	assert.NoError(t, err)
	expect.EQ(t, len(kept), 1)

	src, err = NewSylph(path, SylphOpts{Abundance: EffectiveCoverage})
	assert.NoError(t, err)
	records, err = src.Read(context.Background())
	assert.NoError(t, err)
	expect.EQ(t, records[0].Coverage, 3.75)

	_, err = NewSylph(path, SylphOpts{Abundance: "Mean_cov"})
	expect.NotNil(t, err)
}

func TestSylphTwoColumns(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "sylph.tsv")
	data := "Genome_file\tTaxonomic_abundance\nfoo_GCA_000000003_genomic.fna\t1.25\n"
	assert.NoError(t, ioutil.WriteFile(path, []byte(data), 0600))

	src, err := NewSylph(path, DefaultSylphOpts)
	assert.NoError(t, err)
	records, err := ReadSource(context.Background(), src)
	assert.NoError(t, err)
	expect.EQ(t, records, []Record{{
		Key:      taxonomy.GenomeKey("000000003"),
		Genome:   "000000003",
		Path:     "foo_GCA_000000003_genomic.fna",
		Coverage: 1.25,
	}})

	// The other abundance columns are required only when selected.
	src, err = NewSylph(path, SylphOpts{Abundance: SequenceAbundance})
	assert.NoError(t, err)
	_, err = src.Read(context.Background())
	expect.NotNil(t, err)
}

func TestSylphMissingColumn(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(dir, "sylph.tsv")
	data := "Genome_file\tAbundance\nfoo_GCA_000000003.fna\t1\n"
	assert.NoError(t, ioutil.WriteFile(path, []byte(data), 0600))
	src, err := NewSylph(path, DefaultSylphOpts)
	assert.NoError(t, err)
	_, err = src.Read(context.Background())
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), path)
}
