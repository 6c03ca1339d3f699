package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/grailbio/truthset/truth"
	"github.com/stretchr/testify/require"
	"v.io/x/lib/cmdline"
)

const (
	ecoli       = "d__Bacteria;p__Pseudomonadota;c__Gammaproteobacteria;o__Enterobacterales;f__Enterobacteriaceae;g__Escherichia;s__Escherichia coli"
	subtilis    = "d__Bacteria;p__Bacillota;c__Bacilli;o__Bacillales;f__Bacillaceae;g__Bacillus;s__Bacillus subtilis"
	perfringen  = "d__Bacteria;p__Bacillota;c__Clostridia;o__Clostridiales;f__Clostridiaceae;g__Clostridium;s__Clostridium perfringens"
	maripaludis = "d__Archaea;p__Methanobacteriota;c__Methanococci;o__Methanococcales;f__Methanococcaceae;g__Methanococcus;s__Methanococcus maripaludis"

	bacTax = "RS_GCF_000005845.2\t" + ecoli + "\n" +
		"RS_GCF_000009045.1\t" + subtilis + "\n" +
		"GB_GCA_000013285.1\t" + perfringen + "\n"
	arTax = "RS_GCF_000011585.1\t" + maripaludis + "\n"
)

// mockCommunity follows the default two-section layout: a header on line 3
// with up to 16 members, and a header on line 21.
func mockCommunity() string {
	lines := []string{
		"Mock community SRR606249,,",
		",,",
		"Organism Name,Phylum,Genome molecules / ng gDNA",
		"Escherichia coli,Pseudomonadota,1.5",
		"Halobacterium salinarum,Halobacteriota,x",
		"Methanococcus maripaludis,Methanobacteriota,2",
	}
	for len(lines) < 20 {
		lines = append(lines, ",,")
	}
	lines = append(lines,
		"Organism Name,Phylum,Genome molecules / ng gDNA",
		"Bacillus subtilis,Bacillota,3.25",
		"Clostridium perfringens,Bacillota,0",
		"Unknown bug,Bacillota,4",
		"* quantified by ddPCR,,",
	)
	return strings.Join(lines, "\n") + "\n"
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	for name, data := range files {
		assert.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte(data), 0644))
	}
}

func run(args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	env := &cmdline.Env{Stdout: &stdout, Stderr: &stderr, Vars: map[string]string{}}
	err := cmdline.ParseAndRun(newCmdRoot(), env, args)
	return stdout.String(), err
}

func TestSpreadsheet(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	writeFiles(t, dir, map[string]string{
		"SRR606249.csv":                         mockCommunity(),
		"bac120_taxonomy.tsv":                   bacTax,
		"ar53_taxonomy.tsv":                     arTax,
		"GCF_000005845.2_ASM584v2_genomic.fna":  ">NC_000913.3\nACGT\n",
		"GCF_000009045.1_ASM904v1_genomic.fna":  ">NC_000964.3\nACGT\n",
		"GCF_000011585.1_ASM1158v1_genomic.txt": "not a genome\n",
	})
	condensedPath := filepath.Join(dir, "out.tsv")
	genomesPath := filepath.Join(dir, "genomes.tsv")
	_, err := run("spreadsheet",
		"-coverage-file", filepath.Join(dir, "SRR606249.csv"),
		"-bac-tax", filepath.Join(dir, "bac120_taxonomy.tsv"),
		"-ar-tax", filepath.Join(dir, "ar53_taxonomy.tsv"),
		"-output-condensed", condensedPath,
		"-output-genomes", genomesPath,
		"-genome-dir", dir)
	assert.NoError(t, err)

	got, err := ioutil.ReadFile(condensedPath)
	assert.NoError(t, err)
	expect.EQ(t, string(got), truth.CondensedHeader+"\n"+
		"SRR606249\t1.5\t"+ecoli+"\n"+
		"SRR606249\t2.0\t"+maripaludis+"\n"+
		"SRR606249\t3.25\t"+subtilis+"\n")

	genomes, err := truth.ReadGenomes(context.Background(), genomesPath)
	assert.NoError(t, err)
	expect.EQ(t, genomes, []truth.Genome{
		{Accession: "RS_GCF_000005845.2", Coverage: 1.5, Taxonomy: ecoli,
			Path: filepath.Join(dir, "GCF_000005845.2_ASM584v2_genomic.fna")},
		{Accession: "RS_GCF_000011585.1", Coverage: 2, Taxonomy: maripaludis},
		{Accession: "RS_GCF_000009045.1", Coverage: 3.25, Taxonomy: subtilis,
			Path: filepath.Join(dir, "GCF_000009045.1_ASM904v1_genomic.fna")},
	})
}

func TestSpreadsheetSampleFlag(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	writeFiles(t, dir, map[string]string{
		"community.csv": mockCommunity(),
		"bac.tsv":       bacTax,
		"ar.tsv":        arTax,
	})
	condensedPath := filepath.Join(dir, "out.tsv")
	_, err := run("spreadsheet", "-sample", "S1",
		"-coverage-file", filepath.Join(dir, "community.csv"),
		"-bac-tax", filepath.Join(dir, "bac.tsv"),
		"-ar-tax", filepath.Join(dir, "ar.tsv"),
		"-output-condensed", condensedPath)
	assert.NoError(t, err)
	got, err := ioutil.ReadFile(condensedPath)
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(got)), "\n")
	assert.EQ(t, len(lines), 4)
	for _, line := range lines[1:] {
		expect.True(t, strings.HasPrefix(line, "S1\t"), line)
	}
}

func TestSylph(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	const (
		header = "Sample_file\tGenome_file\tTaxonomic_abundance\tSequence_abundance\tAdjusted_ANI\tEff_cov\tContig_name\n"
		// Two strains of one species, a genome without an assembly
		// identifier and a genome without a reference lineage.
		profile = header +
			"s.fq\tgtdb/GCF_000005845.2_genomic.fna.gz\t40\t35\t99.5\t10\tNC_000913.3\n" +
			"s.fq\tgtdb/GCA_000013285.1_genomic.fna.gz\t20\t25\t98.1\t4.5\tNC_008261.1\n" +
			"s.fq\tmags/bin.7.fa\t10\t10\t97.0\t2\tk141_1\n" +
			"s.fq\tgtdb/GCF_999999999.1_genomic.fna.gz\t30\t30\t96.0\t3\tNZ_1\n" +
			"s.fq\tgtdb/GCF_000013285.1_genomic.fna.gz\t5\t5\t99.9\t1.5\tNC_008262.1\n"
	)
	writeFiles(t, dir, map[string]string{
		"sylph.tsv": profile,
		"bac.tsv":   bacTax,
		"ar.tsv":    arTax,
	})
	args := []string{"sylph", "-sample", "S1",
		"-sylph-genome", filepath.Join(dir, "sylph.tsv"),
		"-bac-tax", filepath.Join(dir, "bac.tsv"),
		"-arc-tax", filepath.Join(dir, "ar.tsv")}
	out, err := run(args...)
	assert.NoError(t, err)
	expect.EQ(t, out, truth.CondensedHeader+"\n"+
		"S1\t40.0\t"+ecoli+"\n"+
		"S1\t25.0\t"+perfringen+"\n")

	out, err = run(append(args, "-abundance-column", "Eff_cov")...)
	assert.NoError(t, err)
	expect.EQ(t, out, truth.CondensedHeader+"\n"+
		"S1\t10.0\t"+ecoli+"\n"+
		"S1\t6.0\t"+perfringen+"\n")

	_, err = run(append(args, "-abundance-column", "ANI")...)
	expect.HasSubstr(t, err.Error(), "ANI")
}

func TestSylphTwoColumnsNoReference(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	writeFiles(t, dir, map[string]string{
		"sylph.tsv": "Genome_file\tTaxonomic_abundance\nfoo_GCA_000000003_genomic.fna\t1.25\n",
		"bac.tsv":   bacTax,
		"ar.tsv":    arTax,
	})
	out, err := run("sylph", "-sample", "S1",
		"-sylph-genome", filepath.Join(dir, "sylph.tsv"),
		"-bac-tax", filepath.Join(dir, "bac.tsv"),
		"-arc-tax", filepath.Join(dir, "ar.tsv"))
	assert.NoError(t, err)
	expect.EQ(t, out, truth.CondensedHeader+"\n")
}

func TestStrictConflicts(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	writeFiles(t, dir, map[string]string{
		"sylph.tsv": "Genome_file\tTaxonomic_abundance\tSequence_abundance\tEff_cov\n" +
			"GCF_000005845.2.fna\t1\t1\t1\n",
		"bac.tsv": bacTax,
		// Same genome identifier as the E. coli row, with another lineage.
		"ar.tsv": "GB_GCA_000005845.1\t" + maripaludis + "\n",
	})
	args := []string{"sylph", "-sample", "S1",
		"-sylph-genome", filepath.Join(dir, "sylph.tsv"),
		"-bac-tax", filepath.Join(dir, "bac.tsv"),
		"-arc-tax", filepath.Join(dir, "ar.tsv")}
	out, err := run(args...)
	assert.NoError(t, err)
	// The last row wins.
	expect.EQ(t, out, truth.CondensedHeader+"\nS1\t1.0\t"+maripaludis+"\n")

	_, err = run(append(args, "-strict-conflicts")...)
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "000005845")
}

func TestUsageErrors(t *testing.T) {
	_, err := run("sylph", "-sample", "S1", "-bac-tax", "b", "-arc-tax", "a")
	require.Equal(t, cmdline.ErrUsage, err)

	_, err = run("sylph", "-sample", "S1", "-bac-tax", "b", "-arc-tax", "a",
		"-sylph-genome", "s", "-debug", "-quiet")
	require.Equal(t, cmdline.ErrUsage, err)

	_, err = run("spreadsheet", "extra")
	require.Equal(t, cmdline.ErrUsage, err)

	_, err = run("simulate", "-genomes", "g.tsv", "-read1", "r1.fq.gz")
	require.Equal(t, cmdline.ErrUsage, err)

	// -strict-conflicts only applies to the subcommands reading a taxonomy.
	_, err = run("simulate", "-strict-conflicts",
		"-genomes", "g.tsv", "-read1", "r1.fq.gz", "-read2", "r2.fq.gz")
	require.Equal(t, cmdline.ErrUsage, err)
}

const fakeSimulator = `#!/bin/sh
case "$1" in
*missing*) exit 1;;
esac
printf '@r0/1\nACGT\n+\nIIII\n' > "${2}1.fq"
printf '@r0/2\nTGCA\n+\nIIII\n' > "${2}2.fq"
`

func TestSimulateDegraded(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	writeFiles(t, dir, map[string]string{
		"sim.sh":      fakeSimulator,
		"a.fna":       ">a\nACGTACGT\n",
		"missing.fna": ">b\nACGTACGT\n",
		"genomes.tsv": truth.GenomesHeader + "\n" +
			"RS_GCF_000005845.2\t2.0\t" + filepath.Join(dir, "a.fna") + "\t" + ecoli + "\n" +
			"RS_GCF_000009045.1\t1.0\t" + filepath.Join(dir, "missing.fna") + "\t" + subtilis + "\n",
	})
	args := []string{"simulate",
		"-genomes", filepath.Join(dir, "genomes.tsv"),
		"-read1", filepath.Join(dir, "r1.fq.gz"),
		"-read2", filepath.Join(dir, "r2.fq.gz"),
		"-tmp-dir", dir,
		"-parallelism", "2",
		"-simulator", "/bin/sh " + filepath.Join(dir, "sim.sh") + " {fasta} {prefix}"}
	_, err := run(args...)
	require.Equal(t, cmdline.ErrExitCode(exitDegraded), err)

	_, err = run(append(args, "-simulator", "/bin/sh "+filepath.Join(dir, "sim.sh")+" {fasta}")...)
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "{prefix}")
}
