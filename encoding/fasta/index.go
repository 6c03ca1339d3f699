// Package fasta indexes reference genome FASTA files.
//
// A FASTA file is a sequence of named records, each a '>' line followed by
// sequence lines:
//
// >contig_1 Escherichia coli K-12
// ACGTAC
// GAGGAC
// >contig_2
// ACGT
//
// The record name is the text after '>' up to the first space.
package fasta

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// Entry describes one record, with the fields of a samtools faidx index
// (http://www.htslib.org/doc/faidx.html).
type Entry struct {
	Name string
	// Length is the number of bases.
	Length int64
	// Offset is the byte offset of the first base.
	Offset int64
	// LineBases and LineWidth are the bases and bytes (including the line
	// terminator) per sequence line.
	LineBases, LineWidth int64
}

// Index scans a FASTA file and returns one entry per record, in file order.
// Empty input, or sequence data before the first '>' line, is an error.
func Index(in io.Reader) ([]Entry, error) {
	var (
		r       = bufio.NewReader(in)
		entries []Entry
		cur     *Entry
		cumByte int64
	)
	for {
		fullLine, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		cumByte += int64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		switch {
		case len(line) == 0:
		case line[0] == '>':
			entries = append(entries, Entry{
				Name:   strings.SplitN(string(line[1:]), " ", 2)[0],
				Offset: cumByte,
			})
			cur = &entries[len(entries)-1]
		case cur == nil:
			return nil, errors.E(errors.Invalid, "malformed FASTA file: sequence before the first '>' line")
		default:
			if cur.LineWidth == 0 {
				cur.LineWidth = int64(len(fullLine))
				cur.LineBases = int64(len(line))
			}
			cur.Length += int64(len(line))
		}
		if err == io.EOF {
			break
		}
	}
	if len(entries) == 0 {
		return nil, errors.E(errors.Invalid, "empty FASTA file")
	}
	return entries, nil
}

// TotalLength returns the sum of the record lengths.
func TotalLength(entries []Entry) int64 {
	var n int64
	for _, e := range entries {
		n += e.Length
	}
	return n
}

// WriteIndex writes entries in the .fai format.
func WriteIndex(out io.Writer, entries []Entry) error {
	w := tsv.NewWriter(out)
	for _, e := range entries {
		w.WriteString(e.Name)
		w.WriteInt64(e.Length)
		w.WriteInt64(e.Offset)
		w.WriteInt64(e.LineBases)
		w.WriteInt64(e.LineWidth)
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}
