// Package fastq reads and writes the FASTQ files produced by read
// simulators, and concatenates them.
package fastq

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when a record is malformed: an ID line not
	// starting with '@', a separator line not starting with '+', or a quality
	// string whose length differs from the sequence.
	ErrInvalid = errors.New("invalid FASTQ file")
)

// Read is a FASTQ record. ID includes the leading '@' and Sep the leading
// '+'.
type Read struct {
	ID, Seq, Sep, Qual string
}

// Scanner reads FASTQ records one at a time. It is not thread safe.
type Scanner struct {
	b   *bufio.Scanner
	err error
	eof bool
}

// NewScanner creates a scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	// Long-read simulators emit lines well beyond bufio's 64KiB default.
	b.Buffer(make([]byte, 0, 64<<10), 16<<20)
	return &Scanner{b: b}
}

// Scan reads the next record into read. It returns false at the end of input
// or on error; Err tells the two apart.
func (s *Scanner) Scan(read *Read) bool {
	if s.err != nil || s.eof {
		return false
	}
	var lines [4]string
	for i := range lines {
		if !s.b.Scan() {
			if s.err = s.b.Err(); s.err == nil {
				if i == 0 {
					s.eof = true
				} else {
					s.err = ErrShort
				}
			}
			return false
		}
		lines[i] = s.b.Text()
	}
	if !strings.HasPrefix(lines[0], "@") || !strings.HasPrefix(lines[2], "+") || len(lines[1]) != len(lines[3]) {
		s.err = ErrInvalid
		return false
	}
	*read = Read{ID: lines[0], Seq: lines[1], Sep: lines[2], Qual: lines[3]}
	return true
}

// Err returns the first error encountered, or nil at a clean end of input.
func (s *Scanner) Err() error { return s.err }

// Writer writes FASTQ records.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter creates a writer. Flush must be called once writing is done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes one record.
func (w *Writer) Write(r *Read) error {
	for _, line := range [...]string{r.ID, r.Seq, r.Sep, r.Qual} {
		if w.err != nil {
			break
		}
		if _, w.err = w.w.WriteString(line); w.err == nil {
			w.err = w.w.WriteByte('\n')
		}
	}
	return w.err
}

// Flush flushes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

// Copy appends the records of r to w and returns the number of records
// copied. If tag is nonempty, it is inserted in front of every read name
// ("@read1" becomes "@tag:read1"), so that reads simulated from different
// genomes stay distinguishable after concatenation.
func Copy(w *Writer, r io.Reader, tag string) (int, error) {
	s := NewScanner(r)
	var (
		read Read
		n    int
	)
	for s.Scan(&read) {
		if tag != "" {
			read.ID = "@" + tag + ":" + read.ID[1:]
		}
		if err := w.Write(&read); err != nil {
			return n, err
		}
		n++
	}
	return n, s.Err()
}
