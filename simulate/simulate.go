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

// Package simulate generates paired-end reads for a genome-wise truth table
// by running an external read simulator once per genome, and concatenates
// the results into two compressed FASTQ files.
package simulate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/truthset/encoding/fasta"
	"github.com/grailbio/truthset/encoding/fastq"
	"github.com/grailbio/truthset/truth"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// ErrDegraded is the cause of the error returned by Run when some
// simulations failed. The outputs are still written, without the reads of
// the failed genomes.
var ErrDegraded = errors.New("some simulations failed")

// Opts configures Run.
type Opts struct {
	// Simulator is the command template, see Template.
	Simulator string
	// Parallelism is the maximum number of concurrent simulations.
	Parallelism int
	// Timeout bounds each simulation. Zero means no limit.
	Timeout time.Duration
	// ReadLength is used to compute the {reads} placeholder.
	ReadLength int
	// R1Suffix and R2Suffix name the simulator outputs relative to
	// {prefix}.
	R1Suffix, R2Suffix string
	// TmpDir is where the scratch directory is created. Empty means the
	// system default.
	TmpDir string
	// TagReads prefixes every read name with the genome accession.
	TagReads bool
	// R1Output and R2Output are the gzipped FASTQ outputs.
	R1Output, R2Output string
}

// DefaultOpts matches DefaultSimulator.
var DefaultOpts = Opts{
	Simulator:   DefaultSimulator,
	Parallelism: runtime.NumCPU(),
	Timeout:     2 * time.Hour,
	ReadLength:  150,
	R1Suffix:    "1.fq",
	R2Suffix:    "2.fq",
	TagReads:    true,
}

// Failure records why the simulation of a genome failed.
type Failure struct {
	Accession string
	Err       error
}

// Summary describes a Run.
type Summary struct {
	Total     int
	Succeeded int
	Failures  []Failure
	// Pairs is the number of read pairs written.
	Pairs int
}

// String renders the summary as "n/m simulations succeeded".
func (s Summary) String() string {
	return fmt.Sprintf("%d/%d simulations succeeded", s.Succeeded, s.Total)
}

type job struct {
	genome truth.Genome
	prefix string
	err    error
}

// Seed returns the simulator seed of an accession. It is stable across runs
// and fits in a signed 32-bit integer.
func Seed(accession string) uint32 {
	return farm.Fingerprint32([]byte(accession)) & math.MaxInt32
}

// Run simulates reads for every genome and writes the concatenated,
// compressed R1 and R2 files. Intermediate files live in a scratch directory
// that is removed before Run returns.
//
// A genome whose simulation fails (non-zero exit, timeout, missing output)
// is left out of the outputs and reported in Summary.Failures; Run then
// returns an error whose cause is ErrDegraded. Other errors, such as a
// failure to write the outputs, are returned as is.
func Run(ctx context.Context, genomes []truth.Genome, opts Opts) (Summary, error) {
	summary := Summary{Total: len(genomes)}
	tmpl, err := ParseTemplate(opts.Simulator)
	if err != nil {
		return summary, err
	}
	if opts.R1Output == "" || opts.R2Output == "" {
		return summary, errors.New("simulate: R1Output and R2Output must be set")
	}
	if opts.ReadLength <= 0 {
		return summary, errors.Errorf("simulate: invalid read length %d", opts.ReadLength)
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	workDir, err := os.MkdirTemp(opts.TmpDir, "simulate-")
	if err != nil {
		return summary, errors.Wrap(err, "simulate: scratch directory")
	}
	// The simulator runs in workDir, so the paths it gets must be absolute.
	abs, err := filepath.Abs(workDir)
	if err != nil {
		os.RemoveAll(workDir) // nolint: errcheck
		return summary, errors.Wrap(err, "simulate: scratch directory")
	}
	workDir = abs
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Error.Printf("simulate: remove %s: %v", workDir, err)
		}
	}()

	jobs := make([]job, len(genomes))
	for i, g := range genomes {
		jobs[i] = job{genome: g, prefix: filepath.Join(workDir, fmt.Sprintf("g%05d_", i))}
	}
	log.Printf("simulate: %d genomes, parallelism %d, scratch %s", len(jobs), parallelism, workDir)
	err = traverse.Limit(parallelism).Each(len(jobs), func(i int) error {
		j := &jobs[i]
		j.err = runJob(ctx, tmpl, j, opts)
		if j.err != nil {
			log.Error.Printf("simulate: %s: %v", j.genome.Accession, j.err)
		} else {
			log.Debug.Printf("simulate: %s: done", j.genome.Accession)
		}
		// Failures are collected per job so that every genome gets a chance
		// to run.
		return nil
	})
	if err != nil {
		return summary, err
	}
	for _, j := range jobs {
		if j.err != nil {
			summary.Failures = append(summary.Failures, Failure{Accession: j.genome.Accession, Err: j.err})
		} else {
			summary.Succeeded++
		}
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if summary.Pairs, err = concatenate(ctx, jobs, opts); err != nil {
		return summary, err
	}
	log.Printf("simulate: %s, %d read pairs written to %s, %s", summary, summary.Pairs, opts.R1Output, opts.R2Output)
	if len(summary.Failures) > 0 {
		return summary, errors.Wrapf(ErrDegraded, "%d of %d simulations failed", len(summary.Failures), summary.Total)
	}
	return summary, nil
}

// runJob simulates one genome.
func runJob(ctx context.Context, tmpl Template, j *job, opts Opts) error {
	g := j.genome
	if g.Path == "" {
		return errors.New("no FASTA file")
	}
	fastaPath, length, err := prepareFasta(ctx, g.Path, j.prefix)
	if err != nil {
		return err
	}
	p := Params{
		Fasta:    fastaPath,
		Prefix:   j.prefix,
		Coverage: g.Coverage,
		Seed:     Seed(g.Accession),
		Length:   length,
		Reads:    int64(math.Ceil(g.Coverage * float64(length) / float64(2*opts.ReadLength))),
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	args := tmpl.Expand(p)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = filepath.Dir(j.prefix)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second
	log.Debug.Printf("simulate: %s: %s", g.Accession, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return errors.Wrapf(err, "%s: %s", strings.Join(args, " "), tail(out.String(), 512))
	}
	for _, suffix := range []string{opts.R1Suffix, opts.R2Suffix} {
		if _, err := os.Stat(j.prefix + suffix); err != nil {
			return errors.Wrap(err, "simulator output missing")
		}
	}
	return nil
}

// prepareFasta indexes the genome at path and returns the absolute path of
// the file to hand to the simulator with the genome length. Gzipped genomes
// are decompressed next to prefix, since simulators generally read plain
// FASTA only, and get a .fai index.
func prepareFasta(ctx context.Context, path, prefix string) (fastaPath string, length int64, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return "", 0, errors.Wrapf(err, "open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)

	var r io.Reader = in.Reader(ctx)
	decompressed := strings.HasSuffix(path, ".gz")
	if !decompressed {
		if fastaPath, err = filepath.Abs(path); err != nil {
			return "", 0, err
		}
	} else {
		gz, gzErr := gzip.NewReader(r)
		if gzErr != nil {
			return "", 0, errors.Wrapf(gzErr, "gunzip %s", path)
		}
		defer gz.Close() // nolint: errcheck
		fastaPath = prefix + "genome.fna"
		plain, createErr := os.Create(fastaPath)
		if createErr != nil {
			return "", 0, createErr
		}
		defer func() {
			if e := plain.Close(); e != nil && err == nil {
				err = e
			}
		}()
		r = io.TeeReader(gz, plain)
	}
	entries, err := fasta.Index(r)
	if err != nil {
		return "", 0, errors.Wrapf(err, "index %s", path)
	}
	if decompressed {
		if err := writeIndex(fastaPath+".fai", entries); err != nil {
			return "", 0, err
		}
	}
	return fastaPath, fasta.TotalLength(entries), nil
}

func writeIndex(path string, entries []fasta.Entry) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if e := out.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if err = fasta.WriteIndex(out, entries); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// concatenate writes the reads of the succeeded jobs, in job order.
func concatenate(ctx context.Context, jobs []job, opts Opts) (pairs int, err error) {
	r1Out, err := newFastqOutput(ctx, opts.R1Output)
	if err != nil {
		return 0, err
	}
	defer r1Out.close(ctx, &err)
	r2Out, err := newFastqOutput(ctx, opts.R2Output)
	if err != nil {
		return 0, err
	}
	defer r2Out.close(ctx, &err)

	for _, j := range jobs {
		if j.err != nil {
			continue
		}
		tag := ""
		if opts.TagReads {
			tag = j.genome.Accession
		}
		n1, err := copyReads(r1Out.w, j.prefix+opts.R1Suffix, tag)
		if err != nil {
			return pairs, err
		}
		n2, err := copyReads(r2Out.w, j.prefix+opts.R2Suffix, tag)
		if err != nil {
			return pairs, err
		}
		if n1 != n2 {
			return pairs, errors.Errorf("%s: %d R1 reads but %d R2 reads", j.genome.Accession, n1, n2)
		}
		pairs += n1
	}
	return pairs, nil
}

func copyReads(w *fastq.Writer, path, tag string) (int, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer in.Close() // nolint: errcheck
	n, err := fastq.Copy(w, in, tag)
	if err != nil {
		return n, errors.Wrapf(err, "copy %s", path)
	}
	return n, nil
}

type fastqOutput struct {
	f  file.File
	gz *gzip.Writer
	w  *fastq.Writer
}

func newFastqOutput(ctx context.Context, path string) (*fastqOutput, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	gz := gzip.NewWriter(f.Writer(ctx))
	return &fastqOutput{f: f, gz: gz, w: fastq.NewWriter(gz)}, nil
}

// close flushes and closes the output, and stores the first error in *err.
func (o *fastqOutput) close(ctx context.Context, err *error) {
	set := func(e error) {
		if e != nil && *err == nil {
			*err = errors.Wrapf(e, "close %s", o.f.Name())
		}
	}
	set(o.w.Flush())
	set(o.gz.Close())
	set(o.f.Close(ctx))
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}
