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

package simulate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultSimulator runs ART to produce 2x150bp HiSeq 2500 reads at the
// genome's coverage.
const DefaultSimulator = "art_illumina -ss HS25 -i {fasta} -p -l 150 -f {coverage} -m 200 -s 10 -rs {seed} -na -o {prefix}"

// Params are the per-genome values substituted into a Template.
type Params struct {
	// Fasta is the genome file given to the simulator.
	Fasta string
	// Prefix is the output prefix. The simulator must write
	// Prefix+Opts.R1Suffix and Prefix+Opts.R2Suffix.
	Prefix   string
	Coverage float64
	Seed     uint32
	// Length is the genome length in bases, and Reads the number of read
	// pairs needed to reach Coverage.
	Length int64
	Reads  int64
}

var placeholderRegexp = regexp.MustCompile(`\{[a-z]+\}`)

var knownPlaceholders = map[string]bool{
	"{fasta}":    true,
	"{prefix}":   true,
	"{coverage}": true,
	"{seed}":     true,
	"{length}":   true,
	"{reads}":    true,
}

// Template is a simulator command line. Each word may contain placeholders,
// which are replaced by Expand. The command is executed directly, not through
// a shell, so words are never re-split or globbed.
type Template []string

// ParseTemplate splits s into words and checks its placeholders. {fasta}
// and {prefix} are required.
func ParseTemplate(s string) (Template, error) {
	t := Template(strings.Fields(s))
	if len(t) == 0 {
		return nil, errors.New("empty simulator command")
	}
	seen := map[string]bool{}
	for _, w := range t {
		for _, p := range placeholderRegexp.FindAllString(w, -1) {
			if !knownPlaceholders[p] {
				return nil, errors.Errorf("simulator command %q: unknown placeholder %s", s, p)
			}
			seen[p] = true
		}
	}
	for _, p := range []string{"{fasta}", "{prefix}"} {
		if !seen[p] {
			return nil, errors.Errorf("simulator command %q: missing %s", s, p)
		}
	}
	return t, nil
}

// Expand returns the command line for p.
func (t Template) Expand(p Params) []string {
	r := strings.NewReplacer(
		"{fasta}", p.Fasta,
		"{prefix}", p.Prefix,
		"{coverage}", strconv.FormatFloat(p.Coverage, 'f', -1, 64),
		"{seed}", strconv.FormatUint(uint64(p.Seed), 10),
		"{length}", strconv.FormatInt(p.Length, 10),
		"{reads}", strconv.FormatInt(p.Reads, 10),
	)
	args := make([]string, len(t))
	for i, w := range t {
		args[i] = r.Replace(w)
	}
	return args
}
