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

package truth

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// CondensedHeader is the header line of the condensed format.
const CondensedHeader = "sample\tcoverage\ttaxonomy"

// formatCoverage renders c in the shortest form that parses back to c,
// keeping a decimal point on integral values ("5.0", not "5").
func formatCoverage(c float64) string {
	s := strconv.FormatFloat(c, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// checkField rejects values that cannot be written to a TSV without quoting.
func checkField(name, v string) error {
	if strings.ContainsAny(v, "\t\r\n") {
		return errors.E(errors.Invalid, fmt.Sprintf("%s %q contains a tab or newline", name, v))
	}
	return nil
}

// WriteCondensed writes rows in the condensed format: a header, then one
// "sample<TAB>coverage<TAB>taxonomy" line per row, in the order given. Values
// are not quoted; a tab or newline in a sample or taxonomy is an error.
func WriteCondensed(w io.Writer, rows []Row) error {
	tw := tsv.NewWriter(w)
	tw.WriteString(CondensedHeader)
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, r := range rows {
		if err := checkField("sample", r.Sample); err != nil {
			return err
		}
		if err := checkField("taxonomy", r.Taxonomy); err != nil {
			return err
		}
		tw.WriteString(r.Sample)
		tw.WriteString(formatCoverage(r.Coverage))
		tw.WriteString(r.Taxonomy)
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}
