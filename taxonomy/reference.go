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
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Record is one row of a reference taxonomy table.
type Record struct {
	Accession string
	Lineage   string
}

// ReadRecords reads a headerless two-column (accession, lineage) table.
// A row with the wrong number of columns or an empty accession is an error.
func ReadRecords(ctx context.Context, path string) (records []Record, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open taxonomy", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	records, err = parseRecords(in.Reader(ctx), path)
	return
}

func parseRecords(in io.Reader, path string) ([]Record, error) {
	r := tsv.NewReader(in)
	r.FieldsPerRecord = 2
	r.LazyQuotes = true

	var records []Record
	for nLine := 1; ; nLine++ {
		var row Record
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("read taxonomy %s:%d: expect 'accession<TAB>lineage'", path, nLine))
		}
		if strings.TrimSpace(row.Accession) == "" {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("read taxonomy %s:%d: empty accession", path, nLine))
		}
		records = append(records, row)
	}
	return records, nil
}
