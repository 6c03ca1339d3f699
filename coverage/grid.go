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
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/xuri/excelize/v2"
)

// readGrid loads a spreadsheet as a grid of cell strings, one slice per
// line. Rows may have different lengths. Files ending in .xlsx are read as
// workbooks; anything else is read as delimited text, tab-separated if the
// name ends in .tsv or .txt and comma-separated otherwise.
func readGrid(ctx context.Context, path, sheet string) (grid [][]string, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open spreadsheet", path)
	}
	defer file.CloseAndReport(ctx, in, &err)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		grid, err = readWorkbook(in.Reader(ctx), sheet)
	case ".tsv", ".txt":
		grid, err = readDelimited(in.Reader(ctx), '\t')
	default:
		grid, err = readDelimited(in.Reader(ctx), ',')
	}
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "read spreadsheet", path)
	}
	return grid, nil
}

func readWorkbook(r io.Reader, sheet string) ([][]string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer wb.Close() // nolint: errcheck
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	// Raw values, so that numbers are not rendered through the cell's
	// display format (e.g. thousands separators).
	return wb.GetRows(sheet, excelize.Options{RawCellValue: true})
}

func readDelimited(r io.Reader, comma rune) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}
