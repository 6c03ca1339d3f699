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
	"bufio"
	"context"
	"io"
	"path"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// WriteFile creates path and calls write with a buffered writer for it. The
// file is flushed and closed even if write fails; the first error wins.
func WriteFile(ctx context.Context, path string, write func(io.Writer) error) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := bufio.NewWriter(out.Writer(ctx))
	once := errors.Once{}
	once.Set(write(w))
	once.Set(w.Flush())
	if err := once.Err(); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}

var sampleSuffixes = []string{".gz", ".xlsx", ".xlsm", ".csv", ".tsv", ".txt"}

// SampleName derives a sample label from a coverage file name:
// "/data/SRR606249.xlsx" becomes "SRR606249".
func SampleName(p string) string {
	name := path.Base(p)
	for trimmed := true; trimmed; {
		trimmed = false
		for _, s := range sampleSuffixes {
			if strings.HasSuffix(strings.ToLower(name), s) && len(name) > len(s) {
				name = name[:len(name)-len(s)]
				trimmed = true
			}
		}
	}
	return name
}
