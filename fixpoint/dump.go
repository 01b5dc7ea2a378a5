// Copyright (C) 2023 Stratalog Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package fixpoint

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/stratalog/stratalog/compr"
	"github.com/stratalog/stratalog/ram"
)

// Dump writes a deterministic, zstd-compressed textual
// rendering of every derived fact in res to w. It is a
// diagnostic export: predicates sorted by name, facts in
// index order, one fact per line.
func Dump(w io.Writer, res *Result) error {
	var sb strings.Builder
	syms := maps.Keys(res.Relations)
	slices.SortFunc(syms, func(a, b ram.RelSym) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	for _, sym := range syms {
		rel := res.Relations[sym]
		for i := range rel.Rows {
			row := &rel.Rows[i]
			parts := make([]string, len(row.Tuple))
			for c := range row.Tuple {
				parts[c] = row.Tuple[c].String()
			}
			sb.WriteString(sym.Name)
			sb.WriteByte('(')
			sb.WriteString(strings.Join(parts, ", "))
			if sym.Den == ram.Latticenal {
				sb.WriteString("; ")
				sb.WriteString(row.Lat.String())
			}
			sb.WriteString(").\n")
		}
	}
	buf := compr.Zstd().Compress([]byte(sb.String()), nil)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("fixpoint: writing dump: %w", err)
	}
	return nil
}

// ReadDump decompresses a dump produced by Dump and returns
// its text.
func ReadDump(r io.Reader) (string, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("fixpoint: reading dump: %w", err)
	}
	out, err := compr.DecodeZstd(buf, nil)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
