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

// Package config holds the engine tuning knobs the
// surrounding toolchain passes down to the solver.
package config

import (
	"fmt"

	"sigs.k8s.io/yaml"
)

// Tuning tunes the fixpoint engine. Zero Workers and Degree
// select the engine defaults; a zero ParLevel runs the
// solve sequentially. Load keeps the Default values for
// keys the document omits.
type Tuning struct {
	// ParLevel is the parallel fan-out depth budget;
	// 0 runs fully sequential.
	ParLevel int `json:"par_level"`
	// Workers is the goroutine count per parallel scan;
	// 0 selects GOMAXPROCS.
	Workers int `json:"workers"`
	// Degree is the B-tree degree of every index;
	// 0 selects the library default.
	Degree int `json:"degree"`
}

// Default is the tuning used when no configuration is
// provided: a shallow parallel budget that fans out the
// outermost scans without over-decomposing.
func Default() Tuning {
	return Tuning{ParLevel: 2}
}

// Load parses a YAML tuning document.
func Load(buf []byte) (Tuning, error) {
	t := Default()
	if err := yaml.UnmarshalStrict(buf, &t); err != nil {
		return Tuning{}, fmt.Errorf("config: %w", err)
	}
	if t.ParLevel < 0 || t.Workers < 0 || t.Degree < 0 {
		return Tuning{}, fmt.Errorf("config: negative tuning value in %+v", t)
	}
	return t, nil
}
