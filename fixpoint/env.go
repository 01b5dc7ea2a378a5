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
	"github.com/stratalog/stratalog/boxing"
	"github.com/stratalog/stratalog/store"
)

// env is the search environment of one evaluation thread:
// four parallel arrays indexed by row variable. min and max
// hold the range bounds the next Query over that variable
// will scan; cur holds the most recently bound tuple; lat
// the most recently bound lattice value.
//
// Bounds start at the reserved boxing sentinels and are
// narrowed in place by the writes of enclosing scans;
// columns no write constrains stay open for the duration of
// the statement. Environments are thread-local by
// construction: every parallel fan-out clones before
// binding.
type env struct {
	min []store.Tuple
	max []store.Tuple
	cur []store.Tuple
	lat []boxing.Value
}

func newEnv(arities []int) *env {
	e := &env{
		min: make([]store.Tuple, len(arities)),
		max: make([]store.Tuple, len(arities)),
		cur: make([]store.Tuple, len(arities)),
		lat: make([]boxing.Value, len(arities)),
	}
	for r, n := range arities {
		e.min[r] = make(store.Tuple, n)
		e.max[r] = make(store.Tuple, n)
		for c := 0; c < n; c++ {
			e.min[r][c] = boxing.MinKey
			e.max[r][c] = boxing.MaxKey
		}
	}
	return e
}

// clone deep-copies the bound arrays. Tuples in cur are
// never mutated after binding, so sharing them is safe; the
// min and max tuples are narrowed in place and must be
// copied.
func (e *env) clone() *env {
	out := &env{
		min: make([]store.Tuple, len(e.min)),
		max: make([]store.Tuple, len(e.max)),
		cur: make([]store.Tuple, len(e.cur)),
		lat: make([]boxing.Value, len(e.lat)),
	}
	for r := range e.min {
		out.min[r] = e.min[r].Clone()
		out.max[r] = e.max[r].Clone()
	}
	copy(out.cur, e.cur)
	copy(out.lat, e.lat)
	return out
}
