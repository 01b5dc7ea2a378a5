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
	"github.com/stratalog/stratalog/ram"
	"github.com/stratalog/stratalog/store"
)

// Row is one derived fact with boxed columns. Lat is the
// zero Value for relational predicates. Under provenance
// the two annotation columns trail the tuple.
type Row struct {
	Tuple []boxing.Value
	Lat   boxing.Value
}

// Relation holds the derived facts of one predicate in the
// search-key order of the index it was read from.
type Relation struct {
	Sym  ram.RelSym
	Rows []Row
}

// Meta describes a public predicate for the consumer.
type Meta struct {
	Den   ram.Denotation
	Arity int
}

// Result is the user-visible outcome of a solve.
type Result struct {
	Relations map[ram.RelSym]*Relation
	Meta      map[ram.RelSym]Meta
}

// Lookup returns the rows of the predicate named name, or
// nil when the solve produced no such predicate.
func (r *Result) Lookup(name string) *Relation {
	for sym, rel := range r.Relations {
		if sym.Name == name {
			return rel
		}
	}
	return nil
}

// marshal reads each public predicate out of its chosen
// index, re-boxing every column key into the heterogeneous
// value it stands for. Any index of a predicate holds the
// same tuples once the fixed point is reached, so reading
// one slot per predicate suffices.
func (in *interp) marshal() (*Result, error) {
	res := &Result{
		Relations: make(map[ram.RelSym]*Relation, len(in.prog.Outputs)),
		Meta:      make(map[ram.RelSym]Meta, len(in.prog.Outputs)),
	}
	for i := range in.prog.Outputs {
		out := &in.prog.Outputs[i]
		info := &in.prog.Indexes[out.Slot]
		rel := &Relation{Sym: out.Sym}
		var err error
		in.idx[out.Slot].ForEach(func(t store.Tuple, l boxing.Value) bool {
			row := Row{Tuple: make([]boxing.Value, len(t))}
			for c := range t {
				row.Tuple[c], err = in.bx.BoxWith(t[c], info.Pos[c])
				if err != nil {
					return false
				}
			}
			if info.Lat != nil {
				row.Lat = l
			}
			rel.Rows = append(rel.Rows, row)
			return true
		})
		if err != nil {
			return nil, err
		}
		res.Relations[out.Sym] = rel
		res.Meta[out.Sym] = Meta{Den: out.Sym.Den, Arity: out.Sym.Arity}
	}
	return res, nil
}
