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

// Package ram defines the relational algebra machine: the
// compiled program representation executed by the fixpoint
// interpreter.
//
// A program is a tree of statements over relational
// operators, terms and boolean expressions, plus the static
// tables the interpreter needs at run time: the index slot
// table, the per-row-variable arities, and the mapping from
// public predicates to the index each is read out of.
// Relations are addressed by small integer slots, never by
// name, at run time.
package ram

import (
	"github.com/stratalog/stratalog/boxing"
	"github.com/stratalog/stratalog/store"
)

// Denotation is the flavor of a predicate: a plain set of
// tuples, or a map whose last column carries values of a
// join-semilattice.
type Denotation uint8

const (
	Relational Denotation = iota
	Latticenal
)

func (d Denotation) String() string {
	if d == Latticenal {
		return "lattice"
	}
	return "relation"
}

// RelSym identifies one relation. It is a small comparable
// value; the lattice capability of latticenal predicates
// travels on the operators and the index table instead, so
// RelSym can key result maps.
type RelSym struct {
	ID    int32
	Name  string
	Arity int // number of non-lattice columns, plus one for latticenal predicates
	Den   Denotation
}

func (s RelSym) String() string { return s.Name }

// Columns returns the number of tuple columns stored for
// the predicate: the arity, minus one for latticenal
// predicates whose last column is kept as the lattice value.
func (s RelSym) Columns() int {
	if s.Den == Latticenal {
		return s.Arity - 1
	}
	return s.Arity
}

// LeqFunc is a lattice partial order.
type LeqFunc func(a, b boxing.Value) bool

// MergeFunc combines two lattice values (a least upper
// bound or greatest lower bound, depending on use).
type MergeFunc func(a, b boxing.Value) boxing.Value

// Lattice is the capability record of a join-semilattice:
// bottom element, partial order, least upper bound and
// greatest lower bound. Operators on latticenal predicates
// carry it inline so the interpreter dispatches without a
// type hierarchy.
type Lattice struct {
	Bottom boxing.Value
	Leq    LeqFunc
	Lub    MergeFunc
	Glb    MergeFunc
}

// AppFunc is a user-supplied term function of one to five
// boxed arguments. The engine treats it as pure and may
// invoke it any number of times per tuple.
type AppFunc func(args ...boxing.Value) (boxing.Value, error)

// GuardFunc is a user-supplied boolean guard of one to five
// boxed arguments, pure like AppFunc.
type GuardFunc func(args ...boxing.Value) (bool, error)

// TableFunc is the function invoked by a Functional
// operator: it maps one argument vector to zero or more
// result tuples, all boxed.
type TableFunc func(args []boxing.Value) ([][]boxing.Value, error)

// RowVar names a row variable: a binding produced by a
// Search, Query or Functional and consumed by inner
// operators. Row variables are dense indices assigned at
// compile time; the search environment is an array indexed
// by them.
type RowVar int32

// NoVar marks an absent row variable (e.g. a Search that
// meets with nothing).
const NoVar RowVar = -1

// Slot identifies one concrete index in the program's index
// table.
type Slot int32

// Write propagates column Src of a just-bound tuple into
// the min and max bound of DstVar at column Dst, narrowing
// the range an inner Query will scan. Writes are how joins
// are wired together.
type Write struct {
	Src    int
	DstVar RowVar
	Dst    int
}

// Role distinguishes the three index versions kept per
// recursive predicate for semi-naive evaluation.
type Role uint8

const (
	// Full holds all facts known so far.
	Full Role = iota
	// Delta holds the facts added in the most recent round.
	Delta
	// New collects facts derived in the current round,
	// pending merge into Full.
	New
)

func (r Role) String() string {
	switch r {
	case Delta:
		return "delta"
	case New:
		return "new"
	default:
		return "full"
	}
}

// IndexInfo describes one slot of the index table.
type IndexInfo struct {
	Sym  RelSym
	Key  store.SearchKey   // sort order; len(Key) is the tuple arity of the index
	Pos  []boxing.Position // boxing position per tuple column; len(Pos) == len(Key)
	Role Role
	Seed bool     // receives the caller's initial facts
	Lat  *Lattice // non-nil iff Sym.Den == Latticenal
}

// Output names the index a public predicate is read out of
// after the solve. Any index of the predicate suffices once
// the fixed point is reached; the compiler picks one.
type Output struct {
	Sym  RelSym
	Slot Slot
}

// Program is a complete compiled RAM program.
type Program struct {
	// Stmt is the top-level statement; strata are already
	// sequenced within it, earlier strata first.
	Stmt Stmt
	// Indexes is the slot table. Slot i of the running
	// engine is built from Indexes[i].
	Indexes []IndexInfo
	// RowArities gives the tuple arity bound by each row
	// variable; its length is the number of row variables.
	RowArities []int
	// Outputs lists the public predicates and where to read
	// them.
	Outputs []Output
}
