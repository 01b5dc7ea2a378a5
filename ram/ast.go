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

package ram

import "github.com/stratalog/stratalog/boxing"

// Stmt is a RAM statement.
type Stmt interface {
	isStmt()
	String() string
}

// Insert evaluates a relational operator for its insertion
// side effects.
type Insert struct {
	Op RelOp
}

// MergeInto merges the source index into the destination:
// plain set union for relational predicates, union with
// per-key least upper bound for latticenal ones.
type MergeInto struct {
	Src, Dst Slot
	Lat      *Lattice // non-nil selects the latticenal merge
}

// Swap exchanges two index slots; a constant-time pointer
// swap that rotates delta and new between rounds.
type Swap struct {
	A, B Slot
}

// Purge replaces an index with a freshly constructed empty
// index of the same arity and search key.
type Purge struct {
	Slot Slot
}

// Seq executes statements in order.
type Seq struct {
	Stmts []Stmt
}

// Until runs Body repeatedly until every test holds. The
// tests are checked before each iteration, so an initially
// satisfied condition skips the body entirely.
type Until struct {
	Tests []BoolExp
	Body  Stmt
}

// Par executes sibling statements concurrently and joins
// them before returning. Swap and Purge must not occur
// beneath it.
type Par struct {
	Stmts []Stmt
}

// Comment is a no-op carrying compiler notes; the printer
// emits it, the interpreter skips it.
type Comment struct {
	Text string
}

func (*Insert) isStmt()    {}
func (*MergeInto) isStmt() {}
func (*Swap) isStmt()      {}
func (*Purge) isStmt()     {}
func (*Seq) isStmt()       {}
func (*Until) isStmt()     {}
func (*Par) isStmt()       {}
func (*Comment) isStmt()   {}

// RelOp is a relational operator.
type RelOp interface {
	isRelOp()
	String() string
}

// Scan is the shape shared by Search and Query: bind Var to
// tuples of the index at Slot, propagate Writes, and
// evaluate Body once per binding.
//
// For latticenal indexes, the paired lattice value is bound
// as well. When MeetWith names another row variable, the
// greatest lower bound of the two lattice registers is
// taken first, and bindings whose meet collapses to bottom
// are skipped without evaluating Body.
type Scan struct {
	Var      RowVar
	Slot     Slot
	MeetWith RowVar   // NoVar when absent
	Lat      *Lattice // non-nil iff the index is latticenal
	Writes   []Write
	Body     RelOp
}

// Search iterates the whole index.
type Search struct {
	Scan
}

// Query iterates the index range bounded by the current
// search environment's min and max tuples for Var.
type Query struct {
	Scan
}

// If evaluates Body iff every condition holds. Conditions
// are evaluated left to right and short-circuit.
type If struct {
	Conds []BoolExp
	Body  RelOp
}

// Project evaluates Terms into a tuple and inserts it into
// the index at Slot. For latticenal targets the last term
// is the lattice value: projections of bottom are dropped,
// and colliding tuples join monotonically via the least
// upper bound.
type Project struct {
	Terms []RamTerm
	Slot  Slot
	Lat   *Lattice // non-nil iff the target is latticenal
}

// Functional calls Fn on the evaluated Args and iterates
// the returned tuples, binding each to Var. Pos gives the
// boxing position of each result column.
type Functional struct {
	Var    RowVar
	Fn     TableFunc
	Args   []RamTerm
	Writes []Write
	Body   RelOp
	Pos    []boxing.Position
}

func (*Search) isRelOp()     {}
func (*Query) isRelOp()      {}
func (*If) isRelOp()         {}
func (*Project) isRelOp()    {}
func (*Functional) isRelOp() {}

// RamTerm evaluates to a single 64-bit key (or, boxed, to
// the corresponding heterogeneous value) in the current
// search environment.
type RamTerm interface {
	isTerm()
	String() string
}

// Lit is a literal whose key was computed when the program
// was compiled; Val is kept for lattice operations and
// diagnostics.
type Lit struct {
	Key int64
	Val boxing.Value
}

// LoadFromTuple reads column Col of the tuple currently
// bound to Var. The result is already a key; Pos records
// which sub-table it belongs to.
type LoadFromTuple struct {
	Var RowVar
	Col int
	Pos boxing.Position
}

// LoadLatVar reads the lattice register of Var and unboxes
// it at Pos.
type LoadLatVar struct {
	Var RowVar
	Pos boxing.Position
}

// Meet evaluates both sides as boxed values, combines them
// with Glb, and reboxes the result at Pos.
type Meet struct {
	Glb      MergeFunc
	Lhs, Rhs RamTerm
	Pos      boxing.Position
}

// App applies a user function to one to five evaluated
// arguments and reboxes the result at Pos.
type App struct {
	Fn   AppFunc
	Args []RamTerm
	Pos  boxing.Position
}

func (*Lit) isTerm()           {}
func (*LoadFromTuple) isTerm() {}
func (*LoadLatVar) isTerm()    {}
func (*Meet) isTerm()          {}
func (*App) isTerm()           {}

// BoolExp is a boolean expression over the current search
// environment and the index table.
type BoolExp interface {
	isBoolExp()
	String() string
}

// Not negates its argument.
type Not struct {
	Exp BoolExp
}

// IsEmpty holds iff the index at Slot has no tuples.
type IsEmpty struct {
	Slot Slot
}

// NotMemberOf evaluates Terms into a tuple and tests its
// absence from the index at Slot. For latticenal indexes
// the last term is a lattice value and the test holds iff
// that value is not less-or-equal the stored one, i.e. iff
// inserting it would strictly enlarge the stored least
// upper bound.
type NotMemberOf struct {
	Terms []RamTerm
	Slot  Slot
	Lat   *Lattice // non-nil iff the index is latticenal
}

// Eq compares two terms for key equality.
type Eq struct {
	Lhs, Rhs RamTerm
}

// Leq holds iff Val is less-or-equal the lattice register
// of Var under Fn.
type Leq struct {
	Val boxing.Value
	Fn  LeqFunc
	Var RowVar
}

// Guard applies a user predicate to one to five evaluated
// arguments.
type Guard struct {
	Fn   GuardFunc
	Args []RamTerm
}

func (*Not) isBoolExp()         {}
func (*IsEmpty) isBoolExp()     {}
func (*NotMemberOf) isBoolExp() {}
func (*Eq) isBoolExp()          {}
func (*Leq) isBoolExp()         {}
func (*Guard) isBoolExp()       {}
