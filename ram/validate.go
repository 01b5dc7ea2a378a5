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

import (
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by every validation failure: a
// node referring to an out-of-range slot, an undefined row
// variable, a column outside the target arity, or an
// inconsistent lattice annotation. A malformed program is
// fatal; the interpreter refuses to run it.
var ErrMalformed = errors.New("ram: malformed program")

// Validate checks the static well-formedness of the
// program. provenance widens the expected tuple arity of
// every index by the two annotation columns.
//
// Validation is structural only: it does not prove that
// every row variable is bound before use on every path,
// which is the compiler's obligation.
func (p *Program) Validate(provenance bool) error {
	v := &validator{prog: p}
	extra := 0
	if provenance {
		extra = 2
	}
	for i := range p.Indexes {
		in := &p.Indexes[i]
		if !in.Key.Valid() {
			return v.errf("index $%d: search key %v is not a permutation", i, in.Key)
		}
		if want := in.Sym.Columns() + extra; len(in.Key) != want {
			return v.errf("index $%d: %d key columns, predicate %s needs %d", i, len(in.Key), in.Sym, want)
		}
		if len(in.Pos) != len(in.Key) {
			return v.errf("index $%d: %d boxing positions for %d columns", i, len(in.Pos), len(in.Key))
		}
		if (in.Sym.Den == Latticenal) != (in.Lat != nil) {
			return v.errf("index $%d: lattice annotation does not match denotation of %s", i, in.Sym)
		}
	}
	for i := range p.Outputs {
		out := &p.Outputs[i]
		if err := v.slot(out.Slot); err != nil {
			return fmt.Errorf("output %s: %w", out.Sym, err)
		}
		if p.Indexes[out.Slot].Sym != out.Sym {
			return v.errf("output %s reads $%d, which stores %s", out.Sym, out.Slot, p.Indexes[out.Slot].Sym)
		}
	}
	if p.Stmt == nil {
		return v.errf("no top-level statement")
	}
	return v.stmt(p.Stmt, false)
}

type validator struct {
	prog *Program
}

func (v *validator) errf(f string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(f, args...))
}

func (v *validator) slot(s Slot) error {
	if s < 0 || int(s) >= len(v.prog.Indexes) {
		return v.errf("index slot $%d out of range", s)
	}
	return nil
}

func (v *validator) rowVar(r RowVar) error {
	if r < 0 || int(r) >= len(v.prog.RowArities) {
		return v.errf("row variable x%d undefined", r)
	}
	return nil
}

func (v *validator) writes(ws []Write, srcArity int) error {
	for i := range ws {
		w := &ws[i]
		if w.Src < 0 || w.Src >= srcArity {
			return v.errf("write source column %d outside arity %d", w.Src, srcArity)
		}
		if err := v.rowVar(w.DstVar); err != nil {
			return err
		}
		if w.Dst < 0 || w.Dst >= v.prog.RowArities[w.DstVar] {
			return v.errf("write destination column %d outside arity of x%d", w.Dst, w.DstVar)
		}
	}
	return nil
}

func (v *validator) stmt(s Stmt, inPar bool) error {
	switch s := s.(type) {
	case *Insert:
		return v.op(s.Op)
	case *MergeInto:
		if err := v.slot(s.Src); err != nil {
			return err
		}
		if err := v.slot(s.Dst); err != nil {
			return err
		}
		if s.Src == s.Dst {
			return v.errf("merge of $%d into itself", s.Src)
		}
		src, dst := &v.prog.Indexes[s.Src], &v.prog.Indexes[s.Dst]
		if len(src.Key) != len(dst.Key) {
			return v.errf("merge $%d (arity %d) into $%d (arity %d)", s.Src, len(src.Key), s.Dst, len(dst.Key))
		}
		if (s.Lat != nil) != (dst.Lat != nil) {
			return v.errf("merge into $%d: lattice annotation mismatch", s.Dst)
		}
		return nil
	case *Swap:
		if inPar {
			return v.errf("swap under par")
		}
		if err := v.slot(s.A); err != nil {
			return err
		}
		return v.slot(s.B)
	case *Purge:
		if inPar {
			return v.errf("purge under par")
		}
		return v.slot(s.Slot)
	case *Seq:
		for i := range s.Stmts {
			if err := v.stmt(s.Stmts[i], inPar); err != nil {
				return err
			}
		}
		return nil
	case *Until:
		for i := range s.Tests {
			if err := v.boolExp(s.Tests[i]); err != nil {
				return err
			}
		}
		return v.stmt(s.Body, inPar)
	case *Par:
		for i := range s.Stmts {
			if err := v.stmt(s.Stmts[i], true); err != nil {
				return err
			}
		}
		return nil
	case *Comment:
		return nil
	default:
		return v.errf("unknown statement %T", s)
	}
}

func (v *validator) scan(s *Scan) error {
	if err := v.rowVar(s.Var); err != nil {
		return err
	}
	if err := v.slot(s.Slot); err != nil {
		return err
	}
	in := &v.prog.Indexes[s.Slot]
	if got := v.prog.RowArities[s.Var]; got != len(in.Key) {
		return v.errf("x%d has arity %d, index $%d has %d", s.Var, got, s.Slot, len(in.Key))
	}
	if (s.Lat != nil) != (in.Lat != nil) {
		return v.errf("scan of $%d: lattice annotation mismatch", s.Slot)
	}
	if s.MeetWith != NoVar {
		if s.Lat == nil {
			return v.errf("meet on relational scan of $%d", s.Slot)
		}
		if err := v.rowVar(s.MeetWith); err != nil {
			return err
		}
	}
	if err := v.writes(s.Writes, len(in.Key)); err != nil {
		return err
	}
	if s.Body == nil {
		return v.errf("scan of $%d has no body", s.Slot)
	}
	return v.op(s.Body)
}

func (v *validator) op(op RelOp) error {
	switch op := op.(type) {
	case *Search:
		return v.scan(&op.Scan)
	case *Query:
		return v.scan(&op.Scan)
	case *If:
		for i := range op.Conds {
			if err := v.boolExp(op.Conds[i]); err != nil {
				return err
			}
		}
		if op.Body == nil {
			return v.errf("if has no body")
		}
		return v.op(op.Body)
	case *Project:
		if err := v.slot(op.Slot); err != nil {
			return err
		}
		in := &v.prog.Indexes[op.Slot]
		if (op.Lat != nil) != (in.Lat != nil) {
			return v.errf("project into $%d: lattice annotation mismatch", op.Slot)
		}
		want := len(in.Key)
		if op.Lat != nil {
			want++
		}
		if len(op.Terms) != want {
			return v.errf("project into $%d: %d terms, want %d", op.Slot, len(op.Terms), want)
		}
		return v.terms(op.Terms)
	case *Functional:
		if err := v.rowVar(op.Var); err != nil {
			return err
		}
		if op.Fn == nil {
			return v.errf("functional x%d has no function", op.Var)
		}
		if len(op.Pos) != v.prog.RowArities[op.Var] {
			return v.errf("functional x%d: %d positions for arity %d", op.Var, len(op.Pos), v.prog.RowArities[op.Var])
		}
		if err := v.terms(op.Args); err != nil {
			return err
		}
		if err := v.writes(op.Writes, len(op.Pos)); err != nil {
			return err
		}
		if op.Body == nil {
			return v.errf("functional x%d has no body", op.Var)
		}
		return v.op(op.Body)
	default:
		return v.errf("unknown operator %T", op)
	}
}

func (v *validator) terms(ts []RamTerm) error {
	for i := range ts {
		if err := v.term(ts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) term(t RamTerm) error {
	switch t := t.(type) {
	case *Lit:
		return nil
	case *LoadFromTuple:
		if err := v.rowVar(t.Var); err != nil {
			return err
		}
		if t.Col < 0 || t.Col >= v.prog.RowArities[t.Var] {
			return v.errf("column %d outside arity of x%d", t.Col, t.Var)
		}
		return nil
	case *LoadLatVar:
		return v.rowVar(t.Var)
	case *Meet:
		if t.Glb == nil {
			return v.errf("meet has no glb")
		}
		if err := v.term(t.Lhs); err != nil {
			return err
		}
		return v.term(t.Rhs)
	case *App:
		if t.Fn == nil {
			return v.errf("app has no function")
		}
		if len(t.Args) < 1 || len(t.Args) > 5 {
			return v.errf("app takes 1 to 5 arguments, got %d", len(t.Args))
		}
		return v.terms(t.Args)
	default:
		return v.errf("unknown term %T", t)
	}
}

func (v *validator) boolExp(e BoolExp) error {
	switch e := e.(type) {
	case *Not:
		return v.boolExp(e.Exp)
	case *IsEmpty:
		return v.slot(e.Slot)
	case *NotMemberOf:
		if err := v.slot(e.Slot); err != nil {
			return err
		}
		in := &v.prog.Indexes[e.Slot]
		if (e.Lat != nil) != (in.Lat != nil) {
			return v.errf("not-in $%d: lattice annotation mismatch", e.Slot)
		}
		want := len(in.Key)
		if e.Lat != nil {
			want++
		}
		if len(e.Terms) != want {
			return v.errf("not-in $%d: %d terms, want %d", e.Slot, len(e.Terms), want)
		}
		return v.terms(e.Terms)
	case *Eq:
		if err := v.term(e.Lhs); err != nil {
			return err
		}
		return v.term(e.Rhs)
	case *Leq:
		if e.Fn == nil {
			return v.errf("leq has no order")
		}
		return v.rowVar(e.Var)
	case *Guard:
		if e.Fn == nil {
			return v.errf("guard has no function")
		}
		if len(e.Args) < 1 || len(e.Args) > 5 {
			return v.errf("guard takes 1 to 5 arguments, got %d", len(e.Args))
		}
		return v.terms(e.Args)
	default:
		return v.errf("unknown boolean expression %T", e)
	}
}
