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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stratalog/stratalog/boxing"
	"github.com/stratalog/stratalog/ram"
	"github.com/stratalog/stratalog/store"
)

// interp executes a validated RAM program against its index
// table. The index slot array is only mutated by Swap and
// Purge, which the validator keeps out of Par bodies, so
// concurrent readers never race with slot rotation.
type interp struct {
	prog    *ram.Program
	idx     []*store.Index
	bx      *boxing.Boxing
	log     *zap.Logger
	workers int
	degree  int
}

// fuel is the remaining parallel fan-out depth; see the
// parLevel option. Each parallel Search or Par consumes one
// unit on the paths beneath it.

func (in *interp) evalStmt(s ram.Stmt, fuel int) error {
	switch s := s.(type) {
	case *ram.Insert:
		return in.evalOp(s.Op, newEnv(in.prog.RowArities), fuel)
	case *ram.MergeInto:
		src, dst := in.idx[s.Src], in.idx[s.Dst]
		if s.Lat != nil {
			return src.MergeIntoWith(dst, store.MergeFunc(s.Lat.Lub))
		}
		return src.MergeInto(dst)
	case *ram.Swap:
		in.idx[s.A], in.idx[s.B] = in.idx[s.B], in.idx[s.A]
		return nil
	case *ram.Purge:
		info := &in.prog.Indexes[s.Slot]
		in.idx[s.Slot] = store.NewDegree(info.Key, in.degree)
		return nil
	case *ram.Seq:
		for i := range s.Stmts {
			if err := in.evalStmt(s.Stmts[i], fuel); err != nil {
				return err
			}
		}
		return nil
	case *ram.Until:
		rounds := 0
		for {
			done := true
			e := newEnv(in.prog.RowArities)
			for i := range s.Tests {
				ok, err := in.evalBool(s.Tests[i], e)
				if err != nil {
					return err
				}
				if !ok {
					done = false
					break
				}
			}
			if done {
				in.log.Debug("fixpoint reached", zap.Int("rounds", rounds))
				return nil
			}
			rounds++
			if err := in.evalStmt(s.Body, fuel); err != nil {
				return err
			}
		}
	case *ram.Par:
		if fuel > 0 && len(s.Stmts) > 1 {
			var g errgroup.Group
			for i := range s.Stmts {
				stmt := s.Stmts[i]
				g.Go(func() error {
					return in.evalStmt(stmt, fuel-1)
				})
			}
			return g.Wait()
		}
		for i := range s.Stmts {
			if err := in.evalStmt(s.Stmts[i], fuel); err != nil {
				return err
			}
		}
		return nil
	case *ram.Comment:
		return nil
	default:
		return fmt.Errorf("%w: unknown statement %T", ErrMalformedProgram, s)
	}
}

func (in *interp) evalOp(op ram.RelOp, e *env, fuel int) error {
	switch op := op.(type) {
	case *ram.Search:
		ix := in.idx[op.Slot]
		if fuel > 0 && in.workers > 1 {
			envs := make([]*env, in.workers)
			return ix.ParForEach(in.workers, func(w int, t store.Tuple, l boxing.Value) error {
				if envs[w] == nil {
					envs[w] = e.clone()
				}
				return in.bindScan(&op.Scan, envs[w], t, l, fuel-1)
			})
		}
		var err error
		ix.ForEach(func(t store.Tuple, l boxing.Value) bool {
			err = in.bindScan(&op.Scan, e, t, l, fuel)
			return err == nil
		})
		return err
	case *ram.Query:
		ix := in.idx[op.Slot]
		var err error
		rerr := ix.Range(e.min[op.Var], e.max[op.Var], func(t store.Tuple, l boxing.Value) bool {
			err = in.bindScan(&op.Scan, e, t, l, fuel)
			return err == nil
		})
		if err == nil {
			err = rerr
		}
		return err
	case *ram.If:
		for i := range op.Conds {
			ok, err := in.evalBool(op.Conds[i], e)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		return in.evalOp(op.Body, e, fuel)
	case *ram.Project:
		return in.project(op, e)
	case *ram.Functional:
		return in.functional(op, e, fuel)
	default:
		return fmt.Errorf("%w: unknown operator %T", ErrMalformedProgram, op)
	}
}

// bindScan binds one tuple of a Search or Query: propagate
// writes into the neighbors' range bounds, set the current
// tuple, bind (and possibly meet) the lattice value, then
// recurse into the body.
func (in *interp) bindScan(s *ram.Scan, e *env, t store.Tuple, l boxing.Value, fuel int) error {
	for i := range s.Writes {
		w := &s.Writes[i]
		e.min[w.DstVar][w.Dst] = t[w.Src]
		e.max[w.DstVar][w.Dst] = t[w.Src]
	}
	e.cur[s.Var] = t
	if s.Lat != nil {
		if s.MeetWith != ram.NoVar {
			m := s.Lat.Glb(l, e.lat[s.MeetWith])
			if s.Lat.Leq(m, s.Lat.Bottom) {
				return nil
			}
			e.lat[s.Var] = m
		} else {
			e.lat[s.Var] = l
		}
	}
	return in.evalOp(s.Body, e, fuel)
}

func (in *interp) project(op *ram.Project, e *env) error {
	ix := in.idx[op.Slot]
	if op.Lat == nil {
		t := make(store.Tuple, len(op.Terms))
		for i := range op.Terms {
			k, err := in.evalTerm(op.Terms[i], e)
			if err != nil {
				return err
			}
			t[i] = k
		}
		return ix.Put(t, boxing.Unit())
	}
	n := len(op.Terms) - 1
	t := make(store.Tuple, n)
	for i := 0; i < n; i++ {
		k, err := in.evalTerm(op.Terms[i], e)
		if err != nil {
			return err
		}
		t[i] = k
	}
	v, err := in.evalBoxed(op.Terms[n], e)
	if err != nil {
		return err
	}
	if op.Lat.Leq(v, op.Lat.Bottom) {
		// bottom is never stored; absence denotes it
		return nil
	}
	return ix.PutWith(t, v, store.MergeFunc(op.Lat.Lub))
}

func (in *interp) functional(op *ram.Functional, e *env, fuel int) error {
	args := make([]boxing.Value, len(op.Args))
	for i := range op.Args {
		v, err := in.evalBoxed(op.Args[i], e)
		if err != nil {
			return err
		}
		args[i] = v
	}
	rows, err := callTable(op.Fn, args)
	if err != nil {
		return err
	}
	t := make(store.Tuple, len(op.Pos))
	for _, row := range rows {
		if len(row) != len(op.Pos) {
			return fmt.Errorf("%w: functional returned %d columns, want %d",
				ErrUserFunction, len(row), len(op.Pos))
		}
		for c := range row {
			t[c] = in.bx.UnboxWith(row[c], op.Pos[c])
		}
		for i := range op.Writes {
			w := &op.Writes[i]
			e.min[w.DstVar][w.Dst] = t[w.Src]
			e.max[w.DstVar][w.Dst] = t[w.Src]
		}
		e.cur[op.Var] = t
		if err := in.evalOp(op.Body, e, fuel); err != nil {
			return err
		}
		t = make(store.Tuple, len(op.Pos))
	}
	return nil
}

// evalTerm evaluates a term to its 64-bit key.
func (in *interp) evalTerm(t ram.RamTerm, e *env) (int64, error) {
	switch t := t.(type) {
	case *ram.Lit:
		return t.Key, nil
	case *ram.LoadFromTuple:
		cur := e.cur[t.Var]
		if cur == nil {
			return 0, fmt.Errorf("%w: x%d read before binding", ErrMalformedProgram, t.Var)
		}
		return cur[t.Col], nil
	case *ram.LoadLatVar:
		return in.bx.UnboxWith(e.lat[t.Var], t.Pos), nil
	case *ram.Meet:
		v, err := in.meet(t, e)
		if err != nil {
			return 0, err
		}
		return in.bx.UnboxWith(v, t.Pos), nil
	case *ram.App:
		v, err := in.app(t, e)
		if err != nil {
			return 0, err
		}
		return in.bx.UnboxWith(v, t.Pos), nil
	default:
		return 0, fmt.Errorf("%w: unknown term %T", ErrMalformedProgram, t)
	}
}

// evalBoxed evaluates a term to its boxed value. It exists
// because lattice meets, user guards and the latticenal
// membership test operate on values, not keys.
func (in *interp) evalBoxed(t ram.RamTerm, e *env) (boxing.Value, error) {
	switch t := t.(type) {
	case *ram.Lit:
		return t.Val, nil
	case *ram.LoadFromTuple:
		cur := e.cur[t.Var]
		if cur == nil {
			return boxing.None, fmt.Errorf("%w: x%d read before binding", ErrMalformedProgram, t.Var)
		}
		return in.bx.BoxWith(cur[t.Col], t.Pos)
	case *ram.LoadLatVar:
		return e.lat[t.Var], nil
	case *ram.Meet:
		return in.meet(t, e)
	case *ram.App:
		return in.app(t, e)
	default:
		return boxing.None, fmt.Errorf("%w: unknown term %T", ErrMalformedProgram, t)
	}
}

func (in *interp) meet(t *ram.Meet, e *env) (boxing.Value, error) {
	lhs, err := in.evalBoxed(t.Lhs, e)
	if err != nil {
		return boxing.None, err
	}
	rhs, err := in.evalBoxed(t.Rhs, e)
	if err != nil {
		return boxing.None, err
	}
	return t.Glb(lhs, rhs), nil
}

func (in *interp) app(t *ram.App, e *env) (boxing.Value, error) {
	args := make([]boxing.Value, len(t.Args))
	for i := range t.Args {
		v, err := in.evalBoxed(t.Args[i], e)
		if err != nil {
			return boxing.None, err
		}
		args[i] = v
	}
	return callApp(t.Fn, args)
}

// evalBool evaluates a boolean expression. Conjunctions
// short-circuit left to right; the compiler only emits
// side-effect-free guards, so the order is unobservable.
func (in *interp) evalBool(exp ram.BoolExp, e *env) (bool, error) {
	switch exp := exp.(type) {
	case *ram.Not:
		ok, err := in.evalBool(exp.Exp, e)
		return !ok, err
	case *ram.IsEmpty:
		return in.idx[exp.Slot].IsEmpty(), nil
	case *ram.NotMemberOf:
		ix := in.idx[exp.Slot]
		if exp.Lat == nil {
			t := make(store.Tuple, len(exp.Terms))
			for i := range exp.Terms {
				k, err := in.evalTerm(exp.Terms[i], e)
				if err != nil {
					return false, err
				}
				t[i] = k
			}
			return !ix.Contains(t), nil
		}
		n := len(exp.Terms) - 1
		t := make(store.Tuple, n)
		for i := 0; i < n; i++ {
			k, err := in.evalTerm(exp.Terms[i], e)
			if err != nil {
				return false, err
			}
			t[i] = k
		}
		v, err := in.evalBoxed(exp.Terms[n], e)
		if err != nil {
			return false, err
		}
		// holds iff v would strictly enlarge the stored lub
		stored := ix.Lookup(t, exp.Lat.Bottom)
		return !exp.Lat.Leq(v, stored), nil
	case *ram.Eq:
		lhs, err := in.evalTerm(exp.Lhs, e)
		if err != nil {
			return false, err
		}
		rhs, err := in.evalTerm(exp.Rhs, e)
		if err != nil {
			return false, err
		}
		return lhs == rhs, nil
	case *ram.Leq:
		return exp.Fn(exp.Val, e.lat[exp.Var]), nil
	case *ram.Guard:
		args := make([]boxing.Value, len(exp.Args))
		for i := range exp.Args {
			v, err := in.evalBoxed(exp.Args[i], e)
			if err != nil {
				return false, err
			}
			args[i] = v
		}
		return callGuard(exp.Fn, args)
	default:
		return false, fmt.Errorf("%w: unknown boolean expression %T", ErrMalformedProgram, exp)
	}
}

// callApp, callGuard and callTable invoke user-supplied
// functions, converting error returns and panics into
// ErrUserFunction failures.

func callApp(fn ram.AppFunc, args []boxing.Value) (v boxing.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = userErr("app", r)
		}
	}()
	v, err = fn(args...)
	if err != nil {
		err = userErr("app", err)
	}
	return v, err
}

func callGuard(fn ram.GuardFunc, args []boxing.Value) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = userErr("guard", r)
		}
	}()
	ok, err = fn(args...)
	if err != nil {
		err = userErr("guard", err)
	}
	return ok, err
}

func callTable(fn ram.TableFunc, args []boxing.Value) (rows [][]boxing.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = userErr("functional", r)
		}
	}()
	rows, err = fn(args)
	if err != nil {
		err = userErr("functional", err)
	}
	return rows, err
}
