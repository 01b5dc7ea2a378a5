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

// Package fixpoint evaluates compiled RAM programs to their
// least fixed point: given a program and a set of initial
// facts, it computes the full set of derived facts for each
// public predicate, optionally decorated with lattice
// values.
//
// The evaluation is bottom-up and semi-naive: each
// recursive predicate occupies full, delta and new index
// slots that the program rotates between rounds. Strata are
// sequenced inside the program itself, so negation and
// lattice aggregation only ever read predicates whose fixed
// point is already reached.
package fixpoint

import (
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stratalog/stratalog/boxing"
	"github.com/stratalog/stratalog/config"
	"github.com/stratalog/stratalog/ram"
	"github.com/stratalog/stratalog/store"
)

// Facts holds the initial rows of every seeded predicate.
// Rows of latticenal predicates carry the lattice value as
// their last element; rows whose lattice value is bottom
// are dropped on seeding.
type Facts map[ram.RelSym][][]boxing.Value

// Options tunes a solve.
//
// The zero value is valid: fully sequential evaluation, nop
// logging, library-default tree degree, no provenance.
type Options struct {
	// ParLevel bounds the parallel fan-out depth: each
	// parallel Search or Par on a path consumes one level,
	// and 0 forces fully sequential execution. It is a
	// depth budget, not a worker count.
	ParLevel int
	// Workers is the goroutine count per parallel scan;
	// 0 selects GOMAXPROCS.
	Workers int
	// Degree overrides the B-tree degree of every index.
	Degree int
	// WithProvenance preserves the two annotation columns
	// the compiler appends to every tuple.
	WithProvenance bool
	// Logger receives solve and round diagnostics;
	// nil means no logging.
	Logger *zap.Logger
}

// FromTuning derives Options from a config.Tuning.
func FromTuning(t config.Tuning) Options {
	return Options{
		ParLevel: t.ParLevel,
		Workers:  t.Workers,
		Degree:   t.Degree,
	}
}

// Solve runs prog over the initial facts and returns the
// derived facts of every public predicate.
//
// bx may be shared across successive solves (keys stay
// stable); passing nil creates a fresh boxing map. Any
// failure aborts the whole solve after joining spawned
// tasks; no partial result is returned.
func Solve(prog *ram.Program, facts Facts, bx *boxing.Boxing, opts Options) (*Result, error) {
	if err := prog.Validate(opts.WithProvenance); err != nil {
		return nil, err
	}
	if bx == nil {
		bx = boxing.New()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	id := uuid.New().String()
	log = log.With(zap.String("solve", id))
	in := &interp{
		prog:    prog,
		idx:     make([]*store.Index, len(prog.Indexes)),
		bx:      bx,
		log:     log,
		workers: workers,
		degree:  opts.Degree,
	}
	for i := range prog.Indexes {
		in.idx[i] = store.NewDegree(prog.Indexes[i].Key, opts.Degree)
	}
	if err := in.seed(facts); err != nil {
		return nil, fmt.Errorf("solve %s: %w", id, err)
	}
	var shape opCount
	ram.Walk(&shape, prog.Stmt)
	log.Debug("solve started",
		zap.Int("indexes", len(prog.Indexes)),
		zap.Int("scans", shape.scans),
		zap.Int("projects", shape.projects),
		zap.Int("par_level", opts.ParLevel),
		zap.Int("workers", workers))
	start := time.Now()
	if err := in.evalStmt(prog.Stmt, opts.ParLevel); err != nil {
		return nil, fmt.Errorf("solve %s: %w", id, err)
	}
	res, err := in.marshal()
	if err != nil {
		return nil, fmt.Errorf("solve %s: %w", id, err)
	}
	log.Debug("solve finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("predicates", len(res.Relations)))
	return res, nil
}

// opCount tallies the operators of a program for the solve
// log.
type opCount struct {
	scans    int
	projects int
}

func (c *opCount) Visit(n ram.Node) ram.Visitor {
	switch n.(type) {
	case *ram.Search, *ram.Query, *ram.Functional:
		c.scans++
	case *ram.Project:
		c.projects++
	}
	return c
}

// seed unboxes the initial facts into every index slot
// marked for seeding.
func (in *interp) seed(facts Facts) error {
	for sym, rows := range facts {
		seeded := false
		for slot := range in.prog.Indexes {
			info := &in.prog.Indexes[slot]
			if info.Sym != sym || !info.Seed {
				continue
			}
			seeded = true
			if err := in.seedIndex(info, in.idx[slot], rows); err != nil {
				return fmt.Errorf("seeding %s: %w", sym, err)
			}
		}
		if !seeded {
			return fmt.Errorf("%w: no seedable index for %s", ErrFacts, sym)
		}
	}
	return nil
}

func (in *interp) seedIndex(info *ram.IndexInfo, ix *store.Index, rows [][]boxing.Value) error {
	cols := len(info.Key)
	want := cols
	if info.Lat != nil {
		want++
	}
	for _, row := range rows {
		if len(row) != want {
			return fmt.Errorf("%w: row has %d values, want %d", ErrFacts, len(row), want)
		}
		t := make(store.Tuple, cols)
		for c := 0; c < cols; c++ {
			t[c] = in.bx.UnboxWith(row[c], info.Pos[c])
		}
		if info.Lat == nil {
			if err := ix.Put(t, boxing.Unit()); err != nil {
				return err
			}
			continue
		}
		v := row[cols]
		if info.Lat.Leq(v, info.Lat.Bottom) {
			continue
		}
		if err := ix.PutWith(t, v, store.MergeFunc(info.Lat.Lub)); err != nil {
			return err
		}
	}
	return nil
}
