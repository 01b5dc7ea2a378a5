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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stratalog/stratalog/boxing"
	"github.com/stratalog/stratalog/config"
	"github.com/stratalog/stratalog/ram"
	"github.com/stratalog/stratalog/store"
)

// parProgram copies a into b and c via two parallel rules.
func parProgram() (*ram.Program, ram.RelSym, ram.RelSym, ram.RelSym) {
	a := ram.RelSym{ID: 0, Name: "a", Arity: 1, Den: ram.Relational}
	b := ram.RelSym{ID: 1, Name: "b", Arity: 1, Den: ram.Relational}
	c := ram.RelSym{ID: 2, Name: "c", Arity: 1, Den: ram.Relational}
	elem := boxing.MakePosition(0, 0)
	pos1 := []boxing.Position{elem}
	key1 := store.SearchKey{0}
	copyInto := func(dst ram.Slot) ram.Stmt {
		return &ram.Insert{Op: &ram.Search{Scan: ram.Scan{
			Var: 0, Slot: 0, MeetWith: ram.NoVar,
			Body: &ram.Project{
				Terms: []ram.RamTerm{load(0, 0, elem)},
				Slot:  dst,
			},
		}}}
	}
	prog := &ram.Program{
		Indexes: []ram.IndexInfo{
			{Sym: a, Key: key1, Pos: pos1, Seed: true},
			{Sym: b, Key: key1, Pos: pos1},
			{Sym: c, Key: key1, Pos: pos1},
		},
		RowArities: []int{1},
		Outputs:    []ram.Output{{Sym: b, Slot: 1}, {Sym: c, Slot: 2}},
		Stmt:       &ram.Par{Stmts: []ram.Stmt{copyInto(1), copyInto(2)}},
	}
	return prog, a, b, c
}

func TestParStatement(t *testing.T) {
	for _, parLevel := range []int{0, 2} {
		prog, a, b, c := parProgram()
		facts := Facts{a: [][]boxing.Value{
			{boxing.Int64(4)}, {boxing.Int64(5)}, {boxing.Int64(6)},
		}}
		res, err := Solve(prog, facts, nil, Options{ParLevel: parLevel, Workers: 2})
		require.NoError(t, err)
		require.Equal(t, []string{"(4)", "(5)", "(6)"}, pairs(res.Relations[b]))
		require.Equal(t, []string{"(4)", "(5)", "(6)"}, pairs(res.Relations[c]))
	}
}

func TestUntilInitiallyTrue(t *testing.T) {
	// the delta starts empty, so the body must not run even
	// once: its project would otherwise derive a fact
	a := ram.RelSym{ID: 0, Name: "a", Arity: 1, Den: ram.Relational}
	b := ram.RelSym{ID: 1, Name: "b", Arity: 1, Den: ram.Relational}
	elem := boxing.MakePosition(0, 0)
	pos1 := []boxing.Position{elem}
	key1 := store.SearchKey{0}
	prog := &ram.Program{
		Indexes: []ram.IndexInfo{
			{Sym: a, Key: key1, Pos: pos1, Seed: true},
			{Sym: b, Key: key1, Pos: pos1},
		},
		RowArities: []int{1},
		Outputs:    []ram.Output{{Sym: b, Slot: 1}},
		Stmt: &ram.Until{
			Tests: []ram.BoolExp{&ram.IsEmpty{Slot: 0}},
			Body: &ram.Insert{Op: &ram.Search{Scan: ram.Scan{
				Var: 0, Slot: 0, MeetWith: ram.NoVar,
				Body: &ram.Project{
					Terms: []ram.RamTerm{load(0, 0, elem)},
					Slot:  1,
				},
			}}},
		},
	}
	res, err := Solve(prog, Facts{}, nil, Options{})
	require.NoError(t, err)
	require.Empty(t, res.Relations[b].Rows)
}

func TestSharedBoxing(t *testing.T) {
	// sharing one boxing map across solves keeps keys stable
	bx := boxing.New()
	prog, edge, path := tcProgram()
	first, err := Solve(prog, Facts{edge: edgeFacts([2]int64{1, 2})}, bx, Options{})
	require.NoError(t, err)
	prog, edge, path2 := tcProgram()
	second, err := Solve(prog, Facts{edge: edgeFacts([2]int64{1, 2})}, bx, Options{})
	require.NoError(t, err)
	require.Equal(t, pairs(first.Relations[path]), pairs(second.Relations[path2]))
}

func TestFromTuning(t *testing.T) {
	opts := FromTuning(config.Tuning{ParLevel: 3, Workers: 2, Degree: 16})
	require.Equal(t, 3, opts.ParLevel)
	require.Equal(t, 2, opts.Workers)
	require.Equal(t, 16, opts.Degree)
}

func TestDumpRoundTrip(t *testing.T) {
	prog, edge, _ := tcProgram()
	res, err := Solve(prog,
		Facts{edge: edgeFacts([2]int64{1, 2}, [2]int64{2, 3})}, nil,
		Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, res))
	text, err := ReadDump(&buf)
	require.NoError(t, err)
	for _, fact := range []string{"path(1, 2).", "path(1, 3).", "path(2, 3)."} {
		require.True(t, strings.Contains(text, fact), "dump misses %q:\n%s", fact, text)
	}
}
