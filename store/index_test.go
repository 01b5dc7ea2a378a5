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

package store

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"golang.org/x/exp/slices"

	"github.com/stratalog/stratalog/boxing"
)

func unit() boxing.Value { return boxing.Unit() }

func tuples3(n int, r *rand.Rand) []Tuple {
	seen := make(map[[3]int64]bool)
	var out []Tuple
	for len(out) < n {
		k := [3]int64{r.Int63n(8), r.Int63n(8), r.Int63n(8)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, Tuple{k[0], k[1], k[2]})
	}
	return out
}

func TestOrdering(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	key := SearchKey{1, 2, 0}
	ix := New(key)
	tups := tuples3(64, r)
	for _, tup := range tups {
		if err := ix.Put(tup, unit()); err != nil {
			t.Fatal(err)
		}
	}
	var got []Tuple
	ix.ForEach(func(tup Tuple, _ boxing.Value) bool {
		got = append(got, tup)
		return true
	})
	if len(got) != len(tups) {
		t.Fatalf("ForEach visited %d tuples, inserted %d", len(got), len(tups))
	}
	want := make([]Tuple, len(tups))
	copy(want, tups)
	slices.SortFunc(want, func(a, b Tuple) bool {
		for _, c := range key {
			if a[c] != b[c] {
				return a[c] < b[c]
			}
		}
		return false
	})
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Fatalf("position %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRangeExact(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, key := range []SearchKey{{0, 1, 2}, {2, 0, 1}, {1, 2, 0}} {
		ix := New(key)
		tups := tuples3(100, r)
		for _, tup := range tups {
			if err := ix.Put(tup, unit()); err != nil {
				t.Fatal(err)
			}
		}
		for trial := 0; trial < 50; trial++ {
			lo := Tuple{r.Int63n(8), r.Int63n(8), r.Int63n(8)}
			hi := Tuple{
				lo[0] + r.Int63n(4),
				lo[1] + r.Int63n(4),
				lo[2] + r.Int63n(4),
			}
			// leave some columns unconstrained,
			// as the interpreter does
			for c := range lo {
				if r.Intn(3) == 0 {
					lo[c], hi[c] = boxing.MinKey, boxing.MaxKey
				}
			}
			var want []string
			for _, tup := range tups {
				ok := true
				for c := range tup {
					if tup[c] < lo[c] || tup[c] > hi[c] {
						ok = false
						break
					}
				}
				if ok {
					want = append(want, fmt.Sprint(tup))
				}
			}
			var got []string
			err := ix.Range(lo, hi, func(tup Tuple, _ boxing.Value) bool {
				got = append(got, fmt.Sprint(tup))
				return true
			})
			if err != nil {
				t.Fatal(err)
			}
			slices.Sort(want)
			slices.Sort(got)
			if !slices.Equal(got, want) {
				t.Fatalf("key %v bounds (%v, %v): got %v, want %v", key, lo, hi, got, want)
			}
		}
	}
}

func TestPutWith(t *testing.T) {
	ix := New(SearchKey{0})
	min := func(a, b boxing.Value) boxing.Value {
		if a.Int() <= b.Int() {
			return a
		}
		return b
	}
	for _, v := range []int64{5, 3, 9} {
		if err := ix.PutWith(Tuple{1}, boxing.Int64(v), min); err != nil {
			t.Fatal(err)
		}
	}
	if got := ix.Lookup(Tuple{1}, boxing.None); got.Int() != 3 {
		t.Errorf("merged value = %s, want 3", got)
	}
	if ix.Len() != 1 {
		t.Errorf("Len = %d, want 1", ix.Len())
	}
}

func TestLookupContains(t *testing.T) {
	ix := New(SearchKey{0, 1})
	if err := ix.Put(Tuple{1, 2}, boxing.Int64(10)); err != nil {
		t.Fatal(err)
	}
	if !ix.Contains(Tuple{1, 2}) {
		t.Error("Contains(1,2) = false")
	}
	if ix.Contains(Tuple{2, 1}) {
		t.Error("Contains(2,1) = true")
	}
	if got := ix.Lookup(Tuple{1, 2}, boxing.None); got.Int() != 10 {
		t.Errorf("Lookup = %s", got)
	}
	if got := ix.Lookup(Tuple{3, 3}, boxing.Int64(-1)); got.Int() != -1 {
		t.Errorf("Lookup default = %s", got)
	}
}

func TestArityErrors(t *testing.T) {
	ix := New(SearchKey{0, 1})
	if err := ix.Put(Tuple{1}, unit()); !errors.Is(err, ErrArity) {
		t.Errorf("Put short tuple: %v", err)
	}
	if err := ix.PutWith(Tuple{1, 2, 3}, unit(), nil); !errors.Is(err, ErrArity) {
		t.Errorf("PutWith long tuple: %v", err)
	}
	other := New(SearchKey{0})
	if err := ix.MergeInto(other); !errors.Is(err, ErrArity) {
		t.Errorf("MergeInto arity: %v", err)
	}
}

func TestMergeEquivalence(t *testing.T) {
	// after merging the same relation held under two
	// different search keys into a third index, all three
	// hold the same tuple set
	r := rand.New(rand.NewSource(3))
	a := New(SearchKey{0, 1, 2})
	b := New(SearchKey{2, 1, 0})
	tups := tuples3(80, r)
	for _, tup := range tups {
		if err := a.Put(tup, unit()); err != nil {
			t.Fatal(err)
		}
		if err := b.Put(tup, unit()); err != nil {
			t.Fatal(err)
		}
	}
	dst := New(SearchKey{1, 0, 2})
	if err := a.MergeInto(dst); err != nil {
		t.Fatal(err)
	}
	if err := b.MergeInto(dst); err != nil {
		t.Fatal(err)
	}
	if dst.Len() != len(tups) {
		t.Fatalf("dst has %d tuples, want %d", dst.Len(), len(tups))
	}
	for _, tup := range tups {
		if !dst.Contains(tup) {
			t.Fatalf("dst missing %v", tup)
		}
	}
}

func TestParForEach(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	ix := New(SearchKey{0, 1, 2})
	tups := tuples3(200, r)
	for _, tup := range tups {
		if err := ix.Put(tup, unit()); err != nil {
			t.Fatal(err)
		}
	}
	for _, parallel := range []int{1, 2, 4} {
		var mu sync.Mutex
		seen := make(map[string]int)
		err := ix.ParForEach(parallel, func(_ int, tup Tuple, _ boxing.Value) error {
			mu.Lock()
			seen[fmt.Sprint(tup)]++
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(seen) != len(tups) {
			t.Fatalf("parallel=%d: visited %d distinct tuples, want %d", parallel, len(seen), len(tups))
		}
		for k, n := range seen {
			if n != 1 {
				t.Fatalf("parallel=%d: tuple %s visited %d times", parallel, k, n)
			}
		}
	}
}

func TestParForEachError(t *testing.T) {
	ix := New(SearchKey{0})
	for i := int64(0); i < 50; i++ {
		if err := ix.Put(Tuple{i}, unit()); err != nil {
			t.Fatal(err)
		}
	}
	boom := errors.New("boom")
	err := ix.ParForEach(4, func(_ int, tup Tuple, _ boxing.Value) error {
		if tup[0] == 25 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ParForEach error = %v", err)
	}
}

func TestBadSearchKey(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New accepted a non-permutation search key")
		}
	}()
	New(SearchKey{0, 0})
}
