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

// Package store implements the indexed tuple store: a
// concurrent ordered map from integer tuples to lattice
// values, sorted by a per-index search key.
//
// A search key is a permutation of column positions; the
// tree orders tuples lexicographically on the permuted view.
// The same relation may be stored under several indexes with
// different search keys, one per access path the compiled
// program wants to scan.
package store

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/tidwall/btree"
	"golang.org/x/sync/errgroup"

	"github.com/stratalog/stratalog/boxing"
	"github.com/stratalog/stratalog/ints"
)

// Tuple is an ordered sequence of 64-bit keys produced by
// the boxing substrate. Its length always equals the arity
// of the index it is stored in.
type Tuple []int64

// Clone returns a copy of t.
func (t Tuple) Clone() Tuple {
	out := make(Tuple, len(t))
	copy(out, t)
	return out
}

// SearchKey is a permutation of column positions defining an
// index's sort order, major axis first.
type SearchKey []int

// Valid reports whether k is a permutation of [0, len(k)).
func (k SearchKey) Valid() bool {
	seen := make([]bool, len(k))
	for _, c := range k {
		if c < 0 || c >= len(k) || seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}

// ErrArity is returned when a tuple of the wrong length
// reaches an index operation.
var ErrArity = errors.New("store: tuple arity mismatch")

// MergeFunc combines the existing value for a key with a
// newly inserted one; PutWith stores its result.
type MergeFunc func(old, new boxing.Value) boxing.Value

type entry struct {
	tup Tuple
	lat boxing.Value
}

// Index is one sort order over one relation's tuples.
//
// The tree permits many concurrent readers and writers;
// readers iterating during insertion observe a consistent
// snapshot of the tree structure, not necessarily the very
// latest values. Read-modify-write inserts (PutWith, and
// MergeIntoWith through it) additionally serialize on a
// per-index mutex; Put and MergeInto do not take it.
type Index struct {
	arity int
	key   SearchKey
	less  func(a, b entry) bool
	tr    *btree.BTreeG[entry]
	mu    sync.Mutex // serializes read-modify-write inserts
}

// New constructs an empty index with the given search key.
// The tuple arity of the index is len(key); key must be a
// permutation of [0, len(key)). The sort order of an index
// never changes after construction.
func New(key SearchKey) *Index {
	return NewDegree(key, 0)
}

// NewDegree is New with an explicit B-tree degree;
// degree <= 0 selects the library default.
func NewDegree(key SearchKey, degree int) *Index {
	if !key.Valid() {
		panic(fmt.Sprintf("store: search key %v is not a permutation", key))
	}
	ix := &Index{arity: len(key), key: append(SearchKey{}, key...)}
	less := func(a, b entry) bool {
		for _, c := range ix.key {
			if a.tup[c] != b.tup[c] {
				return a.tup[c] < b.tup[c]
			}
		}
		return false
	}
	ix.less = less
	opts := btree.Options{}
	if degree > 0 {
		opts.Degree = degree
	}
	ix.tr = btree.NewBTreeGOptions(less, opts)
	return ix
}

// Arity returns the tuple length stored in the index.
func (ix *Index) Arity() int { return ix.arity }

// Key returns the index's search key. Callers must not
// modify the returned slice.
func (ix *Index) Key() SearchKey { return ix.key }

// Len returns the number of tuples in the index.
func (ix *Index) Len() int { return ix.tr.Len() }

// IsEmpty reports whether the index holds no tuples.
func (ix *Index) IsEmpty() bool { return ix.tr.Len() == 0 }

func (ix *Index) check(t Tuple) error {
	if len(t) != ix.arity {
		return fmt.Errorf("%w: got %d columns, index has %d", ErrArity, len(t), ix.arity)
	}
	return nil
}

// Put inserts t with value v, replacing any previous value.
func (ix *Index) Put(t Tuple, v boxing.Value) error {
	if err := ix.check(t); err != nil {
		return err
	}
	ix.tr.Set(entry{tup: t, lat: v})
	return nil
}

// PutWith inserts t with value v; if t is already present,
// the stored value becomes merge(existing, v). The
// read-modify-write is atomic with respect to other PutWith
// calls on the same index.
func (ix *Index) PutWith(t Tuple, v boxing.Value, merge MergeFunc) error {
	if err := ix.check(t); err != nil {
		return err
	}
	ix.mu.Lock()
	if old, ok := ix.tr.Get(entry{tup: t}); ok {
		v = merge(old.lat, v)
	}
	ix.tr.Set(entry{tup: t, lat: v})
	ix.mu.Unlock()
	return nil
}

// Contains reports whether t is present.
func (ix *Index) Contains(t Tuple) bool {
	if len(t) != ix.arity {
		return false
	}
	_, ok := ix.tr.Get(entry{tup: t})
	return ok
}

// Lookup returns the value stored for t,
// or def when t is absent.
func (ix *Index) Lookup(t Tuple, def boxing.Value) boxing.Value {
	if len(t) != ix.arity {
		return def
	}
	if e, ok := ix.tr.Get(entry{tup: t}); ok {
		return e.lat
	}
	return def
}

// Range visits, in search-key order, exactly the tuples t
// with lo[c] <= t[c] <= hi[c] for every column c. fn returns
// false to stop early.
//
// The scan descends to lo and walks forward until the major
// axis exceeds hi; minor axes are filtered as encountered,
// so bounds left at the boxing sentinels cost nothing.
func (ix *Index) Range(lo, hi Tuple, fn func(t Tuple, v boxing.Value) bool) error {
	if err := ix.check(lo); err != nil {
		return err
	}
	if err := ix.check(hi); err != nil {
		return err
	}
	major := ix.key[0]
	ix.tr.Ascend(entry{tup: lo}, func(e entry) bool {
		if e.tup[major] > hi[major] {
			return false
		}
		for c := range e.tup {
			if e.tup[c] < lo[c] || e.tup[c] > hi[c] {
				return true // outside a minor bound; keep going
			}
		}
		return fn(e.tup, e.lat)
	})
	return nil
}

// ForEach visits every tuple in search-key order.
// fn returns false to stop early.
func (ix *Index) ForEach(fn func(t Tuple, v boxing.Value) bool) {
	ix.tr.Scan(func(e entry) bool {
		return fn(e.tup, e.lat)
	})
}

// ParForEach partitions the index among up to [parallel]
// workers and visits every tuple exactly once. fn receives
// the worker number so that callers can keep per-worker
// state. The scan runs over a point-in-time snapshot of the
// tree, so concurrent insertion into ix is safe but not
// observed. The first error stops the failing worker's scan
// and is returned once every worker has finished.
func (ix *Index) ParForEach(parallel int, fn func(worker int, t Tuple, v boxing.Value) error) error {
	n := ix.tr.Len()
	if n == 0 {
		return nil
	}
	parallel = ints.Clamp(parallel, 1, runtime.GOMAXPROCS(0))
	if parallel > n {
		parallel = n
	}
	if parallel == 1 {
		var err error
		ix.ForEach(func(t Tuple, v boxing.Value) bool {
			err = fn(0, t, v)
			return err == nil
		})
		return err
	}
	snap := ix.tr.Copy()
	bounds := ints.Split(n, parallel)
	var g errgroup.Group
	for w := 0; w < parallel; w++ {
		w := w
		lo, hi := bounds[w], bounds[w+1]
		if lo >= hi {
			continue
		}
		start, _ := snap.GetAt(lo)
		var stop *entry
		if hi < n {
			e, _ := snap.GetAt(hi)
			stop = &e
		}
		g.Go(func() error {
			var err error
			snap.Ascend(start, func(e entry) bool {
				if stop != nil && !ix.less(e, *stop) {
					return false
				}
				err = fn(w, e.tup, e.lat)
				return err == nil
			})
			return err
		})
	}
	return g.Wait()
}

// MergeInto inserts every tuple of ix into dst, replacing
// values already present (set union for relational indexes,
// whose values are all the unit sentinel).
func (ix *Index) MergeInto(dst *Index) error {
	if ix.arity != dst.arity {
		return fmt.Errorf("%w: merging arity %d into %d", ErrArity, ix.arity, dst.arity)
	}
	var err error
	ix.ForEach(func(t Tuple, v boxing.Value) bool {
		err = dst.Put(t, v)
		return err == nil
	})
	return err
}

// MergeIntoWith inserts every tuple of ix into dst,
// combining values for tuples already present with merge
// (per-key least upper bound for latticenal indexes).
func (ix *Index) MergeIntoWith(dst *Index, merge MergeFunc) error {
	if ix.arity != dst.arity {
		return fmt.Errorf("%w: merging arity %d into %d", ErrArity, ix.arity, dst.arity)
	}
	var err error
	ix.ForEach(func(t Tuple, v boxing.Value) bool {
		err = dst.PutWith(t, v, merge)
		return err == nil
	})
	return err
}
