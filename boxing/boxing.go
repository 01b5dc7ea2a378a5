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

// Package boxing maintains a bijection between heterogeneous
// values and compact 64-bit integer keys so that tuples can be
// stored as fixed-width integer vectors.
//
// The key space is dense per position: the first value interned
// at a position receives key 0, the next distinct value key 1,
// and so on. A value's key is stable for the lifetime of the
// map; keys are never retired or reused. Keys assigned at
// different positions are independent.
package boxing

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/dchest/siphash"
)

// MinKey and MaxKey are reserved sentinel keys used as
// open-ended range bounds by the tuple store. The boxing
// map never assigns either of them: assigned keys are
// dense and non-negative.
const (
	MinKey = math.MinInt64
	MaxKey = math.MaxInt64
)

// ErrUnknownKey is returned by BoxWith when asked for a key
// that was never produced by UnboxWith at that position.
// Seeing it means the program tried to re-box a key minted
// at a different position, which is an engine bug.
var ErrUnknownKey = errors.New("boxing: unknown key")

// Position discriminates the sub-table of the boxing map a
// column uses. Columns that exchange keys (join columns,
// projected columns) must share a position; columns of
// unrelated types must not, so that their keys never alias.
type Position uint64

// MakePosition derives a position from a relation id and a
// column index. Programs are free to reuse one position for
// several columns; this constructor merely provides a
// collision-free default naming scheme.
func MakePosition(rel int32, col int) Position {
	return Position(uint64(uint32(rel))<<32 | uint64(uint32(col)))
}

// Rel returns the relation id the position was derived from.
func (p Position) Rel() int32 { return int32(uint32(p >> 32)) }

// Col returns the column the position was derived from.
func (p Position) Col() int { return int(uint32(p)) }

// table is the bijection for a single position.
type table struct {
	mu    sync.RWMutex
	tokey map[Value]int64
	boxed []Value // key -> value
}

// stripeCount is the number of locks guarding the
// position -> table map. Must be a power of two.
const stripeCount = 16

// Boxing is the process-wide value <-> key bijection.
// The zero value is not usable; call New.
//
// Boxing may be shared across successive solves so that keys
// remain comparable between them.
type Boxing struct {
	stripes [stripeCount]stripe
	k0, k1  uint64 // siphash key for stripe selection
}

type stripe struct {
	mu     sync.RWMutex
	tables map[Position]*table
}

// New constructs an empty boxing map.
func New() *Boxing {
	b := &Boxing{
		// fixed hash key: stripe choice needs no DoS
		// hardening, only a uniform spread of positions
		k0: 0x646c6f62616c7473, k1: 0x676f6c6174617274,
	}
	for i := range b.stripes {
		b.stripes[i].tables = make(map[Position]*table)
	}
	return b
}

func (b *Boxing) stripeOf(pos Position) *stripe {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(pos) >> (8 * i))
	}
	h := siphash.Hash(b.k0, b.k1, buf[:])
	return &b.stripes[h&(stripeCount-1)]
}

func (b *Boxing) tableOf(pos Position) *table {
	s := b.stripeOf(pos)
	s.mu.RLock()
	t := s.tables[pos]
	s.mu.RUnlock()
	if t != nil {
		return t
	}
	s.mu.Lock()
	t = s.tables[pos]
	if t == nil {
		t = &table{tokey: make(map[Value]int64)}
		s.tables[pos] = t
	}
	s.mu.Unlock()
	return t
}

// UnboxWith returns the key for v at pos, assigning a fresh
// key on first sight. Assignment is atomic: a value seen by
// two goroutines simultaneously receives one key.
func (b *Boxing) UnboxWith(v Value, pos Position) int64 {
	t := b.tableOf(pos)
	t.mu.RLock()
	k, ok := t.tokey[v]
	t.mu.RUnlock()
	if ok {
		return k
	}
	t.mu.Lock()
	k, ok = t.tokey[v]
	if !ok {
		k = int64(len(t.boxed))
		t.tokey[v] = k
		t.boxed = append(t.boxed, v)
	}
	t.mu.Unlock()
	return k
}

// BoxWith returns the value whose key is k at pos.
// It fails with ErrUnknownKey if k was never produced by
// UnboxWith at pos; the sentinels MinKey and MaxKey are
// never valid.
func (b *Boxing) BoxWith(k int64, pos Position) (Value, error) {
	if k < 0 {
		return None, fmt.Errorf("%w: %d at position %#x", ErrUnknownKey, k, uint64(pos))
	}
	t := b.tableOf(pos)
	t.mu.RLock()
	defer t.mu.RUnlock()
	if k >= int64(len(t.boxed)) {
		return None, fmt.Errorf("%w: %d at position %#x", ErrUnknownKey, k, uint64(pos))
	}
	return t.boxed[k], nil
}
