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

package boxing

import (
	"fmt"
	"math"
	"strconv"
)

// Kind describes the variant stored in a Value.
type Kind uint8

const (
	// KindNone is the kind of the zero Value.
	// It marks the absence of a value; relations that
	// carry no lattice column store Unit, not None, next
	// to every tuple.
	KindNone Kind = iota
	KindUnit
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindObject
)

// Value is a boxed heterogeneous value.
//
// A Value is a small immutable struct rather than an
// interface so that it can be used directly as a map key
// and compared with ==. Two Values are equal iff they
// have the same kind and the same payload. Object payloads
// must be comparable in the Go sense; the engine never
// inspects them beyond equality.
type Value struct {
	kind Kind
	num  int64  // int64 payload, float bits, or bool
	str  string // string payload or object tag
	obj  any    // object payload (comparable)
}

// None is the zero Value; see KindNone.
var None Value

// Unit returns the unit value stored alongside
// tuples of relational predicates.
func Unit() Value { return Value{kind: KindUnit} }

// Int64 boxes a 64-bit integer.
func Int64(v int64) Value { return Value{kind: KindInt64, num: v} }

// Float64 boxes a 64-bit float.
func Float64(f float64) Value {
	return Value{kind: KindFloat64, num: int64(math.Float64bits(f))}
}

// Bool boxes a boolean.
func Bool(b bool) Value {
	var n int64
	if b {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// String boxes a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Object boxes an opaque host value under a display tag.
// The payload must be comparable; the tag participates in
// equality so that payloads of unrelated host types do not
// collide accidentally.
func Object(tag string, v any) Value {
	return Value{kind: KindObject, str: tag, obj: v}
}

// Kind returns the variant tag of v.
func (v Value) Kind() Kind { return v.kind }

// IsNone reports whether v is the zero Value.
func (v Value) IsNone() bool { return v.kind == KindNone }

// Int returns the integer payload of an Int64 value.
func (v Value) Int() int64 { return v.num }

// Float returns the float payload of a Float64 value.
func (v Value) Float() float64 { return math.Float64frombits(uint64(v.num)) }

// Boolean returns the payload of a Bool value.
func (v Value) Boolean() bool { return v.num != 0 }

// Str returns the payload of a String value.
func (v Value) Str() string { return v.str }

// Obj returns the payload of an Object value.
func (v Value) Obj() any { return v.obj }

// String implements fmt.Stringer for diagnostics and dumps.
func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "<none>"
	case KindUnit:
		return "()"
	case KindBool:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case KindInt64:
		return strconv.FormatInt(v.num, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.str)
	case KindObject:
		return fmt.Sprintf("%s(%v)", v.str, v.obj)
	default:
		return fmt.Sprintf("<kind %d>", v.kind)
	}
}
