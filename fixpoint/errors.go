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
	"errors"
	"fmt"

	"github.com/stratalog/stratalog/boxing"
	"github.com/stratalog/stratalog/ram"
	"github.com/stratalog/stratalog/store"
)

// The error kinds a solve can fail with. All of them are
// fatal: the solve is aborted, spawned tasks are joined, and
// no partial result is observable.
var (
	// ErrMalformedProgram wraps ram.ErrMalformed failures
	// and index-table inconsistencies detected at run time.
	ErrMalformedProgram = ram.ErrMalformed

	// ErrUnknownKey is boxing.ErrUnknownKey: a key reached
	// BoxWith that was never minted at that position.
	ErrUnknownKey = boxing.ErrUnknownKey

	// ErrArityMismatch is store.ErrArity: a tuple of the
	// wrong length reached an index operation.
	ErrArityMismatch = store.ErrArity

	// ErrUserFunction wraps a failure (error return or
	// panic) of a user-supplied App, Guard or Functional
	// function.
	ErrUserFunction = errors.New("fixpoint: user function failed")

	// ErrFacts is returned when the initial facts do not
	// match the program's predicate metadata.
	ErrFacts = errors.New("fixpoint: malformed initial facts")
)

// userErr wraps err (or a recovered panic value) as an
// ErrUserFunction failure.
func userErr(what string, r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %s: %v", ErrUserFunction, what, err)
	}
	return fmt.Errorf("%w: %s: panic: %v", ErrUserFunction, what, r)
}
