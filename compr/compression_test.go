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

package compr

import (
	"bytes"
	"strings"
	"testing"
)

func TestZstdRoundTrip(t *testing.T) {
	c := Zstd()
	if c.Name() != "zstd" {
		t.Errorf("Name = %q", c.Name())
	}
	src := []byte(strings.Repeat("path(1, 2).\npath(2, 3).\n", 512))
	enc := c.Compress(src, nil)
	if len(enc) >= len(src) {
		t.Errorf("redundant input did not shrink: %d -> %d", len(src), len(enc))
	}
	dec, err := DecodeZstd(enc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, src) {
		t.Fatal("round trip mismatch")
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := DecodeZstd([]byte("not a frame"), nil); err == nil {
		t.Fatal("expected an error decoding garbage")
	}
}
