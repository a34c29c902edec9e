// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package layout

import "github.com/erigontech/bespokearray/kind"

// ArrayData is the generic array handle every operation-vtable entry and
// JIT emitter takes. Its concrete backing representation belongs to
// whichever vanilla or bespoke implementation owns it — entirely out of
// scope here (spec §1); this core only needs ClassWord (to find the owning
// Layout) and an opaque payload slot concrete layouts use for their own
// state.
type ArrayData struct {
	class   ClassWord
	Payload any
}

// NewArrayData builds a handle bound to the layout identified by idx, with
// an opaque payload a concrete layout's operations can type-assert back to
// their own representation.
func NewArrayData(idx Index, payload any) *ArrayData {
	return &ArrayData{class: EncodeClassWord(idx), Payload: payload}
}

// Class returns ad's packed class word.
func (ad *ArrayData) Class() ClassWord { return ad.class }

// Key is the union of key shapes an array operation may be given: an
// integer for vector-shaped arrays, an integer-or-string otherwise (spec
// §4.4 "key is type-compatible with the array-shape").
type Key struct {
	IsString bool
	Int      int64
	Str      string
}

// IntKey builds an integer Key.
func IntKey(i int64) Key { return Key{Int: i} }

// StrKey builds a string Key.
func StrKey(s string) Key { return Key{IsString: true, Str: s} }

// TypedValue pairs a runtime datatype tag with its payload, the shape the
// profiling pipeline and the operation vtable both traffic in.
type TypedValue struct {
	DT  kind.DataType
	I64 int64
	F64 float64
	Str string
	Ptr uintptr // identity of a refcounted payload, for heap-size/GC hooks
}

// Pos is an opaque iterator position, meaningful only to the layout that
// produced it via IterBegin/IterLast.
type Pos int64

// PosInvalid is the sentinel "no such position" value IterEnd returns.
const PosInvalid Pos = -1
