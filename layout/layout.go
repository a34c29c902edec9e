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

// Package layout implements the Bespoke Array Layout lattice: a registry of
// stable 15-bit layout indices (C1), the parent/child lattice and its
// meet/join/ancestor queries (C2), the per-layout operation vtable (C3),
// and the JIT-emission virtual method set (C4).
package layout

import "github.com/erigontech/bespokearray/kind"

// Index is a layout's stable, immutable 15-bit identity. Indices are
// handed out by Registry.ReserveIndices in power-of-two aligned blocks so a
// JIT type check can match an entire subtree with a single masked compare
// (spec §3, §6).
type Index uint16

// MaxIndex is the largest value Index may take; the registry refuses to
// grow past it (spec §4.1).
const MaxIndex = (1 << 15) - 1

// ClassWord is the 16-bit field the runtime actually stores inside an
// array header: a layout Index with the top bit forced on for every
// non-vanilla array. Testing "is this a bespoke array of at least this
// specific layout" becomes one comparison instead of two (spec §3).
type ClassWord uint16

// NonVanillaBit is the reserved top bit of a ClassWord.
const NonVanillaBit ClassWord = 1 << 15

// EncodeClassWord packs i into a ClassWord with the non-vanilla bit set.
func EncodeClassWord(i Index) ClassWord {
	return ClassWord(i) | NonVanillaBit
}

// Index extracts the layout Index from a ClassWord.
func (c ClassWord) Index() Index { return Index(c &^ NonVanillaBit) }

// IsBespoke reports whether c identifies a non-vanilla array.
func (c ClassWord) IsBespoke() bool { return c&NonVanillaBit != 0 }

// SubtreeTest returns the (mask, value) pair a JIT type check uses to test
// "classWord identifies some layout whose index lies in the aligned block
// [blockStart, blockStart+blockSize)" with a single masked compare:
// classWord&mask == value. blockSize must be a power of two and blockStart
// must be aligned to it (the invariant ReserveIndices enforces).
func SubtreeTest(blockStart Index, blockSize uint32) (mask, value ClassWord) {
	m := ^ClassWord(blockSize-1) | NonVanillaBit
	return m, (ClassWord(blockStart) | NonVanillaBit) & m
}

// Layout is a node in the bespoke type lattice.
type Layout struct {
	index       Index
	description string
	parents     []*Layout
	children    []*Layout
	liveable    bool
	isConcrete  bool
	vtable      *OpVtable
	validate    Validator
	emit        Emitter

	// ancestors/descendants are populated by Registry.FinalizeHierarchy;
	// nil before finalization.
	ancestors   *ancestrySet
	descendants *ancestrySet
}

// Index returns l's stable identity.
func (l *Layout) Index() Index { return l.index }

// Description returns l's unique human-readable name.
func (l *Layout) Description() string { return l.description }

// Liveable reports whether l is general enough to serve as a JIT guard
// type.
func (l *Layout) Liveable() bool { return l.liveable }

// IsConcrete reports whether l carries a full operation vtable.
func (l *Layout) IsConcrete() bool { return l.isConcrete }

// Parents returns l's immediate parents (the covering relation, not the
// full ancestor set).
func (l *Layout) Parents() []*Layout { return append([]*Layout(nil), l.parents...) }

// Children returns l's immediate children.
func (l *Layout) Children() []*Layout { return append([]*Layout(nil), l.children...) }

// Vtable returns l's operation vtable, or nil if l is not concrete.
func (l *Layout) Vtable() *OpVtable { return l.vtable }

// Kind reports the array kind this layout instantiates, derived from
// whether it's the distinguished vanilla root, the logging shim, or some
// other concrete layout. Abstract (non-concrete) layouts have no kind of
// their own; callers should not call Kind on them.
func (l *Layout) Kind() kind.ArrayKind {
	switch {
	case l.description == descriptionVanilla:
		return kind.VanillaKind
	case l.description == descriptionLoggingShim:
		return kind.LoggingShimKind
	default:
		return kind.MonotypeDictKind
	}
}

const (
	descriptionTop         = "Top"
	descriptionVanilla     = "Vanilla"
	descriptionLoggingShim = "LoggingShim"
)

// Validator decides whether ad was physically built under the layout it is
// bound to. Concrete layouts must supply one; in debug dispatch mode a
// mismatch panics before the typed operation runs (spec §4.3, §7).
type Validator func(ad *ArrayData) bool
