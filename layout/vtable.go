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

import "fmt"

// OpVtable is the per-layout table of function pointers every concrete
// layout fills in: the contract between the runtime and the layout (spec
// §4.3, §6). It covers element access, structural queries, iteration,
// mutation, GC scanning, conversion, release, sort hooks, and the legacy
// flag toggle.
type OpVtable struct {
	// Element access
	Get      func(ad *ArrayData, key Key) (TypedValue, bool)
	LvalAt   func(ad *ArrayData, key Key) (*TypedValue, bool)
	RemoveAt func(ad *ArrayData, key Key) *ArrayData

	NvGetInt func(ad *ArrayData, idx int64) (TypedValue, bool)
	NvGetStr func(ad *ArrayData, s string) (TypedValue, bool)

	// Structural queries
	Size       func(ad *ArrayData) int
	HeapSize   func(ad *ArrayData) uintptr
	IsVector   func(ad *ArrayData) bool
	ContainsKey func(ad *ArrayData, key Key) bool
	FirstKey   func(ad *ArrayData) (Key, bool)
	LastKey    func(ad *ArrayData) (Key, bool)

	// Iteration
	IterBegin   func(ad *ArrayData) Pos
	IterLast    func(ad *ArrayData) Pos
	IterEnd     func(ad *ArrayData) Pos
	IterAdvance func(ad *ArrayData, pos Pos) Pos
	IterRewind  func(ad *ArrayData, pos Pos) Pos
	PosIsValid  func(ad *ArrayData, pos Pos) bool
	KeyAt       func(ad *ArrayData, pos Pos) Key
	ValueAt     func(ad *ArrayData, pos Pos) TypedValue

	// Mutation
	SetMove    func(ad *ArrayData, key Key, val TypedValue) *ArrayData
	SetCopy    func(ad *ArrayData, key Key, val TypedValue) *ArrayData
	AppendMove func(ad *ArrayData, val TypedValue) *ArrayData
	AppendCopy func(ad *ArrayData, val TypedValue) *ArrayData
	Pop        func(ad *ArrayData) (*ArrayData, TypedValue)
	Reserve    func(ad *ArrayData, capacity int) *ArrayData
	Clear      func(ad *ArrayData) *ArrayData
	Copy       func(ad *ArrayData) *ArrayData

	// GC scanning
	Scan func(ad *ArrayData, visit func(TypedValue))

	// Conversion / escalation
	ToUncounted       func(ad *ArrayData) *ArrayData
	ToVanilla         func(ad *ArrayData) *ArrayData
	EscalateToVanilla func(ad *ArrayData, reason string) *ArrayData

	// Release
	Release          func(ad *ArrayData)
	ReleaseUncounted func(ad *ArrayData)

	// Sort hooks
	PreSort  func(ad *ArrayData)
	PostSort func(ad *ArrayData)

	// Legacy flag
	SetLegacyArray func(ad *ArrayData, legacy bool) *ArrayData
}

// DebugDispatch gates whether Layout.Dispatch validates ad's class before
// handing back the vtable. Production builds leave this false so the call
// site pays only for the vtable field load (spec §4.3: "the vtable slot may
// be filled either with a direct pointer ... (release builds) or a
// debug-mode dispatcher").
var DebugDispatch = false

// Dispatch returns l's vtable after checking — in debug mode only — that ad
// actually belongs to l. A mismatch panics: it indicates a caller used the
// wrong layout's vtable, which is a programming error in the runtime or
// JIT, never something profiling should tolerate silently (spec §7).
func (l *Layout) Dispatch(ad *ArrayData) *OpVtable {
	if !l.isConcrete {
		panic(fmt.Sprintf("bespokearray: layout %q is not concrete, has no vtable", l.description))
	}
	if DebugDispatch {
		if ad.class.Index() != l.index {
			panic(fmt.Sprintf("bespokearray: dispatch mismatch: array carries class index %d, expected layout %q (index %d)", ad.class.Index(), l.description, l.index))
		}
		if l.validate != nil && !l.validate(ad) {
			panic(fmt.Sprintf("bespokearray: dispatch mismatch: As(%q) rejected array", l.description))
		}
	}
	return l.vtable
}

// EscalateToVanilla is the universal fallback any concrete layout's
// operation may call when it cannot serve a request in-place: it asks the
// layout's vtable for a freshly produced vanilla copy and leaves retrying
// on that copy to the caller (spec §4.3 "Escalation to vanilla").
func (l *Layout) EscalateToVanilla(ad *ArrayData, reason string) *ArrayData {
	vt := l.Dispatch(ad)
	if vt.EscalateToVanilla == nil {
		panic(fmt.Sprintf("bespokearray: layout %q has no EscalateToVanilla hook", l.description))
	}
	return vt.EscalateToVanilla(ad, reason)
}
