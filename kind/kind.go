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

// Package kind catalogs the fixed universes the rest of the core treats as
// given: the array-kind space a sink profile histograms against, and the
// value-datatype space an EventKey's value-spec byte and a source profile's
// entry-type transitions are drawn from.
package kind

// ArrayKind identifies the runtime representation of an array value.
// VanillaKind sits at index 0 so that "is bespoke" tests can use a single
// comparison against it; bespoke kinds are even so that a sink's histogram
// slot can be addressed by kind/2 (the "kind halved" rule of spec §4.7).
type ArrayKind uint8

const (
	// VanillaKind is the canonical, non-bespoke array representation.
	VanillaKind ArrayKind = iota

	// LoggingShimKind is the logging shim concrete layout (§3): it forwards
	// every operation to the vanilla layout and reports through a Source
	// Profile.
	LoggingShimKind ArrayKind = 2

	// MonotypeDictKind is a bespoke layout specialized for dict-shaped
	// arrays whose values are all one datatype.
	MonotypeDictKind ArrayKind = 4

	// PackedVecKind is a bespoke layout specialized for vector-shaped
	// (0..n-1 contiguous integer keys) arrays with a packed backing store.
	PackedVecKind ArrayKind = 6

	// EmptyDictKind is a bespoke layout for the empty-dict singleton.
	EmptyDictKind ArrayKind = 8

	// TypeStructDictKind is a bespoke layout specialized for dict-shaped
	// arrays that always carry the same static set of string keys (a
	// "shape"), analogous to a hidden class / struct-of-arrays layout.
	TypeStructDictKind ArrayKind = 10
)

// IsBespoke reports whether k is a non-vanilla array kind.
func (k ArrayKind) IsBespoke() bool { return k != VanillaKind }

// String names the kind for the export report.
func (k ArrayKind) String() string {
	switch k {
	case VanillaKind:
		return "Vanilla"
	case LoggingShimKind:
		return "LoggingShim"
	case MonotypeDictKind:
		return "MonotypeDict"
	case PackedVecKind:
		return "PackedVec"
	case EmptyDictKind:
		return "EmptyDict"
	case TypeStructDictKind:
		return "TypeStructDict"
	default:
		return "UnknownKind"
	}
}

// DataType is the runtime type tag of an array's key or value, as observed
// by the logging and profiling pipeline. The top bit is the persistence
// bit (refcounted vs not); EventKey encoding strips it (spec §4.5).
type DataType uint8

const (
	DTUninit DataType = iota
	DTNull
	DTBool
	DTInt64
	DTDouble
	DTStaticStr
	DTStr
	DTVec
	DTDict
	DTKeyset
	DTObject
	DTResource
	DTClsMeth
	DTRClsMeth
	DTRFunc

	// dtPersistBit marks a refcounted (non-static) variant of a datatype in
	// the runtime's real encoding; StripPersistBit removes it before the
	// value is stored in an EventKey, so a datatype with and without the
	// bit aggregate into one profile entry. DTStr and DTStaticStr stay
	// distinct after stripping.
	dtPersistBit DataType = 0x80
)

// StripPersistBit clears the persistence bit, as required when packing a
// value datatype into an EventKey (spec §4.5, "value datatype, with
// persistence bit stripped").
func StripPersistBit(dt DataType) DataType {
	return dt &^ dtPersistBit
}

// String names the datatype for the export report and EventKey rendering.
func (dt DataType) String() string {
	switch StripPersistBit(dt) {
	case DTUninit:
		return "Uninit"
	case DTNull:
		return "Null"
	case DTBool:
		return "Bool"
	case DTInt64:
		return "Int"
	case DTDouble:
		return "Double"
	case DTStaticStr, DTStr:
		return "Str"
	case DTVec:
		return "Vec"
	case DTDict:
		return "Dict"
	case DTKeyset:
		return "Keyset"
	case DTObject:
		return "Object"
	case DTResource:
		return "Resource"
	case DTClsMeth:
		return "ClsMeth"
	case DTRClsMeth:
		return "RClsMeth"
	case DTRFunc:
		return "RFunc"
	default:
		return "UnknownType"
	}
}

// IsStaticString reports whether dt is the static (non-refcounted) string
// datatype — the only string variant whose pointer is eligible for
// EventKey inline payload (spec §4.5).
func IsStaticString(dt DataType) bool {
	return StripPersistBit(dt) == DTStaticStr
}
