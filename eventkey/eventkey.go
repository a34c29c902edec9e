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

// Package eventkey packs (operation, key-spec, value-spec) triples into a
// single 64-bit key (spec §4.5, C5).
package eventkey

import (
	"fmt"

	"github.com/erigontech/bespokearray/kind"
	"github.com/erigontech/bespokearray/numeric"
)

// Op tags the runtime operation an event records.
type Op uint8

const (
	OpGet Op = iota
	OpLvalAt
	OpSetMove
	OpSetCopy
	OpAppendMove
	OpAppendCopy
	OpRemoveAt
	OpPop
	OpIterate
	OpToVanilla
	OpToUncounted
	OpRelease
	OpReleaseUncounted
	OpEscalateToVanilla
)

func (op Op) String() string {
	switch op {
	case OpGet:
		return "Get"
	case OpLvalAt:
		return "LvalAt"
	case OpSetMove:
		return "SetMove"
	case OpSetCopy:
		return "SetCopy"
	case OpAppendMove:
		return "AppendMove"
	case OpAppendCopy:
		return "AppendCopy"
	case OpRemoveAt:
		return "RemoveAt"
	case OpPop:
		return "Pop"
	case OpIterate:
		return "Iterate"
	case OpToVanilla:
		return "ToVanilla"
	case OpToUncounted:
		return "ToUncounted"
	case OpRelease:
		return "Release"
	case OpReleaseUncounted:
		return "ReleaseUncounted"
	case OpEscalateToVanilla:
		return "EscalateToVanilla"
	default:
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
}

// IsWrite reports whether op mutates the array, the static predicate the
// export coordinator uses to partition a source's events into reads and
// writes (spec §4.8 step 3).
func (op Op) IsWrite() bool {
	switch op {
	case OpSetMove, OpSetCopy, OpAppendMove, OpAppendCopy, OpRemoveAt, OpPop:
		return true
	default:
		return false
	}
}

// SpecTag categorizes a key or value argument for encoding purposes.
type SpecTag uint8

const (
	SpecNone SpecTag = iota
	SpecInt8
	SpecInt16
	SpecInt32
	SpecInt64
	SpecStr32
	SpecStr
)

func (t SpecTag) String() string {
	switch t {
	case SpecNone:
		return "none"
	case SpecInt8:
		return "i8"
	case SpecInt16:
		return "i16"
	case SpecInt32:
		return "i32"
	case SpecInt64:
		return "i64"
	case SpecStr32:
		return "str32"
	case SpecStr:
		return "str"
	default:
		return "?"
	}
}

// Arg describes one operand (the key or the value) being packed.
type Arg struct {
	Present bool
	IsInt   bool
	Int     int64
	IsStr   bool
	StrPtr  uintptr // address of a static string; 0 if not applicable
	Str     string  // only used for human-readable rendering
}

// NoArg is the absent-operand sentinel.
var NoArg = Arg{}

// IntArg builds a present integer Arg.
func IntArg(v int64) Arg { return Arg{Present: true, IsInt: true, Int: v} }

// StaticStrArg builds a present static-string Arg carrying both its pointer
// (for inline encoding, when it fits) and its text (for rendering).
func StaticStrArg(ptr uintptr, s string) Arg {
	return Arg{Present: true, IsStr: true, StrPtr: ptr, Str: s}
}

// spec classifies an Arg into the SpecTag domain used by the encoding.
func spec(a Arg) SpecTag {
	if !a.Present {
		return SpecNone
	}
	if a.IsInt {
		switch {
		case numeric.FitsInt8(a.Int):
			return SpecInt8
		case a.Int >= -1<<15 && a.Int <= 1<<15-1:
			return SpecInt16
		case a.Int >= -1<<31 && a.Int <= 1<<31-1:
			return SpecInt32
		default:
			return SpecInt64
		}
	}
	if a.IsStr {
		if a.StrPtr != 0 && numeric.Low32Fits(a.StrPtr) {
			return SpecStr32
		}
		return SpecStr
	}
	return SpecNone
}

// Key is the packed 64-bit record: byte 0 operation, byte 1 key-spec, byte
// 2 value-spec, byte 3 value datatype (persistence bit stripped), bytes
// 4-7 an optional inline 32-bit payload (spec §4.5).
type Key uint64

// Encode packs (op, key, val, valueDT) into a Key. It never dereferences a
// string at encoding time for any spec other than Str32 — Str32 itself
// only ever inlines the pointer, never the bytes.
func Encode(op Op, key, val Arg, valueDT kind.DataType) Key {
	keySpec := spec(key)
	valSpec := spec(val)
	dt := kind.StripPersistBit(valueDT)

	var payload uint32
	switch {
	case keySpec == SpecInt8:
		payload = uint32(numeric.BiasInt8(int8(key.Int)))
	case keySpec == SpecStr32:
		payload = numeric.Low32(key.StrPtr)
	case valSpec == SpecInt8 && keySpec == SpecNone:
		payload = uint32(numeric.BiasInt8(int8(val.Int)))
	case valSpec == SpecStr32 && keySpec == SpecNone:
		payload = numeric.Low32(val.StrPtr)
	}

	return Key(uint64(op)) |
		Key(uint64(keySpec)<<8) |
		Key(uint64(valSpec)<<16) |
		Key(uint64(dt)<<24) |
		Key(uint64(payload)<<32)
}

// Op extracts the operation tag.
func (k Key) Op() Op { return Op(k & 0xff) }

// KeySpec extracts the key-spec tag.
func (k Key) KeySpec() SpecTag { return SpecTag((k >> 8) & 0xff) }

// ValSpec extracts the value-spec tag.
func (k Key) ValSpec() SpecTag { return SpecTag((k >> 16) & 0xff) }

// ValueDataType extracts the value datatype byte.
func (k Key) ValueDataType() kind.DataType { return kind.DataType((k >> 24) & 0xff) }

// payload extracts the raw inline payload.
func (k Key) payload() uint32 { return uint32(k >> 32) }

// RenderKey inverts Int8/Str32 key encodings and falls back to the
// category tag for everything else (spec §4.5, §8 "EventKey round-trip").
// resolveStr32, when non-nil, is given a truncated 32-bit pointer and may
// return the original string if it can still resolve it (used only by
// Str32); RenderKey never calls it for any other spec.
func (k Key) RenderKey(resolveStr32 func(uint32) (string, bool)) string {
	return renderSpec(k.KeySpec(), k.payload(), resolveStr32)
}

// RenderVal is the value-side counterpart of RenderKey. The inline payload
// holds the value only when no key is present; otherwise the value renders
// as its category tag.
func (k Key) RenderVal(resolveStr32 func(uint32) (string, bool)) string {
	if k.KeySpec() != SpecNone {
		return k.ValSpec().String()
	}
	return renderSpec(k.ValSpec(), k.payload(), resolveStr32)
}

func renderSpec(tag SpecTag, payload uint32, resolveStr32 func(uint32) (string, bool)) string {
	switch tag {
	case SpecNone:
		return "none"
	case SpecInt8:
		return fmt.Sprintf("i8:%d", numeric.UnbiasInt8(uint8(payload)))
	case SpecStr32:
		if resolveStr32 != nil {
			if s, ok := resolveStr32(payload); ok {
				return fmt.Sprintf("str32:%q", s)
			}
		}
		return "str32"
	default:
		return tag.String()
	}
}

// String renders k using no string resolver, i.e. everything beyond
// Int8/the bare str32 tag collapses to its category name.
func (k Key) String() string {
	return fmt.Sprintf("%s key=[%s] val=[%s] dt=%s", k.Op(), k.RenderKey(nil), k.RenderVal(nil), k.ValueDataType())
}
