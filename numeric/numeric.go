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

// Package numeric collects the small integer-range helpers shared by the
// layout index allocator and the event key encoder: limit constants, the
// int8 bias used to pack small integer keys into an unsigned field, and the
// low-32-bit pointer truncation used for static-string keys.
package numeric

// Integer limit values, mirrored from the erigon-lib math package this was
// adapted from.
const (
	MaxInt8  = 1<<7 - 1
	MinInt8  = -1 << 7
	MaxUint32 = 1<<32 - 1
)

// BiasInt8 maps v (must be in [MinInt8, MaxInt8]) into [0, 255] by
// subtracting MinInt8, so it fits the unsigned inline-payload field of an
// EventKey. MinInt8 maps to 0, so a zero payload is a real value; whether a
// payload is present is recorded by the EventKey's spec tags.
func BiasInt8(v int8) uint8 {
	return uint8(int32(v) - MinInt8)
}

// UnbiasInt8 inverts BiasInt8.
func UnbiasInt8(b uint8) int8 {
	return int8(int32(b) + MinInt8)
}

// FitsInt8 reports whether v can be packed via BiasInt8 without loss.
func FitsInt8(v int64) bool {
	return v >= MinInt8 && v <= MaxInt8
}

// Low32Fits reports whether ptr's low 32 bits uniquely identify it, i.e.
// the pointer itself fits in 32 bits. Used to decide whether a static
// string's address may be inlined into an EventKey.
func Low32Fits(ptr uintptr) bool {
	return uint64(ptr) <= MaxUint32
}

// Low32 truncates ptr to its low 32 bits.
func Low32(ptr uintptr) uint32 {
	return uint32(uint64(ptr) & MaxUint32)
}

// AlignUp rounds n up to the next multiple of align, which must be a power
// of two. Used by the layout registry to enforce reserveIndices' block
// alignment invariant.
func AlignUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// IsPowerOfTwo reports whether n is a nonzero power of two.
func IsPowerOfTwo(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}
