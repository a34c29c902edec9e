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

// Package srckey defines the SrcKey value type the profiling pipeline
// consumes as an opaque source-location handle. Construction from a real
// bytecode unit, translation, or resume state is out of scope (spec §1);
// this package only gives SrcKey the properties the core depends on:
// (function, offset, resume-mode) equality and a stable 64-bit hash.
package srckey

import "hash/maphash"

// ResumeMode distinguishes the three ways a function activation can be
// re-entered. The profiling pipeline canonicalizes every stored SrcKey to
// ResumeNone (spec §3, §9) so that the same source line in a generator and
// in an equivalent regular function aggregate into a single profile.
type ResumeMode uint8

const (
	ResumeNone ResumeMode = iota
	ResumeYield
	ResumeThrow
)

// SrcKey names a bytecode site: a function identifier, a bytecode offset
// within it, and a resume mode. Two SrcKeys compare equal iff all three
// fields match.
type SrcKey struct {
	Func   uint64
	Offset uint32
	Resume ResumeMode
}

// Empty is the zero-value SrcKey used when no valid source location is
// available (e.g. a release-specific operation executing outside any
// frame, spec §4.6).
var Empty = SrcKey{}

// IsEmpty reports whether sk is the Empty sentinel.
func (sk SrcKey) IsEmpty() bool { return sk == Empty }

// Canonical returns sk with its resume mode forced to ResumeNone, the
// lossy-by-design canonicalization every stored SrcKey undergoes (spec §3
// "Logging Profile" / §9 "Canonicalization of SrcKeys").
func (sk SrcKey) Canonical() SrcKey {
	sk.Resume = ResumeNone
	return sk
}

// Valid reports whether sk is well-formed enough to ingest. A SrcKey
// referencing an unrecognized resume mode or the Empty key itself (outside
// of its designated sentinel use) is rejected at ingress (spec §7, §4.6
// step 1) rather than ever reaching the profile tables.
func (sk SrcKey) Valid() bool {
	if sk.IsEmpty() {
		return false
	}
	return sk.Resume == ResumeNone || sk.Resume == ResumeYield || sk.Resume == ResumeThrow
}

var seed = maphash.MakeSeed()

// Hash returns a stable 64-bit hash of sk, used as the map key once sk has
// been canonicalized. maphash is process-stable but not cross-process
// stable, which matches SrcKey's role as an in-memory handle only — it is
// never persisted or compared across runs.
func (sk SrcKey) Hash() uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	var buf [13]byte
	buf[0] = byte(sk.Func)
	buf[1] = byte(sk.Func >> 8)
	buf[2] = byte(sk.Func >> 16)
	buf[3] = byte(sk.Func >> 24)
	buf[4] = byte(sk.Func >> 32)
	buf[5] = byte(sk.Func >> 40)
	buf[6] = byte(sk.Func >> 48)
	buf[7] = byte(sk.Func >> 56)
	buf[8] = byte(sk.Offset)
	buf[9] = byte(sk.Offset >> 8)
	buf[10] = byte(sk.Offset >> 16)
	buf[11] = byte(sk.Offset >> 24)
	buf[12] = byte(sk.Resume)
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
