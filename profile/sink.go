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

package profile

import (
	"sync/atomic"

	log "github.com/erigontech/erigon-lib/log/v3"

	"github.com/erigontech/bespokearray/gate"
	"github.com/erigontech/bespokearray/kind"
	"github.com/erigontech/bespokearray/layout"
	"github.com/erigontech/bespokearray/srckey"
)

// numArrayKindSlots covers the even kind space §4.7 halves a histogram
// index into; kind/2 for the largest kind constant defined in package
// kind, rounded up generously so a future kind addition doesn't overflow.
const numArrayKindSlots = 32

// ValueShape is the tri-state §4.7 requires for a shim array's value-type
// histogram slot: a shimmed dict with no entries, one whose entries are
// all one datatype, or one with mixed datatypes.
type ValueShape uint8

const (
	ValueShapeEmpty ValueShape = iota
	ValueShapeMonotype
	ValueShapeAny
)

// SinkObservation is what SinkProfile.Update needs about an observed
// array; it stands in for the opaque ArrayData the real runtime would
// pass, giving this core just the facts §4.7 depends on.
type SinkObservation struct {
	Kind        kind.ArrayKind
	IsSampled   bool // sampled-but-not-shimmed (vanilla-path sampling)
	ShimIndex   layout.Index
	IsShim      bool
	KeyDT       kind.DataType
	ValueShape  ValueShape
	ValueDT     kind.DataType // meaningful only when ValueShape == ValueShapeMonotype
	BackPointer *LoggingProfile
}

// SinkProfile is the per-(translation, canonical SrcKey) profile C7
// maintains (spec §3).
type SinkProfile struct {
	translationID uint64
	source        srckey.SrcKey

	arrayKindHist  [numArrayKindSlots]atomic.Uint64
	keyTypeHist    [256]atomic.Uint64
	valueTypeHist  [256]atomic.Uint64
	sources        *counterMap[*LoggingProfile]
	sampledCount   atomic.Uint64
	unsampledCount atomic.Uint64
}

func newSinkProfile(translationID uint64, source srckey.SrcKey) *SinkProfile {
	return &SinkProfile{
		translationID: translationID,
		source:        source,
		sources:       newCounterMap[*LoggingProfile](hashLoggingProfilePtr),
	}
}

func hashLoggingProfilePtr(lp *LoggingProfile) uint64 {
	var h uint64 = 1469598103934665603
	// Mixing the pointer's bit pattern via uintptr would require "unsafe",
	// which the profiling pipeline otherwise avoids entirely; hashing the
	// (already-canonical, already-hashed) source SrcKey instead gives an
	// adequate distribution since distinct LoggingProfiles always carry
	// distinct canonical sources.
	if lp != nil {
		h = lp.source.Hash()
	}
	return h
}

// Update implements update(arrayData) (spec §4.7).
func (sp *SinkProfile) Update(obs SinkObservation) {
	if !obs.IsShim {
		idx := int(obs.Kind) / 2
		if idx >= 0 && idx < numArrayKindSlots {
			sp.arrayKindHist[idx].Add(1)
		}
		if obs.IsSampled {
			sp.sampledCount.Add(1)
		} else {
			sp.unsampledCount.Add(1)
		}
		return
	}

	sp.sampledCount.Add(1)
	idx := int(obs.Kind) / 2
	if idx >= 0 && idx < numArrayKindSlots {
		sp.arrayKindHist[idx].Add(1)
	}
	sp.keyTypeHist[kind.StripPersistBit(obs.KeyDT)].Add(1)
	switch obs.ValueShape {
	case ValueShapeMonotype:
		sp.valueTypeHist[kind.StripPersistBit(obs.ValueDT)].Add(1)
	case ValueShapeAny, ValueShapeEmpty:
		// No single value datatype to attribute; the histogram records
		// monotype value slots only (spec §4.7, tri-state handling).
	}
	if obs.BackPointer != nil {
		sp.sources.Increment(obs.BackPointer)
	}
}

// TranslationID returns the translation this sink profile belongs to.
func (sp *SinkProfile) TranslationID() uint64 { return sp.translationID }

// Source returns the canonical SrcKey this sink profile is keyed on.
func (sp *SinkProfile) Source() srckey.SrcKey { return sp.source }

// SampledCount returns the sampled-array counter.
func (sp *SinkProfile) SampledCount() uint64 { return sp.sampledCount.Load() }

// UnsampledCount returns the unsampled-array counter.
func (sp *SinkProfile) UnsampledCount() uint64 { return sp.unsampledCount.Load() }

// ArrayKindHist returns a snapshot of the array-kind histogram, indexed by
// kind/2 (spec §4.7 "kind halved").
func (sp *SinkProfile) ArrayKindHist() [numArrayKindSlots]uint64 {
	var out [numArrayKindSlots]uint64
	for i := range sp.arrayKindHist {
		out[i] = sp.arrayKindHist[i].Load()
	}
	return out
}

// KeyTypeHist returns a snapshot of the key-type histogram, indexed by
// kind.DataType.
func (sp *SinkProfile) KeyTypeHist() [256]uint64 {
	var out [256]uint64
	for i := range sp.keyTypeHist {
		out[i] = sp.keyTypeHist[i].Load()
	}
	return out
}

// ValueTypeHist returns a snapshot of the value-type histogram.
func (sp *SinkProfile) ValueTypeHist() [256]uint64 {
	var out [256]uint64
	for i := range sp.valueTypeHist {
		out[i] = sp.valueTypeHist[i].Load()
	}
	return out
}

// Sources returns a snapshot of the contributing-LoggingProfile counter
// map.
func (sp *SinkProfile) Sources() map[*LoggingProfile]uint64 { return sp.sources.Snapshot() }

// Reduce merges other into sp, for accumulating per-thread profiles
// before export (spec §4.7 "Merging").
func (sp *SinkProfile) Reduce(other *SinkProfile) {
	for i := range sp.arrayKindHist {
		sp.arrayKindHist[i].Add(other.arrayKindHist[i].Load())
	}
	for i := range sp.keyTypeHist {
		sp.keyTypeHist[i].Add(other.keyTypeHist[i].Load())
	}
	for i := range sp.valueTypeHist {
		sp.valueTypeHist[i].Add(other.valueTypeHist[i].Load())
	}
	sp.sampledCount.Add(other.sampledCount.Load())
	sp.unsampledCount.Add(other.unsampledCount.Load())
	for lp, count := range other.sources.Snapshot() {
		for i := uint64(0); i < count; i++ {
			sp.sources.Increment(lp)
		}
	}
}

// SinkKey identifies a SinkTable entry: translation id plus canonical
// source SrcKey.
type SinkKey struct {
	TranslationID uint64
	Source        srckey.SrcKey
}

func hashSinkKey(k SinkKey) uint64 {
	return k.TranslationID*31 ^ k.Source.Hash()
}

// SinkTable is the Sink Profile Table (C7).
type SinkTable struct {
	logger   log.Logger
	gate     *gate.Gate
	profiles *shardedMap[SinkKey, *SinkProfile]
}

// NewSinkTable builds an empty Sink Profile Table.
func NewSinkTable(g *gate.Gate, logger log.Logger) *SinkTable {
	return &SinkTable{
		logger:   logger,
		gate:     g,
		profiles: newShardedMap[SinkKey, *SinkProfile](hashSinkKey),
	}
}

// GetSinkProfile implements getSinkProfile(translationId, srcKey), the
// same pattern as SourceTable.GetProfile (spec §4.7).
func (st *SinkTable) GetSinkProfile(translationID uint64, raw srckey.SrcKey) *SinkProfile {
	if !raw.Valid() {
		return nil
	}
	sk := raw.Canonical()
	key := SinkKey{TranslationID: translationID, Source: sk}

	if sp, ok := st.profiles.Load(key); ok {
		return sp
	}

	started, leave := st.gate.Enter()
	defer leave()
	if started {
		return nil
	}

	sp, _ := st.profiles.LoadOrStore(key, func() *SinkProfile {
		return newSinkProfile(translationID, sk)
	})
	return sp
}

// Snapshot returns every registered SinkProfile keyed by SinkKey.
func (st *SinkTable) Snapshot() map[SinkKey]*SinkProfile { return st.profiles.Snapshot() }
