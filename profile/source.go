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

// Package profile implements the Source Profile Table (C6) and Sink
// Profile Table (C7): the per-location profiles the logging shim and the
// JIT's sink call sites populate, guarded throughout by the shared export
// gate.
package profile

import (
	"sync/atomic"

	log "github.com/erigontech/erigon-lib/log/v3"

	"github.com/erigontech/bespokearray/eventkey"
	"github.com/erigontech/bespokearray/gate"
	"github.com/erigontech/bespokearray/kind"
	"github.com/erigontech/bespokearray/srckey"
)

// EntryType is a compact 16-bit summary of an array's entry-type shape,
// used only as one half of a monotypeEvents transition pair. The
// concrete bit layout is an implementation choice left to the allocation
// site; the table only ever treats it as an opaque comparable key.
type EntryType uint16

// EntryTransition is the (before, after) pair key monotypeEvents is keyed
// on.
type EntryTransition struct {
	Before EntryType
	After  EntryType
}

func hashEntryTransition(t EntryTransition) uint64 {
	return uint64(t.Before)<<16 | uint64(t.After)
}

// EventCompositeKey is the (sink SrcKey, EventKey) pair events is keyed on.
type EventCompositeKey struct {
	Sink srckey.SrcKey
	Key  eventkey.Key
}

func hashEventCompositeKey(k EventCompositeKey) uint64 {
	return k.Sink.Hash()*1099511628211 ^ uint64(k.Key)
}

// LoggingProfile is the per-canonical-SrcKey profile C6 maintains (spec
// §3). One is created lazily the first time an allocation site is seen.
type LoggingProfile struct {
	source srckey.SrcKey

	events         *counterMap[EventCompositeKey]
	monotypeEvents *counterMap[EntryTransition]

	loggingArraysEmitted atomic.Uint64
	sampleCount          atomic.Uint64

	templates *TemplateSet // nil until a shim/vanilla pair has been built for this source
}

// Source returns the canonical SrcKey this profile is keyed on.
func (lp *LoggingProfile) Source() srckey.SrcKey { return lp.source }

// EventCount returns how many times (sink, key) has been logged.
func (lp *LoggingProfile) EventCount(sink srckey.SrcKey, key eventkey.Key) uint64 {
	snap := lp.events.Snapshot()
	return snap[EventCompositeKey{Sink: sink, Key: key}]
}

// Events snapshots the full (sink, EventKey) -> count table, for export
// aggregation (spec §4.8 step 3).
func (lp *LoggingProfile) Events() map[EventCompositeKey]uint64 { return lp.events.Snapshot() }

// EntryTransitions snapshots the full (before, after) -> count table.
func (lp *LoggingProfile) EntryTransitions() map[EntryTransition]uint64 {
	return lp.monotypeEvents.Snapshot()
}

// LoggingArraysEmitted returns the count of logging arrays this source has
// emitted.
func (lp *LoggingProfile) LoggingArraysEmitted() uint64 { return lp.loggingArraysEmitted.Load() }

// SampleCount returns the count of sampled allocations for this source.
func (lp *LoggingProfile) SampleCount() uint64 { return lp.sampleCount.Load() }

func newLoggingProfile(source srckey.SrcKey) *LoggingProfile {
	return &LoggingProfile{
		source:         source,
		events:         newCounterMap[EventCompositeKey](hashEventCompositeKey),
		monotypeEvents: newCounterMap[EntryTransition](hashEntryTransition),
	}
}

// denylisted instruction patterns never get a profile (spec §4.6 step 1):
// array literals destined only for a type-structure test are known never
// to benefit from a specialized layout.
type denylistFunc func(srckey.SrcKey) bool

// SourceTable is the Source Profile Table (C6). Construction happens
// under the shared export gate, same as every profile mutation.
type SourceTable struct {
	logger    log.Logger
	gate      *gate.Gate
	profiles  *shardedMap[srckey.SrcKey, *LoggingProfile]
	templates *TemplateCache
	denylist  denylistFunc
}

// NewSourceTable builds an empty Source Profile Table. denylist may be nil
// (nothing denied beyond the baseline SrcKey.Valid() check).
func NewSourceTable(g *gate.Gate, logger log.Logger, templates *TemplateCache, denylist denylistFunc) *SourceTable {
	if denylist == nil {
		denylist = func(srckey.SrcKey) bool { return false }
	}
	return &SourceTable{
		logger:    logger,
		gate:      g,
		profiles:  newShardedMap[srckey.SrcKey, *LoggingProfile](srckey.SrcKey.Hash),
		templates: templates,
		denylist:  denylist,
	}
}

// GetProfile implements getProfile(srcKey) (spec §4.6): canonicalize,
// reject invalid/denylisted keys, optimistic read, then gate-checked lazy
// construction. Returns nil once export has started or the key is
// rejected — both are silent, non-error outcomes (spec §7).
func (st *SourceTable) GetProfile(raw srckey.SrcKey) *LoggingProfile {
	if !raw.Valid() {
		return nil
	}
	sk := raw.Canonical()
	if st.denylist(sk) {
		return nil
	}

	if lp, ok := st.profiles.Load(sk); ok {
		return lp
	}

	started, leave := st.gate.Enter()
	defer leave()
	if started {
		return nil
	}

	lp, _ := st.profiles.LoadOrStore(sk, func() *LoggingProfile {
		return newLoggingProfile(sk)
	})
	return lp
}

// Snapshot returns every registered LoggingProfile keyed by its canonical
// SrcKey. Intended to be called only once the export gate has closed
// (spec §4.8 step 3: "snapshot source and sink tables").
func (st *SourceTable) Snapshot() map[srckey.SrcKey]*LoggingProfile { return st.profiles.Snapshot() }

// LogEvent implements logEvent(op, key, value) (spec §4.6): gate-checked,
// packs the EventKey, and increments the counter for (currentSink, key).
// currentSink resolves the VM register anchor; pass srckey.Empty when it
// is invalid or the operation is release-specific (always logged with an
// empty sink, since it may execute outside any frame).
func (lp *LoggingProfile) LogEvent(g *gate.Gate, currentSink srckey.SrcKey, op eventkey.Op, key, val eventkey.Arg, valueDT kind.DataType) {
	started, leave := g.Enter()
	defer leave()
	if started {
		return
	}
	ek := eventkey.Encode(op, key, val, valueDT)
	sink := currentSink
	if op == eventkey.OpReleaseUncounted || op == eventkey.OpRelease {
		sink = srckey.Empty
	}
	lp.events.Increment(EventCompositeKey{Sink: sink, Key: ek})
}

// LogEntryTypes implements logEntryTypes(before, after) (spec §4.6): same
// gate, same concurrent-map-of-pairs pattern as LogEvent.
func (lp *LoggingProfile) LogEntryTypes(g *gate.Gate, before, after EntryType) {
	started, leave := g.Enter()
	defer leave()
	if started {
		return
	}
	lp.monotypeEvents.Increment(EntryTransition{Before: before, After: after})
}

// MarkEmitted records that a logging array backed by this profile was
// just allocated — ambient bookkeeping feeding profileWeight at export
// (spec §4.8 step 3).
func (lp *LoggingProfile) MarkEmitted() { lp.loggingArraysEmitted.Add(1) }

// MarkSampled records a sampled allocation.
func (lp *LoggingProfile) MarkSampled() { lp.sampleCount.Add(1) }
