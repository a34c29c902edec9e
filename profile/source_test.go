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
	"sync"
	"testing"

	log "github.com/erigontech/erigon-lib/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/bespokearray/eventkey"
	"github.com/erigontech/bespokearray/gate"
	"github.com/erigontech/bespokearray/kind"
	"github.com/erigontech/bespokearray/srckey"
)

func testSourceTable() (*gate.Gate, *SourceTable) {
	g := &gate.Gate{}
	return g, NewSourceTable(g, log.Root(), nil, nil)
}

func TestGetProfileRejectsInvalidSrcKey(t *testing.T) {
	_, st := testSourceTable()
	require.Nil(t, st.GetProfile(srckey.Empty))
}

func TestGetProfileCanonicalizesResumeMode(t *testing.T) {
	_, st := testSourceTable()
	base := srckey.SrcKey{Func: 7, Offset: 42}
	yield := base
	yield.Resume = srckey.ResumeYield

	lp1 := st.GetProfile(base)
	lp2 := st.GetProfile(yield)
	require.Same(t, lp1, lp2, "same (Func, Offset) with different resume modes must share one profile")
}

func TestGetProfileDenylist(t *testing.T) {
	g := &gate.Gate{}
	sk := srckey.SrcKey{Func: 1, Offset: 1}
	st := NewSourceTable(g, log.Root(), nil, func(k srckey.SrcKey) bool { return k.Func == 1 })
	require.Nil(t, st.GetProfile(sk))
}

func TestGetProfileNilAfterExportStarts(t *testing.T) {
	g, st := testSourceTable()
	sk := srckey.SrcKey{Func: 9, Offset: 1}
	require.NotNil(t, st.GetProfile(sk))

	g.StartExport()
	require.Nil(t, st.GetProfile(srckey.SrcKey{Func: 10, Offset: 1}), "no new profile may be created once export has started")
}

// TestScenarioS4 is the literal scenario: one source at SrcKey X logs 1000
// Get events against one sink at SrcKey Y with key=[i8:1], all from a single
// goroutine, then 1000 more spread across 8 goroutines — the event count
// must equal 2000 regardless of how the writers were scheduled.
func TestScenarioS4(t *testing.T) {
	g, st := testSourceTable()
	x := srckey.SrcKey{Func: 100, Offset: 5}
	y := srckey.SrcKey{Func: 200, Offset: 9}

	lp := st.GetProfile(x)
	require.NotNil(t, lp)

	for i := 0; i < 1000; i++ {
		lp.LogEvent(g, y, eventkey.OpGet, eventkey.IntArg(1), eventkey.NoArg, kind.DTUninit)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 125; i++ {
				lp.LogEvent(g, y, eventkey.OpGet, eventkey.IntArg(1), eventkey.NoArg, kind.DTUninit)
			}
		}()
	}
	wg.Wait()

	ek := eventkey.Encode(eventkey.OpGet, eventkey.IntArg(1), eventkey.NoArg, kind.DTUninit)
	require.Equal(t, uint64(2000), lp.EventCount(y, ek))
}

// TestScenarioS5 is the literal scenario: once export has started (here on
// another goroutine), getProfile(srcKey) returns nil for a SrcKey that has
// no profile yet, so no new entry is created.
func TestScenarioS5(t *testing.T) {
	g, st := testSourceTable()
	sk := srckey.SrcKey{Func: 55, Offset: 3}

	lp := st.GetProfile(sk)
	require.NotNil(t, lp)

	var wg sync.WaitGroup
	start := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		g.StartExport()
	}()
	close(start)
	wg.Wait()

	require.Nil(t, st.GetProfile(srckey.SrcKey{Func: 56, Offset: 1}))
	require.True(t, g.Started())
}

func TestLogEventNoopAfterExportStarts(t *testing.T) {
	g, st := testSourceTable()
	sk := srckey.SrcKey{Func: 1, Offset: 1}
	y := srckey.SrcKey{Func: 2, Offset: 2}
	lp := st.GetProfile(sk)

	lp.LogEvent(g, y, eventkey.OpGet, eventkey.IntArg(1), eventkey.NoArg, kind.DTUninit)
	g.StartExport()
	lp.LogEvent(g, y, eventkey.OpGet, eventkey.IntArg(1), eventkey.NoArg, kind.DTUninit)

	ek := eventkey.Encode(eventkey.OpGet, eventkey.IntArg(1), eventkey.NoArg, kind.DTUninit)
	require.Equal(t, uint64(1), lp.EventCount(y, ek))
}

func TestLogEventReleaseAlwaysUsesEmptySink(t *testing.T) {
	g, st := testSourceTable()
	sk := srckey.SrcKey{Func: 1, Offset: 1}
	y := srckey.SrcKey{Func: 2, Offset: 2}
	lp := st.GetProfile(sk)

	lp.LogEvent(g, y, eventkey.OpRelease, eventkey.NoArg, eventkey.NoArg, kind.DTUninit)
	ek := eventkey.Encode(eventkey.OpRelease, eventkey.NoArg, eventkey.NoArg, kind.DTUninit)
	require.Equal(t, uint64(1), lp.EventCount(srckey.Empty, ek))
	require.Equal(t, uint64(0), lp.EventCount(y, ek))
}

func TestLogEntryTypesTransitions(t *testing.T) {
	g, st := testSourceTable()
	sk := srckey.SrcKey{Func: 1, Offset: 1}
	lp := st.GetProfile(sk)

	lp.LogEntryTypes(g, EntryType(1), EntryType(2))
	lp.LogEntryTypes(g, EntryType(1), EntryType(2))
	lp.LogEntryTypes(g, EntryType(2), EntryType(2))

	snap := lp.EntryTransitions()
	require.Equal(t, uint64(2), snap[EntryTransition{Before: 1, After: 2}])
	require.Equal(t, uint64(1), snap[EntryTransition{Before: 2, After: 2}])
}

func TestMarkEmittedAndSampled(t *testing.T) {
	_, st := testSourceTable()
	lp := st.GetProfile(srckey.SrcKey{Func: 1, Offset: 1})
	lp.MarkEmitted()
	lp.MarkEmitted()
	lp.MarkSampled()
	require.Equal(t, uint64(2), lp.LoggingArraysEmitted())
	require.Equal(t, uint64(1), lp.SampleCount())
}
