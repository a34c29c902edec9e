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

package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/bespokearray/eventkey"
	"github.com/erigontech/bespokearray/gate"
	"github.com/erigontech/bespokearray/kind"
	"github.com/erigontech/bespokearray/profile"
	"github.com/erigontech/bespokearray/srckey"
)

func TestSortDescendingOrdersByWeightThenTiebreak(t *testing.T) {
	items := []weighted[string]{
		{weight: 1, tiebreak: 2, payload: "low-a"},
		{weight: 1, tiebreak: 1, payload: "low-b"},
		{weight: 5, tiebreak: 9, payload: "high"},
	}
	out := sortDescending(items)
	require.Equal(t, []string{"high", "low-b", "low-a"}, out)
}

// TestScenarioS4Report builds the S4 fixture (1000 Get events, key=[i8:1],
// one sink) through a real SourceTable and asserts the aggregated report
// shows one read operation with the expected total.
func TestScenarioS4Report(t *testing.T) {
	g := &gate.Gate{}
	st := profile.NewSourceTable(g, nil, nil, nil)
	x := srckey.SrcKey{Func: 100, Offset: 5}
	y := srckey.SrcKey{Func: 200, Offset: 9}

	lp := st.GetProfile(x)
	for i := 0; i < 1000; i++ {
		lp.LogEvent(g, y, eventkey.OpGet, eventkey.IntArg(1), eventkey.NoArg, kind.DTUninit)
	}
	lp.MarkEmitted()
	lp.MarkSampled()

	sr := buildSourceReport(x, lp)
	require.Equal(t, uint64(1000), sr.readCount)
	require.Equal(t, uint64(0), sr.writeCount)
	require.Equal(t, 1, sr.distinctSinks)
	require.Len(t, sr.reads, 1)
	require.Equal(t, eventkey.OpGet, sr.reads[0].op)
	require.Equal(t, uint64(1000), sr.reads[0].total)
}

func TestBuildSourceReportSeparatesReadsAndWrites(t *testing.T) {
	g := &gate.Gate{}
	st := profile.NewSourceTable(g, nil, nil, nil)
	sk := srckey.SrcKey{Func: 1, Offset: 1}
	sink := srckey.SrcKey{Func: 2, Offset: 1}
	lp := st.GetProfile(sk)

	lp.LogEvent(g, sink, eventkey.OpGet, eventkey.IntArg(1), eventkey.NoArg, kind.DTUninit)
	lp.LogEvent(g, sink, eventkey.OpSetMove, eventkey.IntArg(1), eventkey.IntArg(2), kind.DTInt64)
	lp.LogEvent(g, sink, eventkey.OpSetMove, eventkey.IntArg(1), eventkey.IntArg(2), kind.DTInt64)

	sr := buildSourceReport(sk, lp)
	require.Equal(t, uint64(1), sr.readCount)
	require.Equal(t, uint64(2), sr.writeCount)
	require.Len(t, sr.writes, 1)
	require.Equal(t, eventkey.OpSetMove, sr.writes[0].op)
	require.Equal(t, uint64(2), sr.writes[0].total)
}

func TestBuildSourceReportEscalationsExcludeSelfTransitions(t *testing.T) {
	g := &gate.Gate{}
	st := profile.NewSourceTable(g, nil, nil, nil)
	sk := srckey.SrcKey{Func: 1, Offset: 1}
	lp := st.GetProfile(sk)

	lp.LogEntryTypes(g, profile.EntryType(1), profile.EntryType(1))
	lp.LogEntryTypes(g, profile.EntryType(1), profile.EntryType(2))

	sr := buildSourceReport(sk, lp)
	require.Len(t, sr.escalations, 1)
	require.Equal(t, profile.EntryType(1), sr.escalations[0].before)
	require.Equal(t, profile.EntryType(2), sr.escalations[0].after)

	var total uint64
	for _, s := range sr.states {
		total += s.count
	}
	require.Equal(t, uint64(2), total, "every transition, self or not, contributes to its post-image state total")
}

func TestBuildSinkReportHistogramsSkipZeroSlots(t *testing.T) {
	g := &gate.Gate{}
	st := profile.NewSinkTable(g, nil)
	sk := srckey.SrcKey{Func: 1, Offset: 1}
	sp := st.GetSinkProfile(1, sk)

	sp.Update(profile.SinkObservation{Kind: kind.VanillaKind})
	sp.Update(profile.SinkObservation{
		Kind: kind.LoggingShimKind, IsShim: true,
		KeyDT: kind.DTInt64, ValueShape: profile.ValueShapeMonotype, ValueDT: kind.DTStr,
	})

	skr := buildSinkReport(profile.SinkKey{TranslationID: 1, Source: sk}, sp)
	require.Len(t, skr.arrayKinds, 2)
	require.Len(t, skr.keyTypes, 1)
	require.Len(t, skr.valueTypes, 1)
	require.Equal(t, "Int", skr.keyTypes[0].label)
	require.Equal(t, "Str", skr.valueTypes[0].label)
}

func TestWriteReportFormat(t *testing.T) {
	g := &gate.Gate{}
	sourceTable := profile.NewSourceTable(g, nil, nil, nil)
	sinkTable := profile.NewSinkTable(g, nil)

	sk := srckey.SrcKey{Func: 1, Offset: 1}
	sinkKey := srckey.SrcKey{Func: 2, Offset: 2}
	lp := sourceTable.GetProfile(sk)
	lp.LogEvent(g, sinkKey, eventkey.OpGet, eventkey.IntArg(1), eventkey.NoArg, kind.DTUninit)
	lp.MarkEmitted()
	lp.MarkSampled()

	sp := sinkTable.GetSinkProfile(1, sinkKey)
	sp.Update(profile.SinkObservation{Kind: kind.VanillaKind})

	sr := buildSourceReport(sk, lp)
	skr := buildSinkReport(profile.SinkKey{TranslationID: 1, Source: sinkKey}, sp)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, []sourceReport{sr}, []sinkReport{skr}))
	out := buf.String()

	require.True(t, strings.HasPrefix(out, "Sources\n=======\n"))
	require.Contains(t, out, "func#1")
	require.Contains(t, out, "Read operations:")
	require.Contains(t, out, "Entry Type Escalations:")
	require.Contains(t, out, "----------------------------------------")
	require.Contains(t, out, "Sinks\n=====\n")
	require.Contains(t, out, "Array Type Counts:")
	require.Contains(t, out, "     1x")
}
