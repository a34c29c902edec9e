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

	"github.com/erigontech/bespokearray/gate"
	"github.com/erigontech/bespokearray/kind"
	"github.com/erigontech/bespokearray/srckey"
)

func testSinkTable() (*gate.Gate, *SinkTable) {
	g := &gate.Gate{}
	return g, NewSinkTable(g, log.Root())
}

func TestGetSinkProfileRejectsInvalidSrcKey(t *testing.T) {
	_, st := testSinkTable()
	require.Nil(t, st.GetSinkProfile(1, srckey.Empty))
}

func TestGetSinkProfileNilAfterExportStarts(t *testing.T) {
	g, st := testSinkTable()
	sk := srckey.SrcKey{Func: 1, Offset: 1}
	require.NotNil(t, st.GetSinkProfile(1, sk))
	g.StartExport()
	require.Nil(t, st.GetSinkProfile(1, srckey.SrcKey{Func: 2, Offset: 1}))
}

func TestGetSinkProfileSameKeySameInstance(t *testing.T) {
	_, st := testSinkTable()
	sk := srckey.SrcKey{Func: 1, Offset: 1}
	sp1 := st.GetSinkProfile(7, sk)
	sp2 := st.GetSinkProfile(7, sk)
	require.Same(t, sp1, sp2)

	sp3 := st.GetSinkProfile(8, sk)
	require.NotSame(t, sp1, sp3, "different translation IDs must not share a profile")
}

// TestScenarioS6 is the literal scenario: one sink receives 300 vanilla
// arrays, 200 logging-shim arrays, and 100 other-bespoke (PackedVec) arrays;
// assert the resulting sampledCount/unsampledCount split and per-kind
// histogram match exactly.
func TestScenarioS6(t *testing.T) {
	_, st := testSinkTable()
	sk := srckey.SrcKey{Func: 1, Offset: 1}
	sp := st.GetSinkProfile(1, sk)

	var wg sync.WaitGroup
	observe := func(n int, obs SinkObservation) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				sp.Update(obs)
			}
		}()
	}

	observe(300, SinkObservation{Kind: kind.VanillaKind, IsShim: false})
	observe(200, SinkObservation{
		Kind: kind.LoggingShimKind, IsShim: true,
		KeyDT: kind.DTInt64, ValueShape: ValueShapeMonotype, ValueDT: kind.DTInt64,
	})
	observe(100, SinkObservation{Kind: kind.PackedVecKind, IsShim: false})
	wg.Wait()

	require.Equal(t, uint64(200), sp.SampledCount(), "only the shimmed arrays count as sampled")
	require.Equal(t, uint64(400), sp.UnsampledCount(), "vanilla and unshimmed, unsampled PackedVec arrays both count as unsampled")

	hist := sp.ArrayKindHist()
	require.Equal(t, uint64(300), hist[kind.VanillaKind/2])
	require.Equal(t, uint64(200), hist[kind.LoggingShimKind/2])
	require.Equal(t, uint64(100), hist[kind.PackedVecKind/2])

	keyHist := sp.KeyTypeHist()
	require.Equal(t, uint64(200), keyHist[kind.DTInt64])

	valHist := sp.ValueTypeHist()
	require.Equal(t, uint64(200), valHist[kind.DTInt64])
}

func TestSinkProfileUnsampledVanillaWithoutSampling(t *testing.T) {
	_, st := testSinkTable()
	sp := st.GetSinkProfile(1, srckey.SrcKey{Func: 1, Offset: 1})

	sp.Update(SinkObservation{Kind: kind.PackedVecKind, IsShim: false, IsSampled: false})
	require.Equal(t, uint64(0), sp.SampledCount())
	require.Equal(t, uint64(1), sp.UnsampledCount())
}

func TestSinkProfileShimEmptyAndAnyShapeSkipValueHist(t *testing.T) {
	_, st := testSinkTable()
	sp := st.GetSinkProfile(1, srckey.SrcKey{Func: 1, Offset: 1})

	sp.Update(SinkObservation{Kind: kind.LoggingShimKind, IsShim: true, KeyDT: kind.DTInt64, ValueShape: ValueShapeEmpty})
	sp.Update(SinkObservation{Kind: kind.LoggingShimKind, IsShim: true, KeyDT: kind.DTInt64, ValueShape: ValueShapeAny})

	valHist := sp.ValueTypeHist()
	var total uint64
	for _, v := range valHist {
		total += v
	}
	require.Equal(t, uint64(0), total, "empty/mixed shapes attribute no monotype value-datatype slot")
}

func TestSinkProfileTracksBackPointerSources(t *testing.T) {
	_, sourceTable := testSourceTable()
	lp1 := sourceTable.GetProfile(srckey.SrcKey{Func: 1, Offset: 1})
	lp2 := sourceTable.GetProfile(srckey.SrcKey{Func: 2, Offset: 1})

	_, st := testSinkTable()
	sp := st.GetSinkProfile(1, srckey.SrcKey{Func: 9, Offset: 1})

	sp.Update(SinkObservation{Kind: kind.LoggingShimKind, IsShim: true, KeyDT: kind.DTInt64, ValueShape: ValueShapeEmpty, BackPointer: lp1})
	sp.Update(SinkObservation{Kind: kind.LoggingShimKind, IsShim: true, KeyDT: kind.DTInt64, ValueShape: ValueShapeEmpty, BackPointer: lp1})
	sp.Update(SinkObservation{Kind: kind.LoggingShimKind, IsShim: true, KeyDT: kind.DTInt64, ValueShape: ValueShapeEmpty, BackPointer: lp2})

	snap := sp.Sources()
	require.Equal(t, uint64(2), snap[lp1])
	require.Equal(t, uint64(1), snap[lp2])
}

func TestSinkProfileReduceMerges(t *testing.T) {
	_, st := testSinkTable()
	a := st.GetSinkProfile(1, srckey.SrcKey{Func: 1, Offset: 1})
	b := newSinkProfile(1, srckey.SrcKey{Func: 1, Offset: 1})

	a.Update(SinkObservation{Kind: kind.VanillaKind})
	b.Update(SinkObservation{Kind: kind.VanillaKind})
	b.Update(SinkObservation{Kind: kind.PackedVecKind, IsSampled: true})

	a.Reduce(b)
	require.Equal(t, uint64(1), a.SampledCount(), "only b's sampled-but-unshimmed PackedVec observation counts as sampled")
	require.Equal(t, uint64(2), a.UnsampledCount(), "both plain vanilla observations count as unsampled")
	hist := a.ArrayKindHist()
	require.Equal(t, uint64(2), hist[kind.VanillaKind/2])
	require.Equal(t, uint64(1), hist[kind.PackedVecKind/2])
}
