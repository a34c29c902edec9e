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

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// lsJSON is the on-disk shape of an end-to-end lattice scenario, loaded
// the way tests.StateTest loads stJSON: a JSON fixture drives a generic
// test runner instead of one hand-written test per scenario.
type lsJSON struct {
	Nodes []struct {
		Index       Index    `json:"index"`
		Description string   `json:"description"`
		Parents     []string `json:"parents"`
		Liveable    bool     `json:"liveable"`
		Concrete    bool     `json:"concrete"`
	} `json:"nodes"`

	ExpectRegisterError string `json:"expectRegisterError"`
	ExpectFinalizeError bool   `json:"expectFinalizeError"`

	AssertLessEqual []struct {
		A    string `json:"a"`
		B    string `json:"b"`
		Want bool   `json:"want"`
	} `json:"assertLessEqual"`

	AssertJoin []struct {
		A    string `json:"a"`
		B    string `json:"b"`
		Want string `json:"want"`
	} `json:"assertJoin"`

	AssertLeastLiveableAncestor []struct {
		A    string `json:"a"`
		Want string `json:"want"`
	} `json:"assertLeastLiveableAncestor"`
}

func loadLatticeScenario(t *testing.T, path string) lsJSON {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var ls lsJSON
	require.NoError(t, json.Unmarshal(data, &ls))
	return ls
}

func runLatticeScenario(t *testing.T, ls lsJSON) {
	r := NewRegistry()
	byDesc := map[string]*Layout{}

	var registerErr error
	for _, n := range ls.Nodes {
		var parents []*Layout
		for _, p := range n.Parents {
			parents = append(parents, byDesc[p])
		}
		opts := LayoutOptions{Liveable: n.Liveable, Concrete: n.Concrete}
		if n.Concrete {
			opts.Vtable = &OpVtable{}
		}
		l, err := r.Register(n.Index, n.Description, parents, opts)
		if err != nil {
			registerErr = err
			break
		}
		byDesc[n.Description] = l
	}

	if ls.ExpectRegisterError != "" {
		require.Error(t, registerErr)
		return
	}
	require.NoError(t, registerErr)

	err := r.FinalizeHierarchy()
	if ls.ExpectFinalizeError {
		require.Error(t, err)
		return
	}
	require.NoError(t, err)

	for _, c := range ls.AssertLessEqual {
		require.Equal(t, c.Want, r.LessEqual(byDesc[c.A], byDesc[c.B]), "LessEqual(%s, %s)", c.A, c.B)
	}
	for _, c := range ls.AssertJoin {
		require.Equal(t, byDesc[c.Want], r.Join(byDesc[c.A], byDesc[c.B]), "Join(%s, %s)", c.A, c.B)
	}
	for _, c := range ls.AssertLeastLiveableAncestor {
		require.Equal(t, byDesc[c.Want], r.LeastLiveableAncestor(byDesc[c.A]), "LeastLiveableAncestor(%s)", c.A)
	}
}

func TestLatticeScenarios(t *testing.T) {
	matches, err := filepath.Glob("testdata/scenarios/s1_*.json")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, path := range matches {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			runLatticeScenario(t, loadLatticeScenario(t, path))
		})
	}
}

type reserveScenario struct {
	ReserveIndices             []uint32 `json:"reserveIndices"`
	AssertBlockAlignment       uint32   `json:"assertBlockAlignment"`
	AssertDeltaBetweenFirstTwo uint32   `json:"assertDeltaBetweenFirstTwo"`
}

func TestIndexReservationScenario(t *testing.T) {
	data, err := os.ReadFile("testdata/scenarios/s2_reserve_indices.json")
	require.NoError(t, err)
	var sc reserveScenario
	require.NoError(t, json.Unmarshal(data, &sc))

	r := NewRegistry()
	var got []Index
	for _, n := range sc.ReserveIndices {
		idx, err := r.ReserveIndices(n)
		require.NoError(t, err)
		got = append(got, idx)
	}
	for _, idx := range got {
		require.Equal(t, uint32(0), uint32(idx)%sc.AssertBlockAlignment)
	}
	require.Len(t, got, 2)
	require.Equal(t, sc.AssertDeltaBetweenFirstTwo, uint32(got[1])-uint32(got[0]))
}
