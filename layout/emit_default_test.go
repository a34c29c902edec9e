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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/bespokearray/jit"
)

func TestConcreteLayoutEmitDefaults(t *testing.T) {
	b := jit.NewRecordingBuilder()
	c := ConcreteLayout{Name: "PackedVec"}

	arr, key := jit.NewValue(1), jit.NewValue(2)
	c.EmitGet(b, arr, key, jit.NewTarget(9))
	require.Len(t, b.Calls, 1)
	require.False(t, b.Calls[0].Virtual)
	require.Equal(t, "PackedVec::get", b.Calls[0].Op)
	require.Len(t, b.Guards, 1, "emitGet must guard a missing key")
}

func TestConcreteLayoutPuntsOnSetAndAppend(t *testing.T) {
	b := jit.NewRecordingBuilder()
	c := ConcreteLayout{Name: "PackedVec"}

	v := c.EmitSet(b, jit.NewValue(1), jit.NewValue(2), jit.NewValue(3))
	require.False(t, v.IsValid())
	require.NotEmpty(t, b.Punted)

	b2 := jit.NewRecordingBuilder()
	v2 := c.EmitAppend(b2, jit.NewValue(1), jit.NewValue(2))
	require.False(t, v2.IsValid())
	require.NotEmpty(t, b2.Punted)
}

func TestAbstractLayoutEmitsVirtualDispatch(t *testing.T) {
	b := jit.NewRecordingBuilder()
	a := AbstractLayout{}

	a.EmitSet(b, jit.NewValue(1), jit.NewValue(2), jit.NewValue(3))
	require.Len(t, b.Calls, 1)
	require.True(t, b.Calls[0].Virtual)
	require.Equal(t, "setMove", b.Calls[0].Op)

	b2 := jit.NewRecordingBuilder()
	a.EmitIterGetKey(b2, jit.NewValue(1), jit.NewValue(2))
	require.True(t, b2.Calls[0].Virtual)
	require.Equal(t, "keyAt", b2.Calls[0].Op)
}

func TestLayoutEmitSelectsDefaultByConcreteness(t *testing.T) {
	r := NewRegistry()
	top, _ := r.Register(0, "Top", nil, LayoutOptions{Liveable: true})
	vanilla, _ := r.Register(1, "Vanilla", []*Layout{top}, LayoutOptions{Concrete: true, Vtable: &OpVtable{}})

	_, isConcrete := vanilla.Emit().(ConcreteLayout)
	require.True(t, isConcrete)

	_, isAbstract := top.Emit().(AbstractLayout)
	require.True(t, isAbstract)
}
