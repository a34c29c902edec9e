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

package jit

// Call records one EmitCall or EmitVirtualDispatch invocation.
type Call struct {
	Virtual bool
	Op      string
	Arr     Value
	Args    []Value
}

// RecordingBuilder is a Builder fake that records every call instead of
// emitting real IR, used only in tests to assert which emission path a
// layout's default Emitter took (spec §4.4 defaults).
type RecordingBuilder struct {
	Calls      []Call
	Guards     []struct {
		Cond   Value
		Target Target
	}
	Punted string
	nextID int
}

// NewRecordingBuilder returns a ready-to-use RecordingBuilder.
func NewRecordingBuilder() *RecordingBuilder { return &RecordingBuilder{nextID: 1} }

func (b *RecordingBuilder) fresh() Value {
	v := NewValue(b.nextID)
	b.nextID++
	return v
}

// EmitCall implements Builder.
func (b *RecordingBuilder) EmitCall(fn string, args ...Value) Value {
	b.Calls = append(b.Calls, Call{Op: fn, Args: args})
	return b.fresh()
}

// EmitGuard implements Builder.
func (b *RecordingBuilder) EmitGuard(cond Value, taken Target) {
	b.Guards = append(b.Guards, struct {
		Cond   Value
		Target Target
	}{Cond: cond, Target: taken})
}

// EmitVirtualDispatch implements Builder.
func (b *RecordingBuilder) EmitVirtualDispatch(op string, arr Value, args ...Value) Value {
	b.Calls = append(b.Calls, Call{Virtual: true, Op: op, Arr: arr, Args: args})
	return b.fresh()
}

// Punt implements Builder.
func (b *RecordingBuilder) Punt(reason string) { b.Punted = reason }

var _ Builder = (*RecordingBuilder)(nil)
