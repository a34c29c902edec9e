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

import "github.com/erigontech/bespokearray/jit"

// Emitter is the JIT emission vtable (C4): a parallel set of virtual hooks
// to the operation vtable, expressed as methods rather than function
// pointers because most layouts share one default implementation. Go has
// no class inheritance, so the two defaults below (ConcreteLayout,
// AbstractLayout) are meant to be embedded and selectively overridden by a
// layout-specific emitter struct — the same "inherit, override the
// interesting methods" shape the spec's design notes ask for (§9).
//
// Preconditions every emitter may assume without rechecking: arr belongs to
// this layout's class, and key (when present) is type-compatible with the
// array's shape. Emitters must not touch refcounts except emitSet/
// emitAppend, which consume one reference on arr and produce one on their
// result (spec §4.4).
type Emitter interface {
	EmitGet(b jit.Builder, arr jit.Value, key jit.Value, taken jit.Target) jit.Value
	EmitElem(b jit.Builder, lval jit.Value, key jit.Value, throwOnMissing bool) jit.Value
	EmitSet(b jit.Builder, arr jit.Value, key jit.Value, val jit.Value) jit.Value
	EmitAppend(b jit.Builder, arr jit.Value, val jit.Value) jit.Value
	EmitEscalateToVanilla(b jit.Builder, arr jit.Value, reason string) jit.Value

	EmitIterFirstPos(b jit.Builder, arr jit.Value) jit.Value
	EmitIterLastPos(b jit.Builder, arr jit.Value) jit.Value
	EmitIterPos(b jit.Builder, arr jit.Value, idx jit.Value) jit.Value
	EmitIterAdvancePos(b jit.Builder, arr jit.Value, pos jit.Value) jit.Value
	EmitIterElm(b jit.Builder, arr jit.Value, pos jit.Value) jit.Value
	EmitIterGetKey(b jit.Builder, arr jit.Value, elm jit.Value) jit.Value
	EmitIterGetVal(b jit.Builder, arr jit.Value, elm jit.Value) jit.Value
}

// ConcreteLayout is the default Emitter for a layout with a vtable: every
// hook dispatches unconditionally to the matching vtable entry through a
// non-virtual call, letting the JIT specialize the call site per layout.
// emitSet and emitAppend are the mandated exception — they punt by default
// because in-place mutation generally needs per-layout reasoning a generic
// default cannot do safely (spec §4.4).
type ConcreteLayout struct {
	Name string
}

func (c ConcreteLayout) EmitGet(b jit.Builder, arr, key jit.Value, taken jit.Target) jit.Value {
	v := b.EmitCall(c.Name+"::get", arr, key)
	b.EmitGuard(v, taken)
	return v
}

func (c ConcreteLayout) EmitElem(b jit.Builder, lval, key jit.Value, throwOnMissing bool) jit.Value {
	return b.EmitCall(c.Name+"::lvalAt", lval, key)
}

func (c ConcreteLayout) EmitSet(b jit.Builder, arr, key, val jit.Value) jit.Value {
	b.Punt("ConcreteLayout.EmitSet: in-place mutation needs per-layout reasoning")
	return jit.Invalid
}

func (c ConcreteLayout) EmitAppend(b jit.Builder, arr, val jit.Value) jit.Value {
	b.Punt("ConcreteLayout.EmitAppend: in-place mutation needs per-layout reasoning")
	return jit.Invalid
}

func (c ConcreteLayout) EmitEscalateToVanilla(b jit.Builder, arr jit.Value, reason string) jit.Value {
	return b.EmitCall(c.Name+"::escalateToVanilla", arr)
}

func (c ConcreteLayout) EmitIterFirstPos(b jit.Builder, arr jit.Value) jit.Value {
	return b.EmitCall(c.Name+"::iterBegin", arr)
}

func (c ConcreteLayout) EmitIterLastPos(b jit.Builder, arr jit.Value) jit.Value {
	return b.EmitCall(c.Name+"::iterLast", arr)
}

func (c ConcreteLayout) EmitIterPos(b jit.Builder, arr, idx jit.Value) jit.Value {
	return b.EmitCall(c.Name+"::iterAdvance", arr, idx)
}

func (c ConcreteLayout) EmitIterAdvancePos(b jit.Builder, arr, pos jit.Value) jit.Value {
	return b.EmitCall(c.Name+"::iterAdvance", arr, pos)
}

func (c ConcreteLayout) EmitIterElm(b jit.Builder, arr, pos jit.Value) jit.Value {
	return b.EmitCall(c.Name+"::iterElm", arr, pos)
}

func (c ConcreteLayout) EmitIterGetKey(b jit.Builder, arr, elm jit.Value) jit.Value {
	return b.EmitCall(c.Name+"::keyAt", arr, elm)
}

func (c ConcreteLayout) EmitIterGetVal(b jit.Builder, arr, elm jit.Value) jit.Value {
	return b.EmitCall(c.Name+"::valueAt", arr, elm)
}

var _ Emitter = ConcreteLayout{}

// AbstractLayout is the default Emitter for a non-concrete lattice node: it
// has no vtable of its own, so every hook emits a virtual dispatch through
// the vtable pointer the array carries at runtime rather than a
// non-virtual call (spec §4.4 "(a) emit a virtual dispatch").
type AbstractLayout struct{}

func (AbstractLayout) EmitGet(b jit.Builder, arr, key jit.Value, taken jit.Target) jit.Value {
	v := b.EmitVirtualDispatch("get", arr, key)
	b.EmitGuard(v, taken)
	return v
}

func (AbstractLayout) EmitElem(b jit.Builder, lval, key jit.Value, throwOnMissing bool) jit.Value {
	return b.EmitVirtualDispatch("lvalAt", lval, key)
}

func (AbstractLayout) EmitSet(b jit.Builder, arr, key, val jit.Value) jit.Value {
	return b.EmitVirtualDispatch("setMove", arr, key, val)
}

func (AbstractLayout) EmitAppend(b jit.Builder, arr, val jit.Value) jit.Value {
	return b.EmitVirtualDispatch("appendMove", arr, val)
}

func (AbstractLayout) EmitEscalateToVanilla(b jit.Builder, arr jit.Value, reason string) jit.Value {
	return b.EmitVirtualDispatch("escalateToVanilla", arr)
}

func (AbstractLayout) EmitIterFirstPos(b jit.Builder, arr jit.Value) jit.Value {
	return b.EmitVirtualDispatch("iterBegin", arr)
}

func (AbstractLayout) EmitIterLastPos(b jit.Builder, arr jit.Value) jit.Value {
	return b.EmitVirtualDispatch("iterLast", arr)
}

func (AbstractLayout) EmitIterPos(b jit.Builder, arr, idx jit.Value) jit.Value {
	return b.EmitVirtualDispatch("iterAdvance", arr, idx)
}

func (AbstractLayout) EmitIterAdvancePos(b jit.Builder, arr, pos jit.Value) jit.Value {
	return b.EmitVirtualDispatch("iterAdvance", arr, pos)
}

func (AbstractLayout) EmitIterElm(b jit.Builder, arr, pos jit.Value) jit.Value {
	return b.EmitVirtualDispatch("iterElm", arr, pos)
}

func (AbstractLayout) EmitIterGetKey(b jit.Builder, arr, elm jit.Value) jit.Value {
	return b.EmitVirtualDispatch("keyAt", arr, elm)
}

func (AbstractLayout) EmitIterGetVal(b jit.Builder, arr, elm jit.Value) jit.Value {
	return b.EmitVirtualDispatch("valueAt", arr, elm)
}

var _ Emitter = AbstractLayout{}

// Emit returns l's JIT emission vtable.
func (l *Layout) Emit() Emitter { return l.emit }
