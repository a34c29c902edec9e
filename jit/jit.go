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

// Package jit specifies the contract between a Layout's JIT emission
// vtable (spec §4.4) and the real IR builder, which is explicitly out of
// scope (spec §1): this package only declares the shape a builder must
// have for layout.ConcreteLayout and layout.AbstractLayout's default
// emitters to call into it.
package jit

// Value is an opaque IR value handle: the result of emitting some
// instruction, or an argument to one. The real builder's SSA values are
// never inspected by this core; it only threads them through.
type Value struct {
	id int
}

// Invalid is the zero Value, returned by emitters that punt (spec §4.4).
var Invalid = Value{}

// IsValid reports whether v was produced by a builder (as opposed to being
// the punt sentinel).
func (v Value) IsValid() bool { return v.id != 0 }

// NewValue wraps an id handed back by a Builder. Builders call this; core
// emitters never construct a Value directly.
func NewValue(id int) Value { return Value{id: id} }

// Target names a branch target the builder jumps to when a guarded
// operation's precondition fails (e.g. a missing key on emitGet, spec
// §4.4).
type Target struct {
	id int
}

// NewTarget wraps a branch-target id handed back by a Builder.
func NewTarget(id int) Target { return Target{id: id} }

// Builder is the minimal surface a JIT emission hook needs. A real
// implementation translates each call into machine IR; the core never
// inspects the result beyond passing it along as a Value.
type Builder interface {
	// EmitCall emits a call to a runtime helper named fn with the given
	// arguments, returning its result.
	EmitCall(fn string, args ...Value) Value

	// EmitGuard emits a runtime check; if it fails control transfers to
	// taken. Used by the default emitGet implementations to guard missing
	// keys.
	EmitGuard(cond Value, taken Target)

	// EmitVirtualDispatch emits an indirect call through arr's runtime
	// vtable pointer to the named operation slot — the abstract-layout
	// default for operations a ConcreteLayout would otherwise inline
	// (spec §4.4 "(a) emit a virtual dispatch").
	EmitVirtualDispatch(op string, arr Value, args ...Value) Value

	// Punt signals the JIT to fall back to a generic, non-specialized
	// path for this operation (spec §4.4 "(b) punt").
	Punt(reason string)
}
