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
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// ancestrySet wraps a roaring.Bitmap of layout indices. Ancestor and
// descendant closures are computed once, at finalization, by the BFS §4.2
// calls for — after that every ≤/meet/join query is a bitmap operation
// instead of a graph walk. leastLiveableAncestor still walks parent edges.
type ancestrySet struct {
	bm *roaring.Bitmap
}

func newAncestrySet() *ancestrySet { return &ancestrySet{bm: roaring.New()} }

func (s *ancestrySet) add(i Index)            { s.bm.Add(uint32(i)) }
func (s *ancestrySet) addAll(o *ancestrySet)  { s.bm.Or(o.bm) }
func (s *ancestrySet) contains(i Index) bool  { return s.bm.Contains(uint32(i)) }
func (s *ancestrySet) clone() *ancestrySet    { return &ancestrySet{bm: s.bm.Clone()} }
func (s *ancestrySet) and(o *ancestrySet) *ancestrySet {
	out := s.bm.Clone()
	out.And(o.bm)
	return &ancestrySet{bm: out}
}
func (s *ancestrySet) iterate(f func(Index)) {
	it := s.bm.Iterator()
	for it.HasNext() {
		f(Index(it.Next()))
	}
}

// FinalizeHierarchy is the one-way transition after which the lattice is
// immutable and all lattice queries become valid (spec §3 "Lifecycle").
// Idempotent; a second call is a no-op.
func (r *Registry) FinalizeHierarchy() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized.Load() {
		return nil
	}
	if r.top == nil {
		return fmt.Errorf("bespokearray: cannot finalize an empty registry")
	}

	// Ancestors: registration order guarantees every parent was appended
	// to r.order before its children (I1: every non-root node names an
	// already-registered parent), so a single forward pass suffices.
	for _, l := range r.order {
		anc := newAncestrySet()
		anc.add(l.index)
		for _, p := range l.parents {
			anc.addAll(p.ancestors)
		}
		l.ancestors = anc
	}

	// Descendants: the dual, computed in reverse registration order so
	// every child's descendant set is ready before its parents need it.
	for _, l := range r.order {
		l.descendants = newAncestrySet()
		l.descendants.add(l.index)
	}
	for i := len(r.order) - 1; i >= 0; i-- {
		l := r.order[i]
		for _, p := range l.parents {
			p.descendants.addAll(l.descendants)
		}
	}

	r.finalized.Store(true)
	return nil
}

// errNotFinalized is the panic value LessEqual/Meet/Join/
// LeastLiveableAncestor raise for a non-Top argument before finalization
// (spec §3 "Before finalization only queries involving Top are valid").
func errNotFinalized(op string) string {
	return fmt.Sprintf("bespokearray: lattice query %q used before FinalizeHierarchy (only Top-only queries are valid pre-finalization)", op)
}

// LessEqual reports whether a ≤ b, i.e. b is an ancestor of a (reflexive).
func (r *Registry) LessEqual(a, b *Layout) bool {
	if !r.finalized.Load() {
		if a != r.top || b != r.top {
			panic(errNotFinalized("≤"))
		}
		return true
	}
	return a.ancestors.contains(b.index)
}

// Join returns a ∨ b, the unique minimum of ancestors(a) ∩ ancestors(b).
// Always defined: Top is always a common ancestor.
func (r *Registry) Join(a, b *Layout) *Layout {
	if !r.finalized.Load() {
		if a != r.top || b != r.top {
			panic(errNotFinalized("∨"))
		}
		return r.top
	}
	// common is upward-closed by construction (every ancestor of a member
	// of common is itself a member), so every candidate's ancestor set is
	// a subset of common — testing supersetOf(common) against a candidate
	// is therefore true for all of common and picks out nothing. The
	// unique least upper bound is instead the one candidate whose own
	// ancestor set equals common exactly.
	common := a.ancestors.and(b.ancestors)
	commonCard := common.bm.GetCardinality()
	var result *Layout
	common.iterate(func(idx Index) {
		cand := r.layouts[idx]
		if cand.ancestors.bm.GetCardinality() != commonCard {
			return
		}
		if result != nil {
			panic(fmt.Sprintf("bespokearray: I3 violated: join of %q and %q is ambiguous", a.description, b.description))
		}
		result = cand
	})
	if result == nil {
		panic(fmt.Sprintf("bespokearray: I3 violated: join of %q and %q does not exist", a.description, b.description))
	}
	return result
}

// Meet returns a ∧ b, the unique maximum of descendants(a) ∩ descendants(b),
// or nil ("bottom") if that intersection is empty.
func (r *Registry) Meet(a, b *Layout) *Layout {
	if !r.finalized.Load() {
		if a != r.top || b != r.top {
			panic(errNotFinalized("∧"))
		}
		return r.top
	}
	// common is downward-closed by construction (every descendant of a
	// member of common is itself a member), so every candidate's
	// descendant set is a subset of common — the dual of Join's case: the
	// unique greatest lower bound is the one candidate whose own
	// descendant set equals common exactly.
	common := a.descendants.and(b.descendants)
	if common.bm.IsEmpty() {
		return nil
	}
	commonCard := common.bm.GetCardinality()
	var result *Layout
	common.iterate(func(idx Index) {
		cand := r.layouts[idx]
		if cand.descendants.bm.GetCardinality() != commonCard {
			return
		}
		if result != nil {
			panic(fmt.Sprintf("bespokearray: I3 violated: meet of %q and %q is ambiguous", a.description, b.description))
		}
		result = cand
	})
	return result
}

// LeastLiveableAncestor walks upward from a, selecting the first liveable
// node encountered; by I4 this is unique. Before finalization this always
// returns Top.
func (r *Registry) LeastLiveableAncestor(a *Layout) *Layout {
	if !r.finalized.Load() {
		return r.top
	}
	if a.liveable {
		return a
	}
	queue := append([]*Layout(nil), a.parents...)
	seen := map[*Layout]bool{a: true}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		if n.liveable {
			return n
		}
		queue = append(queue, n.parents...)
	}
	return r.top
}
