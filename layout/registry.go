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
	"sync"
	"sync/atomic"

	"github.com/tidwall/btree"

	"github.com/erigontech/bespokearray/numeric"
)

// Registry assigns stable indices and owns every registered Layout for the
// process lifetime (spec §3 "Ownership", §4.1). Registration is
// single-threaded append-only; Registry.mu exists to make that discipline
// a checked invariant rather than an assumed one.
type Registry struct {
	mu sync.Mutex

	layouts []*Layout // dense, indexed by Index; nil where unassigned
	order   []*Layout // registration order, used by FinalizeHierarchy
	byDesc  map[string]*Layout

	nextFree Index
	reserved *btree.Map[uint32, uint32] // blockStart -> blockSize, for DumpReserved

	top *Layout

	finalized atomic.Bool
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		layouts:  make([]*Layout, MaxIndex+1),
		byDesc:   make(map[string]*Layout),
		reserved: &btree.Map[uint32, uint32]{},
	}
}

// ErrIndicesExhausted is returned by ReserveIndices when no aligned block of
// the requested size remains below MaxIndex.
var ErrIndicesExhausted = fmt.Errorf("bespokearray: layout index space exhausted")

// ReserveIndices returns the first index of a fresh block of n consecutive
// indices aligned to n, where n must be a power of two (spec §4.1).
func (r *Registry) ReserveIndices(n uint32) (Index, error) {
	if !numeric.IsPowerOfTwo(n) {
		panic(fmt.Sprintf("bespokearray: ReserveIndices(%d): not a power of two", n))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	start := numeric.AlignUp(uint32(r.nextFree), n)
	if uint64(start)+uint64(n) > MaxIndex+1 {
		return 0, ErrIndicesExhausted
	}
	r.nextFree = Index(start + n)
	r.reserved.Set(start, n)
	return Index(start), nil
}

// ReservedBlock describes one block handed out by ReserveIndices.
type ReservedBlock struct {
	Start Index
	Size  uint32
}

// DumpReserved enumerates every reserved block in index order — a debug
// and introspection helper, not part of the hot path.
func (r *Registry) DumpReserved() []ReservedBlock {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReservedBlock, 0, r.reserved.Len())
	r.reserved.Scan(func(start, size uint32) bool {
		out = append(out, ReservedBlock{Start: Index(start), Size: size})
		return true
	})
	return out
}

// LayoutOptions configures a newly registered Layout.
type LayoutOptions struct {
	Liveable bool
	Concrete bool
	Vtable   *OpVtable
	Validate Validator
	// Emit overrides the default Emitter (ConcreteLayout/AbstractLayout);
	// leave nil to take the default for the Concrete flag.
	Emit Emitter
}

// Register constructs and inserts a Layout at idx with the given
// description and parents, validating the lattice invariants (spec §3 I1-
// I4). The first call establishes the root ("Top") and must be given no
// parents; every subsequent call must be given at least one, already-
// registered parent.
func (r *Registry) Register(idx Index, description string, parents []*Layout, opts LayoutOptions) (*Layout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized.Load() {
		return nil, fmt.Errorf("bespokearray: registry finalized, refusing to register %q", description)
	}
	if int(idx) >= len(r.layouts) {
		return nil, fmt.Errorf("bespokearray: index %d out of range", idx)
	}
	if r.layouts[idx] != nil {
		return nil, fmt.Errorf("bespokearray: index %d already assigned to %q", idx, r.layouts[idx].description)
	}
	if _, dup := r.byDesc[description]; dup {
		return nil, fmt.Errorf("bespokearray: duplicate layout description %q", description)
	}

	if r.top == nil {
		if len(parents) != 0 {
			return nil, fmt.Errorf("bespokearray: first registered layout (the root) must have no parents")
		}
	} else if len(parents) == 0 {
		return nil, fmt.Errorf("bespokearray: layout %q must have at least one parent (I1)", description)
	}

	for _, p := range parents {
		if r.byDesc[p.description] != p {
			return nil, fmt.Errorf("bespokearray: parent %q of %q is not registered in this registry", p.description, description)
		}
	}
	// I2 (acyclic) holds structurally: parents must already be registered,
	// so a new node can never reach back to itself.
	//
	// "no parent may be an ancestor of another parent": the edges we're
	// about to add must be the *covering* relation, not a redundant
	// transitive one.
	for i, pi := range parents {
		for j, pj := range parents {
			if i == j {
				continue
			}
			if isAncestorUpward(pi, pj) {
				return nil, fmt.Errorf("bespokearray: parent %q of %q is itself an ancestor of parent %q (not a covering edge)", pi.description, description, pj.description)
			}
		}
	}

	// I4: a non-liveable node with more than one parent may not count a
	// liveable layout among them — a liveable layout must be the sole
	// parent of each of its non-liveable immediate children, otherwise
	// leastLiveableAncestor would be ambiguous for this node.
	if !opts.Liveable {
		for _, p := range parents {
			if p.liveable && len(parents) > 1 {
				return nil, fmt.Errorf("bespokearray: layout %q violates I4: liveable parent %q is not its sole parent", description, p.description)
			}
		}
	}

	if opts.Concrete && opts.Vtable == nil {
		return nil, fmt.Errorf("bespokearray: concrete layout %q requires a vtable", description)
	}
	if !opts.Concrete && opts.Vtable != nil {
		return nil, fmt.Errorf("bespokearray: non-concrete layout %q must not carry a vtable", description)
	}

	emit := opts.Emit
	if emit == nil {
		if opts.Concrete {
			emit = ConcreteLayout{Name: description}
		} else {
			emit = AbstractLayout{}
		}
	}

	l := &Layout{
		index:       idx,
		description: description,
		parents:     append([]*Layout(nil), parents...),
		liveable:    opts.Liveable,
		isConcrete:  opts.Concrete,
		vtable:      opts.Vtable,
		validate:    opts.Validate,
		emit:        emit,
	}
	r.layouts[idx] = l
	r.byDesc[description] = l
	r.order = append(r.order, l)
	if r.top == nil {
		r.top = l
	}
	for _, p := range parents {
		p.children = append(p.children, l)
	}
	return l, nil
}

// isAncestorUpward reports whether target is reachable from start by
// walking parent edges — available even before finalization, since parent
// edges are set at registration time.
func isAncestorUpward(start, target *Layout) bool {
	if start == target {
		return true
	}
	seen := map[*Layout]bool{start: true}
	queue := append([]*Layout(nil), start.parents...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		if n == target {
			return true
		}
		queue = append(queue, n.parents...)
	}
	return false
}

// FromIndex returns the Layout registered at i, or nil.
func (r *Registry) FromIndex(i Index) *Layout {
	if int(i) >= len(r.layouts) {
		return nil
	}
	return r.layouts[i]
}

// FromConcreteIndex returns the Layout registered at i, panicking if it is
// absent or not concrete — the concrete-only view the runtime's array
// dispatch path uses (spec §4.1).
func (r *Registry) FromConcreteIndex(i Index) *Layout {
	l := r.FromIndex(i)
	if l == nil {
		panic(fmt.Sprintf("bespokearray: no layout registered at index %d", i))
	}
	if !l.isConcrete {
		panic(fmt.Sprintf("bespokearray: layout %q at index %d is not concrete", l.description, i))
	}
	return l
}

// Top returns the lattice root, or nil if nothing has been registered yet.
func (r *Registry) Top() *Layout { return r.top }

// Finalized reports whether FinalizeHierarchy has completed.
func (r *Registry) Finalized() bool { return r.finalized.Load() }
