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

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/bespokearray/kind"
	"github.com/erigontech/bespokearray/layout"
)

// TemplateSet holds the optional retained static "logging" and "sampled"
// array templates a LoggingProfile may carry (spec §3). logging is the
// shim array handed out to allocation sites once this profile is hot
// enough to warrant shimming; sampled is the bare vanilla template used
// when only sampling (not full shimming) is in effect.
type TemplateSet struct {
	logging *layout.ArrayData
	sampled *layout.ArrayData
	built   []*layout.ArrayData // construction order, for reverse release
}

func buildTemplateSet(shimIdx, vanillaIdx layout.Index) *TemplateSet {
	ts := &TemplateSet{}
	ts.sampled = layout.NewArrayData(vanillaIdx, nil)
	ts.built = append(ts.built, ts.sampled)
	ts.logging = layout.NewArrayData(shimIdx, nil)
	ts.built = append(ts.built, ts.logging)
	return ts
}

// release walks ts.built in reverse construction order, calling vtable
// Release on each — the discipline spec §4.6/§7 requires of the losing
// side of a lazy-creation race ("free the loser's auxiliary allocations in
// reverse order... to be safe with linear bump allocators").
func (ts *TemplateSet) release(registry *layout.Registry) {
	for i := len(ts.built) - 1; i >= 0; i-- {
		ad := ts.built[i]
		l := registry.FromConcreteIndex(ad.Class().Index())
		if vt := l.Dispatch(ad); vt.Release != nil {
			vt.Release(ad)
		}
	}
}

// templateKey identifies a distinct shape of shim/vanilla template pair:
// the shim layout plus the entry key/value kind the shimmed array was
// observed to carry.
type templateKey struct {
	ShimIdx    layout.Index
	VanillaIdx layout.Index
	KeyDT      kind.DataType
	ValDT      kind.DataType
}

// TemplateCache deduplicates identically-shaped template sets across
// sources (SPEC_FULL §11): allocating a fresh shim/vanilla pair per source
// is wasteful when many sources observe the same shape, so a bounded LRU
// keyed by shape reuses them. hashicorp/golang-lru/v2 is not itself
// concurrency-safe, hence the mutex.
type TemplateCache struct {
	mu  sync.Mutex
	lru *lru.Cache[templateKey, *TemplateSet]
}

// NewTemplateCache builds a cache retaining up to capacity distinct shapes.
func NewTemplateCache(capacity int) *TemplateCache {
	c, err := lru.New[templateKey, *TemplateSet](capacity)
	if err != nil {
		panic(err) // only returns an error for capacity <= 0, a programming error
	}
	return &TemplateCache{lru: c}
}

// GetOrBuild returns the cached TemplateSet for key, building one via build
// if absent.
func (tc *TemplateCache) GetOrBuild(key templateKey, build func() *TemplateSet) *TemplateSet {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if ts, ok := tc.lru.Get(key); ok {
		return ts
	}
	ts := build()
	tc.lru.Add(key, ts)
	return ts
}
