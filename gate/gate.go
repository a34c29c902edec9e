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

// Package gate implements the export gate (spec §5): the single
// process-wide shared mutex plus atomic flag that separates the profiling
// phase from the export phase. Every profile mutation takes the read side
// and checks the flag under it; export takes the write side once, to flip
// the flag, then releases the lock before doing any real work.
package gate

import (
	"sync/atomic"

	async "github.com/anacrolix/sync"
)

// Gate is the export gate. Its zero value is ready to use.
type Gate struct {
	mu      async.RWMutex
	started atomic.Bool
}

// Enter takes the gate's read side and reports whether export has already
// started. If it returns true the caller must not mutate any profile table
// — it should release (via the returned Leave func) and bail out silently
// (spec §7 "Export gate rejection").
func (g *Gate) Enter() (exportStarted bool, leave func()) {
	g.mu.RLock()
	started := g.started.Load()
	if started {
		g.mu.RUnlock()
		return true, func() {}
	}
	return false, g.mu.RUnlock
}

// Do runs fn while holding the gate's read side, but only if export has not
// started; it reports whether fn ran.
func (g *Gate) Do(fn func()) (ran bool) {
	started, leave := g.Enter()
	defer leave()
	if started {
		return false
	}
	fn()
	return true
}

// Started reports whether the gate has been flipped, without acquiring any
// lock. Useful for fast uncontended pre-checks; callers that need the
// happens-before guarantee should still go through Enter/Do.
func (g *Gate) Started() bool { return g.started.Load() }

// StartExport takes the gate's write side, flips the flag, and releases.
// By the time it returns, no writer can still be inside a Do/Enter
// critical section that observed started=false — every subsequent Enter
// sees true (spec §5, §8 "Profile concurrency").
func (g *Gate) StartExport() {
	g.mu.Lock()
	g.started.Store(true)
	g.mu.Unlock()
}
