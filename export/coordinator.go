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

package export

import (
	"context"
	"os"
	"time"

	log "github.com/erigontech/erigon-lib/log/v3"
	"golang.org/x/sync/errgroup"

	"github.com/erigontech/bespokearray/gate"
	"github.com/erigontech/bespokearray/profile"
)

// Coordinator is the Export Coordinator (C8): it owns the export gate and
// drives the one-way freeze -> snapshot -> aggregate -> write sequence
// (spec §4.8).
type Coordinator struct {
	gate    *gate.Gate
	sources *profile.SourceTable
	sinks   *profile.SinkTable
	path    string
	logger  log.Logger
	metrics *Metrics

	g *errgroup.Group
}

// NewCoordinator builds a Coordinator. path is ExportLoggingArrayDataPath
// (spec §6); an empty path makes ExportProfiles a no-op, matching the
// configuration contract exactly.
func NewCoordinator(g *gate.Gate, sources *profile.SourceTable, sinks *profile.SinkTable, path string, logger log.Logger, metrics *Metrics) *Coordinator {
	return &Coordinator{gate: g, sources: sources, sinks: sinks, path: path, logger: logger, metrics: metrics}
}

// ExportProfiles implements exportProfiles() (spec §4.8): flip the gate,
// then run the snapshot/aggregate/sort/write sequence on a dedicated
// worker. By the time StartExport returns, no in-flight writer is still
// inside Enter/Do — the errgroup worker is spawned only after that point.
// With an empty path it returns at once: the gate stays open and no worker
// is launched.
func (c *Coordinator) ExportProfiles() {
	if c.path == "" {
		return
	}
	c.gate.StartExport()

	c.g = new(errgroup.Group)
	c.g.Go(func() error {
		return c.runExport(context.Background())
	})
}

// WaitOnExportProfiles implements waitOnExportProfiles(): joins the
// worker launched by ExportProfiles, if any.
func (c *Coordinator) WaitOnExportProfiles() error {
	if c.g == nil {
		return nil
	}
	return c.g.Wait()
}

func (c *Coordinator) runExport(_ context.Context) error {
	start := time.Now()

	if c.path == "" {
		// Empty path = export is a no-op (spec §6 "Configuration").
		return nil
	}

	sourceSnap := c.sources.Snapshot()
	sinkSnap := c.sinks.Snapshot()

	sourceItems := make([]weighted[sourceReport], 0, len(sourceSnap))
	for sk, lp := range sourceSnap {
		sr := buildSourceReport(sk, lp)
		sourceItems = append(sourceItems, weighted[sourceReport]{weight: sr.weight, tiebreak: sk.Hash(), payload: sr})
	}
	sources := sortDescending(sourceItems)

	sinkItems := make([]weighted[sinkReport], 0, len(sinkSnap))
	for key, sp := range sinkSnap {
		skr := buildSinkReport(key, sp)
		sinkItems = append(sinkItems, weighted[sinkReport]{weight: skr.weight, tiebreak: key.Source.Hash() ^ key.TranslationID, payload: skr})
	}
	sinks := sortDescending(sinkItems)

	f, err := os.Create(c.path)
	if err != nil {
		// Export I/O failure: the exporter exits silently, the runtime is
		// past its reporting window (spec §7).
		if c.logger != nil {
			c.logger.Warn("bespokearray: export open failed", "path", c.path, "err", err)
		}
		if c.metrics != nil {
			c.metrics.observeFailure()
		}
		return nil
	}
	defer f.Close()

	if err := WriteReport(f, sources, sinks); err != nil {
		if c.logger != nil {
			c.logger.Warn("bespokearray: export write failed", "path", c.path, "err", err)
		}
		if c.metrics != nil {
			c.metrics.observeFailure()
		}
		return nil
	}

	if c.metrics != nil {
		c.metrics.observeSuccess(time.Since(start).Seconds(), len(sources), len(sinks))
	}
	return nil
}
