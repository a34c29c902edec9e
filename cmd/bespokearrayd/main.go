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

// Command bespokearrayd drives the bespoke-array core end to end: it
// builds a small layout lattice, simulates a profiling workload against
// it, and exports the resulting report — giving the otherwise
// library-only core a runnable surface.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	log "github.com/erigontech/erigon-lib/log/v3"

	"github.com/erigontech/bespokearray/config"
	"github.com/erigontech/bespokearray/eventkey"
	"github.com/erigontech/bespokearray/export"
	"github.com/erigontech/bespokearray/gate"
	"github.com/erigontech/bespokearray/kind"
	"github.com/erigontech/bespokearray/layout"
	"github.com/erigontech/bespokearray/profile"
	"github.com/erigontech/bespokearray/srckey"
)

var cli struct {
	Config string `help:"Path to a TOML configuration file." default:""`
	Out    string `help:"Override ExportLoggingArrayDataPath for this run." default:"bespokearray-report.txt"`
}

func main() {
	kong.Parse(&cli, kong.Description("Drive the bespoke array layout and logging profile pipeline."))

	cfg := config.Default()
	if cli.Config != "" {
		loaded, err := config.Load(cli.Config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bespokearrayd: loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if cli.Out != "" {
		cfg.ExportLoggingArrayDataPath = cli.Out
	}
	layout.DebugDispatch = cfg.DebugDispatch

	logger := log.New()

	registry := buildDemoLattice(logger)

	g := &gate.Gate{}
	templates := profile.NewTemplateCache(64)
	sources := profile.NewSourceTable(g, logger, templates, nil)
	sinks := profile.NewSinkTable(g, logger)

	runDemoWorkload(registry, g, sources, sinks)

	coord := export.NewCoordinator(g, sources, sinks, cfg.ExportLoggingArrayDataPath, logger, nil)
	coord.ExportProfiles()
	if err := coord.WaitOnExportProfiles(); err != nil {
		logger.Warn("bespokearrayd: export failed", "err", err)
	} else {
		logger.Info("bespokearrayd: exported report", "path", cfg.ExportLoggingArrayDataPath)
	}
}

func buildDemoLattice(logger log.Logger) *layout.Registry {
	r := layout.NewRegistry()

	topIdx, err := r.ReserveIndices(1)
	must(err)
	top, err := r.Register(topIdx, "Top", nil, layout.LayoutOptions{Liveable: true})
	must(err)

	vanillaIdx, err := r.ReserveIndices(1)
	must(err)
	vanillaVT := &layout.OpVtable{
		Size:    func(ad *layout.ArrayData) int { return 0 },
		Release: func(ad *layout.ArrayData) {},
	}
	vanilla, err := r.Register(vanillaIdx, "Vanilla", []*layout.Layout{top}, layout.LayoutOptions{
		Liveable: true,
		Concrete: true,
		Vtable:   vanillaVT,
	})
	must(err)

	shimIdx, err := r.ReserveIndices(1)
	must(err)
	shimVT := &layout.OpVtable{
		Size:    vanillaVT.Size,
		Release: vanillaVT.Release,
		EscalateToVanilla: func(ad *layout.ArrayData, reason string) *layout.ArrayData {
			return layout.NewArrayData(vanilla.Index(), nil)
		},
	}
	_, err = r.Register(shimIdx, "LoggingShim", []*layout.Layout{vanilla}, layout.LayoutOptions{
		Liveable: false,
		Concrete: true,
		Vtable:   shimVT,
	})
	must(err)

	must(r.FinalizeHierarchy())
	logger.Info("bespokearrayd: lattice finalized", "layouts", 3)
	return r
}

func runDemoWorkload(registry *layout.Registry, g *gate.Gate, sources *profile.SourceTable, sinks *profile.SinkTable) {
	source := srckey.SrcKey{Func: 42, Offset: 16}
	sink := srckey.SrcKey{Func: 99, Offset: 4}

	lp := sources.GetProfile(source)
	if lp == nil {
		return
	}
	lp.MarkEmitted()
	lp.MarkSampled()

	for i := 0; i < 1000; i++ {
		lp.LogEvent(g, sink, eventkey.OpGet, eventkey.IntArg(1), eventkey.NoArg, kind.DTInt64)
	}
	lp.LogEntryTypes(g, profile.EntryType(0), profile.EntryType(1))

	sp := sinks.GetSinkProfile(7, sink)
	if sp == nil {
		return
	}
	for i := 0; i < 200; i++ {
		sp.Update(profile.SinkObservation{
			Kind:        kind.LoggingShimKind,
			IsShim:      true,
			KeyDT:       kind.DTInt64,
			ValueShape:  profile.ValueShapeMonotype,
			ValueDT:     kind.DTStr,
			BackPointer: lp,
		})
	}
	for i := 0; i < 300; i++ {
		sp.Update(profile.SinkObservation{Kind: kind.VanillaKind})
	}
	for i := 0; i < 100; i++ {
		sp.Update(profile.SinkObservation{Kind: kind.MonotypeDictKind, IsSampled: true})
	}

	_ = registry
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
