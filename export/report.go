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

// Package export implements the Export Coordinator (C8): freezing the
// profile tables, aggregating and sorting their contents, and writing the
// human-readable report the rest of the toolchain parses.
package export

import (
	"bufio"
	"fmt"
	"io"

	"github.com/google/btree"

	"github.com/erigontech/bespokearray/eventkey"
	"github.com/erigontech/bespokearray/kind"
	"github.com/erigontech/bespokearray/profile"
	"github.com/erigontech/bespokearray/srckey"
)

// weighted pairs a sortable payload with a descending weight and a stable
// tiebreaker; Ascend-ing a btree.BTreeG ordered by weighted.less yields
// descending-by-weight order, the sort §4.8 steps 3-4 require at every
// level (sources, sinks, operations, events, escalations).
type weighted[T any] struct {
	weight    float64
	tiebreak  uint64
	payload   T
}

func lessWeighted[T any](a, b weighted[T]) bool {
	if a.weight != b.weight {
		return a.weight > b.weight
	}
	return a.tiebreak < b.tiebreak
}

func sortDescending[T any](items []weighted[T]) []T {
	bt := btree.NewG(32, lessWeighted[T])
	for _, it := range items {
		bt.ReplaceOrInsert(it)
	}
	out := make([]T, 0, len(items))
	bt.Ascend(func(it weighted[T]) bool {
		out = append(out, it.payload)
		return true
	})
	return out
}

// eventDetail is one (sink, EventKey) -> count line under an operation.
type eventDetail struct {
	sink  srckey.SrcKey
	key   eventkey.Key
	count uint64
}

// opAggregate is every recorded event for one operation tag, aggregated
// and sorted descending by count (spec §4.8 step 3).
type opAggregate struct {
	op      eventkey.Op
	total   uint64
	details []eventDetail
}

// escalation is one (before, after) entry-type transition with before !=
// after.
type escalation struct {
	before, after profile.EntryType
	count         uint64
}

// entryState is the summed count of transitions landing on a given
// post-image type ("Entry Type Operations", spec §6).
type entryState struct {
	state profile.EntryType
	count uint64
}

// sourceReport is everything the Sources section prints for one source.
type sourceReport struct {
	source               srckey.SrcKey
	loggingArraysEmitted uint64
	sampleCount          uint64
	weight               float64
	reads, writes        []opAggregate
	readCount, writeCount uint64
	distinctSinks        int
	escalations          []escalation
	states               []entryState
}

func buildSourceReport(sk srckey.SrcKey, lp *profile.LoggingProfile) sourceReport {
	events := lp.Events()
	byOp := make(map[eventkey.Op][]eventDetail, 16)
	sinks := make(map[srckey.SrcKey]struct{}, 8)
	var totalEvents uint64
	for k, count := range events {
		op := k.Key.Op()
		byOp[op] = append(byOp[op], eventDetail{sink: k.Sink, key: k.Key, count: count})
		sinks[k.Sink] = struct{}{}
		totalEvents += count
	}

	var reads, writes []opAggregate
	var readCount, writeCount uint64
	for op, details := range byOp {
		sorted := sortDescending(detailWeights(details))
		var total uint64
		for _, d := range details {
			total += d.count
		}
		agg := opAggregate{op: op, total: total, details: sorted}
		if op.IsWrite() {
			writes = append(writes, agg)
			writeCount += total
		} else {
			reads = append(reads, agg)
			readCount += total
		}
	}
	reads = sortDescending(opWeights(reads))
	writes = sortDescending(opWeights(writes))

	transitions := lp.EntryTransitions()
	var escalations []escalation
	stateTotals := make(map[profile.EntryType]uint64, 8)
	for t, count := range transitions {
		stateTotals[t.After] += count
		if t.Before != t.After {
			escalations = append(escalations, escalation{before: t.Before, after: t.After, count: count})
		}
	}
	escalations = sortDescending(escalationWeights(escalations))

	var states []entryState
	for state, count := range stateTotals {
		states = append(states, entryState{state: state, count: count})
	}
	states = sortDescending(entryStateWeights(states))

	emitted := lp.LoggingArraysEmitted()
	sampled := lp.SampleCount()
	var weight float64
	if emitted > 0 {
		weight = float64(totalEvents) * (float64(sampled) / float64(emitted))
	}

	return sourceReport{
		source:               sk,
		loggingArraysEmitted: emitted,
		sampleCount:          sampled,
		weight:               weight,
		reads:                reads,
		writes:               writes,
		readCount:            readCount,
		writeCount:           writeCount,
		distinctSinks:        len(sinks),
		escalations:          escalations,
		states:               states,
	}
}

func detailWeights(ds []eventDetail) []weighted[eventDetail] {
	out := make([]weighted[eventDetail], len(ds))
	for i, d := range ds {
		out[i] = weighted[eventDetail]{weight: float64(d.count), tiebreak: d.sink.Hash() ^ uint64(d.key), payload: d}
	}
	return out
}

func opWeights(ops []opAggregate) []weighted[opAggregate] {
	out := make([]weighted[opAggregate], len(ops))
	for i, o := range ops {
		out[i] = weighted[opAggregate]{weight: float64(o.total), tiebreak: uint64(o.op), payload: o}
	}
	return out
}

func escalationWeights(es []escalation) []weighted[escalation] {
	out := make([]weighted[escalation], len(es))
	for i, e := range es {
		out[i] = weighted[escalation]{weight: float64(e.count), tiebreak: uint64(e.before)<<16 | uint64(e.after), payload: e}
	}
	return out
}

func entryStateWeights(ss []entryState) []weighted[entryState] {
	out := make([]weighted[entryState], len(ss))
	for i, s := range ss {
		out[i] = weighted[entryState]{weight: float64(s.count), tiebreak: uint64(s.state), payload: s}
	}
	return out
}

// sinkReport is everything the Sinks section prints for one sink.
type sinkReport struct {
	key           profile.SinkKey
	sampledCount  uint64
	unsampledCount uint64
	weight        float64
	arrayKinds    []countedLabel
	keyTypes      []countedLabel
	valueTypes    []countedLabel
}

type countedLabel struct {
	label string
	count uint64
}

func buildSinkReport(key profile.SinkKey, sp *profile.SinkProfile) sinkReport {
	sampled := sp.SampledCount()
	unsampled := sp.UnsampledCount()

	arrayKinds := histogramLabels(sp.ArrayKindHist()[:], func(i int) string {
		return kind.ArrayKind(i * 2).String()
	})
	keyTypes := histogramLabels(sp.KeyTypeHist()[:], func(i int) string {
		return kind.DataType(i).String()
	})
	valueTypes := histogramLabels(sp.ValueTypeHist()[:], func(i int) string {
		return kind.DataType(i).String()
	})

	return sinkReport{
		key:            key,
		sampledCount:   sampled,
		unsampledCount: unsampled,
		weight:         float64(sampled + unsampled),
		arrayKinds:     arrayKinds,
		keyTypes:       keyTypes,
		valueTypes:     valueTypes,
	}
}

func histogramLabels(hist []uint64, label func(int) string) []countedLabel {
	var out []weighted[countedLabel]
	for i, count := range hist {
		if count == 0 {
			continue
		}
		out = append(out, weighted[countedLabel]{
			weight:   float64(count),
			tiebreak: uint64(i),
			payload:  countedLabel{label: label(i), count: count},
		})
	}
	return sortDescending(out)
}

// symbolOf renders the best-effort human label for a SrcKey. Bytecode
// disassembly itself is out of scope (SrcKey construction is an external
// collaborator, spec §1) so the report identifies a site by its raw
// (function, offset, resume) coordinates instead of decoded source text.
func symbolOf(sk srckey.SrcKey) string {
	return fmt.Sprintf("func#%d", sk.Func)
}

func disassemblyOf(sk srckey.SrcKey) string {
	resume := "none"
	switch sk.Resume {
	case srckey.ResumeYield:
		resume = "yield"
	case srckey.ResumeThrow:
		resume = "throw"
	}
	return fmt.Sprintf("@%#x (resume=%s)", sk.Offset, resume)
}

// WriteReport writes the two-section plain-text report (spec §6) for the
// given sources and sinks, already sorted descending by weight, to w.
func WriteReport(w io.Writer, sources []sourceReport, sinks []sinkReport) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "Sources")
	fmt.Fprintln(bw, "=======")
	for _, sr := range sources {
		writeSourceReport(bw, sr)
	}

	fmt.Fprintln(bw, "----------------------------------------")

	fmt.Fprintln(bw, "Sinks")
	fmt.Fprintln(bw, "=====")
	for _, sk := range sinks {
		writeSinkReport(bw, sk)
	}

	return bw.Flush()
}

func writeSourceReport(bw *bufio.Writer, sr sourceReport) {
	fmt.Fprintf(bw, "%s [%d/%d sampled, %.2f weight]\n", symbolOf(sr.source), sr.loggingArraysEmitted, sr.sampleCount, sr.weight)
	fmt.Fprintf(bw, "  %s\n", disassemblyOf(sr.source))
	fmt.Fprintf(bw, "  %d reads, %d writes, %d distinct sinks\n", sr.readCount, sr.writeCount, sr.distinctSinks)

	fmt.Fprintln(bw, "  Read operations:")
	writeOpSection(bw, sr.reads)
	fmt.Fprintln(bw, "  Write operations:")
	writeOpSection(bw, sr.writes)

	fmt.Fprintln(bw, "  Entry Type Escalations:")
	for _, e := range sr.escalations {
		fmt.Fprintf(bw, "    %6dx %s -> %s\n", e.count, renderEntryType(e.before), renderEntryType(e.after))
	}

	fmt.Fprintln(bw, "  Entry Type Operations:")
	for _, s := range sr.states {
		fmt.Fprintf(bw, "    %6dx %s\n", s.count, renderEntryType(s.state))
	}
}

func renderEntryType(t profile.EntryType) string {
	return fmt.Sprintf("state(%d)", uint16(t))
}

func writeOpSection(bw *bufio.Writer, ops []opAggregate) {
	for _, op := range ops {
		fmt.Fprintf(bw, "    %6dx %s\n", op.total, op.op)
		if len(op.details) <= 1 {
			continue
		}
		for _, d := range op.details {
			fmt.Fprintf(bw, "        %6dx %s key=[%s] val=[%s]\n", d.count, op.op, d.key.RenderKey(nil), d.key.RenderVal(nil))
		}
	}
}

func writeSinkReport(bw *bufio.Writer, sk sinkReport) {
	fmt.Fprintf(bw, "%s [%d/%.2f sampled]\n", symbolOf(sk.key.Source), sk.sampledCount, sk.weight)
	fmt.Fprintf(bw, "  %s\n", disassemblyOf(sk.key.Source))

	fmt.Fprintln(bw, "  Array Type Counts:")
	for _, c := range sk.arrayKinds {
		fmt.Fprintf(bw, "    %6dx %s\n", c.count, c.label)
	}
	fmt.Fprintln(bw, "  Key Type Counts:")
	for _, c := range sk.keyTypes {
		fmt.Fprintf(bw, "    %6dx %s\n", c.count, c.label)
	}
	fmt.Fprintln(bw, "  Value Type Counts:")
	for _, c := range sk.valueTypes {
		fmt.Fprintf(bw, "    %6dx %s\n", c.count, c.label)
	}
}
