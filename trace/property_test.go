// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trace

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/grailbio/dataselect/seedtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// propertySeed fixes every property test's topology generator so a
// failure is reproducible without a property-test library's shrinker.
const propertySeed = 20180914

// genSegments builds n non-overlapping records of the given quality
// starting at startTick, each 2-5 samples long with a random 0-3
// period gap before it, and returns the tick one past the last one's
// end (the next free tick).
func genSegments(rnd *rand.Rand, startTick seedtime.Tick, period int64, n int, q Quality) ([]*Record, seedtime.Tick) {
	recs := make([]*Record, 0, n)
	cur := startTick
	for i := 0; i < n; i++ {
		cur = seedtime.Add(cur, period*int64(rnd.Intn(4)))
		nsamp := 2 + rnd.Intn(4)
		end := seedtime.Add(cur, period*int64(nsamp-1))
		recs = append(recs, &Record{Start: cur, End: end, Quality: q, Samples: nsamp, Rate: 1})
		cur = seedtime.Add(end, period)
	}
	return recs, cur
}

type span struct{ start, end seedtime.Tick }

// mergeSpans sorts and merges touching/overlapping spans, returning
// their disjoint union.
func mergeSpans(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

func totalTicks(spans []span) int64 {
	var total int64
	for _, s := range spans {
		total += int64(s.end - s.start)
	}
	return total
}

// TestUnionOfCoverageInvariant checks, over many randomized two-quality
// overlap topologies on one channel, that record-level/sample-level
// pruning (a) never leaves two surviving records covering the same
// instant twice and (b) never shrinks the union of covered time below
// what a perfect prune would leave: the union of the higher-priority
// trace's coverage plus whatever of the lower-priority trace's
// coverage falls outside it.
func TestUnionOfCoverageInvariant(t *testing.T) {
	rnd := rand.New(rand.NewSource(propertySeed))
	period := seedtime.SamplePeriod(1)

	validated := 0
	for attempt := 0; attempt < 200 && validated < 40; attempt++ {
		// hp is kept to a single segment: trimAgainst's boundary-overlap
		// narrowing (pruner.go) reasons about hp's overall start/end as
		// one coverage blob, which only holds when hp itself has no
		// internal gap.
		hpRecs, _ := genSegments(rnd, 0, period, 1, QualityChecked)
		hpStart := hpRecs[0].Start

		lpOffset := seedtime.Add(hpStart, period*int64(rnd.Intn(20)-10))
		lpRecs, _ := genSegments(rnd, lpOffset, period, 1+rnd.Intn(2), QualityData)

		hpSpan := span{hpStart, hpRecs[len(hpRecs)-1].End}
		engulfed := false
		for _, r := range lpRecs {
			if r.Start <= hpSpan.start && r.End >= hpSpan.end {
				engulfed = true
				break
			}
		}
		if engulfed {
			// A single record can't be split into two disjoint
			// survivors without the splitter; skip this topology
			// rather than assert on an out-of-scope case.
			continue
		}

		// Each record covers [first sample, last sample + period): one
		// period per sample, so records that abut sample-to-sample
		// (as a sample-level trim leaves them) touch instead of
		// leaving a one-period hole in the measured union.
		var inputSpans []span
		for _, r := range hpRecs {
			inputSpans = append(inputSpans, span{r.Start, seedtime.Add(r.End, period)})
		}
		for _, r := range lpRecs {
			inputSpans = append(inputSpans, span{r.Start, seedtime.Add(r.End, period)})
		}

		hp := mkTrace(1, hpRecs...)
		lp := mkTrace(1, lpRecs...)
		traces := []*Trace{hp, lp}
		PruneRecordLevel(&Opts{SampleLevelPrune: true}, traces)

		var survivorSpans []span
		for _, tr := range traces {
			tr.Records.Each(func(r *Record) {
				if r.Dropped {
					return
				}
				survivorSpans = append(survivorSpans, span{r.EffectiveStart(), seedtime.Add(r.EffectiveEnd(), period)})
			})
		}

		merged := mergeSpans(survivorSpans)
		for i := 1; i < len(merged); i++ {
			assert.Truef(t, merged[i-1].end <= merged[i].start,
				"attempt %d: survivors %v overlap", attempt, merged)
		}

		sort.Slice(survivorSpans, func(i, j int) bool { return survivorSpans[i].start < survivorSpans[j].start })
		for i := 1; i < len(survivorSpans); i++ {
			assert.Truef(t, survivorSpans[i-1].end <= survivorSpans[i].start,
				"attempt %d: individual survivors %v double-cover a tick", attempt, survivorSpans)
		}

		assert.Equalf(t, totalTicks(mergeSpans(inputSpans)), totalTicks(merged),
			"attempt %d: union of surviving coverage changed from union of input coverage", attempt)

		validated++
	}
	assert.True(t, validated > 0, "no topology was actually exercised")
}

// randomGrowthOrder returns a permutation of 0..n-1 reachable by
// RecordIndex.Add's append/prepend whence logic: starting from a
// random index, each subsequent element extends the known contiguous
// range by one step, left or right, chosen at random. Any other
// permutation would require Add to place a record that isn't yet
// adjacent to the trace's current first or last record, which isn't
// what this index supports.
func randomGrowthOrder(rnd *rand.Rand, n int) []int {
	start := rnd.Intn(n)
	order := make([]int, 0, n)
	order = append(order, start)
	lo, hi := start, start
	for lo > 0 || hi < n-1 {
		goLeft := lo > 0 && (hi == n-1 || rnd.Intn(2) == 0)
		if goLeft {
			lo--
			order = append(order, lo)
		} else {
			hi++
			order = append(order, hi)
		}
	}
	return order
}

type triple struct {
	start, end seedtime.Tick
	quality    Quality
}

// indexInOrder builds a single continuous chain of n adjacent records
// at the given rate, feeding them to a fresh RecordIndex in the given
// arrival order, then returns the resulting trace's (start, end,
// quality) triples in time order.
func indexInOrder(t *testing.T, order []int, n int, rate float64, nsamp int) []triple {
	period := seedtime.SamplePeriod(rate)
	starts := make([]seedtime.Tick, n)
	ends := make([]seedtime.Tick, n)
	cur := seedtime.Tick(0)
	for i := 0; i < n; i++ {
		starts[i] = cur
		ends[i] = seedtime.Add(cur, period*int64(nsamp-1))
		cur = seedtime.Add(ends[i], period)
	}

	idx := NewRecordIndex()
	opts := &Opts{}
	for _, i := range order {
		f := &File{Path: "synthetic"}
		info := chanInfo(starts[i], ends[i], rate, nsamp, int64(i)*512)
		require.NoError(t, idx.Add(opts, f, info, starts[i], ends[i]))
	}

	traces := idx.Traces()
	require.Len(t, traces, 1)

	var out []triple
	traces[0].Records.Each(func(r *Record) {
		out = append(out, triple{r.EffectiveStart(), r.EffectiveEnd(), r.Quality})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// TestFileOrderInvarianceOfIndexing checks that the set of (start,
// end, quality) triples a continuous trace ends up with does not
// depend on the order its constituent records are handed to the
// index, as long as each arrival remains adjacent to the
// already-built span (the order a run processing the same records
// split across differently-ordered input files would produce).
func TestFileOrderInvarianceOfIndexing(t *testing.T) {
	rnd := rand.New(rand.NewSource(propertySeed))

	for attempt := 0; attempt < 30; attempt++ {
		n := 3 + rnd.Intn(8)
		orderA := randomGrowthOrder(rnd, n)
		orderB := randomGrowthOrder(rnd, n)

		tripA := indexInOrder(t, orderA, n, 1, 4)
		tripB := indexInOrder(t, orderB, n, 1, 4)

		assert.Equalf(t, tripA, tripB, "attempt %d: orders %v and %v produced different triples", attempt, orderA, orderB)
	}
}
