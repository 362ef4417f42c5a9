// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trace

import (
	"sort"

	"github.com/grailbio/dataselect/mseed"
	"github.com/grailbio/dataselect/seedtime"
)

// timeSegment is one contiguous span of coverage in a higher-priority
// trace, used to decide whether a lower-priority record is
// completely redundant.
type timeSegment struct {
	start, end seedtime.Tick
}

// PruneRecordLevel implements trimtraces: for every pair of traces
// sharing an NSLC and a tolerable rate that overlap in time, records
// of the lower-priority trace that are completely covered by the
// higher-priority trace's coverage are marked Dropped. When
// opts.SampleLevelPrune is set, lower-priority records straddling the
// higher-priority trace's overall start or end are also narrowed (see
// trimAgainst).
func PruneRecordLevel(opts *Opts, traces []*Trace) {
	for i, t := range traces {
		for j := i + 1; j < len(traces); j++ {
			o := traces[j]
			if t.Key.Channel != o.Key.Channel || !mseed.RateTolerableWithin(t.Key.Rate, o.Key.Rate, opts.RateToleranceFraction()) {
				continue
			}
			tStart, tEnd, tok := t.Span()
			oStart, oEnd, ook := o.Span()
			if !tok || !ook {
				continue
			}
			if !(tEnd > oStart && tStart < oEnd) {
				continue
			}

			hp, lp := pickPriority(opts, t, tStart, tEnd, o, oStart, oEnd)
			trimAgainst(opts, lp, hp)
		}
	}
}

// pickPriority returns (higher-priority, lower-priority) of the pair,
// honoring EqualQualities and falling back to longer-span-wins exactly
// as qcompare()'s caller does in the original tool.
func pickPriority(opts *Opts, a *Trace, aStart, aEnd seedtime.Tick, b *Trace, bStart, bEnd seedtime.Tick) (hp, lp *Trace) {
	if !opts.EqualQualities {
		aq, bq := bestQuality(a), bestQuality(b)
		if aq.Higher(bq) {
			return a, b
		}
		if bq.Higher(aq) {
			return b, a
		}
	}
	if seedtime.Sub(aEnd, aStart) > seedtime.Sub(bEnd, bStart) {
		return a, b
	}
	return b, a
}

// bestQuality returns the highest-priority quality indicator present
// among a trace's live (non-dropped) records.
func bestQuality(t *Trace) Quality {
	var best Quality
	first := true
	t.Records.Each(func(r *Record) {
		if r.Dropped {
			return
		}
		if first || r.Quality.Higher(best) {
			best = r.Quality
			first = false
		}
	})
	return best
}

// trimAgainst marks lp's fully-covered records as dropped based on
// hp's coverage, and (when sample-level pruning is requested)
// narrows lp's records that straddle hp's overall start/end.
func trimAgainst(opts *Opts, lp, hp *Trace) {
	segs := buildCoverage(opts, hp)
	if len(segs) == 0 {
		return
	}
	hpStart, hpEnd, _ := hp.Span()
	period := seedtime.SamplePeriod(hp.Key.Rate)

	lp.Records.Each(func(rec *Record) {
		if rec.Dropped {
			return
		}
		effStart, effEnd := rec.EffectiveStart(), rec.EffectiveEnd()

		if coveredBy(segs, effStart, effEnd) {
			rec.Dropped = true
			return
		}

		if !opts.SampleLevelPrune {
			return
		}
		// Record overlaps the beginning of HP's overall coverage.
		if effStart <= hpStart && effEnd >= hpStart {
			rec.NewEnd = seedtime.Add(hpStart, -period)
		}
		// Record overlaps the end of HP's overall coverage.
		if effStart <= hpEnd && effEnd >= hpEnd {
			rec.NewStart = seedtime.Add(hpEnd, period)
		}
	})
}

// buildCoverage walks hp's live records in time order and merges
// adjacent/near-adjacent ones into timeSegments, breaking a segment
// whenever the gap to the next record exceeds the rate's time
// tolerance. This mirrors the HP-trace optimization in trimtraces():
// comparing against segments instead of every individual record.
func buildCoverage(opts *Opts, hp *Trace) []timeSegment {
	period := seedtime.SamplePeriod(hp.Key.Rate)
	tol := opts.TimeToleranceTicks(hp.Key.Rate)

	var segs []timeSegment
	haveOpen := false
	hp.Records.Each(func(rec *Record) {
		if rec.Dropped {
			return
		}
		s, e := rec.EffectiveStart(), rec.EffectiveEnd()
		if haveOpen {
			last := &segs[len(segs)-1]
			if seedtime.Abs(seedtime.Sub(seedtime.Add(last.end, period), s)) <= tol {
				if e > last.end {
					last.end = e
				}
				return
			}
		}
		segs = append(segs, timeSegment{start: s, end: e})
		haveOpen = true
	})
	return segs
}

// coveredBy reports whether [start, end] falls entirely within one
// timeSegment of segs. segs is produced in time order by
// buildCoverage, so a binary search on segment start locates the only
// candidate segment that could contain it.
func coveredBy(segs []timeSegment, start, end seedtime.Tick) bool {
	i := sort.Search(len(segs), func(i int) bool { return segs[i].start > start })
	if i == 0 {
		return false
	}
	seg := segs[i-1]
	return start >= seg.start && end <= seg.end
}
