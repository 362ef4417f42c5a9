// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trace

import (
	"fmt"

	"github.com/dgryski/go-farm"
	"github.com/grailbio/base/log"
	"github.com/grailbio/dataselect/mseed"
	"github.com/grailbio/dataselect/seedtime"
)

// whence records where a newly matched record falls relative to the
// trace it was placed into.
type whence int

const (
	whenceNew whence = iota
	whenceAppend
	whencePrepend
)

// RecordIndex owns the full set of Traces built up over a run: one
// Trace per (channel, rate) pair, keyed by a farm-hashed bucket for
// fast lookup, matching mst_addmsrtogroup's linear trace group scan
// but backed by a hash map since traces in this tool can number in
// the tens of thousands.
type RecordIndex struct {
	buckets map[uint64][]*Trace
}

// NewRecordIndex returns an empty index.
func NewRecordIndex() *RecordIndex {
	return &RecordIndex{buckets: make(map[uint64][]*Trace)}
}

func bucketHash(k ChannelKey) uint64 {
	return farm.Hash64([]byte(k.String()))
}

// Traces returns every trace currently in the index, in no particular
// order; callers that need the group's canonical ordering should use
// SortedTraces (group.go).
func (idx *RecordIndex) Traces() []*Trace {
	var out []*Trace
	for _, bucket := range idx.buckets {
		out = append(out, bucket...)
	}
	return out
}

func (idx *RecordIndex) findTrace(key TraceKey, rateTol float64) *Trace {
	for _, t := range idx.buckets[bucketHash(key.Channel)] {
		if t.Key.Channel == key.Channel && mseed.RateTolerableWithin(t.Key.Rate, key.Rate, rateTol) {
			return t
		}
	}
	return nil
}

func (idx *RecordIndex) addTrace(t *Trace) {
	h := bucketHash(t.Key.Channel)
	idx.buckets[h] = append(idx.buckets[h], t)
}

// Add indexes one incoming record, already clipped to [start, end] by
// a Selector. f is the File it physically lives in; offset/length its
// byte range. It performs calendar-boundary splitting per opts before
// splicing the resulting sub-list into the trace's RecordMap, per the
// newrecmap decision recorded in SPEC_FULL.md.
func (idx *RecordIndex) Add(opts *Opts, f *File, info mseed.RecordInfo, start, end seedtime.Tick) error {
	key := TraceKey{
		Channel: ChannelKey{Network: info.Network, Station: info.Station, Location: info.Location, Channel: info.Channel},
		Rate:    info.SampleRate,
	}

	rec := &Record{
		File:    f,
		Offset:  info.Offset,
		Length:  info.Length,
		Start:   info.Start,
		End:     info.End,
		Quality: Quality(info.Quality),
		Rate:    info.SampleRate,
		Samples: info.NumSamples,
	}
	if start != info.Start {
		rec.NewStart = start
	}
	if end != info.End {
		rec.NewEnd = end
	}

	trc := idx.findTrace(key, opts.RateToleranceFraction())
	w := whenceNew
	if trc != nil {
		last := trc.Records.Last()
		first := trc.Records.First()
		period := seedtime.SamplePeriod(trc.Key.Rate)
		tol := opts.TimeToleranceTicks(trc.Key.Rate)
		switch {
		case last != nil && seedtime.EqualWithin(rec.EffectiveStart(), seedtime.Add(last.EffectiveEnd(), period), tol):
			w = whenceAppend
		case first != nil && seedtime.EqualWithin(rec.EffectiveEnd(), seedtime.Add(first.EffectiveStart(), -period), tol):
			w = whencePrepend
		case rec.Start == rec.End:
			// Zero-span record: tie-break on proximity to either end,
			// matching the "no span" branch of readfiles()'s whence logic.
			toEnd := seedtime.Abs(seedtime.Sub(rec.Start, last.EffectiveEnd()))
			toStart := seedtime.Abs(seedtime.Sub(rec.Start, first.EffectiveStart()))
			if toEnd < toStart {
				w = whenceAppend
			} else {
				w = whencePrepend
			}
		default:
			return fmt.Errorf("trace: cannot determine where record fits relative to trace %s (rec %s..%s, trace %s..%s)",
				key, rec.Start, rec.End, first.EffectiveStart(), last.EffectiveEnd())
		}
	} else {
		trc = &Trace{Key: key}
		idx.addTrace(trc)
	}

	head := rec
	if opts.SplitUnit != SplitNone {
		head = splitOnBoundary(rec, opts.SplitUnit)
	}

	switch w {
	case whenceAppend:
		trc.Records.PushBack(head)
	case whencePrepend:
		if head.next != nil {
			log.Error.Printf("trace: %s: splitter output prepended out of order", key)
			head.File.Reordered++
		}
		trc.Records.PushFront(head)
	default:
		trc.Records.PushBack(head)
	}
	return nil
}
