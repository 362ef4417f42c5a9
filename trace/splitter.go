// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trace

import "github.com/grailbio/dataselect/seedtime"

func unitOf(u SplitUnit) seedtime.Unit {
	switch u {
	case SplitDay:
		return seedtime.UnitDay
	case SplitHour:
		return seedtime.UnitHour
	case SplitMinute:
		return seedtime.UnitMinute
	default:
		return seedtime.UnitNone
	}
}

// splitOnBoundary clones rec across successive calendar boundaries
// until its span no longer crosses one, returning the head of the
// resulting chain (rec itself, with .next pointing at any clones).
// Each clone's NewStart/NewEnd narrow it to its slice of the original
// span; a clone's sample payload is re-derived from its narrowed
// window by the emitter, not by this function.
func splitOnBoundary(rec *Record, unit SplitUnit) *Record {
	u := unitOf(unit)
	if u == seedtime.UnitNone {
		return rec
	}
	period := seedtime.SamplePeriod(rec.Rate)

	cur := rec
	for {
		effStart := cur.EffectiveStart()
		boundary := seedtime.NextBoundary(effStart, u)
		if !boundary.IsSet() || cur.EffectiveEnd() <= boundary {
			break
		}

		clone := &Record{
			File:    cur.File,
			Offset:  cur.Offset,
			Length:  cur.Length,
			Start:   cur.Start,
			End:     cur.End,
			NewEnd:  cur.NewEnd,
			Quality: cur.Quality,
			Rate:    cur.Rate,
		}
		clone.NewStart = boundary

		cur.NewEnd = seedtime.Add(boundary, -period)
		cur.File.Split++
		clone.next = cur.next
		cur.next = clone
		cur = clone
	}
	return rec
}
