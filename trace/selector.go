// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trace

import (
	"fmt"

	"github.com/grailbio/dataselect/mseed"
	"github.com/grailbio/dataselect/seedtime"
)

// Selector decides which incoming records are indexed at all, and
// what portion of a kept record's span survives an explicit
// window. It implements steps 1-3 of the indexing pipeline: NSLC_Q
// match/reject, time window clip, and degenerate-span rejection.
type Selector struct {
	opts       *Opts
	winStart   seedtime.Tick
	winEnd     seedtime.Tick
	haveWindow bool
}

// NewSelector builds a Selector from opts, parsing the Start/End
// window strings once up front.
func NewSelector(opts *Opts) (*Selector, error) {
	s := &Selector{opts: opts}
	if opts.Start == "" && opts.End == "" {
		return s, nil
	}
	s.haveWindow = true
	if opts.Start != "" {
		t, err := seedtime.ParseTimeString(opts.Start)
		if err != nil {
			return nil, fmt.Errorf("trace: invalid start time %q: %w", opts.Start, err)
		}
		s.winStart = t
	} else {
		s.winStart = seedtime.Unset
	}
	if opts.End != "" {
		t, err := seedtime.ParseTimeString(opts.End)
		if err != nil {
			return nil, fmt.Errorf("trace: invalid end time %q: %w", opts.End, err)
		}
		s.winEnd = t
	} else {
		s.winEnd = seedtime.Unset
	}
	return s, nil
}

// Accept reports whether info should be indexed, and if so the
// clipped [start, end] span to index it under. A record that falls
// entirely outside the window is always dropped. A record that
// straddles a window boundary is narrowed (newstart/newend) only when
// sampleLevelPrune is set; otherwise it is dropped entirely, matching
// the original tool's plain/-Pr window behavior (only -Ps narrows a
// boundary-straddling record instead of discarding it).
func (s *Selector) Accept(info mseed.RecordInfo, sampleLevelPrune bool) (start, end seedtime.Tick, ok bool) {
	key := fmt.Sprintf("%s_%s_%s_%s_%c", info.Network, info.Station, info.Location, info.Channel, info.Quality)
	if s.opts.Reject != nil && s.opts.Reject.MatchString(key) {
		return 0, 0, false
	}
	if s.opts.Match != nil && !s.opts.Match.MatchString(key) {
		return 0, 0, false
	}

	start, end = info.Start, info.End
	if s.haveWindow {
		if s.winStart.IsSet() && end < s.winStart {
			return 0, 0, false
		}
		if s.winEnd.IsSet() && start > s.winEnd {
			return 0, 0, false
		}

		straddlesStart := s.winStart.IsSet() && start < s.winStart
		straddlesEnd := s.winEnd.IsSet() && end > s.winEnd
		if straddlesStart || straddlesEnd {
			if !sampleLevelPrune {
				return 0, 0, false
			}
			if straddlesStart {
				start = s.winStart
			}
			if straddlesEnd {
				end = s.winEnd
			}
		}
	}
	if end < start {
		return 0, 0, false
	}
	return start, end, true
}
