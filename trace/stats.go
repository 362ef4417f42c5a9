// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:generate protoc -I. -I../vendor -I../vendor/github.com/gogo/protobuf/protobuf --gogofaster_out=. summary.proto

package trace

import "fmt"

// Stats accumulates the basic run counters reported by -sum
// ("Files: N, Records: N, Samples: N").
type Stats struct {
	Files   int
	Records int
	Samples int
}

// String renders Stats in the original tool's basic-summary format.
func (s *Stats) String() string {
	return fmt.Sprintf("Files: %d, Records: %d, Samples: %d", s.Files, s.Records, s.Samples)
}

// SummaryEntry is one line of the modification summary (-mod): how
// many records of a given NSLC/quality were removed outright versus
// trimmed at the sample level.
type SummaryEntry struct {
	Channel ChannelKey
	Quality Quality
	Removed int
	Trimmed int
}

// Summary is the full modification report for a run, one entry per
// (channel, quality) pair touched by the pruner. It is a plain
// JSON-marshaled struct rather than a gogo-protobuf generated type;
// see the schema note in trace/summary.proto for why the generated
// code itself is not checked in.
type Summary struct {
	Entries []SummaryEntry
}

// Merge folds other's entries into s, combining counts for any
// (channel, quality) pair both already report.
func (s *Summary) Merge(other *Summary) {
	if other == nil {
		return
	}
	for _, e := range other.Entries {
		s.Add(e.Channel, e.Quality, e.Removed, e.Trimmed)
	}
}

// Add records one pruning decision (a drop or a sample-level trim)
// against the entry for key/quality, creating it if necessary.
func (s *Summary) Add(key ChannelKey, q Quality, removed, trimmed int) {
	for i := range s.Entries {
		e := &s.Entries[i]
		if e.Channel == key && e.Quality == q {
			e.Removed += removed
			e.Trimmed += trimmed
			return
		}
	}
	s.Entries = append(s.Entries, SummaryEntry{Channel: key, Quality: q, Removed: removed, Trimmed: trimmed})
}
