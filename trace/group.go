// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trace

import "sort"

// SortedTraces returns every trace in idx ordered the way the pruner
// needs to scan for overlaps: by NSLC lexically, then by rate
// ascending, then by start time ascending, then (for equal starts) by
// end time descending so the longer trace of a tied pair is
// considered the higher-priority one first.
func SortedTraces(idx *RecordIndex) []*Trace {
	traces := idx.Traces()
	sort.Slice(traces, func(i, j int) bool {
		a, b := traces[i], traces[j]
		if a.Key.Channel.String() != b.Key.Channel.String() {
			return a.Key.Channel.String() < b.Key.Channel.String()
		}
		if a.Key.Rate != b.Key.Rate {
			return a.Key.Rate < b.Key.Rate
		}
		aStart, aEnd, _ := a.Span()
		bStart, bEnd, _ := b.Span()
		if aStart != bStart {
			return aStart < bStart
		}
		return aEnd > bEnd
	})
	return traces
}
