// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package trace is the core dataselect pipeline: indexing records into
// per-channel traces, pruning overlaps, splitting records on calendar
// boundaries and emitting the result. Everything outside this package
// (mseed, archive, podreq) is a pluggable collaborator; trace itself
// never touches a flag or an os.Args.
package trace

import (
	"fmt"

	"github.com/grailbio/dataselect/seedtime"
)

// Quality is a Mini-SEED data quality indicator. The three indicators
// used by real data form a total order: Quality-controlled data beats
// Data-of-unknown-quality which beats Raw.
type Quality byte

const (
	QualityRaw     Quality = 'R'
	QualityData    Quality = 'D'
	QualityChecked Quality = 'Q'
)

// rank orders qualities for priority comparisons, matching qcompare()
// in the original tool: Q > D > R.
func (q Quality) rank() int {
	switch q {
	case QualityChecked:
		return 3
	case QualityData:
		return 2
	case QualityRaw:
		return 1
	default:
		return 0
	}
}

// Higher reports whether q has strictly higher priority than other.
func (q Quality) Higher(other Quality) bool {
	return q.rank() > other.rank()
}

func (q Quality) String() string {
	return string(rune(q))
}

// ChannelKey identifies a single data channel: network, station,
// location and channel code, the "NSLC" of a Mini-SEED stream.
type ChannelKey struct {
	Network  string
	Station  string
	Location string
	Channel  string
}

func (k ChannelKey) String() string {
	return fmt.Sprintf("%s_%s_%s_%s", k.Network, k.Station, k.Location, k.Channel)
}

// TraceKey identifies one trace: a channel at one nominal sample rate.
// The same channel recorded at two different rates (a rare but real
// occurrence across instrument changes) produces two distinct traces.
type TraceKey struct {
	Channel ChannelKey
	Rate    float64
}

func (k TraceKey) String() string {
	return fmt.Sprintf("%s@%v", k.Channel, k.Rate)
}

// Record describes one physical Mini-SEED record: where its bytes live
// (which File, at what byte offset and length) and the time span,
// quality and rate it covers. newStart/newEnd, when set, narrow the
// span the emitter should actually write for this record; a record
// whose effective length has been pruned to zero is dropped entirely
// rather than emitted.
type Record struct {
	File    *File
	Offset  int64
	Length  int
	Start   seedtime.Tick
	End     seedtime.Tick
	Quality Quality
	Rate    float64
	Samples int

	// NewStart/NewEnd narrow the emitted sample window when non-zero
	// and not seedtime.Unset (see hasNewStart/hasNewEnd); a bound of
	// exactly tick 0 therefore cannot be expressed. Dropped is set
	// when the whole record is pruned away.
	NewStart seedtime.Tick
	NewEnd   seedtime.Tick
	Dropped  bool

	// Doubly-linked, time-ordered list within a Trace's RecordMap.
	prev *Record
	next *Record
}

// hasNewStart reports whether NewStart narrows the record's start.
func (r *Record) hasNewStart() bool { return r.NewStart != 0 && r.NewStart.IsSet() }

// hasNewEnd reports whether NewEnd narrows the record's end.
func (r *Record) hasNewEnd() bool { return r.NewEnd != 0 && r.NewEnd.IsSet() }

// EffectiveStart returns the start of the span this record will
// actually emit, honoring any sample-level trim.
func (r *Record) EffectiveStart() seedtime.Tick {
	if r.hasNewStart() {
		return r.NewStart
	}
	return r.Start
}

// EffectiveEnd returns the end of the span this record will actually
// emit, honoring any sample-level trim.
func (r *Record) EffectiveEnd() seedtime.Tick {
	if r.hasNewEnd() {
		return r.NewEnd
	}
	return r.End
}

// RecordMap is a doubly-linked, time-ordered list of a Trace's
// constituent records. Splicing in new records (append/prepend/new
// trace) and splitting on calendar boundaries are both O(1) per
// record once the insertion point is known.
type RecordMap struct {
	head *Record
	tail *Record
	size int
}

// Len returns the number of records currently in the map.
func (m *RecordMap) Len() int { return m.size }

// First returns the earliest record, or nil if the map is empty.
func (m *RecordMap) First() *Record { return m.head }

// Last returns the latest record, or nil if the map is empty.
func (m *RecordMap) Last() *Record { return m.tail }

// PushBack appends rec (and rec's own next-chain, if any) to the end
// of the map. This is how RecordIndex splices in a splitter-produced
// sub-list atomically, per the newrecmap merge decision in
// SPEC_FULL.md.
func (m *RecordMap) PushBack(rec *Record) {
	if rec == nil {
		return
	}
	first := rec
	last := rec
	for last.next != nil {
		last = last.next
	}
	if m.tail == nil {
		m.head = first
		m.tail = last
	} else {
		m.tail.next = first
		first.prev = m.tail
		m.tail = last
	}
	for r := first; r != nil; r = r.next {
		m.size++
		if r == last {
			break
		}
	}
}

// PushFront prepends rec (and rec's own next-chain, if any) to the
// start of the map, keeping the chain's internal order.
func (m *RecordMap) PushFront(rec *Record) {
	if rec == nil {
		return
	}
	last := rec
	n := 1
	for last.next != nil {
		last = last.next
		n++
	}
	if m.head == nil {
		m.tail = last
	} else {
		last.next = m.head
		m.head.prev = last
	}
	m.head = rec
	m.size += n
}

// Each calls fn for every record in time order. fn may mark records as
// Dropped but must not mutate the list structure itself.
func (m *RecordMap) Each(fn func(*Record)) {
	for r := m.head; r != nil; r = r.next {
		fn(r)
	}
}

// Remove unlinks rec from the map.
func (m *RecordMap) Remove(rec *Record) {
	if rec.prev != nil {
		rec.prev.next = rec.next
	} else if m.head == rec {
		m.head = rec.next
	}
	if rec.next != nil {
		rec.next.prev = rec.prev
	} else if m.tail == rec {
		m.tail = rec.prev
	}
	rec.prev = nil
	rec.next = nil
	m.size--
}

// Trace is one continuous channel-at-rate timeline: an ordered
// RecordMap plus the TraceKey identifying it.
type Trace struct {
	Key     TraceKey
	Records RecordMap
}

// Span returns the trace's earliest start and latest effective end.
// ok is false for an empty trace.
func (t *Trace) Span() (start, end seedtime.Tick, ok bool) {
	first := t.Records.First()
	last := t.Records.Last()
	if first == nil || last == nil {
		return 0, 0, false
	}
	return first.EffectiveStart(), last.EffectiveEnd(), true
}

// File is one input Mini-SEED file, tracked for its per-file counters
// (records read, records/samples emitted) and for re-opening during
// the emit pass.
type File struct {
	Path           string
	RecordsRead    int
	RecordsWritten int
	SamplesWritten int

	// BytesWritten is the sum of every emitted record buffer's length
	// for this file; invariant 5 requires this to sum across files to
	// the total bytes the run emitted.
	BytesWritten int64

	// Reordered counts records whose whence placement (group.go/
	// index.go) required a prepend after the splitter had already
	// produced later records, the file-level echo of the reordering
	// warning logged at the point of occurrence.
	Reordered int
	// Split counts the calendar-boundary split points actually applied
	// to this file's records (splitter.go).
	Split int
	// Trimmed and Removed are this file's contribution to the
	// cross-file Summary: records sample-trimmed and records dropped
	// outright during pruning/emit.
	Trimmed int
	Removed int

	// Earliest and Latest span the ticks actually written for this
	// file, updated as each surviving record is emitted. Used by
	// podreq to report the post-pruning coverage of a POD data file
	// back into the request record.
	Earliest seedtime.Tick
	Latest   seedtime.Tick
}

// NewFile returns a File ready for indexing, with Earliest/Latest
// unset until the emit pass records actual written coverage.
func NewFile(path string) *File {
	return &File{Path: path, Earliest: seedtime.Unset, Latest: seedtime.Unset}
}
