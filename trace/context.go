// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trace

import (
	"regexp"

	"github.com/grailbio/dataselect/mseed"
	"github.com/grailbio/dataselect/seedtime"
)

// Opts holds every tunable of a dataselect run. The cmd layer is
// responsible for turning flags into an Opts; trace itself never
// parses a flag.
type Opts struct {
	// Selection.
	Match  *regexp.Regexp // only NSLC_Q keys matching are kept, nil means all
	Reject *regexp.Regexp // NSLC_Q keys matching are dropped, nil means none
	Start  string         // inclusive window start, SEED time string, "" means unbounded
	End    string         // inclusive window end, SEED time string, "" means unbounded

	// Quality handling.
	RestampQuality byte // 0 means do not restamp; else overwrite every output record's quality byte
	EqualQualities bool // treat all qualities as equal priority (length-only comparison) during pruning

	// Prune gates pruning entirely, matching the original tool's
	// "-Pr"/"-Ps" flags: false leaves every record in place.
	// SampleLevelPrune additionally trims a surviving record's sample
	// window against the higher-priority trace's overall start/end,
	// and only has an effect when Prune is also set.
	Prune            bool
	SampleLevelPrune bool

	// TimeTolerance is the user-supplied continuity/overlap tolerance
	// in seconds (the "-tt" flag). Zero means "use the default",
	// SamplePeriod/2 at the rate in question.
	TimeTolerance float64
	// RateTolerance is the user-supplied relative rate tolerance (the
	// "-rt" flag), e.g. 0.0001 for 0.01%. Zero means "use the
	// default", mseed.DefaultRateTolerance.
	RateTolerance float64

	// Splitting.
	SplitUnit SplitUnit // calendar boundary to split records on; SplitNone disables

	// Resource limits.
	FileLimitSlack int // extra descriptors requested beyond 2*filecount, per the setofilelimit policy

	// Output routing: exactly one of OutputFile, ReplaceInput or
	// ArchiveTemplate should be set by the caller.
	OutputFile      string // write every trace to one file, in trace-then-time order
	ReplaceInput    bool   // rewrite each input file in place, keeping a .orig backup
	ArchiveTemplate string // %-template archive path, expanded per record

	// Summaries.
	PrintBasicSummary bool
	PrintModSummary   bool
}

// SplitUnit names the calendar boundary records are split on.
type SplitUnit int

const (
	SplitNone SplitUnit = iota
	SplitDay
	SplitHour
	SplitMinute
)

// Context carries the process-wide state a dataselect run threads
// through every stage: the parsed options, the channel->trace index
// being built, and the running summary. Grouping these into one value
// avoids a sprawl of near-identical parameter lists across index.go,
// group.go, pruner.go, splitter.go and emitter.go.
type Context struct {
	Opts  *Opts
	Index *RecordIndex
	Stats *Stats

	files map[string]*File
}

// NewContext allocates a Context ready to index records under opts.
func NewContext(opts *Opts) *Context {
	return &Context{
		Opts:  opts,
		Index: NewRecordIndex(),
		Stats: &Stats{},
		files: make(map[string]*File),
	}
}

// Files returns every File indexed into rc so far, keyed by path;
// podreq uses this to fold each file's post-pruning coverage back
// into its request record.
func (rc *Context) Files() map[string]*File { return rc.files }

// TimeToleranceTicks returns the continuity/overlap tolerance to use
// at the given nominal rate, honoring an explicit -tt override and
// falling back to seedtime.DefaultTolerance otherwise.
func (o *Opts) TimeToleranceTicks(rate float64) int64 {
	if o.TimeTolerance > 0 {
		return seedtime.SecondsToTicks(o.TimeTolerance)
	}
	return seedtime.DefaultTolerance(rate)
}

// RateToleranceFraction returns the relative rate tolerance to use,
// honoring an explicit -rt override and falling back to
// mseed.DefaultRateTolerance otherwise.
func (o *Opts) RateToleranceFraction() float64 {
	if o.RateTolerance > 0 {
		return o.RateTolerance
	}
	return mseed.DefaultRateTolerance
}
