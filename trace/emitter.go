// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trace

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/dataselect/mseed"
	"github.com/grailbio/dataselect/seedtime"
)

// Sink is the emitter's output collaborator: a place to write one
// record's bytes. archive.Router and the single-file/replace-input
// modes below all implement it.
type Sink interface {
	// Write receives a fully prepared record buffer (already trimmed
	// and/or quality-restamped) for the given source file and record
	// key, and returns any write error.
	Write(ctx context.Context, f *File, key TraceKey, buf []byte) error
	// Close flushes and closes every output the sink opened.
	Close(ctx context.Context) error
}

// Emitter re-reads each surviving record's raw bytes from its source
// file, applies any quality restamp and sample-level trim, and hands
// the result to a Sink. It owns per-file read handles so records from
// the same file are not reopened per record.
type Emitter struct {
	opts    *Opts
	sink    Sink
	readers map[*File]*fileHandle
	failed  map[*File]error
	summary *Summary
}

type fileHandle struct {
	f file.File
	r io.ReadSeeker
}

// readAt seeks fh's underlying reader to off and reads exactly
// len(buf) bytes. Records are read one at a time per file, so a
// single shared ReadSeeker (rather than a true ReaderAt) is
// sufficient here.
func (fh *fileHandle) readAt(buf []byte, off int64) error {
	if _, err := fh.r.Seek(off, io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(fh.r, buf)
	return err
}

// NewEmitter returns an Emitter that writes through sink.
func NewEmitter(opts *Opts, sink Sink) *Emitter {
	return &Emitter{
		opts:    opts,
		sink:    sink,
		readers: make(map[*File]*fileHandle),
		failed:  make(map[*File]error),
		summary: &Summary{},
	}
}

// Summary returns the accumulated modification summary after Emit has
// run over every trace.
func (e *Emitter) Summary() *Summary { return e.summary }

// handleFor opens (or returns the cached handle for) f. A file that
// fails to open has its error cached so later records belonging to
// the same file fail fast without retrying the open.
func (e *Emitter) handleFor(ctx context.Context, f *File) (*fileHandle, error) {
	if fh, ok := e.readers[f]; ok {
		return fh, nil
	}
	if err, ok := e.failed[f]; ok {
		return nil, err
	}
	rf, err := file.Open(ctx, f.Path)
	if err != nil {
		err = errors.E(err, "trace: opening", f.Path, "for emit")
		e.failed[f] = err
		return nil, err
	}
	fh := &fileHandle{f: rf, r: rf.Reader(ctx)}
	e.readers[f] = fh
	return fh, nil
}

// EmitTrace writes every surviving record of t, in time order. stats
// is not modified here: its Records/Samples counters are filled in at
// indexing time by IndexFile. A single record's failure
// (its file won't open, its bytes won't read, or its trim can't be
// repacked) is logged and that record alone is skipped; every other
// record in the trace is still attempted. The returned error reports
// the first write-side failure encountered, if any, for the caller's
// diagnostics; it is not a signal to stop processing.
func (e *Emitter) EmitTrace(ctx context.Context, t *Trace, stats *Stats) error {
	var emitErr errors.Once
	removed, trimmed := 0, 0

	t.Records.Each(func(rec *Record) {
		if rec.Dropped {
			removed++
			rec.File.Removed++
			return
		}

		fh, err := e.handleFor(ctx, rec.File)
		if err != nil {
			log.Error.Printf("trace: %s: record at %s:%d skipped, file unavailable: %v", t.Key, rec.File.Path, rec.Offset, err)
			return
		}

		raw := make([]byte, rec.Length)
		if err := fh.readAt(raw, rec.Offset); err != nil {
			log.Error.Printf("trace: %s: reading record at %s:%d: %v, record skipped", t.Key, rec.File.Path, rec.Offset, err)
			return
		}

		buf := raw
		trimmedThis := false
		if rec.hasNewStart() || rec.hasNewEnd() {
			switch {
			case !trimSane(rec):
				log.Error.Printf("trace: %s: trim precondition violated for record at %s:%d, emitting untrimmed",
					t.Key, rec.File.Path, rec.Offset)
			default:
				out, err := trimRecord(raw, rec)
				if err != nil {
					log.Error.Printf("trace: %s: trim %s record at %s:%d: %v, record skipped", t.Key, rec.File.Path, rec.Offset, err)
					return
				}
				buf = out
				trimmedThis = true
				trimmed++
			}
		}

		if e.opts.RestampQuality != 0 {
			mseed.RestampQuality(buf, e.opts.RestampQuality)
		}

		if err := e.sink.Write(ctx, rec.File, t.Key, buf); err != nil {
			emitErr.Set(errors.E(err, fmt.Sprintf("trace: writing record for %s", t.Key)))
			return
		}

		rec.File.RecordsWritten++
		rec.File.SamplesWritten += recordSampleCount(rec, trimmedThis)
		rec.File.BytesWritten += int64(len(buf))
		if trimmedThis {
			rec.File.Trimmed++
		}

		recStart, recEnd := rec.EffectiveStart(), rec.EffectiveEnd()
		if !rec.File.Earliest.IsSet() || recStart < rec.File.Earliest {
			rec.File.Earliest = recStart
		}
		if !rec.File.Latest.IsSet() || recEnd > rec.File.Latest {
			rec.File.Latest = recEnd
		}
	})

	if removed > 0 || trimmed > 0 {
		e.summary.Add(t.Key.Channel, bestQuality(t), removed, trimmed)
	}
	return emitErr.Err()
}

// trimSane reports whether rec's NewStart/NewEnd satisfy the trim
// preconditions: whichever bound is set falls strictly inside
// (rec.Start, rec.End), and if both are set, NewStart precedes
// NewEnd. A violation means the trim should be skipped and the record
// emitted untrimmed rather than fed to trimRecord.
func trimSane(rec *Record) bool {
	if rec.hasNewStart() && (rec.NewStart <= rec.Start || rec.NewStart >= rec.End) {
		return false
	}
	if rec.hasNewEnd() && (rec.NewEnd <= rec.Start || rec.NewEnd >= rec.End) {
		return false
	}
	if rec.hasNewStart() && rec.hasNewEnd() && rec.NewStart >= rec.NewEnd {
		return false
	}
	return true
}

// recordSampleCount estimates the number of samples actually emitted
// for rec, accounting for a sample-level trim.
func recordSampleCount(rec *Record, trimmed bool) int {
	if !trimmed {
		return rec.Samples
	}
	period := seedtime.SamplePeriod(rec.Rate)
	if period == 0 {
		return rec.Samples
	}
	span := seedtime.Sub(rec.EffectiveEnd(), rec.EffectiveStart())
	n := int(span/period) + 1
	if n < 0 {
		n = 0
	}
	return n
}

// trimRecord unpacks raw, narrows its sample window to rec's
// NewStart/NewEnd and repacks it, matching trimrecord()/
// record_handler() in the original tool: the sample count to drop
// from either end is round(delta/period).
func trimRecord(raw []byte, rec *Record) ([]byte, error) {
	u, err := mseed.Unpack(raw)
	if err != nil {
		return nil, err
	}
	period := seedtime.SamplePeriod(rec.Rate)
	if period == 0 {
		return raw, nil
	}

	lo, hi := 0, len(u.Samples)
	if rec.hasNewStart() {
		delta := seedtime.Sub(rec.NewStart, rec.Start)
		n := int((delta + period/2) / period)
		if n > 0 {
			lo = n
		}
	}
	if rec.hasNewEnd() {
		delta := seedtime.Sub(rec.End, rec.NewEnd)
		n := int((delta + period/2) / period)
		if n > 0 {
			hi -= n
		}
	}
	if lo < 0 {
		lo = 0
	}
	if hi > len(u.Samples) {
		hi = len(u.Samples)
	}
	if lo >= hi {
		return nil, fmt.Errorf("trace: trim leaves no samples (lo=%d hi=%d of %d)", lo, hi, len(u.Samples))
	}

	u.Samples = u.Samples[lo:hi]
	u.Header.StartTime = rec.EffectiveStart()
	return mseed.Pack(u)
}

// Close releases every open source-file handle and the sink.
func (e *Emitter) Close(ctx context.Context) error {
	var once errors.Once
	for _, fh := range e.readers {
		once.Set(fh.f.Close(ctx))
	}
	once.Set(e.sink.Close(ctx))
	return once.Err()
}

// SingleFileSink writes every record to one output file, matching the
// default (-o) output mode.
type SingleFileSink struct {
	out file.File
	w   io.Writer
}

// NewSingleFileSink creates (or truncates) path and returns a Sink
// that writes every record to it in the order Write is called.
func NewSingleFileSink(ctx context.Context, path string) (*SingleFileSink, error) {
	if path == "" || path == "-" {
		return &SingleFileSink{w: os.Stdout}, nil
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "trace: creating output file", path)
	}
	return &SingleFileSink{out: out, w: out.Writer(ctx)}, nil
}

func (s *SingleFileSink) Write(ctx context.Context, f *File, key TraceKey, buf []byte) error {
	_, err := s.w.Write(buf)
	return err
}

func (s *SingleFileSink) Close(ctx context.Context) error {
	if s.out == nil {
		return nil
	}
	return s.out.Close(ctx)
}

// ReplaceInputSink rewrites each input file in place: the original is
// first renamed to "<path>.orig", and a fresh file at the original
// path receives the surviving/trimmed records for that file.
type ReplaceInputSink struct {
	// RemoveBackups deletes each "<path>.orig" backup once its
	// replacement has been written successfully, matching the
	// original tool's -nb/nobackups flag.
	RemoveBackups bool

	outputs map[string]file.File
	writers map[string]io.Writer
}

// NewReplaceInputSink returns a Sink for -R (replace input) mode.
func NewReplaceInputSink() *ReplaceInputSink {
	return &ReplaceInputSink{
		outputs: make(map[string]file.File),
		writers: make(map[string]io.Writer),
	}
}

func (s *ReplaceInputSink) Write(ctx context.Context, f *File, key TraceKey, buf []byte) error {
	w, ok := s.writers[f.Path]
	if !ok {
		if err := os.Rename(f.Path, f.Path+".orig"); err != nil {
			return errors.E(err, "trace: backing up", f.Path, "before replace")
		}
		out, err := file.Create(ctx, f.Path)
		if err != nil {
			return errors.E(err, "trace: recreating", f.Path, "for replace")
		}
		s.outputs[f.Path] = out
		w = out.Writer(ctx)
		s.writers[f.Path] = w
	}
	_, err := w.Write(buf)
	return err
}

func (s *ReplaceInputSink) Close(ctx context.Context) error {
	var once errors.Once
	for path, out := range s.outputs {
		once.Set(out.Close(ctx))
		if s.RemoveBackups {
			if err := os.Remove(path + ".orig"); err != nil {
				log.Error.Printf("trace: removing backup %s.orig: %v", path, err)
			}
		}
	}
	return once.Err()
}
