// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package podreq reads and writes GRAIL POD (Pool Of Data) request
// files: the tab-separated "h." index that pairs each archived
// Mini-SEED data file with the station/network/location/channel it
// holds and the time range a downstream consumer actually asked for.
package podreq

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/dataselect/seedtime"
)

// fieldCount is the number of tab-separated columns a request line
// must have to be recognized; lines with any other count are skipped.
const fieldCount = 10

// Record is one line of a POD request file: the NSLC identity of a
// channel, the data file holding it, and two time ranges for that
// file - the span of data it actually contains (DataStart/DataEnd)
// and the span a consumer requested (ReqStart/ReqEnd). Pruned data
// files that retain no coverage after processing are dropped from
// the rewritten request file.
type Record struct {
	Station   string
	Network   string
	Channel   string
	Location  string
	DataStart seedtime.Tick
	DataEnd   seedtime.Tick
	Filename  string
	HeaderDir string
	ReqStart  seedtime.Tick
	ReqEnd    seedtime.Tick

	// pruned marks a Record whose underlying file produced no
	// surviving output; ReadRequestFile never sets this, Group's
	// caller does after running the trace pipeline over it.
	pruned bool
}

// Pruned reports whether r's underlying file retained no coverage
// after pruning and should be dropped from a rewritten request file.
func (r *Record) Pruned() bool { return r.pruned }

// MarkPruned records that r's underlying file produced no output.
func (r *Record) MarkPruned() { r.pruned = true }

// DataPath returns the data file r refers to, rooted at dataDir:
// "<dataDir>/<station>/<filename>", matching the original tool's
// snprintf(tmpfilename, ..., "%s/%s/%s", poddatadir, ...->station, ...->filename).
func (r *Record) DataPath(dataDir string) string {
	return fmt.Sprintf("%s/%s/%s", dataDir, r.Station, r.Filename)
}

// ReadRequestFile parses path, grouping lines that name the same data
// file into a single Record whose time ranges span every grouped
// line, matching readreqfile()'s one-line-per-output-file invariant.
// A request file is assumed to never reference the same file under
// more than one channel.
func ReadRequestFile(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(err, "podreq: opening request file", path)
	}
	defer f.Close()

	byFilename := make(map[string]*Record)
	var order []*Record
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != fieldCount {
			log.Debug.Printf("podreq: skipping line %d of %s: want %d fields, got %d", lineno, path, fieldCount, len(fields))
			continue
		}

		rec, err := parseRecord(fields)
		if err != nil {
			log.Debug.Printf("podreq: skipping line %d of %s: %v", lineno, path, err)
			continue
		}

		if existing, ok := byFilename[rec.Filename]; ok {
			mergeInto(existing, rec)
			continue
		}
		byFilename[rec.Filename] = rec
		order = append(order, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "podreq: reading request file", path)
	}
	return order, nil
}

func parseRecord(f []string) (*Record, error) {
	dataStart, err := seedtime.ParseTimeString(f[4])
	if err != nil {
		return nil, fmt.Errorf("podreq: datastart: %w", err)
	}
	dataEnd, err := seedtime.ParseTimeString(f[5])
	if err != nil {
		return nil, fmt.Errorf("podreq: dataend: %w", err)
	}
	reqStart, err := seedtime.ParseTimeString(f[8])
	if err != nil {
		return nil, fmt.Errorf("podreq: reqstart: %w", err)
	}
	reqEnd, err := seedtime.ParseTimeString(f[9])
	if err != nil {
		return nil, fmt.Errorf("podreq: reqend: %w", err)
	}
	return &Record{
		Station:   f[0],
		Network:   f[1],
		Channel:   f[2],
		Location:  f[3],
		DataStart: dataStart,
		DataEnd:   dataEnd,
		Filename:  f[6],
		HeaderDir: f[7],
		ReqStart:  reqStart,
		ReqEnd:    reqEnd,
	}, nil
}

// mergeInto widens existing's time ranges to also cover dup, which is
// discarded; this is the outermost-times-of-any-grouping rule
// readreqfile() applies when the same file appears on multiple lines.
func mergeInto(existing, dup *Record) {
	if dup.DataStart < existing.DataStart {
		existing.DataStart = dup.DataStart
	}
	if dup.DataEnd > existing.DataEnd {
		existing.DataEnd = dup.DataEnd
	}
	if dup.ReqStart < existing.ReqStart {
		existing.ReqStart = dup.ReqStart
	}
	if dup.ReqEnd > existing.ReqEnd {
		existing.ReqEnd = dup.ReqEnd
	}
}

// WriteRequestFile writes records to path in the original tab-separated
// ten-column form, omitting any record marked Pruned.
func WriteRequestFile(path string, records []*Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.E(err, "podreq: creating request file", path)
	}
	defer f.Close()
	return writeRequestFile(f, records)
}

func writeRequestFile(w io.Writer, records []*Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		if r.pruned {
			continue
		}
		_, err := fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Station, r.Network, r.Channel, r.Location,
			formatSeedTime(r.DataStart), formatSeedTime(r.DataEnd),
			r.Filename, r.HeaderDir,
			formatSeedTime(r.ReqStart), formatSeedTime(r.ReqEnd))
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// formatSeedTime renders t as "YYYY,DDD,HH:MM:SS", the second-precision
// form the request file's strftime-based writer produces; sub-second
// precision is not meaningful for POD request bookkeeping.
func formatSeedTime(t seedtime.Tick) string {
	c := seedtime.ToCalendar(t)
	return fmt.Sprintf("%04d,%03d,%02d:%02d:%02d", c.Year, c.Day, c.Hour, c.Min, c.Sec)
}
