// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package podreq

import (
	"context"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/dataselect/trace"
)

// channelKey groups request records the same way processpod() does:
// complete NSLC match, grouping is a memory-footprint optimization
// since every record in a request file is pruned regardless of group.
type channelKey struct {
	network, station, location, channel string
}

func keyOf(r *Record) channelKey {
	return channelKey{network: r.Network, station: r.Station, location: r.Location, channel: r.Channel}
}

// groupByChannel partitions records into NSLC-homogeneous batches,
// preserving first-seen order of both groups and records within a
// group.
func groupByChannel(records []*Record) [][]*Record {
	order := make([]channelKey, 0)
	groups := make(map[channelKey][]*Record)
	for _, r := range records {
		k := keyOf(r)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}
	out := make([][]*Record, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k])
	}
	return out
}

// ProcessPOD implements processpod(): it reads requestFile, groups its
// records by channel, and for each group runs a full trace pipeline
// (index, prune, emit) in place over the group's underlying data
// files in dataDir, applying opts (the replace sink's RemoveBackups
// comes from the removeBackups argument, since it is a sink-level
// policy, not a trace.Opts field).
// On completion it backs up requestFile to "<requestFile>.orig" and
// rewrites it with any record that retained no coverage removed.
func ProcessPOD(ctx context.Context, opts *trace.Opts, removeBackups bool, requestFile, dataDir string) (*trace.Summary, error) {
	records, err := ReadRequestFileCached(requestFile)
	if err != nil {
		return nil, err
	}
	log.Debug.Printf("podreq: read %d request records from %s", len(records), requestFile)

	overall := &trace.Summary{}
	for _, group := range groupByChannel(records) {
		if err := processGroup(ctx, opts, removeBackups, dataDir, group, overall); err != nil {
			log.Error.Printf("podreq: processing channel group %s.%s.%s.%s: %v",
				group[0].Network, group[0].Station, group[0].Location, group[0].Channel, err)
		}
	}

	live := make([]*Record, 0, len(records))
	for _, r := range records {
		if !r.Pruned() {
			live = append(live, r)
		}
	}

	backup := requestFile + ".orig"
	if err := os.Rename(requestFile, backup); err != nil {
		log.Error.Printf("podreq: renaming %s -> %s: %v", requestFile, backup, err)
	}
	if err := WriteRequestFile(requestFile, live); err != nil {
		return nil, errors.E(err, "podreq: rewriting request file", requestFile)
	}
	return overall, nil
}

// processGroup runs the trace pipeline over one NSLC group's data
// files, then folds each file's actual written coverage back into its
// request record (or marks the record pruned if nothing survived).
func processGroup(ctx context.Context, opts *trace.Opts, removeBackups bool, dataDir string, group []*Record, overall *trace.Summary) error {
	paths := make([]string, len(group))
	byPath := make(map[string]*Record, len(group))
	for i, r := range group {
		path := r.DataPath(dataDir)
		paths[i] = path
		byPath[path] = r
	}

	trace.RaiseFileLimit(len(paths), opts.FileLimitSlack)

	rc := trace.NewContext(opts)
	sel, err := trace.NewSelector(opts)
	if err != nil {
		return err
	}

	sink := trace.NewReplaceInputSink()
	sink.RemoveBackups = removeBackups

	summary, err := trace.Run(ctx, rc, sel, paths, sink)
	if err != nil {
		return err
	}
	overall.Merge(summary)

	for path, f := range rc.Files() {
		r, ok := byPath[path]
		if !ok {
			continue
		}
		if f.RecordsWritten == 0 {
			r.MarkPruned()
			continue
		}
		r.DataStart = f.Earliest
		r.DataEnd = f.Latest
	}
	return nil
}
