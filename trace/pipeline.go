// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trace

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Run indexes every file in paths into rc, prunes the resulting
// traces when opts.Prune is set (record-level drop, plus sample-level
// trim when opts.SampleLevelPrune is also set) and emits every surviving record
// through sink, in the same readfiles/processtraces/writetraces
// sequence the original tool uses both for its command-line mode and
// for each POD channel group.
//
// A file that fails to open or read is logged and skipped; indexing
// continues with the remaining files, and whatever was successfully
// indexed before the failure is still pruned and emitted. Partial
// success is the norm, not an error: Run only returns a non-nil error
// when the emit phase itself cannot be closed out (a structural
// output failure, not a single bad record or a single bad file).
func Run(ctx context.Context, rc *Context, sel *Selector, paths []string, sink Sink) (*Summary, error) {
	for _, path := range paths {
		if _, err := IndexFile(ctx, rc, sel, path); err != nil {
			log.Error.Printf("trace: indexing %s: %v", path, err)
		}
	}

	traces := SortedTraces(rc.Index)
	if rc.Opts.Prune {
		PruneRecordLevel(rc.Opts, traces)
	}

	emitter := NewEmitter(rc.Opts, sink)
	for _, t := range traces {
		if err := emitter.EmitTrace(ctx, t, rc.Stats); err != nil {
			log.Error.Printf("trace: emitting %s: %v", t.Key, err)
		}
	}

	var closeErr errors.Once
	closeErr.Set(emitter.Close(ctx))
	if err := closeErr.Err(); err != nil {
		return emitter.Summary(), errors.E(err, "trace: closing emitter")
	}
	return emitter.Summary(), nil
}
