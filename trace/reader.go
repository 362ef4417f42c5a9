// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trace

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/dataselect/mseed"
)

// IndexFile reads every record of the file at path, applies sel, and
// indexes the survivors into rc.Index. It returns the File handle
// created for path (for later use by the Emitter); the number of
// records read is kept in that File's RecordsRead counter.
func IndexFile(ctx context.Context, rc *Context, sel *Selector, path string) (*File, error) {
	rf, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "trace: opening", path)
	}
	defer func() {
		if cerr := rf.Close(ctx); cerr != nil {
			log.Error.Printf("trace: closing %s: %v", path, cerr)
		}
	}()

	data, err := ioutil.ReadAll(rf.Reader(ctx))
	if err != nil {
		return nil, errors.E(err, "trace: reading", path)
	}

	f := NewFile(path)
	rc.files[path] = f
	mr := mseed.NewReader(bytes.NewReader(data))
	for {
		info, err := mr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error.Printf("trace: %s: %v", path, err)
			break
		}
		f.RecordsRead++

		start, end, ok := sel.Accept(info, rc.Opts.SampleLevelPrune)
		if !ok {
			log.Debug.Printf("trace: skipping record %s_%s_%s_%s (%c) at %s", info.Network, info.Station,
				info.Location, info.Channel, info.Quality, info.Start)
			continue
		}
		if err := rc.Index.Add(rc.Opts, f, info, start, end); err != nil {
			log.Error.Printf("trace: %v", err)
			continue
		}
		rc.Stats.Records++
		rc.Stats.Samples += info.NumSamples
	}
	rc.Stats.Files++
	return f, nil
}
