// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/dataselect/mseed"
	"github.com/grailbio/dataselect/trace"
)

// WriterOpener opens an io.WriteCloser for a fully expanded archive
// path. FileWriterOpener and S3WriterOpener are the two concrete
// implementations this package provides.
type WriterOpener interface {
	Open(ctx context.Context, path string) (io.WriteCloser, error)
}

// Router is a trace.Sink that expands Template per record into an
// archive path and writes the record's bytes through a WriterOpener,
// keeping one open writer per distinct expanded path for the
// lifetime of the run.
type Router struct {
	Template string
	Opener   WriterOpener

	open map[string]io.WriteCloser
}

// NewRouter returns a Router that expands template through opener.
func NewRouter(template string, opener WriterOpener) *Router {
	return &Router{Template: template, Opener: opener, open: make(map[string]io.WriteCloser)}
}

// Write implements trace.Sink.
func (r *Router) Write(ctx context.Context, f *trace.File, key trace.TraceKey, buf []byte) error {
	recLen, err := mseed.DetectRecordLength(buf)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	hdr, err := mseed.DecodeHeader(buf, recLen)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	fields := Fields{
		Network:  key.Channel.Network,
		Station:  key.Channel.Station,
		Location: key.Channel.Location,
		Channel:  key.Channel.Channel,
		Quality:  hdr.Quality,
		Start:    hdr.StartTime,
	}
	path := Expand(r.Template, fields)

	w, ok := r.open[path]
	if !ok {
		var err error
		w, err = r.Opener.Open(ctx, path)
		if err != nil {
			return errors.E(err, "archive: opening", path)
		}
		r.open[path] = w
		log.Debug.Printf("archive: opened %s", path)
	}
	_, err = w.Write(buf)
	return err
}

// Close implements trace.Sink.
func (r *Router) Close(ctx context.Context) error {
	var once errors.Once
	for path, w := range r.open {
		if err := w.Close(); err != nil {
			once.Set(errors.E(err, "archive: closing", path))
		}
	}
	return once.Err()
}
