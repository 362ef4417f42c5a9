// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package archive

import (
	"context"
	"io"

	"github.com/klauspost/compress/gzip"
)

// CompressedFileWriterOpener wraps another WriterOpener (normally
// FileWriterOpener) and gzip-compresses everything written through
// it, for archive layouts that want ".mseed.gz" outputs.
type CompressedFileWriterOpener struct {
	Inner WriterOpener
}

// Open implements WriterOpener.
func (o CompressedFileWriterOpener) Open(ctx context.Context, path string) (io.WriteCloser, error) {
	w, err := o.Inner.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &gzipWriteCloser{under: w, gz: gzip.NewWriter(w)}, nil
}

type gzipWriteCloser struct {
	under io.WriteCloser
	gz    *gzip.Writer
}

func (w *gzipWriteCloser) Write(p []byte) (int, error) { return w.gz.Write(p) }

func (w *gzipWriteCloser) Close() error {
	if err := w.gz.Close(); err != nil {
		w.under.Close()
		return err
	}
	return w.under.Close()
}
