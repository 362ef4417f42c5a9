// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

// FileWriterOpener opens archive paths as local (or grailbio/base/file
// scheme-prefixed) files, creating any missing parent directories.
type FileWriterOpener struct{}

// Open implements WriterOpener.
func (FileWriterOpener) Open(ctx context.Context, path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.E(err, "archive: creating directory", dir)
		}
	}
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "archive: creating", path)
	}
	return &fileWriteCloser{f: f, ctx: ctx, w: f.Writer(ctx)}, nil
}

type fileWriteCloser struct {
	f   file.File
	ctx context.Context
	w   io.Writer
}

func (w *fileWriteCloser) Write(p []byte) (int, error) { return w.w.Write(p) }
func (w *fileWriteCloser) Close() error                { return w.f.Close(w.ctx) }
