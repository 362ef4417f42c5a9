// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package archive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3WriterOpener opens archive paths of the form "bucket/key..." as
// objects in S3, uploading via s3manager so a record stream of
// arbitrary length does not need to be buffered in memory up front.
type S3WriterOpener struct {
	Uploader *s3manager.Uploader
}

// NewS3WriterOpener builds an S3WriterOpener from a fresh AWS session
// using the default credential chain, matching how the rest of the
// pack's AWS-backed code authenticates.
func NewS3WriterOpener() (*S3WriterOpener, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("archive: creating AWS session: %w", err)
	}
	return &S3WriterOpener{Uploader: s3manager.NewUploader(sess)}, nil
}

// Open implements WriterOpener. path is split on its first "/" into
// bucket and key.
func (o *S3WriterOpener) Open(ctx context.Context, path string) (io.WriteCloser, error) {
	idx := strings.IndexByte(path, '/')
	if idx < 0 {
		return nil, fmt.Errorf("archive: S3 path %q missing bucket/key separator", path)
	}
	bucket, key := path[:idx], path[idx+1:]

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := o.Uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		pr.CloseWithError(err)
		done <- err
	}()

	return &s3WriteCloser{pw: pw, done: done}, nil
}

type s3WriteCloser struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *s3WriteCloser) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *s3WriteCloser) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}
