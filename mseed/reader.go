// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package mseed

import (
	"errors"
	"io"

	"github.com/grailbio/dataselect/seedtime"
)

// RecordInfo describes one record as yielded by a Reader: everything
// RecordIndex needs to build a Record descriptor, without the sample
// payload.
type RecordInfo struct {
	Offset     int64
	Length     int
	Start      seedtime.Tick
	End        seedtime.Tick
	Quality    byte
	Network    string
	Station    string
	Location   string
	Channel    string
	SampleRate float64
	NumSamples int
}

// Reader iterates the fixed-length records of a single Mini-SEED file in
// file order. It auto-detects the record length from the first record and
// assumes it is constant for the remainder of the file, matching how
// ms_readmsr operates in practice.
type Reader struct {
	r         io.ReaderAt
	pos       int64
	recLen    int
	headerBuf [headerLen]byte
}

// NewReader returns a Reader over r. End-of-file is detected from r's
// ReadAt results.
func NewReader(r io.ReaderAt) *Reader {
	return &Reader{r: r}
}

// ErrShortRecord is returned by Next when fewer than headerLen bytes
// remain; trace.IndexFile logs it like any other codec error and stops
// reading that file, keeping the records already indexed.
var ErrShortRecord = errors.New("mseed: short record at end of file")

// Next decodes the next record's header and returns its descriptor. It
// returns io.EOF when the file is exhausted exactly on a record boundary.
func (r *Reader) Next() (RecordInfo, error) {
	n, err := r.r.ReadAt(r.headerBuf[:], r.pos)
	if err == io.EOF && n == 0 {
		return RecordInfo{}, io.EOF
	}
	if err != nil && err != io.EOF {
		return RecordInfo{}, err
	}
	if n < headerLen {
		return RecordInfo{}, ErrShortRecord
	}

	if r.recLen == 0 {
		// Detect the record length once: read a probe buffer of up to
		// 4096 bytes and let DetectRecordLength take the first
		// supportedRecordLengths entry that fits in it (the
		// simplification documented in record.go).
		probe := make([]byte, 4096)
		pn, _ := r.r.ReadAt(probe, r.pos)
		recLen, derr := DetectRecordLength(probe[:pn])
		if derr != nil {
			return RecordInfo{}, derr
		}
		r.recLen = recLen
	}

	hdr, err := DecodeHeader(r.headerBuf[:], r.recLen)
	if err != nil {
		return RecordInfo{}, err
	}

	info := RecordInfo{
		Offset:     r.pos,
		Length:     r.recLen,
		Start:      hdr.StartTime,
		End:        hdr.EndTime(),
		Quality:    hdr.Quality,
		Network:    hdr.Network,
		Station:    hdr.Station,
		Location:   hdr.Location,
		Channel:    hdr.Channel,
		SampleRate: hdr.SampleRate,
		NumSamples: hdr.NumSamples,
	}
	r.pos += int64(r.recLen)
	return info, nil
}
