// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package mseed is a small Mini-SEED fixed-length record codec. It decodes
// and encodes the subset of the Mini-SEED v2 fixed header that the
// dataselect pipeline needs: sequence number, quality indicator, NSLC
// identifiers, start time, sample rate and sample count, plus enough of the
// data section to trim and repack a record's samples. It does not implement
// the full family of Mini-SEED data encodings (Steim compression etc); the
// only supported data encoding is a fixed-width integer encoding (code 1,
// 32-bit twos-complement samples), which is sufficient to exercise every
// trim and repack path the pipeline exercises. A production deployment
// would swap this package for a complete codec (e.g. libmseed via cgo);
// nothing in trace/ depends on the encoding beyond this package's
// interface.
package mseed

import (
	"encoding/binary"
	"fmt"

	"github.com/grailbio/dataselect/seedtime"
	"v.io/x/lib/vlog"
)

// QualityOffset is the byte offset of the single-character quality
// indicator within every fixed-length record, counted from the record's
// start. The restamp operation writes this byte directly, without
// unpacking the record, matching the original tool's '*(recordbuf + 6)'.
const QualityOffset = 6

// Supported record lengths, auto-detected per file.
var supportedRecordLengths = []int{512, 4096, 128, 256, 1024, 2048}

// headerLen is the size in bytes of the fixed header this package
// understands.
const headerLen = 48

// EncodingInt32 is the only data encoding this package can unpack/repack.
const EncodingInt32 = 1

// Header is the decoded fixed header of one Mini-SEED record.
type Header struct {
	SequenceNumber string
	Quality        byte
	Network        string
	Station        string
	Location       string
	Channel        string
	StartTime      seedtime.Tick
	NumSamples     int
	SampleRate     float64
	Encoding       byte
	DataOffset     int
	RecordLength   int
}

// EndTime returns the time of the last sample in the record, given its
// header's NumSamples and SampleRate.
func (h Header) EndTime() seedtime.Tick {
	if h.NumSamples <= 1 {
		return h.StartTime
	}
	period := seedtime.SamplePeriod(h.SampleRate)
	return seedtime.Add(h.StartTime, period*int64(h.NumSamples-1))
}

// NSLCQuality is the dot-free "NET_STA_LOC_CHAN_QUAL" key string used by
// Selector's match/reject regexes.
func (h Header) NSLCQuality() string {
	return fmt.Sprintf("%s_%s_%s_%s_%c", h.Network, h.Station, h.Location, h.Channel, h.Quality)
}

func fixedString(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end])
}

func putFixedString(b []byte, s string) {
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
}

// DecodeHeader parses the fixed header from the first headerLen bytes of
// buf. recLen is the already-known or auto-detected record length.
func DecodeHeader(buf []byte, recLen int) (Header, error) {
	if len(buf) < headerLen {
		return Header{}, fmt.Errorf("mseed: record too short for header: %d bytes", len(buf))
	}
	var h Header
	h.SequenceNumber = string(buf[0:6])
	h.Quality = buf[QualityOffset]
	h.Station = fixedString(buf[8:13])
	h.Location = fixedString(buf[13:15])
	h.Channel = fixedString(buf[15:18])
	h.Network = fixedString(buf[18:20])

	year := int(binary.BigEndian.Uint16(buf[20:22]))
	day := int(binary.BigEndian.Uint16(buf[22:24]))
	hour := int(buf[24])
	min := int(buf[25])
	sec := int(buf[26])
	fractTenThousandths := int(binary.BigEndian.Uint16(buf[28:30]))
	h.StartTime = seedtime.FromCalendar(seedtime.Calendar{
		Year: year, Day: day, Hour: hour, Min: min, Sec: sec,
		Fract: fractTenThousandths * 100,
	})

	h.NumSamples = int(binary.BigEndian.Uint16(buf[30:32]))

	rateFactor := int16(binary.BigEndian.Uint16(buf[32:34]))
	rateMultiplier := int16(binary.BigEndian.Uint16(buf[34:36]))
	h.SampleRate = decodeRate(rateFactor, rateMultiplier)

	h.Encoding = buf[39]
	h.DataOffset = int(binary.BigEndian.Uint16(buf[44:46]))
	h.RecordLength = recLen

	vlog.VI(2).Infof("mseed: decoded header %s start=%s nsamp=%d rate=%v",
		h.NSLCQuality(), h.StartTime, h.NumSamples, h.SampleRate)

	return h, nil
}

// EncodeHeader writes h into buf[:headerLen]. buf must be at least
// headerLen bytes; callers pass a full record buffer.
func EncodeHeader(buf []byte, h Header) {
	copy(buf[0:6], []byte(fmt.Sprintf("%06s", h.SequenceNumber)))
	buf[6] = h.Quality
	buf[7] = ' '
	putFixedString(buf[8:13], h.Station)
	putFixedString(buf[13:15], h.Location)
	putFixedString(buf[15:18], h.Channel)
	putFixedString(buf[18:20], h.Network)

	c := seedtime.ToCalendar(h.StartTime)
	binary.BigEndian.PutUint16(buf[20:22], uint16(c.Year))
	binary.BigEndian.PutUint16(buf[22:24], uint16(c.Day))
	buf[24] = byte(c.Hour)
	buf[25] = byte(c.Min)
	buf[26] = byte(c.Sec)
	buf[27] = 0
	binary.BigEndian.PutUint16(buf[28:30], uint16(c.Fract/100))

	binary.BigEndian.PutUint16(buf[30:32], uint16(h.NumSamples))

	factor, multiplier := encodeRate(h.SampleRate)
	binary.BigEndian.PutUint16(buf[32:34], uint16(factor))
	binary.BigEndian.PutUint16(buf[34:36], uint16(multiplier))

	buf[39] = h.Encoding
	binary.BigEndian.PutUint16(buf[44:46], uint16(h.DataOffset))
}

// decodeRate follows the Mini-SEED factor/multiplier sample-rate encoding:
// a positive factor is a rate in Hz, a negative factor is a period
// divisor; the multiplier similarly scales up (positive) or down
// (negative).
func decodeRate(factor, multiplier int16) float64 {
	var rate float64
	switch {
	case factor > 0:
		rate = float64(factor)
	case factor < 0:
		rate = -1.0 / float64(factor)
	default:
		rate = 0
	}
	switch {
	case multiplier > 0:
		rate *= float64(multiplier)
	case multiplier < 0:
		rate /= -float64(multiplier)
	}
	return rate
}

func encodeRate(rate float64) (factor, multiplier int16) {
	if rate <= 0 {
		return 0, 0
	}
	if rate == float64(int16(rate)) {
		return int16(rate), 1
	}
	// Represent sub-Hz rates as a negative factor (the period in whole
	// seconds, truncated) with multiplier 1.
	if rate < 1 {
		period := 1.0 / rate
		return int16(-period), 1
	}
	return int16(rate), 1
}

// DetectRecordLength guesses the declared record length of a file by
// returning the first entry of supportedRecordLengths that is no longer
// than buf. It does not decode a header or inspect blockette 1000 (as
// real Mini-SEED readers do), so any buffer of 512 bytes or more yields
// 512, whatever length the records actually have.
func DetectRecordLength(buf []byte) (int, error) {
	for _, n := range supportedRecordLengths {
		if len(buf) >= n {
			return n, nil
		}
	}
	return 0, fmt.Errorf("mseed: buffer too short (%d bytes) to contain any known record length", len(buf))
}
