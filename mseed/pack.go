// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package mseed

import (
	"encoding/binary"
	"fmt"
)

// SampleSize returns the byte width of one sample under the given
// encoding. Only EncodingInt32 is supported.
func SampleSize(encoding byte) int {
	switch encoding {
	case EncodingInt32:
		return 4
	default:
		return 4
	}
}

// DefaultRateTolerance is the relative tolerance RateTolerable uses,
// matching the codec's MS_ISRATETOLERABLE predicate.
const DefaultRateTolerance = 0.0001

// RateTolerable reports whether two nominal sample rates are close
// enough to be considered the same rate, using DefaultRateTolerance.
func RateTolerable(a, b float64) bool {
	return RateTolerableWithin(a, b, DefaultRateTolerance)
}

// RateTolerableWithin reports whether a and b are close enough to be
// considered the same rate under a caller-supplied relative tolerance,
// so a run can override the -rt default instead of being locked to it.
func RateTolerableWithin(a, b, tolerance float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	max := a
	if b > max {
		max = b
	} else if -b > max {
		max = -b
	}
	return diff <= tolerance*max
}

// Unpacked holds a record's header and its decoded sample values.
type Unpacked struct {
	Header  Header
	Samples []int32
}

// Unpack decodes buf (exactly one record, Header.RecordLength bytes) into
// its header and sample values.
func Unpack(buf []byte) (*Unpacked, error) {
	recLen, err := DetectRecordLength(buf)
	if err != nil {
		return nil, err
	}
	hdr, err := DecodeHeader(buf, recLen)
	if err != nil {
		return nil, err
	}
	if hdr.Encoding != EncodingInt32 && hdr.Encoding != 0 {
		return nil, fmt.Errorf("mseed: unsupported data encoding %d", hdr.Encoding)
	}
	samples := make([]int32, hdr.NumSamples)
	off := hdr.DataOffset
	if off == 0 {
		off = headerLen
	}
	for i := 0; i < hdr.NumSamples; i++ {
		start := off + i*4
		if start+4 > len(buf) {
			return nil, fmt.Errorf("mseed: sample %d out of bounds (record length %d)", i, len(buf))
		}
		samples[i] = int32(binary.BigEndian.Uint32(buf[start : start+4]))
	}
	return &Unpacked{Header: hdr, Samples: samples}, nil
}

// Pack encodes u back into a record buffer of u.Header.RecordLength bytes,
// zero-padding any unused tail. It updates Header.NumSamples to
// len(u.Samples) before encoding.
func Pack(u *Unpacked) ([]byte, error) {
	h := u.Header
	h.NumSamples = len(u.Samples)
	if h.DataOffset == 0 {
		h.DataOffset = headerLen
	}
	need := h.DataOffset + len(u.Samples)*4
	if need > h.RecordLength {
		return nil, fmt.Errorf("mseed: %d samples do not fit in a %d-byte record", len(u.Samples), h.RecordLength)
	}
	buf := make([]byte, h.RecordLength)
	EncodeHeader(buf, h)
	for i, s := range u.Samples {
		binary.BigEndian.PutUint32(buf[h.DataOffset+i*4:h.DataOffset+i*4+4], uint32(s))
	}
	return buf, nil
}

// RestampQuality overwrites the quality indicator byte of buf in place,
// without unpacking the record.
func RestampQuality(buf []byte, q byte) {
	if len(buf) > QualityOffset {
		buf[QualityOffset] = q
	}
}
