// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package archive implements the dataselect archive-layout output
// router: a %-template path is expanded per record from its NSLC and
// start time, and the resulting key is written through a pluggable
// Sink (local file or S3).
package archive

import (
	"fmt"
	"strings"

	"github.com/grailbio/dataselect/seedtime"
)

// Fields is the set of per-record substitutions available to a
// template, matching the common subset of archive-layout codes used
// by IRIS's dsarchive: network, station, location, channel, quality
// and the calendar fields of the record's start time.
type Fields struct {
	Network  string
	Station  string
	Location string
	Channel  string
	Quality  byte
	Start    seedtime.Tick
}

// Expand substitutes every recognized %-code in template with the
// corresponding field from f. Unrecognized codes are left verbatim,
// matching the original archive utility's tolerant behavior.
func Expand(template string, f Fields) string {
	c := seedtime.ToCalendar(f.Start)
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		if template[i] != '%' || i == len(template)-1 {
			b.WriteByte(template[i])
			continue
		}
		i++
		switch template[i] {
		case 'n':
			b.WriteString(f.Network)
		case 's':
			b.WriteString(f.Station)
		case 'l':
			b.WriteString(f.Location)
		case 'c':
			b.WriteString(f.Channel)
		case 'q':
			b.WriteByte(f.Quality)
		case 'Y':
			fmt.Fprintf(&b, "%04d", c.Year)
		case 'j':
			fmt.Fprintf(&b, "%03d", c.Day)
		case 'H':
			fmt.Fprintf(&b, "%02d", c.Hour)
		case 'M':
			fmt.Fprintf(&b, "%02d", c.Min)
		case 'S':
			fmt.Fprintf(&b, "%02d", c.Sec)
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(template[i])
		}
	}
	return b.String()
}
