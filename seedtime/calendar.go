// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package seedtime

import "time"

// Unit identifies a calendar boundary granularity used by the splitter.
type Unit int

const (
	// UnitNone disables splitting.
	UnitNone Unit = iota
	UnitDay
	UnitHour
	UnitMinute
)

// NextBoundary returns the next Unit boundary strictly greater than
// effstart, with all finer calendar fields zeroed. It mirrors the
// day/hour/minute rollover logic in the original tool's splitting loop,
// built on top of time.Time arithmetic rather than the BTime struct.
func NextBoundary(effstart Tick, unit Unit) Tick {
	t := ToTime(effstart)

	switch unit {
	case UnitDay:
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		t = t.AddDate(0, 0, 1)
	case UnitHour:
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
		t = t.Add(time.Hour)
	case UnitMinute:
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
		t = t.Add(time.Minute)
	default:
		return Unset
	}
	return FromTime(t)
}
