// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package seedtime implements the high-precision time type used across the
// dataselect pipeline: a signed tick count since the Unix epoch, plus the
// tolerance and calendar-boundary arithmetic that the trace and pruning
// logic depend on.
package seedtime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Modulus is the number of Ticks per second. The type carries microsecond
// resolution, matching the HPTMODULUS convention of the original tool.
const Modulus int64 = 1000000

// Tick is a signed count of Modulus-per-second ticks since the Unix epoch.
type Tick int64

// Unset is the sentinel value disjoint from all legal Ticks.
const Unset Tick = -(1 << 62)

// IsSet reports whether t carries a real time rather than the sentinel.
func (t Tick) IsSet() bool { return t != Unset }

// Add returns t shifted by delta ticks.
func Add(t Tick, delta int64) Tick { return t + Tick(delta) }

// Sub returns t1-t2 in ticks.
func Sub(t1, t2 Tick) int64 { return int64(t1 - t2) }

// Abs returns the absolute value of a tick delta.
func Abs(delta int64) int64 {
	if delta < 0 {
		return -delta
	}
	return delta
}

// SecondsToTicks rounds f seconds to the nearest Tick delta.
func SecondsToTicks(f float64) int64 {
	if f >= 0 {
		return int64(f*float64(Modulus) + 0.5)
	}
	return int64(f*float64(Modulus) - 0.5)
}

// TicksToSeconds returns the tick delta expressed in seconds.
func TicksToSeconds(delta int64) float64 {
	return float64(delta) / float64(Modulus)
}

// SamplePeriod returns the tick spacing between consecutive samples at rate
// Hz, or 0 if rate is not positive (matches the original's "hpdelta"
// computation: HPTMODULUS / samprate).
func SamplePeriod(rate float64) int64 {
	if rate <= 0 {
		return 0
	}
	return int64(float64(Modulus)/rate + 0.5)
}

// DefaultTolerance returns half a sample period, the default continuity
// tolerance used when the caller has not supplied an explicit one.
func DefaultTolerance(rate float64) int64 {
	return SamplePeriod(rate) / 2
}

// EqualWithin reports whether a and b differ by no more than tol ticks.
func EqualWithin(a, b Tick, tol int64) bool {
	return Abs(Sub(a, b)) <= tol
}

// FromTime converts a standard time.Time to a Tick.
func FromTime(t time.Time) Tick {
	return Tick(t.Unix())*Tick(Modulus) + Tick(t.Nanosecond()/1000)
}

// ToTime converts a Tick to a standard time.Time (UTC).
func ToTime(t Tick) time.Time {
	sec := int64(t) / Modulus
	rem := int64(t) % Modulus
	if rem < 0 {
		rem += Modulus
		sec--
	}
	return time.Unix(sec, rem*1000).UTC()
}

// Calendar is the decomposed broken-down form of a Tick: year, day-of-year
// (1-based), hour, minute, second and fractional ticks within the second.
type Calendar struct {
	Year    int
	Day     int // day of year, 1-366
	Hour    int
	Min     int
	Sec     int
	Fract   int // remaining ticks within the second, 0..Modulus-1
}

// ToCalendar decomposes t into its calendar fields.
func ToCalendar(t Tick) Calendar {
	tt := ToTime(t)
	fractTicks := int64(tt.Nanosecond()) / 1000
	return Calendar{
		Year:  tt.Year(),
		Day:   tt.YearDay(),
		Hour:  tt.Hour(),
		Min:   tt.Minute(),
		Sec:   tt.Second(),
		Fract: int(fractTicks),
	}
}

// FromCalendar is the inverse of ToCalendar.
func FromCalendar(c Calendar) Tick {
	t := time.Date(c.Year, time.January, 1, c.Hour, c.Min, c.Sec, c.Fract*1000, time.UTC)
	t = t.AddDate(0, 0, c.Day-1)
	return FromTime(t)
}

// ParseTimeString parses the SEED time-string form accepted by the
// original tool's command line and produced by String:
// "YYYY,DDD[,HH:MM:SS[.FFFFFF]]" (day of year, time of day optional).
func ParseTimeString(s string) (Tick, error) {
	fields := strings.SplitN(s, ",", 3)
	if len(fields) < 2 {
		return Unset, fmt.Errorf("seedtime: cannot parse time string %q", s)
	}
	year, err := strconv.Atoi(fields[0])
	if err != nil {
		return Unset, fmt.Errorf("seedtime: bad year in %q: %w", s, err)
	}
	day, err := strconv.Atoi(fields[1])
	if err != nil {
		return Unset, fmt.Errorf("seedtime: bad day-of-year in %q: %w", s, err)
	}

	var hour, min, sec, fract int
	if len(fields) == 3 {
		timeFields := strings.SplitN(fields[2], ":", 3)
		if len(timeFields) > 0 && timeFields[0] != "" {
			if hour, err = strconv.Atoi(timeFields[0]); err != nil {
				return Unset, fmt.Errorf("seedtime: bad hour in %q: %w", s, err)
			}
		}
		if len(timeFields) > 1 {
			if min, err = strconv.Atoi(timeFields[1]); err != nil {
				return Unset, fmt.Errorf("seedtime: bad minute in %q: %w", s, err)
			}
		}
		if len(timeFields) > 2 {
			whole, fracStr := timeFields[2], ""
			if idx := strings.IndexByte(timeFields[2], '.'); idx >= 0 {
				whole, fracStr = timeFields[2][:idx], timeFields[2][idx+1:]
			}
			if sec, err = strconv.Atoi(whole); err != nil {
				return Unset, fmt.Errorf("seedtime: bad second in %q: %w", s, err)
			}
			if fracStr != "" {
				for len(fracStr) < 6 {
					fracStr += "0"
				}
				if fract, err = strconv.Atoi(fracStr[:6]); err != nil {
					return Unset, fmt.Errorf("seedtime: bad fractional second in %q: %w", s, err)
				}
			}
		}
	}
	return FromCalendar(Calendar{Year: year, Day: day, Hour: hour, Min: min, Sec: sec, Fract: fract}), nil
}

// String renders t in SEED time-string form: YYYY,DDD,HH:MM:SS.FFFFFF.
func (t Tick) String() string {
	if !t.IsSet() {
		return "unset"
	}
	c := ToCalendar(t)
	return fmt.Sprintf("%04d,%03d,%02d:%02d:%02d.%06d", c.Year, c.Day, c.Hour, c.Min, c.Sec, c.Fract)
}
