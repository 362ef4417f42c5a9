package seedtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSamplePeriod(t *testing.T) {
	tests := []struct {
		rate     float64
		expected int64
	}{
		{1, 1000000},
		{100, 10000},
		{0, 0},
		{-5, 0},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, SamplePeriod(test.rate))
	}
}

func TestDefaultTolerance(t *testing.T) {
	assert.Equal(t, int64(500000), DefaultTolerance(1))
	assert.Equal(t, int64(5000), DefaultTolerance(100))
}

func TestEqualWithin(t *testing.T) {
	assert.True(t, EqualWithin(1000, 1005, 10))
	assert.False(t, EqualWithin(1000, 1020, 10))
}

func TestRoundTripCalendar(t *testing.T) {
	tk := FromCalendar(Calendar{Year: 2007, Day: 1, Hour: 23, Min: 59, Sec: 58})
	c := ToCalendar(tk)
	assert.Equal(t, 2007, c.Year)
	assert.Equal(t, 1, c.Day)
	assert.Equal(t, 23, c.Hour)
	assert.Equal(t, 59, c.Min)
	assert.Equal(t, 58, c.Sec)
}

func TestNextBoundaryDay(t *testing.T) {
	start := FromCalendar(Calendar{Year: 2007, Day: 1, Hour: 23, Min: 59, Sec: 58})
	b := NextBoundary(start, UnitDay)
	c := ToCalendar(b)
	assert.Equal(t, 2007, c.Year)
	assert.Equal(t, 2, c.Day)
	assert.Equal(t, 0, c.Hour)
	assert.Equal(t, 0, c.Min)
	assert.Equal(t, 0, c.Sec)
}

func TestParseTimeStringRoundTrip(t *testing.T) {
	tk := FromCalendar(Calendar{Year: 2007, Day: 45, Hour: 12, Min: 30, Sec: 15, Fract: 500000})
	parsed, err := ParseTimeString(tk.String())
	assert.NoError(t, err)
	assert.Equal(t, tk, parsed)
}

func TestParseTimeStringDateOnly(t *testing.T) {
	tk, err := ParseTimeString("2020,100")
	assert.NoError(t, err)
	c := ToCalendar(tk)
	assert.Equal(t, 2020, c.Year)
	assert.Equal(t, 100, c.Day)
	assert.Equal(t, 0, c.Hour)
}

func TestParseTimeStringInvalid(t *testing.T) {
	_, err := ParseTimeString("not-a-time")
	assert.Error(t, err)
}

func TestNextBoundaryHourMinute(t *testing.T) {
	start := FromCalendar(Calendar{Year: 2020, Day: 10, Hour: 5, Min: 30, Sec: 10})
	hb := ToCalendar(NextBoundary(start, UnitHour))
	assert.Equal(t, 6, hb.Hour)
	assert.Equal(t, 0, hb.Min)

	mb := ToCalendar(NextBoundary(start, UnitMinute))
	assert.Equal(t, 31, mb.Min)
	assert.Equal(t, 0, mb.Sec)
}
