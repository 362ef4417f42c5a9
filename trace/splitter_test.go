package trace

import (
	"testing"

	"github.com/grailbio/dataselect/seedtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitOnBoundaryDay(t *testing.T) {
	start := seedtime.FromCalendar(seedtime.Calendar{Year: 2007, Day: 1, Hour: 23, Min: 59, Sec: 0})
	f := &File{Path: "a"}
	rec := &Record{
		File:  f,
		Start: start,
		End:   seedtime.Add(start, seedtime.SamplePeriod(1)*200), // 200 seconds later, crosses midnight
		Rate:  1,
	}

	head := splitOnBoundary(rec, SplitDay)
	require.NotNil(t, head)
	assert.True(t, head.NewEnd.IsSet())
	require.NotNil(t, head.next)
	second := head.next
	assert.True(t, second.NewStart.IsSet())
	assert.Nil(t, second.next)
	assert.Equal(t, 1, f.Split)

	boundary := seedtime.FromCalendar(seedtime.Calendar{Year: 2007, Day: 2, Hour: 0, Min: 0, Sec: 0})
	assert.Equal(t, boundary, second.NewStart)
}

func TestSplitOnBoundaryNoSplitNeeded(t *testing.T) {
	start := seedtime.FromCalendar(seedtime.Calendar{Year: 2007, Day: 1, Hour: 1, Min: 0, Sec: 0})
	rec := &Record{
		Start: start,
		End:   seedtime.Add(start, seedtime.SamplePeriod(1)*10),
		Rate:  1,
	}
	head := splitOnBoundary(rec, SplitDay)
	assert.Same(t, rec, head)
	assert.Nil(t, head.next)
}

func TestSplitOnBoundaryNone(t *testing.T) {
	rec := &Record{Start: 0, End: 100, Rate: 1}
	head := splitOnBoundary(rec, SplitNone)
	assert.Same(t, rec, head)
}
