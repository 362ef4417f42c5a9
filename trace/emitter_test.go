package trace

import (
	"testing"

	"github.com/grailbio/dataselect/mseed"
	"github.com/grailbio/dataselect/seedtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestRecord(t *testing.T, start seedtime.Tick, nsamp int, rate float64) []byte {
	t.Helper()
	samples := make([]int32, nsamp)
	for i := range samples {
		samples[i] = int32(i)
	}
	buf, err := mseed.Pack(&mseed.Unpacked{
		Header: mseed.Header{
			Network: "XX", Station: "ABCDE", Location: "00", Channel: "BHZ",
			Quality: 'D', StartTime: start, SampleRate: rate, Encoding: mseed.EncodingInt32,
			DataOffset: 48, RecordLength: 512,
		},
		Samples: samples,
	})
	require.NoError(t, err)
	return buf
}

func TestTrimRecordNarrowsWindow(t *testing.T) {
	start := seedtime.FromCalendar(seedtime.Calendar{Year: 2007, Day: 1})
	period := seedtime.SamplePeriod(1)
	buf := buildTestRecord(t, start, 10, 1)

	rec := &Record{
		Start: start,
		End:   seedtime.Add(start, period*9),
		Rate:  1,
	}
	rec.NewStart = seedtime.Add(start, period*2)
	rec.NewEnd = seedtime.Add(start, period*7)

	out, err := trimRecord(buf, rec)
	require.NoError(t, err)

	u, err := mseed.Unpack(out)
	require.NoError(t, err)
	assert.Len(t, u.Samples, 6)
	assert.Equal(t, int32(2), u.Samples[0])
	assert.Equal(t, rec.NewStart, u.Header.StartTime)
}

func TestRecordSampleCountUntrimmed(t *testing.T) {
	rec := &Record{Samples: 42}
	assert.Equal(t, 42, recordSampleCount(rec, false))
}

func TestRecordSampleCountTrimmed(t *testing.T) {
	period := seedtime.SamplePeriod(1)
	rec := &Record{
		Rate:     1,
		Start:    0,
		End:      seedtime.Tick(9 * period),
		NewStart: seedtime.Tick(2 * period),
		NewEnd:   seedtime.Tick(7 * period),
		Samples:  10,
	}
	assert.Equal(t, 6, recordSampleCount(rec, true))
}
