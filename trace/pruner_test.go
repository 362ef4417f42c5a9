package trace

import (
	"testing"

	"github.com/grailbio/dataselect/seedtime"
	"github.com/stretchr/testify/assert"
)

func mkTrace(rate float64, recs ...*Record) *Trace {
	t := &Trace{Key: TraceKey{Rate: rate}}
	for _, r := range recs {
		r.Rate = rate
		t.Records.PushBack(r)
	}
	return t
}

func TestPruneRecordLevelDropsFullyCovered(t *testing.T) {
	period := seedtime.SamplePeriod(1)

	hp := mkTrace(1, &Record{Start: 0, End: seedtime.Tick(100 * period), Quality: QualityChecked, Samples: 101})
	lp := mkTrace(1, &Record{Start: seedtime.Tick(10 * period), End: seedtime.Tick(50 * period), Quality: QualityData, Samples: 41})

	traces := []*Trace{hp, lp}
	PruneRecordLevel(&Opts{}, traces)

	assert.True(t, lp.Records.First().Dropped)
	assert.False(t, hp.Records.First().Dropped)
}

func TestPruneRecordLevelNoOverlapNoChange(t *testing.T) {
	period := seedtime.SamplePeriod(1)
	hp := mkTrace(1, &Record{Start: 0, End: seedtime.Tick(10 * period), Quality: QualityChecked, Samples: 11})
	lp := mkTrace(1, &Record{Start: seedtime.Tick(20 * period), End: seedtime.Tick(30 * period), Quality: QualityData, Samples: 11})

	traces := []*Trace{hp, lp}
	PruneRecordLevel(&Opts{}, traces)

	assert.False(t, lp.Records.First().Dropped)
}

func TestPruneSampleLevelTrimsOverlap(t *testing.T) {
	period := seedtime.SamplePeriod(1)
	hp := mkTrace(1, &Record{Start: seedtime.Tick(50 * period), End: seedtime.Tick(100 * period), Quality: QualityChecked, Samples: 51})
	lp := mkTrace(1, &Record{Start: 0, End: seedtime.Tick(60 * period), Quality: QualityData, Samples: 61})

	traces := []*Trace{hp, lp}
	PruneRecordLevel(&Opts{SampleLevelPrune: true}, traces)

	lpRec := lp.Records.First()
	assert.False(t, lpRec.Dropped)
	assert.True(t, lpRec.NewEnd.IsSet())
}

func TestQcompareEqualQualitiesIgnoresQuality(t *testing.T) {
	period := seedtime.SamplePeriod(1)
	// lp is longer but lower quality; with EqualQualities, length alone decides.
	a := mkTrace(1, &Record{Start: 0, End: seedtime.Tick(100 * period), Quality: QualityRaw, Samples: 101})
	b := mkTrace(1, &Record{Start: seedtime.Tick(10 * period), End: seedtime.Tick(50 * period), Quality: QualityChecked, Samples: 41})

	traces := []*Trace{a, b}
	PruneRecordLevel(&Opts{EqualQualities: true}, traces)

	assert.True(t, b.Records.First().Dropped)
	assert.False(t, a.Records.First().Dropped)
}
