// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package podreq

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/dataselect/mseed"
	"github.com/grailbio/dataselect/seedtime"
	"github.com/grailbio/dataselect/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByChannelPreservesOrder(t *testing.T) {
	a := &Record{Network: "XX", Station: "ABCDE", Location: "00", Channel: "BHZ"}
	b := &Record{Network: "XX", Station: "ABCDE", Location: "00", Channel: "BHN"}
	c := &Record{Network: "XX", Station: "ABCDE", Location: "00", Channel: "BHZ"}

	groups := groupByChannel([]*Record{a, b, c})
	require.Len(t, groups, 2)
	assert.Equal(t, []*Record{a, c}, groups[0])
	assert.Equal(t, []*Record{b}, groups[1])
}

func writeDataFile(t *testing.T, path string, start seedtime.Tick, quality byte) {
	t.Helper()
	h := mseed.Header{
		SequenceNumber: "000001",
		Quality:        quality,
		Network:        "XX",
		Station:        "ABCDE",
		Location:       "00",
		Channel:        "BHZ",
		StartTime:      start,
		NumSamples:     4,
		SampleRate:     1,
		Encoding:       mseed.EncodingInt32,
		DataOffset:     64,
		RecordLength:   512,
	}
	buf, err := mseed.Pack(&mseed.Unpacked{Header: h, Samples: []int32{1, 2, 3, 4}})
	require.NoError(t, err)
	require.NoError(t, ioutil.WriteFile(path, buf, 0644))
}

func TestProcessPODRewritesFileAndRequest(t *testing.T) {
	root, err := ioutil.TempDir("", "podreq-process")
	require.NoError(t, err)
	defer os.RemoveAll(root)

	dataDir := filepath.Join(root, "pod")
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "ABCDE"), 0755))

	start := seedtime.FromCalendar(seedtime.Calendar{Year: 2007, Day: 45, Hour: 1})
	dataPath := filepath.Join(dataDir, "ABCDE", "data1.mseed")
	writeDataFile(t, dataPath, start, 'D')

	reqLine := "ABCDE\tXX\tBHZ\t00\t2007,045,00:00:00\t2007,045,01:00:00\tdata1.mseed\thdr\t2007,045,00:00:00\t2007,045,01:00:00\n"
	reqPath := filepath.Join(root, "request.h")
	require.NoError(t, ioutil.WriteFile(reqPath, []byte(reqLine), 0644))

	opts := &trace.Opts{}
	_, err = ProcessPOD(context.Background(), opts, false, reqPath, dataDir)
	require.NoError(t, err)

	assert.FileExists(t, reqPath)
	assert.FileExists(t, dataPath)
	assert.FileExists(t, reqPath+".orig")
	assert.FileExists(t, dataPath+".orig")

	recs, err := ReadRequestFile(reqPath)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2007,045,01:00:00", formatSeedTime(recs[0].DataStart))
}
