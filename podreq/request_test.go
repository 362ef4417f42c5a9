// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package podreq

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempRequestFile(t *testing.T, contents string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "podreq")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "request.h")
	require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestReadRequestFileParsesFields(t *testing.T) {
	line := "ABCDE\tXX\tBHZ\t00\t2007,045,00:00:00\t2007,045,01:00:00\tdata1.mseed\thdr\t2007,045,00:00:00\t2007,045,01:00:00\n"
	path := writeTempRequestFile(t, line)

	recs, err := ReadRequestFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, "ABCDE", r.Station)
	assert.Equal(t, "XX", r.Network)
	assert.Equal(t, "BHZ", r.Channel)
	assert.Equal(t, "00", r.Location)
	assert.Equal(t, "data1.mseed", r.Filename)
	assert.Equal(t, "hdr", r.HeaderDir)
	assert.False(t, r.Pruned())
}

func TestReadRequestFileMergesDuplicateFilenames(t *testing.T) {
	lines := "" +
		"ABCDE\tXX\tBHZ\t00\t2007,045,00:00:00\t2007,045,01:00:00\tdata1.mseed\thdr\t2007,045,00:00:00\t2007,045,01:00:00\n" +
		"ABCDE\tXX\tBHZ\t00\t2007,045,01:00:00\t2007,045,02:00:00\tdata1.mseed\thdr\t2007,045,01:00:00\t2007,045,02:00:00\n"
	path := writeTempRequestFile(t, lines)

	recs, err := ReadRequestFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, "2007,045,00:00:00.000000", r.DataStart.String())
	assert.Equal(t, "2007,045,02:00:00.000000", r.DataEnd.String())
}

func TestReadRequestFileSkipsMalformedLines(t *testing.T) {
	lines := "" +
		"too\tfew\tfields\n" +
		"ABCDE\tXX\tBHZ\t00\t2007,045,00:00:00\t2007,045,01:00:00\tdata1.mseed\thdr\t2007,045,00:00:00\t2007,045,01:00:00\n"
	path := writeTempRequestFile(t, lines)

	recs, err := ReadRequestFile(path)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestWriteRequestFileOmitsPruned(t *testing.T) {
	line := "ABCDE\tXX\tBHZ\t00\t2007,045,00:00:00\t2007,045,01:00:00\tdata1.mseed\thdr\t2007,045,00:00:00\t2007,045,01:00:00\n"
	path := writeTempRequestFile(t, line)
	recs, err := ReadRequestFile(path)
	require.NoError(t, err)

	recs[0].MarkPruned()

	out := filepath.Join(filepath.Dir(path), "out.h")
	require.NoError(t, WriteRequestFile(out, recs))

	data, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	assert.Empty(t, string(data))
}

func TestRecordDataPath(t *testing.T) {
	r := &Record{Station: "ABCDE", Filename: "data1.mseed"}
	assert.Equal(t, "/pod/ABCDE/data1.mseed", r.DataPath("/pod"))
}
