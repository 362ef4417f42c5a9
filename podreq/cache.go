// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package podreq

import (
	"encoding/json"
	"io/ioutil"
	"os"

	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// cacheSuffix names the snappy-compressed side file that caches a
// parsed request file, written next to the request file whenever it
// is parsed. ProcessPOD rewrites the request file at the end of every
// run, which changes its mtime, so a cache written during one
// ProcessPOD run does not match on the next; the cache is reused only
// while the request file has not been rewritten since it was parsed.
const cacheSuffix = ".podcache"

// cacheEntry is the on-disk cache payload: the request file's size
// and modification time at the moment it was parsed, plus the parsed
// records themselves. A cache is valid only while size and mtime
// still match the request file on disk.
type cacheEntry struct {
	Size    int64
	ModTime int64
	Records []*Record
}

// ReadRequestFileCached behaves like ReadRequestFile but consults (and
// maintains) a "<path>.podcache" side file: if the cache's recorded
// size/mtime still match path, the cached records are returned
// without re-parsing; otherwise path is parsed fresh and the cache is
// rewritten.
func ReadRequestFileCached(path string) ([]*Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.E(err, "podreq: stat request file", path)
	}

	cachePath := path + cacheSuffix
	if entry, ok := readCache(cachePath); ok {
		if entry.Size == info.Size() && entry.ModTime == info.ModTime().UnixNano() {
			log.Debug.Printf("podreq: using cached parse of %s", path)
			return entry.Records, nil
		}
		log.Debug.Printf("podreq: cache %s stale, re-parsing %s", cachePath, path)
	}

	records, err := ReadRequestFile(path)
	if err != nil {
		return nil, err
	}
	if err := writeCache(cachePath, cacheEntry{Size: info.Size(), ModTime: info.ModTime().UnixNano(), Records: records}); err != nil {
		log.Error.Printf("podreq: writing cache %s: %v", cachePath, err)
	}
	return records, nil
}

func readCache(cachePath string) (cacheEntry, bool) {
	raw, err := ioutil.ReadFile(cachePath)
	if err != nil {
		return cacheEntry{}, false
	}
	decoded, err := snappy.Decode(nil, raw)
	if err != nil {
		log.Debug.Printf("podreq: corrupt cache %s: %v", cachePath, err)
		return cacheEntry{}, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(decoded, &entry); err != nil {
		log.Debug.Printf("podreq: corrupt cache %s: %v", cachePath, err)
		return cacheEntry{}, false
	}
	return entry, true
}

func writeCache(cachePath string, entry cacheEntry) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, encoded)
	return ioutil.WriteFile(cachePath, compressed, 0644)
}
