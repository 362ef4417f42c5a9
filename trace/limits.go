// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package trace

import (
	"github.com/grailbio/base/log"
	"golang.org/x/sys/unix"
)

// RaiseFileLimit raises RLIMIT_NOFILE so that a run touching
// filecount input files (plus whatever the output sink needs
// concurrently open) does not exhaust descriptors: it requests
// 2*filecount+slack, which with the command line's default slack of 20
// is setofilelimit()'s 2*filecount+20 policy.
// It is best-effort: a failure to raise the limit is logged, not
// fatal, since the run may still fit under the existing soft limit.
func RaiseFileLimit(filecount int, slack int) {
	want := uint64(2*filecount) + uint64(slack)

	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		log.Error.Printf("trace: Getrlimit(RLIMIT_NOFILE): %v", err)
		return
	}
	if rlim.Cur >= want {
		return
	}
	newLim := rlim
	newLim.Cur = want
	if rlim.Max != unix.RLIM_INFINITY && want > rlim.Max {
		newLim.Cur = rlim.Max
	}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &newLim); err != nil {
		log.Error.Printf("trace: Setrlimit(RLIMIT_NOFILE, %d): %v", newLim.Cur, err)
	}
}
