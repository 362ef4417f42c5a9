// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

/*
dataselect selects, sorts and prunes Mini-SEED records: given one or
more input files it groups records into continuous per-channel traces,
optionally clips them to a time window or regular-expression match,
drops or sample-trims records made redundant by a higher-quality
overlapping trace, and writes the survivors to a single file, back in
place over the inputs, or into a templated archive directory layout.
A -POD mode runs the same pipeline once per channel group named in a
GRAIL POD request file, rewriting the request file's coverage in place.
*/

import (
	"context"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/dataselect/archive"
	"github.com/grailbio/dataselect/podreq"
	"github.com/grailbio/dataselect/trace"
)

var (
	match  = flag.String("m", "", "limit to records matching this regular expression, applied to NET_STA_LOC_CHAN_QUAL")
	reject = flag.String("r", "", "limit to records not matching this regular expression, applied to NET_STA_LOC_CHAN_QUAL")
	tsFlag = flag.String("ts", "", "limit to records that start at or after this SEED time string")
	teFlag = flag.String("te", "", "limit to records that end at or before this SEED time string")

	equalQualities = flag.Bool("E", false, "consider all qualities equal instead of best-quality prioritization")
	restamp        = flag.String("Q", "", "re-stamp output records with this quality: D, R or Q")

	pruneRecord = flag.Bool("Pr", false, "prune data at the record level using best-quality priority")
	pruneSample = flag.Bool("Ps", false, "prune data at the sample level using best-quality priority (implies -Pr)")
	split       = flag.String("S", "", "split records on a calendar boundary: d (day), h (hour) or m (minute)")

	timeTolerance = flag.Float64("tt", 0, "continuity/overlap time tolerance in seconds; 0 uses half a sample period")
	rateTolerance = flag.Float64("rt", 0, "relative sample-rate tolerance for treating two rates as equal; 0 uses the default (0.0001)")

	replaceInput = flag.Bool("R", false, "replace input files in place, keeping .orig backups by default")
	noBackups    = flag.Bool("nb", false, "do not keep .orig backups when replacing input files")
	outputFile   = flag.String("o", "", "write every surviving record to this single output file")
	archiveFmt   = flag.String("A", "", "write records into a %-templated archive directory layout")
	gzipArchive  = flag.Bool("Agz", false, "gzip-compress each archive file written by -A")
	s3Archive    = flag.Bool("As3", false, "write -A archive paths as \"bucket/key\" objects in S3 instead of local files")

	fileLimitSlack = flag.Int("file-limit-slack", 20, "extra open-file descriptors to request beyond 2*filecount")

	printBasicSummary = flag.Bool("sum", false, "print a basic summary after reading all input files")
	printModSummary   = flag.Bool("mod", false, "print a summary of file modifications after processing")

	podRequestFile = flag.String("POD-request", "", "POD request file (h.); requires -POD-datadir")
	podDataDir     = flag.String("POD-datadir", "", "POD data directory; requires -POD-request")
)

func buildOpts() (*trace.Opts, error) {
	opts := &trace.Opts{
		Start:             *tsFlag,
		End:               *teFlag,
		EqualQualities:    *equalQualities,
		Prune:             *pruneRecord || *pruneSample,
		SampleLevelPrune:  *pruneSample,
		TimeTolerance:     *timeTolerance,
		RateTolerance:     *rateTolerance,
		ReplaceInput:      *replaceInput,
		OutputFile:        *outputFile,
		ArchiveTemplate:   *archiveFmt,
		FileLimitSlack:    *fileLimitSlack,
		PrintBasicSummary: *printBasicSummary,
		PrintModSummary:   *printModSummary,
	}

	if *match != "" {
		re, err := regexp.Compile(*match)
		if err != nil {
			return nil, fmt.Errorf("invalid -m pattern %q: %w", *match, err)
		}
		opts.Match = re
	}
	if *reject != "" {
		re, err := regexp.Compile(*reject)
		if err != nil {
			return nil, fmt.Errorf("invalid -r pattern %q: %w", *reject, err)
		}
		opts.Reject = re
	}
	if *restamp != "" {
		if len(*restamp) != 1 || !strings.ContainsRune("DRQ", rune((*restamp)[0])) {
			return nil, fmt.Errorf("invalid -Q quality %q: must be one of D, R, Q", *restamp)
		}
		opts.RestampQuality = (*restamp)[0]
	}
	switch strings.ToLower(*split) {
	case "":
		opts.SplitUnit = trace.SplitNone
	case "d":
		opts.SplitUnit = trace.SplitDay
	case "h":
		opts.SplitUnit = trace.SplitHour
	case "m":
		opts.SplitUnit = trace.SplitMinute
	default:
		return nil, fmt.Errorf("invalid -S unit %q: must be one of d, h, m", *split)
	}
	return opts, nil
}

// buildSink constructs the Sink the command line's output flags
// describe. Exactly one of -o, -R or -A is expected.
func buildSink(ctx context.Context) (trace.Sink, error) {
	switch {
	case *archiveFmt != "":
		var opener archive.WriterOpener = archive.FileWriterOpener{}
		if *s3Archive {
			s3, err := archive.NewS3WriterOpener()
			if err != nil {
				return nil, err
			}
			opener = s3
		}
		if *gzipArchive {
			opener = archive.CompressedFileWriterOpener{Inner: opener}
		}
		return archive.NewRouter(*archiveFmt, opener), nil
	case *replaceInput:
		sink := trace.NewReplaceInputSink()
		sink.RemoveBackups = *noBackups
		return sink, nil
	default:
		return trace.NewSingleFileSink(ctx, *outputFile)
	}
}

func main() {
	shutdown := grail.Init()
	defer shutdown()

	flag.Parse()

	opts, err := buildOpts()
	if err != nil {
		log.Fatalf("dataselect: %v", err)
	}

	havePOD := *podRequestFile != "" || *podDataDir != ""
	if havePOD && (*podRequestFile == "" || *podDataDir == "") {
		log.Fatalf("dataselect: -POD-request and -POD-datadir must be given together")
	}
	if havePOD && flag.NArg() > 0 {
		log.Fatalf("dataselect: file arguments and -POD mode are mutually exclusive")
	}
	if !havePOD && flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("dataselect: no input files given")
	}

	ctx := vcontext.Background()

	if havePOD {
		summary, err := podreq.ProcessPOD(ctx, opts, *noBackups, *podRequestFile, *podDataDir)
		if err != nil {
			log.Fatalf("dataselect: processing POD structure: %v", err)
		}
		if opts.PrintModSummary {
			printModSummary(summary)
		}
		return
	}

	rc := trace.NewContext(opts)
	sel, err := trace.NewSelector(opts)
	if err != nil {
		log.Fatalf("dataselect: %v", err)
	}

	trace.RaiseFileLimit(flag.NArg(), opts.FileLimitSlack)

	sink, err := buildSink(ctx)
	if err != nil {
		log.Fatalf("dataselect: %v", err)
	}

	summary, err := trace.Run(ctx, rc, sel, flag.Args(), sink)
	if err != nil {
		log.Fatalf("dataselect: %v", err)
	}

	if opts.PrintBasicSummary {
		fmt.Fprintln(os.Stderr, rc.Stats.String())
	}
	if opts.PrintModSummary {
		printModSummary(summary)
	}
}

func printModSummary(summary *trace.Summary) {
	for _, e := range summary.Entries {
		fmt.Fprintf(os.Stderr, "%s (%s): %d records removed, %d trimmed\n", e.Channel, e.Quality, e.Removed, e.Trimmed)
	}
}
