package main

import (
	"fmt"
	"io"

	"github.com/jgaa/deldupes/internal/scan"
)

// stderrSink is the scan.Event implementation the CLI wires in: it prints
// skipped files and periodic batch-commit progress to errOut, leaving
// stdout free for the command's actual result.
type stderrSink struct {
	errOut  io.Writer
	verbose bool
}

func (s stderrSink) OnSkippedFile(path string, err error) {
	fmt.Fprintf(s.errOut, "skip %s: %v\n", path, err)
}

func (s stderrSink) OnObservation(path string, fileID uint64, created bool) {
	if !s.verbose || !created {
		return
	}

	fmt.Fprintf(s.errOut, "new version: %s (file_id=%d)\n", path, fileID)
}

func (s stderrSink) OnCommit(stats scan.BatchStats) {
	if !s.verbose {
		return
	}

	fmt.Fprintf(s.errOut, "committed %d observations in %s\n", stats.Observations, stats.Elapsed)
}
