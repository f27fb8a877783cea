// Package scan implements the producer/hash-workers/writer pipeline spec.md
// §4.E describes: one producer enumerating and stat-ing paths, N hashing
// workers computing content and prefix digests, and exactly one writer
// applying observations to the index repository in durable, time- and
// count-bounded batches. No teacher package runs a comparable pipeline;
// the channel shapes and shutdown sequencing follow spec.md §4.E directly,
// cross-checked against the teacher's own channel-based worker pool in
// pkg/slotcache's background compaction goroutine for the general
// producer/worker/drain idiom.
package scan

import (
	"context"
	"time"
)

// PathEvent is one path the external filesystem enumeration collaborator
// (internal/walk or any other source) hands to the scan pipeline. Path is
// raw — not yet normalized; the producer normalizes it per internal/pathnorm.
type PathEvent struct {
	Path string
}

// Event is the observability seam the pipeline reports through, in place of
// a concrete logging call inside the core (spec.md §1 treats logging as
// out of scope beyond the interface it consumes).
type Event interface {
	// OnSkippedFile is called when a path could not be stat'd or read.
	OnSkippedFile(path string, err error)

	// OnObservation is called once per path that was successfully examined,
	// whether or not its content actually changed.
	OnObservation(path string, fileID uint64, created bool)

	// OnCommit is called after each batch commit, including the final
	// (possibly empty) one.
	OnCommit(stats BatchStats)
}

// BatchStats describes one committed write batch.
type BatchStats struct {
	Observations int
	Elapsed      time.Duration
}

// Stats aggregates the whole scan.
type Stats struct {
	Observed int
	Created  int
	Skipped  int
	Errors   int
	Commits  int
}

// Options configures a scan run.
type Options struct {
	// Cwd is the working directory used to make relative input paths
	// absolute (internal/pathnorm.Normalize).
	Cwd string

	// Workers is the hashing worker pool size. Zero selects
	// runtime.NumCPU().
	Workers int

	// BatchMaxOps bounds the writer's batch by operation count. Zero
	// selects 4096.
	BatchMaxOps int

	// BatchMaxInterval bounds the writer's batch by elapsed time. Zero
	// selects one second.
	BatchMaxInterval time.Duration

	// Sink receives pipeline events. Nil selects a no-op sink.
	Sink Event
}

const (
	defaultBatchMaxOps      = 4096
	defaultBatchMaxInterval = time.Second
)

type noopSink struct{}

func (noopSink) OnSkippedFile(string, error)       {}
func (noopSink) OnObservation(string, uint64, bool) {}
func (noopSink) OnCommit(BatchStats)                {}

func (o Options) withDefaults() Options {
	if o.BatchMaxOps <= 0 {
		o.BatchMaxOps = defaultBatchMaxOps
	}

	if o.BatchMaxInterval <= 0 {
		o.BatchMaxInterval = defaultBatchMaxInterval
	}

	if o.Sink == nil {
		o.Sink = noopSink{}
	}

	return o
}

// jobChanFactor sets the bounded job/result channel capacity as a multiple
// of the worker count, per spec.md §4.E ("capacity proportional to N").
const jobChanFactor = 4

func channelCapacity(workers int) int {
	if workers < 1 {
		workers = 1
	}

	return workers * jobChanFactor
}

// done reports whether ctx has been cancelled, for the cooperative
// cancellation checks spec.md §5 requires between batches.
func done(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
