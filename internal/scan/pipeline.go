package scan

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/jgaa/deldupes/internal/codec"
	"github.com/jgaa/deldupes/internal/hashsum"
	"github.com/jgaa/deldupes/internal/index"
	"github.com/jgaa/deldupes/internal/kv"
	"github.com/jgaa/deldupes/internal/osfs"
	"github.com/jgaa/deldupes/internal/pathnorm"
)

type hashJob struct {
	path      string
	size      uint64
	mtimeSecs uint64
}

type msgKind int

const (
	msgObserve msgKind = iota
	msgSkip
	msgError
)

type writerMsg struct {
	kind      msgKind
	path      string
	size      uint64
	mtimeSecs uint64
	hash256   [codec.HashSize]byte
	hasPrefix bool
	prefix    [codec.PrefixHashSize]byte
	skipFileID uint64
	err       error
}

// Run drives one full scan: it reads PathEvents from paths until the
// channel closes or ctx is cancelled, fans hashing out to a worker pool,
// and commits observations through store in count/time-bounded batches.
// Run always returns the stats for whatever was actually committed, even
// on cancellation — per spec.md §5, partial scans are safe.
func Run(ctx context.Context, opts Options, store *kv.Store, fs osfs.FS, algo hashsum.Algorithm, paths <-chan PathEvent) (Stats, error) {
	if ctx == nil {
		return Stats{}, fmt.Errorf("scan: nil context")
	}

	opts = opts.withDefaults()

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if workers < 1 {
		workers = 1
	}

	snapshot, err := buildSnapshot(ctx, store)
	if err != nil {
		return Stats{}, fmt.Errorf("scan: %w", err)
	}

	jobCh := make(chan hashJob, channelCapacity(workers))
	resultCh := make(chan writerMsg, channelCapacity(workers))

	var producerWG sync.WaitGroup

	producerWG.Add(1)

	go func() {
		defer producerWG.Done()
		produce(ctx, opts, fs, snapshot, paths, jobCh, resultCh)
	}()

	var workerWG sync.WaitGroup

	for range workers {
		workerWG.Add(1)

		go func() {
			defer workerWG.Done()
			hashWorker(fs, algo, jobCh, resultCh)
		}()
	}

	go func() {
		workerWG.Wait()
		close(resultCh)
	}()

	stats, writeErr := writeLoop(ctx, opts, store, resultCh)

	producerWG.Wait()

	if writeErr != nil {
		return stats, fmt.Errorf("scan: %w", writeErr)
	}

	return stats, nil
}

// produce enumerates paths, normalizes and stats each one, and either
// emits a skip confirmation (identity shortcut matched) or a hash job.
// Duplicate paths within one scan are deduplicated here, guaranteeing
// per-path serialization in the writer.
func produce(ctx context.Context, opts Options, fs osfs.FS, snapshot map[string]identity, paths <-chan PathEvent, jobCh chan<- hashJob, resultCh chan<- writerMsg) {
	defer close(jobCh)

	seen := make(map[string]struct{})

	for {
		var ev PathEvent
		var ok bool

		select {
		case <-ctx.Done():
			return
		case ev, ok = <-paths:
		}

		if !ok {
			return
		}

		norm, err := pathnorm.Normalize(opts.Cwd, ev.Path)
		if err != nil {
			sendResult(ctx, resultCh, writerMsg{kind: msgError, path: ev.Path, err: err})
			continue
		}

		if _, dup := seen[norm]; dup {
			continue
		}

		seen[norm] = struct{}{}

		info, err := fs.Stat(norm)
		if err != nil {
			sendResult(ctx, resultCh, writerMsg{kind: msgError, path: norm, err: err})
			continue
		}

		size := uint64(info.Size())
		mtimeSecs := uint64(info.ModTime().Unix())

		if id, ok := snapshot[norm]; ok && id.size == size && id.mtimeSecs == mtimeSecs {
			sendResult(ctx, resultCh, writerMsg{kind: msgSkip, path: norm, skipFileID: id.fileID})
			continue
		}

		job := hashJob{path: norm, size: size, mtimeSecs: mtimeSecs}

		select {
		case jobCh <- job:
		case <-ctx.Done():
			return
		}
	}
}

func sendResult(ctx context.Context, resultCh chan<- writerMsg, msg writerMsg) {
	select {
	case resultCh <- msg:
	case <-ctx.Done():
	}
}

// hashWorker consumes jobs until jobCh closes, computing the content digest
// (always) and the prefix digest (only above hashsum.PrefixThresholdBytes).
func hashWorker(fs osfs.FS, algo hashsum.Algorithm, jobCh <-chan hashJob, resultCh chan<- writerMsg) {
	for job := range jobCh {
		msg, err := hashOne(fs, algo, job)
		if err != nil {
			resultCh <- writerMsg{kind: msgError, path: job.path, err: err}
			continue
		}

		resultCh <- msg
	}
}

func hashOne(fs osfs.FS, algo hashsum.Algorithm, job hashJob) (writerMsg, error) {
	f, err := fs.Open(job.path)
	if err != nil {
		return writerMsg{}, fmt.Errorf("open: %w", err)
	}

	defer func() { _ = f.Close() }()

	contentSum, err := algo.ContentSum(f)
	if err != nil {
		return writerMsg{}, fmt.Errorf("content sum: %w", err)
	}

	msg := writerMsg{kind: msgObserve, path: job.path, size: job.size, mtimeSecs: job.mtimeSecs, hash256: contentSum}

	if job.size > hashsum.PrefixThresholdBytes {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return writerMsg{}, fmt.Errorf("seek for prefix sum: %w", err)
		}

		prefixSum, ok, err := algo.PrefixSum(f)
		if err != nil {
			return writerMsg{}, fmt.Errorf("prefix sum: %w", err)
		}

		msg.hasPrefix = ok
		msg.prefix = prefixSum
	}

	return msg, nil
}

// writeLoop drains resultCh, batching observations by count and by
// elapsed time, committing each batch durably before starting the next.
func writeLoop(ctx context.Context, opts Options, store *kv.Store, resultCh <-chan writerMsg) (Stats, error) {
	var stats Stats

	pending := make([]writerMsg, 0, opts.BatchMaxOps)
	batchStart := time.Now()

	ticker := time.NewTicker(opts.BatchMaxInterval)
	defer ticker.Stop()

	// flush commits pending as one batch. An empty batch is committed only
	// when final is true, so the end of a scan always produces a commit.
	flush := func(final bool) error {
		if len(pending) == 0 && !final {
			return nil
		}

		start := time.Now()

		tx, err := store.BeginWrite(ctx)
		if err != nil {
			return fmt.Errorf("begin write: %w", err)
		}

		for _, m := range pending {
			pathID, err := index.InternPath(tx, m.path)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("intern path %q: %w", m.path, err)
			}

			fileID, created, err := index.RecordObservation(tx, pathID, index.Observation{
				Size:       m.size,
				MtimeSecs:  m.mtimeSecs,
				Hash256:    m.hash256,
				HasPrefix:  m.hasPrefix,
				SHA1Prefix: m.prefix,
			})
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("record observation %q: %w", m.path, err)
			}

			if created {
				stats.Created++
			}

			opts.Sink.OnObservation(m.path, fileID, created)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}

		opts.Sink.OnCommit(BatchStats{Observations: len(pending), Elapsed: time.Since(start)})
		stats.Commits++

		pending = pending[:0]
		batchStart = time.Now()

		return nil
	}

	for {
		select {
		case msg, ok := <-resultCh:
			if !ok {
				if err := flush(true); err != nil {
					return stats, err
				}

				return stats, nil
			}

			switch msg.kind {
			case msgError:
				stats.Errors++
				opts.Sink.OnSkippedFile(msg.path, msg.err)
			case msgSkip:
				stats.Skipped++
				opts.Sink.OnObservation(msg.path, msg.skipFileID, false)
			case msgObserve:
				stats.Observed++
				pending = append(pending, msg)

				if len(pending) >= opts.BatchMaxOps {
					if err := flush(false); err != nil {
						return stats, err
					}
				}
			}
		case <-ticker.C:
			if time.Since(batchStart) >= opts.BatchMaxInterval {
				if err := flush(false); err != nil {
					return stats, err
				}
			}
		}
	}
}
