package engine

import (
	"fmt"

	"kvedit/internal/changefeed"
	"kvedit/internal/config"
	"kvedit/internal/logging"
	"kvedit/internal/pipeline"
	"kvedit/internal/store"
	"kvedit/internal/telemetry"
)

// Bootstrap opens the store, builds the callbacks, and assembles the
// pipeline for one job.
func Bootstrap(job config.Job) (*Engine, error) {
	st, err := store.Open(job.StorePath)
	if err != nil {
		return nil, err
	}
	e, err := bootstrapWithStore(job, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if job.MetricsPort > 0 {
		telemetry.Expose(job.MetricsPort)
	}
	return e, nil
}

func bootstrapWithStore(job config.Job, st store.Store) (*Engine, error) {
	pred, err := newPredicate(job.Predicate)
	if err != nil {
		return nil, fmt.Errorf("predicate: %w", err)
	}
	tr, err := newTransform(job.Transform)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	var feed *changefeed.Emitter
	opts := pipeline.Options{
		DryRun:            job.DryRun,
		WriteUnchanged:    job.WriteUnchanged,
		Batch:             pipeline.BatchThreshold{MaxCount: job.Batch.MaxCount, MaxBytes: job.Batch.MaxBytes},
		PerRecordTimeout:  job.PerRecordTimeout,
		MaxErrorsRecorded: job.MaxErrorsRecorded,
		Limit:             job.Limit,
	}
	if job.Changefeed.Enabled && !job.DryRun {
		feed, err = changefeed.New(job.Changefeed)
		if err != nil {
			return nil, err
		}
		cf := job.ColumnFamily
		opts.OnCommit = func(w []store.Write) { feed.Emit(cf, w) }
	}
	if job.ProgressEvery > 0 {
		every := job.ProgressEvery
		log := logging.L().With("column_family", job.ColumnFamily)
		opts.Progress = func(n int, key []byte, d pipeline.Decision) {
			if n%every == 0 {
				log.Info("progress", "scanned", n, "key", string(key), "decision", d.String())
			}
		}
	}

	pipe, err := pipeline.New(st, job.ColumnFamily, job.Range.KeyRange(), pred, tr, opts)
	if err != nil {
		if feed != nil {
			_ = feed.Close()
		}
		return nil, err
	}
	return &Engine{job: job, st: st, feed: feed, pipe: pipe}, nil
}
