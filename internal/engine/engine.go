// Package engine wires one configured job together: store, callbacks,
// optional changefeed and backup, metrics, and the pipeline itself.
package engine

import (
	"context"

	"kvedit/internal/backup"
	"kvedit/internal/changefeed"
	"kvedit/internal/config"
	"kvedit/internal/logging"
	"kvedit/internal/pipeline"
	"kvedit/internal/store"
	"kvedit/internal/telemetry"
)

type Engine struct {
	job  config.Job
	st   store.Store
	feed *changefeed.Emitter
	pipe *pipeline.Pipeline
}

// Run executes the job. A configured backup is taken first on mutating
// runs; a failed backup aborts before any record work.
func (e *Engine) Run(ctx context.Context) (*pipeline.Report, error) {
	if e.job.Backup.Path != "" && !e.job.DryRun {
		sep := rune(0)
		if e.job.Backup.Separator != "" {
			sep = []rune(e.job.Backup.Separator)[0]
		}
		n, err := backup.WriteCSV(e.st, e.job.ColumnFamily, e.job.Range.KeyRange(), e.job.Backup.Path, sep)
		if err != nil {
			return nil, err
		}
		logging.L().Info("backup written", "path", e.job.Backup.Path, "records", n)
	}

	rep, err := e.pipe.Run(ctx)
	telemetry.ObserveReport(e.job.ColumnFamily, rep)
	return rep, err
}

func (e *Engine) Close() error {
	var firstErr error
	if e.feed != nil {
		firstErr = e.feed.Close()
	}
	if err := e.st.Close(); firstErr == nil {
		firstErr = err
	}
	return firstErr
}
