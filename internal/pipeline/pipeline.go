// Package pipeline implements the bulk transform engine: an ordered snapshot
// scan over one column family's key range, an optional predicate, a
// transform, and either atomic batched commits or a dry-run report. Records
// are visited exactly once in ascending key order; a record's decision is
// final before the next record is read. Callback failures are isolated per
// record; store failures abort the job.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"kvedit/internal/callback"
	"kvedit/internal/logging"
	"kvedit/internal/store"
)

// Options tune a single job. The zero value is a real (non-dry) run with
// default batch thresholds, no timeout, no limit, and unbounded failure
// collection.
type Options struct {
	DryRun bool

	// WriteUnchanged stages records whose transform returned the original
	// value. Off by default to avoid no-op write amplification.
	WriteUnchanged bool

	Batch BatchThreshold

	// PerRecordTimeout bounds the combined predicate+transform time for
	// one record; exceeding it is a per-record failure. Zero disables it.
	PerRecordTimeout time.Duration

	// MaxErrorsRecorded caps the report's failure list; zero keeps all.
	MaxErrorsRecorded int

	// Limit stops the scan after this many records; zero scans the range.
	Limit int

	// OnCommit observes each durably committed batch (real runs only).
	OnCommit func([]store.Write)

	// Progress, if set, is invoked after every record's decision.
	Progress func(scanned int, key []byte, d Decision)
}

// Pipeline runs one job. Instances are single-use and single-goroutine;
// independent jobs get independent pipelines.
type Pipeline struct {
	store store.Store
	cf    string
	rng   store.KeyRange
	pred  callback.Predicate
	tr    callback.Transform
	opts  Options
	log   *slog.Logger
}

// New validates and builds a pipeline. A nil predicate accepts every record.
// A nil transform is only allowed in dry-run mode, where it previews the
// predicate alone.
func New(st store.Store, cf string, rng store.KeyRange, pred callback.Predicate, tr callback.Transform, opts Options) (*Pipeline, error) {
	if tr == nil && !opts.DryRun {
		return nil, ErrTransformRequired
	}
	return &Pipeline{
		store: st,
		cf:    cf,
		rng:   rng,
		pred:  pred,
		tr:    tr,
		opts:  opts,
		log:   logging.L().With("column_family", cf),
	}, nil
}

// Run executes the job. The report is always non-nil, including on abort,
// so the caller can see how many records were durably changed. The error is
// non-nil for fatal conditions only: store unavailable, scan failure, batch
// commit failure, or cancellation.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	rep := &Report{Started: time.Now()}

	scanner, err := NewScanner(p.store, p.cf, p.rng)
	if err != nil {
		rep.Incomplete = true
		rep.Duration = time.Since(rep.Started)
		return rep, err
	}
	defer scanner.Close()

	var sink stagingSink
	var dry *DryRunReporter
	if p.opts.DryRun {
		dry = NewDryRunReporter()
		sink = dry
	} else {
		sink = NewBatchCommitter(p.store, p.cf, p.opts.Batch, p.opts.OnCommit)
	}
	errs := NewErrorCollector(p.opts.MaxErrorsRecorded)

	for scanner.Next() {
		// Cancellation is cooperative and only observed between
		// records. The staged batch is flushed so no finished record
		// work is silently lost.
		if cerr := ctx.Err(); cerr != nil {
			rep.Incomplete = true
			if ferr := sink.Flush(); ferr != nil {
				p.finalize(rep, sink, dry, errs)
				return rep, ferr
			}
			p.finalize(rep, sink, dry, errs)
			p.log.Warn("job cancelled", "scanned", rep.Scanned, "written", rep.Written)
			return rep, cerr
		}
		if p.opts.Limit > 0 && rep.Scanned >= p.opts.Limit {
			break
		}

		rec := scanner.Record()
		rep.Scanned++
		d, perr := p.process(ctx, rec, sink, errs, rep)
		if perr != nil {
			rep.Incomplete = true
			p.finalize(rep, sink, dry, errs)
			return rep, perr
		}
		if p.opts.Progress != nil {
			p.opts.Progress(rep.Scanned, rec.Key, d)
		}
	}
	if serr := scanner.Err(); serr != nil {
		rep.Incomplete = true
		p.finalize(rep, sink, dry, errs)
		return rep, serr
	}

	// Draining: commit whatever partial batch is left.
	if ferr := sink.Flush(); ferr != nil {
		rep.Incomplete = true
		p.finalize(rep, sink, dry, errs)
		return rep, ferr
	}
	p.finalize(rep, sink, dry, errs)
	return rep, nil
}

// process decides one record. Only staging/commit errors are returned; any
// callback error is recorded and absorbed here.
func (p *Pipeline) process(ctx context.Context, rec Record, sink stagingSink, errs *ErrorCollector, rep *Report) (Decision, error) {
	key := string(rec.Key)
	value := string(rec.Value)

	cctx := ctx
	if p.opts.PerRecordTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, p.opts.PerRecordTimeout)
		defer cancel()
	}

	if p.pred != nil {
		ok, err := p.pred.Accepts(cctx, key, value)
		if err != nil {
			rep.Failed++
			errs.Record(key, &CallbackError{Key: key, Err: err})
			return DecisionFailed, nil
		}
		if !ok {
			rep.Skipped++
			return DecisionSkipped, nil
		}
	}

	if p.tr == nil {
		rep.Unchanged++
		return DecisionUnchanged, nil
	}
	out, err := p.tr.Apply(cctx, key, value)
	if err != nil {
		rep.Failed++
		errs.Record(key, &CallbackError{Key: key, Err: err})
		return DecisionFailed, nil
	}

	if out == value {
		rep.Unchanged++
		if !p.opts.WriteUnchanged {
			return DecisionUnchanged, nil
		}
		return DecisionUnchanged, sink.Stage(rec.Key, rec.Value, out)
	}
	rep.Transformed++
	return DecisionTransformed, sink.Stage(rec.Key, rec.Value, out)
}

func (p *Pipeline) finalize(rep *Report, sink stagingSink, dry *DryRunReporter, errs *ErrorCollector) {
	rep.Written = sink.Written()
	rep.Failures = errs.Failures()
	if dry != nil {
		rep.Changes = dry.Changes()
	}
	rep.Duration = time.Since(rep.Started)
}
