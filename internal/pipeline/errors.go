package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrScan wraps an iterator failure. Fatal: the job aborts and the
	// partial report is returned.
	ErrScan = errors.New("scan failed")

	// ErrBatchCommit wraps a failed atomic batch commit. Fatal: batches
	// committed before it remain durable.
	ErrBatchCommit = errors.New("batch commit failed")

	// ErrTransformRequired is returned when a mutating job is configured
	// without a transform.
	ErrTransformRequired = errors.New("transform is required unless dry_run is set")
)

// CallbackError is a per-record predicate or transform failure. It never
// propagates past the record boundary.
type CallbackError struct {
	Key string
	Err error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback failed for key %q: %v", e.Key, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// ErrorCollector accumulates per-key failures in scan order. With a cap it
// stops storing entries but keeps counting, so pathological jobs stay
// bounded in memory while the report's Failed counter stays truthful.
type ErrorCollector struct {
	max      int
	failures []Failure
	dropped  int
}

// NewErrorCollector returns a collector keeping at most max failures;
// max <= 0 means unbounded.
func NewErrorCollector(max int) *ErrorCollector {
	return &ErrorCollector{max: max}
}

func (c *ErrorCollector) Record(key string, err error) {
	if c.max > 0 && len(c.failures) >= c.max {
		c.dropped++
		return
	}
	c.failures = append(c.failures, Failure{Key: key, Error: err.Error()})
}

func (c *ErrorCollector) Failures() []Failure { return c.failures }

// Dropped reports how many failures were counted but not stored.
func (c *ErrorCollector) Dropped() int { return c.dropped }
