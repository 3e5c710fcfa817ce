package pipeline

import "time"

// Record is one (key, value) pair read from the snapshot scan. It is only
// valid for the iteration step that produced it.
type Record struct {
	Key   []byte
	Value []byte
}

// Decision is the per-record outcome. Every scanned record gets exactly one.
type Decision int

const (
	// DecisionSkipped means the predicate rejected the record.
	DecisionSkipped Decision = iota
	// DecisionTransformed means the transform produced a different value.
	DecisionTransformed
	// DecisionUnchanged means the transform returned the original value.
	DecisionUnchanged
	// DecisionFailed means the predicate or transform errored; the record
	// was left untouched.
	DecisionFailed
)

func (d Decision) String() string {
	switch d {
	case DecisionSkipped:
		return "skipped"
	case DecisionTransformed:
		return "transformed"
	case DecisionUnchanged:
		return "unchanged"
	case DecisionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Failure is one per-record callback error, in scan order.
type Failure struct {
	Key   string `yaml:"key"`
	Error string `yaml:"error"`
}

// Change is one intended mutation recorded by a dry run.
type Change struct {
	Key      string `yaml:"key"`
	OldValue string `yaml:"old"`
	NewValue string `yaml:"new"`
}

// Report is the job result. It is always returned, including on abort, so an
// operator can see how far the job got. Scanned always equals
// Skipped + Transformed + Unchanged + Failed.
type Report struct {
	Scanned     int `yaml:"scanned"`
	Skipped     int `yaml:"skipped"`
	Transformed int `yaml:"transformed"`
	Unchanged   int `yaml:"unchanged"`
	Failed      int `yaml:"failed"`
	Written     int `yaml:"written"`

	// Failures may be truncated by the collector cap; Failed keeps the
	// true count.
	Failures []Failure `yaml:"failures,omitempty"`

	// Changes is populated in dry-run mode only.
	Changes []Change `yaml:"changes,omitempty"`

	// Incomplete marks a cancelled or aborted job.
	Incomplete bool `yaml:"incomplete"`

	Started  time.Time     `yaml:"started"`
	Duration time.Duration `yaml:"duration"`
}
