package pipeline

// DryRunReporter records intended changes without touching storage. It
// implements the same staging sink as BatchCommitter, so the filter and
// transform decisions feeding it are identical to a real run's.
type DryRunReporter struct {
	changes []Change
}

var _ stagingSink = (*DryRunReporter)(nil)

func NewDryRunReporter() *DryRunReporter { return &DryRunReporter{} }

func (r *DryRunReporter) Stage(key, oldValue []byte, newValue string) error {
	r.changes = append(r.changes, Change{
		Key:      string(key),
		OldValue: string(oldValue),
		NewValue: newValue,
	})
	return nil
}

func (r *DryRunReporter) Flush() error { return nil }

// Written is always zero: a dry run never mutates the store.
func (r *DryRunReporter) Written() int { return 0 }

// Changes returns the intended mutations in scan order.
func (r *DryRunReporter) Changes() []Change { return r.changes }
