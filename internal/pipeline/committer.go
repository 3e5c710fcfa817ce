package pipeline

import (
	"fmt"

	"kvedit/internal/store"
)

// stagingSink receives accepted, changed records. BatchCommitter commits
// them; DryRunReporter only records them. Both sit behind the same decision
// path so a dry run previews exactly what a real run would do.
type stagingSink interface {
	Stage(key, oldValue []byte, newValue string) error
	Flush() error
	Written() int
}

// BatchThreshold bounds a batch by count and by cumulative key+value bytes.
// Whichever trips first flushes the buffer.
type BatchThreshold struct {
	MaxCount int
	MaxBytes int
}

const (
	defaultBatchCount = 1000
	defaultBatchBytes = 4 << 20
)

// BatchCommitter accumulates staged writes and commits them as atomic
// batches. Batches are atomic individually, not with respect to each other:
// a crash between batches leaves a prefix of the intended writes durable.
type BatchCommitter struct {
	store    store.Store
	cf       string
	thr      BatchThreshold
	onCommit func([]store.Write)

	buf     []store.Write
	bytes   int
	written int
}

var _ stagingSink = (*BatchCommitter)(nil)

// NewBatchCommitter builds a committer for one job. onCommit, if non-nil, is
// invoked after each durable batch with the writes it contained.
func NewBatchCommitter(st store.Store, cf string, thr BatchThreshold, onCommit func([]store.Write)) *BatchCommitter {
	if thr.MaxCount <= 0 {
		thr.MaxCount = defaultBatchCount
	}
	if thr.MaxBytes <= 0 {
		thr.MaxBytes = defaultBatchBytes
	}
	return &BatchCommitter{store: st, cf: cf, thr: thr, onCommit: onCommit}
}

// Stage buffers one write and flushes when a threshold is reached. The key
// is copied; it is only borrowed from the scan.
func (c *BatchCommitter) Stage(key, _ []byte, newValue string) error {
	w := store.Write{
		Key:   append([]byte(nil), key...),
		Value: []byte(newValue),
	}
	c.buf = append(c.buf, w)
	c.bytes += len(w.Key) + len(w.Value)
	if len(c.buf) >= c.thr.MaxCount || c.bytes >= c.thr.MaxBytes {
		return c.flush()
	}
	return nil
}

// Flush commits any partial batch still buffered.
func (c *BatchCommitter) Flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	return c.flush()
}

func (c *BatchCommitter) flush() error {
	if err := c.store.CommitBatch(c.cf, c.buf); err != nil {
		return fmt.Errorf("%w: %v", ErrBatchCommit, err)
	}
	c.written += len(c.buf)
	if c.onCommit != nil {
		c.onCommit(c.buf)
	}
	c.buf = nil
	c.bytes = 0
	return nil
}

// Written reports how many writes have been durably committed.
func (c *BatchCommitter) Written() int { return c.written }
