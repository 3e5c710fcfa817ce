package pipeline

import (
	"fmt"

	"kvedit/internal/store"
)

// Scanner adapts a store snapshot scan into the pipeline's record sequence.
// It is forward-only and not restartable; a fresh Scanner may observe a
// different snapshot.
type Scanner struct {
	scan store.Scan
	rec  Record
}

// NewScanner opens a snapshot scan over the key range. Fails with the
// store's ErrUnavailable when the column family does not exist or the store
// is closed.
func NewScanner(st store.Store, cf string, r store.KeyRange) (*Scanner, error) {
	scan, err := st.NewSnapshotScan(cf, r)
	if err != nil {
		return nil, err
	}
	return &Scanner{scan: scan}, nil
}

func (s *Scanner) Next() bool {
	if !s.scan.Next() {
		return false
	}
	s.rec = Record{Key: s.scan.Key(), Value: s.scan.Value()}
	return true
}

// Record returns the current pair. Valid until the next call to Next.
func (s *Scanner) Record() Record { return s.rec }

func (s *Scanner) Err() error {
	if err := s.scan.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrScan, err)
	}
	return nil
}

func (s *Scanner) Close() error { return s.scan.Close() }
