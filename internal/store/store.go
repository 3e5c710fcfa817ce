// Package store provides the embedded ordered key-value store behind the
// transform engine. Column families are prefix-encoded keyspaces inside a
// single pebble instance, tracked in a small on-disk registry. Reads for a
// bulk job go through snapshot scans so concurrent batch commits never
// perturb an in-flight iteration.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

var (
	// ErrUnavailable means the store is closed or the column family does
	// not exist. Jobs fail on it before any record work happens.
	ErrUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned by Get for absent keys.
	ErrNotFound = errors.New("key not found")
)

// Write is one pending (key, value) pair inside an atomic batch.
type Write struct {
	Key   []byte
	Value []byte
}

// KeyRange bounds a scan. Prefix takes precedence; otherwise Start is
// inclusive and End exclusive. A zero KeyRange covers the whole column
// family.
type KeyRange struct {
	Prefix []byte
	Start  []byte
	End    []byte
}

// Scan is a forward-only ordered iteration over a consistent snapshot.
// Key and Value are valid until the next call to Next.
type Scan interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Store is the capability surface the engine depends on. Keys and values
// are opaque byte sequences; the store imposes no schema.
type Store interface {
	NewSnapshotScan(cf string, r KeyRange) (Scan, error)
	CommitBatch(cf string, writes []Write) error
	Get(cf string, key []byte) ([]byte, error)
	CreateCF(cf string) error
	DropCF(cf string) error
	ListCFs() ([]string, error)
	Close() error
}

// DefaultCF always exists in an open store.
const DefaultCF = "default"

// cf names become key prefixes, so the separator byte is reserved.
const cfSep = 0x00

var cfRegistryPrefix = []byte{cfSep, 'c', 'f', cfSep}

type DB struct {
	pb     *pebble.DB
	closed atomic.Bool
}

var _ Store = (*DB)(nil)

// Open opens (creating if necessary) a store at path and guarantees the
// default column family exists.
func Open(path string) (*DB, error) {
	pdb, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	d := &DB{pb: pdb}
	if err := d.CreateCF(DefaultCF); err != nil {
		_ = pdb.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.pb.Close()
}

func validateCF(cf string) error {
	if cf == "" || bytes.IndexByte([]byte(cf), cfSep) >= 0 {
		return fmt.Errorf("invalid column family name %q", cf)
	}
	return nil
}

func cfRegistryKey(cf string) []byte {
	return append(append([]byte(nil), cfRegistryPrefix...), cf...)
}

func cfPrefix(cf string) []byte {
	return append([]byte(cf), cfSep)
}

func dataKey(cf string, key []byte) []byte {
	return append(cfPrefix(cf), key...)
}

// ensureCF verifies the store is open and the column family registered.
func (d *DB) ensureCF(cf string) error {
	if d.closed.Load() {
		return fmt.Errorf("%w: store is closed", ErrUnavailable)
	}
	if err := validateCF(cf); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	_, closer, err := d.pb.Get(cfRegistryKey(cf))
	if err == pebble.ErrNotFound {
		return fmt.Errorf("%w: column family %q does not exist", ErrUnavailable, cf)
	}
	if err != nil {
		return err
	}
	return closer.Close()
}

func (d *DB) CreateCF(cf string) error {
	if d.closed.Load() {
		return fmt.Errorf("%w: store is closed", ErrUnavailable)
	}
	if err := validateCF(cf); err != nil {
		return err
	}
	return d.pb.Set(cfRegistryKey(cf), nil, pebble.Sync)
}

// DropCF removes the column family and all its records in one atomic batch.
func (d *DB) DropCF(cf string) error {
	if err := d.ensureCF(cf); err != nil {
		return err
	}
	if cf == DefaultCF {
		return fmt.Errorf("cannot drop column family %q", DefaultCF)
	}
	p := cfPrefix(cf)
	b := d.pb.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(p, keyUpperBound(p), nil); err != nil {
		return err
	}
	if err := b.Delete(cfRegistryKey(cf), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (d *DB) ListCFs() ([]string, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("%w: store is closed", ErrUnavailable)
	}
	iter, err := d.pb.NewIter(&pebble.IterOptions{
		LowerBound: cfRegistryPrefix,
		UpperBound: keyUpperBound(cfRegistryPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var cfs []string
	for iter.First(); iter.Valid(); iter.Next() {
		cfs = append(cfs, string(iter.Key()[len(cfRegistryPrefix):]))
	}
	return cfs, iter.Error()
}

func (d *DB) Get(cf string, key []byte) ([]byte, error) {
	if err := d.ensureCF(cf); err != nil {
		return nil, err
	}
	v, closer, err := d.pb.Get(dataKey(cf, key))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	return out, closer.Close()
}

// CommitBatch writes all pairs as one durable atomic batch. Either every
// write becomes visible or none does.
func (d *DB) CommitBatch(cf string, writes []Write) error {
	if err := d.ensureCF(cf); err != nil {
		return err
	}
	b := d.pb.NewBatch()
	defer b.Close()
	for _, w := range writes {
		if err := b.Set(dataKey(cf, w.Key), w.Value, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// NewSnapshotScan opens an ordered forward scan over a consistent view
// established now. Writes committed after this call are not visible to it.
func (d *DB) NewSnapshotScan(cf string, r KeyRange) (Scan, error) {
	if err := d.ensureCF(cf); err != nil {
		return nil, err
	}
	p := cfPrefix(cf)
	var lower, upper []byte
	switch {
	case len(r.Prefix) > 0:
		lower = append(append([]byte(nil), p...), r.Prefix...)
		upper = keyUpperBound(lower)
	default:
		lower = append(append([]byte(nil), p...), r.Start...)
		if len(r.End) > 0 {
			upper = append(append([]byte(nil), p...), r.End...)
		} else {
			upper = keyUpperBound(p)
		}
	}
	snap := d.pb.NewSnapshot()
	iter, err := snap.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		_ = snap.Close()
		return nil, err
	}
	return &snapshotScan{snap: snap, iter: iter, strip: len(p)}, nil
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix, or nil when no such bound exists.
func keyUpperBound(b []byte) []byte {
	end := append([]byte(nil), b...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

type snapshotScan struct {
	snap    *pebble.Snapshot
	iter    *pebble.Iterator
	strip   int
	started bool
	key     []byte
	value   []byte
	err     error
}

func (s *snapshotScan) Next() bool {
	if s.err != nil {
		return false
	}
	var ok bool
	if !s.started {
		ok = s.iter.First()
		s.started = true
	} else {
		ok = s.iter.Next()
	}
	if !ok {
		s.err = s.iter.Error()
		return false
	}
	// Iterator buffers are only valid until the next positioning call.
	s.key = append(s.key[:0], s.iter.Key()[s.strip:]...)
	s.value = append(s.value[:0], s.iter.Value()...)
	return true
}

func (s *snapshotScan) Key() []byte   { return s.key }
func (s *snapshotScan) Value() []byte { return s.value }
func (s *snapshotScan) Err() error    { return s.err }

func (s *snapshotScan) Close() error {
	err := s.iter.Close()
	if cerr := s.snap.Close(); err == nil {
		err = cerr
	}
	return err
}
