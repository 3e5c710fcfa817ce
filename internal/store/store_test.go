package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func collect(t *testing.T, s Scan) map[string]string {
	t.Helper()
	out := map[string]string{}
	for s.Next() {
		out[string(s.Key())] = string(s.Value())
	}
	require.NoError(t, s.Err())
	require.NoError(t, s.Close())
	return out
}

func collectKeys(t *testing.T, s Scan) []string {
	t.Helper()
	var keys []string
	for s.Next() {
		keys = append(keys, string(s.Key()))
	}
	require.NoError(t, s.Err())
	require.NoError(t, s.Close())
	return keys
}

func TestOpen_CreatesDefaultCF(t *testing.T) {
	d := openTestDB(t)
	cfs, err := d.ListCFs()
	require.NoError(t, err)
	require.Equal(t, []string{DefaultCF}, cfs)
}

func TestColumnFamilyLifecycle(t *testing.T) {
	d := openTestDB(t)

	require.NoError(t, d.CreateCF("users"))
	require.NoError(t, d.CreateCF("users")) // idempotent
	cfs, err := d.ListCFs()
	require.NoError(t, err)
	require.Equal(t, []string{DefaultCF, "users"}, cfs)

	require.NoError(t, d.CommitBatch("users", []Write{{Key: []byte("k"), Value: []byte("v")}}))
	require.NoError(t, d.DropCF("users"))

	_, err = d.Get("users", []byte("k"))
	require.ErrorIs(t, err, ErrUnavailable)

	// Re-creating after a drop must start empty.
	require.NoError(t, d.CreateCF("users"))
	_, err = d.Get("users", []byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDropCF_DefaultRejected(t *testing.T) {
	d := openTestDB(t)
	require.Error(t, d.DropCF(DefaultCF))
}

func TestCreateCF_InvalidName(t *testing.T) {
	d := openTestDB(t)
	require.Error(t, d.CreateCF(""))
	require.Error(t, d.CreateCF("bad\x00name"))
}

func TestCommitBatchAndGet(t *testing.T) {
	d := openTestDB(t)

	err := d.CommitBatch(DefaultCF, []Write{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	})
	require.NoError(t, err)

	v, err := d.Get(DefaultCF, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, "1", string(v))

	_, err = d.Get(DefaultCF, []byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCommitBatch_MissingCF(t *testing.T) {
	d := openTestDB(t)
	err := d.CommitBatch("nope", []Write{{Key: []byte("k"), Value: []byte("v")}})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestScan_OrderedAscending(t *testing.T) {
	d := openTestDB(t)
	err := d.CommitBatch(DefaultCF, []Write{
		{Key: []byte("c"), Value: []byte("3")},
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	})
	require.NoError(t, err)

	s, err := d.NewSnapshotScan(DefaultCF, KeyRange{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, collectKeys(t, s))
}

func TestScan_PrefixBound(t *testing.T) {
	d := openTestDB(t)
	err := d.CommitBatch(DefaultCF, []Write{
		{Key: []byte("user:1"), Value: []byte("u1")},
		{Key: []byte("user:2"), Value: []byte("u2")},
		{Key: []byte("uses"), Value: []byte("x")},
		{Key: []byte("order:1"), Value: []byte("o1")},
	})
	require.NoError(t, err)

	s, err := d.NewSnapshotScan(DefaultCF, KeyRange{Prefix: []byte("user:")})
	require.NoError(t, err)
	require.Equal(t, []string{"user:1", "user:2"}, collectKeys(t, s))
}

func TestScan_StartEndBounds(t *testing.T) {
	d := openTestDB(t)
	err := d.CommitBatch(DefaultCF, []Write{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
		{Key: []byte("d"), Value: []byte("4")},
	})
	require.NoError(t, err)

	// Start inclusive, End exclusive.
	s, err := d.NewSnapshotScan(DefaultCF, KeyRange{Start: []byte("b"), End: []byte("d")})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, collectKeys(t, s))
}

func TestScan_ColumnFamilyIsolation(t *testing.T) {
	d := openTestDB(t)
	require.NoError(t, d.CreateCF("users"))
	require.NoError(t, d.CreateCF("orders"))

	require.NoError(t, d.CommitBatch("users", []Write{{Key: []byte("k"), Value: []byte("user")}}))
	require.NoError(t, d.CommitBatch("orders", []Write{{Key: []byte("k"), Value: []byte("order")}}))

	s, err := d.NewSnapshotScan("users", KeyRange{})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"k": "user"}, collect(t, s))
}

func TestScan_SnapshotIsolation(t *testing.T) {
	d := openTestDB(t)
	require.NoError(t, d.CommitBatch(DefaultCF, []Write{
		{Key: []byte("a"), Value: []byte("old")},
	}))

	s, err := d.NewSnapshotScan(DefaultCF, KeyRange{})
	require.NoError(t, err)

	// Commit after the snapshot was established: neither the new key nor
	// the overwrite may be visible to the scan.
	require.NoError(t, d.CommitBatch(DefaultCF, []Write{
		{Key: []byte("a"), Value: []byte("new")},
		{Key: []byte("b"), Value: []byte("added")},
	}))

	require.Equal(t, map[string]string{"a": "old"}, collect(t, s))

	v, err := d.Get(DefaultCF, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, "new", string(v))
}

func TestScan_MissingCF(t *testing.T) {
	d := openTestDB(t)
	_, err := d.NewSnapshotScan("nope", KeyRange{})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClosedStore(t *testing.T) {
	d, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close()) // idempotent

	_, err = d.Get(DefaultCF, []byte("k"))
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = d.NewSnapshotScan(DefaultCF, KeyRange{})
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = d.ListCFs()
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestKeyUpperBound(t *testing.T) {
	require.Equal(t, []byte("b"), keyUpperBound([]byte("a")))
	require.Equal(t, []byte("ab"), keyUpperBound([]byte("aa")))
	require.Equal(t, []byte{0x01}, keyUpperBound([]byte{0x00}))
	require.Equal(t, []byte{0x62}, keyUpperBound([]byte{0x61, 0xff}))
	require.Nil(t, keyUpperBound([]byte{0xff, 0xff}))
}
