package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"kvedit/internal/config"
	"kvedit/internal/store"
)

// seedStore creates a store with a users column family holding five JSON
// records, then closes it so Bootstrap can reopen the path.
func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db")
	d, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, d.CreateCF("users"))
	require.NoError(t, d.CommitBatch("users", []store.Write{
		{Key: []byte("u1"), Value: []byte(`{"age":25,"name":"ann"}`)},
		{Key: []byte("u2"), Value: []byte(`{"age":31,"name":"bob"}`)},
		{Key: []byte("u3"), Value: []byte(`{"age":33,"name":"cyd"}`)},
		{Key: []byte("u4"), Value: []byte(`{"age":28,"name":"dan"}`)},
		{Key: []byte("u5"), Value: []byte(`{"age":40,"name":"eve"}`)},
	}))
	require.NoError(t, d.Close())
	return path
}

func ageGroupJob(storePath string) config.Job {
	return config.Job{
		StorePath:    storePath,
		ColumnFamily: "users",
		Predicate: config.CallbackCfg{
			Type: "cel",
			Expr: `"age" in record && record.age > 30.0`,
		},
		Transform: config.CallbackCfg{
			Type: "cel",
			Expr: `jsonSet(value, "age_group", record.age < 35.0 ? "middle" : "senior")`,
		},
	}
}

func TestEngine_EndToEnd(t *testing.T) {
	path := seedStore(t)
	job := ageGroupJob(path)
	job.Batch.MaxCount = 2

	e, err := Bootstrap(job)
	require.NoError(t, err)

	rep, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	require.Equal(t, 5, rep.Scanned)
	require.Equal(t, 2, rep.Skipped)
	require.Equal(t, 3, rep.Transformed)
	require.Equal(t, 0, rep.Failed)
	require.Equal(t, 3, rep.Written)
	require.False(t, rep.Incomplete)

	d, err := store.Open(path)
	require.NoError(t, err)
	defer d.Close()

	v, err := d.Get("users", []byte("u2"))
	require.NoError(t, err)
	require.JSONEq(t, `{"age":31,"name":"bob","age_group":"middle"}`, string(v))

	v, err = d.Get("users", []byte("u5"))
	require.NoError(t, err)
	require.JSONEq(t, `{"age":40,"name":"eve","age_group":"senior"}`, string(v))

	v, err = d.Get("users", []byte("u1"))
	require.NoError(t, err)
	require.JSONEq(t, `{"age":25,"name":"ann"}`, string(v))
}

func TestEngine_DryRunLeavesStoreUntouched(t *testing.T) {
	path := seedStore(t)
	job := ageGroupJob(path)
	job.DryRun = true

	e, err := Bootstrap(job)
	require.NoError(t, err)

	rep, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	require.Equal(t, 3, rep.Transformed)
	require.Equal(t, 0, rep.Written)
	require.Len(t, rep.Changes, 3)
	require.Equal(t, "u2", rep.Changes[0].Key)
	require.JSONEq(t, `{"age":31,"name":"bob"}`, rep.Changes[0].OldValue)
	require.JSONEq(t, `{"age":31,"name":"bob","age_group":"middle"}`, rep.Changes[0].NewValue)

	d, err := store.Open(path)
	require.NoError(t, err)
	defer d.Close()
	v, err := d.Get("users", []byte("u2"))
	require.NoError(t, err)
	require.JSONEq(t, `{"age":31,"name":"bob"}`, string(v))
}

func TestEngine_BackupBeforeMutation(t *testing.T) {
	path := seedStore(t)
	job := ageGroupJob(path)
	job.Backup.Path = filepath.Join(t.TempDir(), "users-before.csv")

	e, err := Bootstrap(job)
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	raw, err := os.ReadFile(job.Backup.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 6) // header + 5 records
	require.Equal(t, "key,value", lines[0])
	// The backup holds pre-transform values.
	require.Contains(t, string(raw), `{""age"":31,""name"":""bob""}`)
	require.NotContains(t, string(raw), "age_group")
}

func TestEngine_ScriptCallbacks(t *testing.T) {
	path := seedStore(t)
	job := config.Job{
		StorePath:    path,
		ColumnFamily: "users",
		Predicate: config.CallbackCfg{
			Type:    "script",
			Command: "sh",
			Args:    []string{"-c", `cat >/dev/null; echo '{"accept":true}'`},
		},
		Transform: config.CallbackCfg{
			Type:    "script",
			Command: "sh",
			Args:    []string{"-c", `cat >/dev/null; echo '{"value":"edited"}'`},
		},
		Limit: 1,
	}

	e, err := Bootstrap(job)
	require.NoError(t, err)
	rep, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	require.Equal(t, 1, rep.Scanned)
	require.Equal(t, 1, rep.Written)

	d, err := store.Open(path)
	require.NoError(t, err)
	defer d.Close()
	v, err := d.Get("users", []byte("u1"))
	require.NoError(t, err)
	require.Equal(t, "edited", string(v))
}

func TestBootstrap_InvalidCallback(t *testing.T) {
	path := seedStore(t)
	job := ageGroupJob(path)
	job.Transform = config.CallbackCfg{Type: "lua", Expr: "value"}

	_, err := Bootstrap(job)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown callback type")
}

func TestBootstrap_MissingColumnFamilyFailsAtRun(t *testing.T) {
	path := seedStore(t)
	job := ageGroupJob(path)
	job.ColumnFamily = "orders"

	e, err := Bootstrap(job)
	require.NoError(t, err)
	defer e.Close()

	rep, err := e.Run(context.Background())
	require.ErrorIs(t, err, store.ErrUnavailable)
	require.NotNil(t, rep)
	require.True(t, rep.Incomplete)
}
