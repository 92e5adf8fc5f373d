package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	mem, err := NewMemLevelDB()
	require.NoError(t, err)
	file, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	dbs := map[string]Database{
		"memdb":        NewMemDB(),
		"leveldb-mem":  mem,
		"leveldb-file": file,
	}
	t.Cleanup(func() {
		for _, db := range dbs {
			db.Close()
		}
	})
	return dbs
}

func TestDatabaseGetPut(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, db.Put([]byte("k"), []byte("v")))
			got, err := db.Get([]byte("k"))
			require.NoError(t, err)
			require.Equal(t, []byte("v"), got)

			ok, err := db.Has([]byte("k"))
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestBatchAppliesOnlyOnWrite(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			batch := db.NewBatch()
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))
			require.Equal(t, 2, batch.Len())

			ok, err := db.Has([]byte("a"))
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, batch.Write())
			got, err := db.Get([]byte("b"))
			require.NoError(t, err)
			require.Equal(t, []byte("2"), got)

			batch.Reset()
			require.Zero(t, batch.Len())
		})
	}
}
