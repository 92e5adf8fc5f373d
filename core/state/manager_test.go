package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gigchain/storage"
)

type kvRecord struct {
	Name  string
	Count uint64
}

func TestKVOverlayCommit(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	require.NoError(t, mgr.KVPut([]byte("rec/1"), kvRecord{Name: "a", Count: 2}))
	require.Equal(t, 1, mgr.Pending())
	require.Empty(t, db.Keys())

	var out kvRecord
	ok, err := mgr.KVGet([]byte("rec/1"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", out.Name)

	require.NoError(t, mgr.Commit())
	require.Zero(t, mgr.Pending())
	require.Len(t, db.Keys(), 1)

	fresh := NewManager(db)
	var reloaded kvRecord
	ok, err = fresh.KVGet([]byte("rec/1"), &reloaded)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), reloaded.Count)
}

func TestKVOverlayDiscard(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	require.NoError(t, mgr.KVPut([]byte("rec/1"), kvRecord{Name: "kept"}))
	require.NoError(t, mgr.Commit())

	require.NoError(t, mgr.KVPut([]byte("rec/1"), kvRecord{Name: "dropped"}))
	_, err := mgr.NextSequence("job")
	require.NoError(t, err)
	mgr.Discard()

	var out kvRecord
	ok, err := mgr.KVGet([]byte("rec/1"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "kept", out.Name)

	seq, err := mgr.Sequence("job")
	require.NoError(t, err)
	require.Zero(t, seq)
}

func TestSequences(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	for want := uint64(1); want <= 3; want++ {
		got, err := mgr.NextSequence("dispute")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	other, err := mgr.NextSequence("job")
	require.NoError(t, err)
	require.Equal(t, uint64(1), other)
}

func TestRoles(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	addr := []byte{0x01, 0x02}
	require.False(t, mgr.HasRole("MINTER", addr))
	require.NoError(t, mgr.SetRole("MINTER", addr))
	require.NoError(t, mgr.SetRole("MINTER", addr))
	require.True(t, mgr.HasRole("MINTER", addr))
	members, err := mgr.RoleMembers("MINTER")
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Error(t, mgr.SetRole(" ", addr))
}

func TestKVAppendAndList(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	require.NoError(t, mgr.KVAppend([]byte("jurors"), []byte{0x01}))
	require.NoError(t, mgr.KVAppend([]byte("jurors"), []byte{0x02}))
	require.NoError(t, mgr.KVAppend([]byte("jurors"), []byte{0x01}))

	var list [][]byte
	require.NoError(t, mgr.KVGetList([]byte("jurors"), &list))
	require.Len(t, list, 2)

	var empty [][]byte
	require.NoError(t, mgr.KVGetList([]byte("none"), &empty))
	require.NotNil(t, empty)
	require.Empty(t, empty)
}
