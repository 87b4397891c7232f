package kv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/internal/db"
	"daybook/internal/kv"
	"daybook/internal/migrate"
)

func newRepo(t *testing.T) kv.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return kv.Repo{DB: conn}
}

func TestRepoAbsentKey(t *testing.T) {
	r := newRepo(t)
	var out []string
	err := r.Load(context.Background(), "missing", &out)
	assert.True(t, errors.Is(err, kv.ErrNotFound))
}

func TestRepoSaveOverwrites(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	require.NoError(t, r.Save(ctx, "tasks", []int{1, 2}))
	require.NoError(t, r.Save(ctx, "tasks", []int{3}))

	var out []int
	require.NoError(t, r.Load(ctx, "tasks", &out))
	assert.Equal(t, []int{3}, out)

	keys, err := r.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks"}, keys)

	require.NoError(t, r.Delete(ctx, "tasks"))
	assert.ErrorIs(t, r.Load(ctx, "tasks", &out), kv.ErrNotFound)
}

func TestRepoRejectsInvalidJSON(t *testing.T) {
	r := newRepo(t)
	assert.Error(t, r.Set(context.Background(), "bad", []byte("{")))
}

func TestMemoryCountsWrites(t *testing.T) {
	m := kv.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, "k", "a"))
	require.NoError(t, m.Save(ctx, "k", "b"))
	assert.Equal(t, 2, m.Writes("k"))
	assert.JSONEq(t, `"b"`, string(m.Raw("k")))

	m.SaveErr = errors.New("disk full")
	assert.Error(t, m.Save(ctx, "k", "c"))
	assert.Equal(t, 2, m.Writes("k"))
}
