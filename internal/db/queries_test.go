package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestKV(t *testing.T) *SQLiteKV {
	t.Helper()
	db, err := Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteKV(db)
}

func TestSQLiteKV_GetMissing(t *testing.T) {
	kv := newTestKV(t)

	v, found, err := kv.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, v)
}

func TestSQLiteKV_SetGetOverwrite(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "profile_v1", []byte(`{"age":6}`)))
	v, found, err := kv.Get(ctx, "profile_v1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"age":6}`, string(v))

	require.NoError(t, kv.Set(ctx, "profile_v1", []byte(`{"age":7}`)))
	v, _, err = kv.Get(ctx, "profile_v1")
	require.NoError(t, err)
	require.Equal(t, `{"age":7}`, string(v))
}

func TestSQLiteKV_SetEmptyValue(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "empty", nil))
	v, found, err := kv.Get(ctx, "empty")
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, v)
}

func TestSQLiteKV_Delete(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", []byte("v")))
	require.NoError(t, kv.Delete(ctx, "k"))
	_, found, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)

	// missing keys are fine
	require.NoError(t, kv.Delete(ctx, "k"))
}

func TestSQLiteKV_KeysWithPrefix(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	for _, k := range []string{
		"events_v1_2026-03-02",
		"events_v1_2026-01-15",
		"events_v1_2025-12-31",
		"stats_v1_2026-01-15",
		"events_v2_2026-01-01",
	} {
		require.NoError(t, kv.Set(ctx, k, []byte("[]")))
	}

	keys, err := kv.KeysWithPrefix(ctx, "events_v1_2026-")
	require.NoError(t, err)
	require.Equal(t, []string{"events_v1_2026-01-15", "events_v1_2026-03-02"}, keys)

	keys, err = kv.KeysWithPrefix(ctx, "reminders_")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestSQLiteKV_KeysWithPrefix_LikeMetacharacters(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "day_v1_a", []byte("1")))
	require.NoError(t, kv.Set(ctx, "dayXv1Xb", []byte("1")))

	keys, err := kv.KeysWithPrefix(ctx, "day_v1_")
	require.NoError(t, err)
	require.Equal(t, []string{"day_v1_a"}, keys)
}

func TestSQLiteKV_CanceledContext(t *testing.T) {
	kv := newTestKV(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := kv.Set(ctx, "k", []byte("v"))
	require.Error(t, err)
}
