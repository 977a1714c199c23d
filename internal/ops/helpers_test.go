package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
	"github.com/hpungsan/rutina/internal/routine"
)

func newTestKV(t *testing.T) db.KV {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	kv, err := db.NewCachedKV(db.NewSQLiteKV(database), 32)
	require.NoError(t, err)
	return kv
}

func schoolProfile() routine.ProfileInput {
	return routine.ProfileInput{
		Age:                6,
		CommunicationLevel: routine.CommunicationVerbal,
		SensorySensitivity: []routine.Sensitivity{routine.SensitivitySound},
		Goal:               "Rutina matutina para ir a la escuela",
		Context:            routine.ContextSchool,
	}
}

// seedRoutine generates and stores a routine, returning it.
func seedRoutine(t *testing.T, kv db.KV) *routine.Routine {
	t.Helper()
	out, err := GenerateRoutine(context.Background(), kv, schoolProfile())
	require.NoError(t, err)
	return out.Routine
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, code), "want %s, got %v", code, err)
}
