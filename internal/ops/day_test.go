package ops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/rutina/internal/errors"
	"github.com/hpungsan/rutina/internal/routine"
)

const testDay = "2026-03-10"

func boolPtr(b bool) *bool { return &b }

func TestParseDay(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2026-03-10", false},
		{" 2026-03-10 ", false},
		{"2026-02-30", true},
		{"10/03/2026", true},
		{"", true},
	}
	for _, tt := range tests {
		_, err := ParseDay(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestToggleStep(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()
	r := seedRoutine(t, kv)
	a, b := r.Blocks[0].Steps[0].ID, r.Blocks[0].Steps[1].ID

	state, err := ToggleStep(ctx, kv, ToggleStepInput{Day: testDay, StepID: a})
	require.NoError(t, err)
	require.Equal(t, []string{a}, state.Done)

	state, err = ToggleStep(ctx, kv, ToggleStepInput{Day: testDay, StepID: b, Done: boolPtr(true)})
	require.NoError(t, err)
	require.Equal(t, []string{a, b}, state.Done)

	// setting done twice is idempotent
	state, err = ToggleStep(ctx, kv, ToggleStepInput{Day: testDay, StepID: b, Done: boolPtr(true)})
	require.NoError(t, err)
	require.Equal(t, []string{a, b}, state.Done)

	state, err = ToggleStep(ctx, kv, ToggleStepInput{Day: testDay, StepID: a})
	require.NoError(t, err)
	require.Equal(t, []string{b}, state.Done)

	got, err := GetDay(ctx, kv, testDay)
	require.NoError(t, err)
	require.Equal(t, []string{b}, got.Done)

	other, err := GetDay(ctx, kv, "2026-03-11")
	require.NoError(t, err)
	require.Empty(t, other.Done)
}

func TestToggleStep_Errors(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	_, err := ToggleStep(ctx, kv, ToggleStepInput{Day: "bad", StepID: "x"})
	requireCode(t, err, errors.ErrValidationFailed)

	_, err = ToggleStep(ctx, kv, ToggleStepInput{Day: testDay, StepID: " "})
	requireCode(t, err, errors.ErrValidationFailed)

	_, err = ToggleStep(ctx, kv, ToggleStepInput{Day: testDay, StepID: "x"})
	requireCode(t, err, errors.ErrNotFound)

	seedRoutine(t, kv)
	_, err = ToggleStep(ctx, kv, ToggleStepInput{Day: testDay, StepID: "x"})
	requireCode(t, err, errors.ErrNotFound)
}

func TestRecordFeedback_LastWriteWins(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()
	r := seedRoutine(t, kv)
	a, b := r.Blocks[0].Steps[0].ID, r.Blocks[2].Steps[0].ID

	_, err := RecordFeedback(ctx, kv, RecordFeedbackInput{Day: testDay, Feedback: []routine.Feedback{
		{RoutineID: "local", StepID: a, Outcome: routine.OutcomeHard},
		{RoutineID: "local", StepID: b, Outcome: routine.OutcomeOK},
	}})
	require.NoError(t, err)

	state, err := RecordFeedback(ctx, kv, RecordFeedbackInput{Day: testDay, Feedback: []routine.Feedback{
		{RoutineID: "local", StepID: a, Outcome: routine.OutcomeFailed, Note: "lloró"},
	}})
	require.NoError(t, err)
	require.Len(t, state.Feedback, 2)
	require.Equal(t, b, state.Feedback[0].StepID)
	require.Equal(t, a, state.Feedback[1].StepID)
	require.Equal(t, routine.OutcomeFailed, state.Feedback[1].Outcome)
}

func TestRecordFeedback_Errors(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()
	r := seedRoutine(t, kv)

	_, err := RecordFeedback(ctx, kv, RecordFeedbackInput{Day: testDay, Feedback: []routine.Feedback{
		{RoutineID: "local", StepID: r.Blocks[0].Steps[0].ID, Outcome: "meh"},
	}})
	requireCode(t, err, errors.ErrValidationFailed)

	_, err = RecordFeedback(ctx, kv, RecordFeedbackInput{Day: testDay, Feedback: []routine.Feedback{
		{RoutineID: "local", StepID: "ghost", Outcome: routine.OutcomeOK},
	}})
	requireCode(t, err, errors.ErrNotFound)

	state, err := GetDay(ctx, kv, testDay)
	require.NoError(t, err)
	require.Empty(t, state.Feedback)
}

func TestCloseDay(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()
	r := seedRoutine(t, kv)
	ids := r.StepIDs()
	require.Len(t, ids, 11)

	for _, id := range ids[:4] {
		_, err := ToggleStep(ctx, kv, ToggleStepInput{Day: testDay, StepID: id, Done: boolPtr(true)})
		require.NoError(t, err)
	}
	_, err := RecordFeedback(ctx, kv, RecordFeedbackInput{Day: testDay, Feedback: []routine.Feedback{
		{RoutineID: "local", StepID: ids[0], Outcome: routine.OutcomeHard},
		{RoutineID: "local", StepID: ids[1], Outcome: routine.OutcomeHard},
		{RoutineID: "local", StepID: ids[2], Outcome: routine.OutcomeFailed},
		{RoutineID: "local", StepID: ids[3], Outcome: routine.OutcomeOK},
	}})
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC)
	out, err := CloseDay(ctx, kv, testDay, now)
	require.NoError(t, err)
	require.NotNil(t, out.Stats)
	require.Equal(t, DailyStats{
		Day:           testDay,
		TotalSteps:    11,
		DoneSteps:     4,
		CompletionPct: 36,
		HardCount:     2,
		FailedCount:   1,
		CreatedAt:     now,
	}, *out.Stats)

	state, err := GetDay(ctx, kv, testDay)
	require.NoError(t, err)
	require.Empty(t, state.Done)
	require.Empty(t, state.Feedback)
}

func TestCloseDay_NoRoutineClearsSession(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	out, err := CloseDay(ctx, kv, testDay, time.Now())
	require.NoError(t, err)
	require.Nil(t, out.Stats)

	insights, err := Insights(ctx, kv, 7, time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Zero(t, insights.RecordedDays)
}

func TestInsights(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()
	today := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

	for _, s := range []DailyStats{
		{Day: "2026-03-10", TotalSteps: 10, DoneSteps: 10, CompletionPct: 100, HardCount: 1},
		{Day: "2026-03-08", TotalSteps: 10, DoneSteps: 5, CompletionPct: 50, HardCount: 2, FailedCount: 1},
		{Day: "2026-03-04", TotalSteps: 10, DoneSteps: 3, CompletionPct: 25, FailedCount: 3},
		{Day: "2026-03-03", TotalSteps: 10, DoneSteps: 0, CompletionPct: 0, FailedCount: 9},
	} {
		require.NoError(t, writeJSON(ctx, kv, statsKey(s.Day), s))
	}

	out, err := Insights(ctx, kv, 0, today)
	require.NoError(t, err)
	require.Equal(t, 7, out.Days)
	require.Equal(t, 3, out.RecordedDays)
	// (100 + 50 + 25) / 3 = 58.33
	require.Equal(t, 58, out.CompletionAvg)
	require.Equal(t, 3, out.HardTotal)
	require.Equal(t, 4, out.FailedTotal)
	require.Equal(t, "2026-03-10", out.Stats[0].Day)
	require.Equal(t, "2026-03-04", out.Stats[2].Day)

	out, err = Insights(ctx, kv, 1, today)
	require.NoError(t, err)
	require.Equal(t, 100, out.CompletionAvg)

	_, err = Insights(ctx, kv, 400, today)
	requireCode(t, err, errors.ErrValidationFailed)
}
