package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/rutina/internal/errors"
)

func TestEvents_AddListDelete(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	late, err := AddEvent(ctx, kv, AddEventInput{Day: testDay, Time: "16:30", Title: "Terapia ocupacional", Category: CategoryTherapy})
	require.NoError(t, err)
	untimed, err := AddEvent(ctx, kv, AddEventInput{Day: testDay, Title: "Visita abuela", Category: CategoryFamily})
	require.NoError(t, err)
	early, err := AddEvent(ctx, kv, AddEventInput{
		Day:         testDay,
		Time:        "08:00",
		Title:       "  Escuela  ",
		Preparation: []string{"mochila", " ", "lonchera "},
	})
	require.NoError(t, err)
	require.Equal(t, "Escuela", early.Title)
	require.Equal(t, CategoryCustom, early.Category)
	require.Equal(t, []string{"mochila", "lonchera"}, early.Preparation)
	require.Equal(t, testDay, early.Date)

	list, err := ListEvents(ctx, kv, testDay)
	require.NoError(t, err)
	require.Len(t, list.Events, 3)
	require.Equal(t, []string{early.ID, late.ID, untimed.ID},
		[]string{list.Events[0].ID, list.Events[1].ID, list.Events[2].ID})

	del, err := DeleteEvent(ctx, kv, testDay, late.ID)
	require.NoError(t, err)
	require.True(t, del.Deleted)

	_, err = DeleteEvent(ctx, kv, testDay, late.ID)
	requireCode(t, err, errors.ErrNotFound)

	list, err = ListEvents(ctx, kv, testDay)
	require.NoError(t, err)
	require.Len(t, list.Events, 2)
}

func TestAddEvent_Validation(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input AddEventInput
		field string
	}{
		{"bad day", AddEventInput{Day: "mañana", Title: "ok title"}, "day"},
		{"short title", AddEventInput{Day: testDay, Title: "x"}, "title"},
		{"bad time", AddEventInput{Day: testDay, Title: "Cine", Time: "25:00"}, "time"},
		{"bad category", AddEventInput{Day: testDay, Title: "Cine", Category: "party"}, "category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AddEvent(ctx, kv, tt.input)
			requireCode(t, err, errors.ErrValidationFailed)
			require.Contains(t, errors.As(err).Details["fields"], tt.field)
		})
	}
}

func TestDaysWithEvents(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	for _, day := range []string{"2026-05-01", "2026-01-20", "2025-12-31", "2027-01-01"} {
		_, err := AddEvent(ctx, kv, AddEventInput{Day: day, Title: "Evento"})
		require.NoError(t, err)
	}
	ev, err := AddEvent(ctx, kv, AddEventInput{Day: "2026-07-04", Title: "Salida"})
	require.NoError(t, err)
	_, err = DeleteEvent(ctx, kv, "2026-07-04", ev.ID)
	require.NoError(t, err)

	out, err := DaysWithEvents(ctx, kv, 2026)
	require.NoError(t, err)
	require.Equal(t, []string{"2026-01-20", "2026-05-01"}, out.Days)

	out, err = DaysWithEvents(ctx, kv, 2030)
	require.NoError(t, err)
	require.Empty(t, out.Days)

	_, err = DaysWithEvents(ctx, kv, 0)
	requireCode(t, err, errors.ErrValidationFailed)
}
