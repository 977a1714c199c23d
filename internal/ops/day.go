package ops

import (
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
	"github.com/hpungsan/rutina/internal/routine"
)

// DayState is the in-progress session for one calendar day.
type DayState struct {
	Day      string             `json:"day"`
	Done     []string           `json:"done"`
	Feedback []routine.Feedback `json:"feedback"`
}

// DailyStats is written when a day is closed. Operational counts only.
type DailyStats struct {
	Day           string    `json:"day"`
	TotalSteps    int       `json:"totalSteps"`
	DoneSteps     int       `json:"doneSteps"`
	CompletionPct int       `json:"completionPct"`
	HardCount     int       `json:"hardCount"`
	FailedCount   int       `json:"failedCount"`
	CreatedAt     time.Time `json:"createdAtISO"`
}

// GetDay returns the checklist and feedback recorded for day.
func GetDay(ctx context.Context, kv db.KV, day string) (*DayState, error) {
	day, err := ParseDay(day)
	if err != nil {
		return nil, err
	}
	return loadDay(ctx, kv, day)
}

// RecordFeedbackInput contains parameters for RecordFeedback.
type RecordFeedbackInput struct {
	Day      string
	Feedback []routine.Feedback
}

// RecordFeedback stores per-step outcomes for a day. A later entry for the
// same step replaces the earlier one.
func RecordFeedback(ctx context.Context, kv db.KV, input RecordFeedbackInput) (*DayState, error) {
	day, err := ParseDay(input.Day)
	if err != nil {
		return nil, err
	}
	if err := routine.ValidateFeedback(input.Feedback).Err(); err != nil {
		return nil, err
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	r, err := loadRoutine(ctx, kv)
	if err != nil {
		return nil, err
	}
	for _, f := range input.Feedback {
		if r.Step(f.StepID) == nil {
			return nil, errors.NewNotFound("step", f.StepID)
		}
	}

	state, err := loadDay(ctx, kv, day)
	if err != nil {
		return nil, err
	}
	for _, f := range input.Feedback {
		state.Feedback = slices.DeleteFunc(state.Feedback, func(prev routine.Feedback) bool {
			return prev.StepID == f.StepID
		})
		state.Feedback = append(state.Feedback, f)
	}

	if err := writeJSON(ctx, kv, feedbackKey(day), state.Feedback); err != nil {
		return nil, err
	}
	return state, nil
}

// ToggleStepInput contains parameters for ToggleStep. A nil Done flips the
// current state.
type ToggleStepInput struct {
	Day    string
	StepID string
	Done   *bool
}

// ToggleStep marks a step done or not done on the day's checklist.
func ToggleStep(ctx context.Context, kv db.KV, input ToggleStepInput) (*DayState, error) {
	day, err := ParseDay(input.Day)
	if err != nil {
		return nil, err
	}
	stepID := strings.TrimSpace(input.StepID)
	if stepID == "" {
		return nil, errors.NewValidation(map[string]string{"stepId": "is required"})
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	r, err := loadRoutine(ctx, kv)
	if err != nil {
		return nil, err
	}
	if r.Step(stepID) == nil {
		return nil, errors.NewNotFound("step", stepID)
	}

	state, err := loadDay(ctx, kv, day)
	if err != nil {
		return nil, err
	}

	isDone := slices.Contains(state.Done, stepID)
	want := !isDone
	if input.Done != nil {
		want = *input.Done
	}
	switch {
	case want && !isDone:
		state.Done = append(state.Done, stepID)
	case !want && isDone:
		state.Done = slices.DeleteFunc(state.Done, func(id string) bool { return id == stepID })
	}

	if err := writeJSON(ctx, kv, checklistKey(day), state.Done); err != nil {
		return nil, err
	}
	return state, nil
}

// CloseDayOutput reports the stats written by CloseDay. Stats is nil when the
// stored routine has no steps (or there is none).
type CloseDayOutput struct {
	Day   string      `json:"day"`
	Stats *DailyStats `json:"stats,omitempty"`
}

// CloseDay records the day's statistics and clears its checklist and
// feedback.
func CloseDay(ctx context.Context, kv db.KV, day string, now time.Time) (*CloseDayOutput, error) {
	day, err := ParseDay(day)
	if err != nil {
		return nil, err
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	r, err := loadRoutineIfAny(ctx, kv)
	if err != nil {
		return nil, err
	}
	state, err := loadDay(ctx, kv, day)
	if err != nil {
		return nil, err
	}

	out := &CloseDayOutput{Day: day}
	if r != nil {
		if stats := computeStats(day, r, state, now); stats.TotalSteps > 0 {
			if err := writeJSON(ctx, kv, statsKey(day), stats); err != nil {
				return nil, err
			}
			out.Stats = stats
		}
	}

	if err := kv.Delete(ctx, checklistKey(day)); err != nil {
		return nil, err
	}
	if err := kv.Delete(ctx, feedbackKey(day)); err != nil {
		return nil, err
	}
	return out, nil
}

func computeStats(day string, r *routine.Routine, state *DayState, now time.Time) *DailyStats {
	ids := r.StepIDs()
	stats := &DailyStats{
		Day:        day,
		TotalSteps: len(ids),
		CreatedAt:  now.UTC(),
	}
	for _, id := range ids {
		if slices.Contains(state.Done, id) {
			stats.DoneSteps++
		}
	}
	if stats.TotalSteps > 0 {
		stats.CompletionPct = int(math.Round(float64(stats.DoneSteps) * 100 / float64(stats.TotalSteps)))
	}
	for _, f := range state.Feedback {
		switch f.Outcome {
		case routine.OutcomeHard:
			stats.HardCount++
		case routine.OutcomeFailed:
			stats.FailedCount++
		}
	}
	return stats
}

// InsightsOutput summarizes closed days in a trailing window.
type InsightsOutput struct {
	Days          int          `json:"days"`
	RecordedDays  int          `json:"recordedDays"`
	CompletionAvg int          `json:"completionAvg"`
	HardTotal     int          `json:"hardTotal"`
	FailedTotal   int          `json:"failedTotal"`
	Stats         []DailyStats `json:"stats"`
}

// Insights aggregates the stats of the last days calendar days ending at
// today (inclusive), newest first. Days without stats are skipped.
func Insights(ctx context.Context, kv db.KV, days int, today time.Time) (*InsightsOutput, error) {
	if days == 0 {
		days = DefaultInsightDays
	}
	if days < 1 || days > MaxInsightDays {
		return nil, errors.NewValidation(map[string]string{"days": "must be between 1 and 366"})
	}

	out := &InsightsOutput{Days: days, Stats: []DailyStats{}}
	sum := 0
	for i := 0; i < days; i++ {
		day := Today(today.AddDate(0, 0, -i))
		var s DailyStats
		found, err := readJSON(ctx, kv, statsKey(day), &s)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		out.Stats = append(out.Stats, s)
		sum += s.CompletionPct
		out.HardTotal += s.HardCount
		out.FailedTotal += s.FailedCount
	}

	out.RecordedDays = len(out.Stats)
	if out.RecordedDays > 0 {
		out.CompletionAvg = int(math.Round(float64(sum) / float64(out.RecordedDays)))
	}
	return out, nil
}

func loadDay(ctx context.Context, kv db.KV, day string) (*DayState, error) {
	state := &DayState{Day: day, Done: []string{}, Feedback: []routine.Feedback{}}
	if _, err := readJSON(ctx, kv, checklistKey(day), &state.Done); err != nil {
		return nil, err
	}
	if _, err := readJSON(ctx, kv, feedbackKey(day), &state.Feedback); err != nil {
		return nil, err
	}
	return state, nil
}
