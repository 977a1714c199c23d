package ops

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
	"github.com/hpungsan/rutina/internal/routine"
)

// RoutineOutput wraps a routine the way every routine endpoint returns it.
type RoutineOutput struct {
	Routine *routine.Routine `json:"routine"`
}

// GenerateRoutine validates the profile, builds a routine and stores it as
// the last routine.
func GenerateRoutine(ctx context.Context, kv db.KV, p routine.ProfileInput) (*RoutineOutput, error) {
	if err := routine.ValidateProfile(p).Err(); err != nil {
		return nil, err
	}

	r := routine.Generate(p)

	writeMu.Lock()
	defer writeMu.Unlock()

	if err := writeJSON(ctx, kv, keyLastRoutine, r); err != nil {
		return nil, err
	}
	return &RoutineOutput{Routine: r}, nil
}

// RefineInput is a decoded refine request.
type RefineInput struct {
	Routine  *routine.Routine
	Feedback []routine.Feedback
}

// DecodeRefineInput parses a refine payload. Both members are required: the
// routine must be an object and the feedback must be a JSON array.
func DecodeRefineInput(data []byte) (RefineInput, error) {
	var raw struct {
		Routine  json.RawMessage `json:"routine"`
		Feedback json.RawMessage `json:"feedback"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return RefineInput{}, errors.NewInvalidRequest("body must be a JSON object")
	}

	fe := routine.FieldErrors{}
	var in RefineInput

	rt := bytes.TrimSpace(raw.Routine)
	if len(rt) == 0 || bytes.Equal(rt, []byte("null")) {
		fe["routine"] = "is required"
	} else {
		in.Routine = &routine.Routine{}
		if err := json.Unmarshal(rt, in.Routine); err != nil {
			fe["routine"] = "must be a routine object"
		}
	}

	feedback, problem := parseFeedback(raw.Feedback)
	if problem != "" {
		fe["feedback"] = problem
	}
	in.Feedback = feedback

	if err := fe.Err(); err != nil {
		return RefineInput{}, err
	}
	return in, nil
}

// DecodeFeedbackInput parses a {"feedback": [...]} payload with the same
// rules DecodeRefineInput applies to its feedback member.
func DecodeFeedbackInput(data []byte) ([]routine.Feedback, error) {
	var raw struct {
		Feedback json.RawMessage `json:"feedback"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewInvalidRequest("body must be a JSON object")
	}
	return decodeFeedback(raw.Feedback)
}

func decodeFeedback(raw json.RawMessage) ([]routine.Feedback, error) {
	feedback, problem := parseFeedback(raw)
	if problem != "" {
		return nil, errors.NewValidation(map[string]string{"feedback": problem})
	}
	return feedback, nil
}

// parseFeedback returns the decoded entries, or the reason the feedback
// member was rejected.
func parseFeedback(raw json.RawMessage) ([]routine.Feedback, string) {
	fb := bytes.TrimSpace(raw)
	if len(fb) == 0 || fb[0] != '[' {
		return nil, "must be an array"
	}
	feedback := []routine.Feedback{}
	if err := json.Unmarshal(fb, &feedback); err != nil {
		return nil, "must be an array of feedback entries"
	}
	return feedback, ""
}

// RefineRoutine applies caregiver feedback to the routine carried by the
// request and stores the result as the last routine. Nothing is written when
// validation fails.
func RefineRoutine(ctx context.Context, kv db.KV, input RefineInput) (*RoutineOutput, error) {
	writeMu.Lock()
	defer writeMu.Unlock()

	return refine(ctx, kv, input.Routine, input.Feedback)
}

// RefineStoredRoutine applies caregiver feedback to the stored last routine.
func RefineStoredRoutine(ctx context.Context, kv db.KV, feedback []routine.Feedback) (*RoutineOutput, error) {
	writeMu.Lock()
	defer writeMu.Unlock()

	prev, err := loadRoutine(ctx, kv)
	if err != nil {
		return nil, err
	}
	return refine(ctx, kv, prev, feedback)
}

// refine must be called with writeMu held.
func refine(ctx context.Context, kv db.KV, prev *routine.Routine, feedback []routine.Feedback) (*RoutineOutput, error) {
	fe := routine.ValidateRoutine(prev)
	for k, v := range routine.ValidateFeedback(feedback) {
		fe[k] = v
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	next := routine.Refine(prev, feedback)
	if err := writeJSON(ctx, kv, keyLastRoutine, next); err != nil {
		return nil, err
	}
	return &RoutineOutput{Routine: next}, nil
}

// GetRoutine returns the last generated or refined routine.
func GetRoutine(ctx context.Context, kv db.KV) (*RoutineOutput, error) {
	r, err := loadRoutine(ctx, kv)
	if err != nil {
		return nil, err
	}
	return &RoutineOutput{Routine: r}, nil
}

// AttachVisualAssetInput contains parameters for AttachVisualAsset.
type AttachVisualAssetInput struct {
	StepID string
	Asset  routine.VisualAsset
}

// AttachVisualAsset appends a pictogram or photo to a step of the stored
// routine.
func AttachVisualAsset(ctx context.Context, kv db.KV, input AttachVisualAssetInput) (*RoutineOutput, error) {
	if err := routine.ValidateAsset(input.Asset).Err(); err != nil {
		return nil, err
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	r, err := loadRoutine(ctx, kv)
	if err != nil {
		return nil, err
	}
	step := r.Step(input.StepID)
	if step == nil {
		return nil, errors.NewNotFound("step", input.StepID)
	}
	step.VisualAssets = append(step.VisualAssets, input.Asset)

	if err := writeJSON(ctx, kv, keyLastRoutine, r); err != nil {
		return nil, err
	}
	return &RoutineOutput{Routine: r}, nil
}

func loadRoutine(ctx context.Context, kv db.KV) (*routine.Routine, error) {
	var r routine.Routine
	found, err := readJSON(ctx, kv, keyLastRoutine, &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewNotFound("routine", "last")
	}
	return &r, nil
}

// loadRoutineIfAny is loadRoutine without the NOT_FOUND.
func loadRoutineIfAny(ctx context.Context, kv db.KV) (*routine.Routine, error) {
	r, err := loadRoutine(ctx, kv)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	return r, err
}
