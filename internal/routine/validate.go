package routine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/rutina/internal/errors"
)

// Boundary limits for request payloads.
const (
	MinAge        = 2
	MaxAge        = 99
	MinGoalChars  = 5
	MaxGoalChars  = 140
	MaxNoteChars  = 280
	MaxNameChars  = 60
	MaxFeedback   = 500
	MaxAssetLabel = 80
)

// FieldErrors maps a wire field name to the reason it was rejected.
type FieldErrors map[string]string

// Err returns a VALIDATION_FAILED error, or nil when there are no entries.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return errors.NewValidation(f)
}

// ValidateProfile checks a profile before it reaches Generate.
func ValidateProfile(p ProfileInput) FieldErrors {
	fe := FieldErrors{}

	if p.Age < MinAge || p.Age > MaxAge {
		fe["age"] = fmt.Sprintf("must be between %d and %d", MinAge, MaxAge)
	}

	switch p.CommunicationLevel {
	case CommunicationVerbal, CommunicationSemiVerbal, CommunicationNonVerbal:
	default:
		fe["communicationLevel"] = "must be one of: verbal, semi-verbal, non-verbal"
	}

	for i, s := range p.SensorySensitivity {
		if _, ok := sensoryNoteBySensitivity[s]; !ok {
			fe[fmt.Sprintf("sensorySensitivity[%d]", i)] = "must be one of: sound, light, touch, crowds"
		}
	}

	switch p.SupportLevel {
	case "", SupportLow, SupportModerate, SupportHigh:
	default:
		fe["supportLevel"] = "must be one of: low, moderate, high"
	}

	switch p.RoutineFocus {
	case "", FocusFullDay, FocusMorning, FocusAfternoon, FocusEvening:
	default:
		fe["routineFocus"] = "must be one of: full-day, morning, afternoon, evening"
	}

	if n := utf8.RuneCountInString(p.Goal); n < MinGoalChars || n > MaxGoalChars {
		fe["goal"] = fmt.Sprintf("must be between %d and %d characters", MinGoalChars, MaxGoalChars)
	}

	switch p.Context {
	case ContextHome, ContextSchool, ContextMixed:
	default:
		fe["context"] = "must be one of: home, school, mixed"
	}

	if utf8.RuneCountInString(p.displayName()) > MaxNameChars {
		fe["name"] = fmt.Sprintf("must be at most %d characters", MaxNameChars)
	}

	return fe
}

// ValidateFeedback checks every feedback entry of a refine request.
func ValidateFeedback(feedback []Feedback) FieldErrors {
	fe := FieldErrors{}

	if len(feedback) > MaxFeedback {
		fe["feedback"] = fmt.Sprintf("must have at most %d entries", MaxFeedback)
		return fe
	}

	for i, f := range feedback {
		prefix := fmt.Sprintf("feedback[%d].", i)
		if strings.TrimSpace(f.RoutineID) == "" {
			fe[prefix+"routineId"] = "is required"
		}
		if strings.TrimSpace(f.StepID) == "" {
			fe[prefix+"stepId"] = "is required"
		}
		if !validOutcome(f.Outcome) {
			fe[prefix+"outcome"] = "must be one of: ok, hard, failed"
		}
		if utf8.RuneCountInString(f.Note) > MaxNoteChars {
			fe[prefix+"note"] = fmt.Sprintf("must be at most %d characters", MaxNoteChars)
		}
	}

	return fe
}

// ValidateRoutine checks the shape of a routine submitted for refinement:
// the three blocks in order, step durations of at least two minutes, and
// unique step IDs.
func ValidateRoutine(r *Routine) FieldErrors {
	fe := FieldErrors{}
	if r == nil {
		fe["routine"] = "is required"
		return fe
	}
	if len(r.Blocks) != len(BlockLabels) {
		fe["routine.blocks"] = "must contain morning, afternoon and evening"
	}

	seen := make(map[string]struct{})
	for bi, b := range r.Blocks {
		if bi < len(BlockLabels) && b.Label != BlockLabels[bi] {
			fe[fmt.Sprintf("routine.blocks[%d].label", bi)] = fmt.Sprintf("must be %s", BlockLabels[bi])
		}
		for si, s := range b.Steps {
			prefix := fmt.Sprintf("routine.blocks[%d].steps[%d].", bi, si)
			if s.DurationMin < minDurationMin {
				fe[prefix+"durationMin"] = fmt.Sprintf("must be at least %d", minDurationMin)
			}
			if strings.TrimSpace(s.ID) == "" {
				fe[prefix+"id"] = "is required"
				continue
			}
			if _, dup := seen[s.ID]; dup {
				fe[prefix+"id"] = "must be unique"
			}
			seen[s.ID] = struct{}{}
		}
	}
	return fe
}

// ValidateAsset checks a visual asset before it is attached to a step.
func ValidateAsset(a VisualAsset) FieldErrors {
	fe := FieldErrors{}
	if a.Type != AssetPictogram && a.Type != AssetPhoto {
		fe["type"] = "must be one of: pictogram, photo"
	}
	if strings.TrimSpace(a.Src) == "" {
		fe["src"] = "is required"
	}
	if utf8.RuneCountInString(a.Label) > MaxAssetLabel {
		fe["label"] = fmt.Sprintf("must be at most %d characters", MaxAssetLabel)
	}
	return fe
}

func validOutcome(o Outcome) bool {
	return o == OutcomeOK || o == OutcomeHard || o == OutcomeFailed
}
