// Package routine holds the rule engine that turns a caregiver profile into a
// daily routine, and the refiner that adjusts a routine from step feedback.
//
// Everything in this package is pure: no I/O, no shared mutable state.
package routine

import (
	"slices"
	"strings"
)

// CommunicationLevel describes how the person usually communicates.
type CommunicationLevel string

const (
	CommunicationVerbal     CommunicationLevel = "verbal"
	CommunicationSemiVerbal CommunicationLevel = "semi-verbal"
	CommunicationNonVerbal  CommunicationLevel = "non-verbal"
)

// Sensitivity is a sensory channel the person is sensitive to.
type Sensitivity string

const (
	SensitivitySound  Sensitivity = "sound"
	SensitivityLight  Sensitivity = "light"
	SensitivityTouch  Sensitivity = "touch"
	SensitivityCrowds Sensitivity = "crowds"
)

// canonicalSensitivities fixes the order in which sensory rules are applied.
var canonicalSensitivities = []Sensitivity{
	SensitivitySound,
	SensitivityLight,
	SensitivityTouch,
	SensitivityCrowds,
}

// SupportLevel is the caregiver-declared intensity of assistance.
type SupportLevel string

const (
	SupportLow      SupportLevel = "low"
	SupportModerate SupportLevel = "moderate"
	SupportHigh     SupportLevel = "high"
)

// RoutineFocus is stored with the profile but not consulted by Generate.
type RoutineFocus string

const (
	FocusFullDay   RoutineFocus = "full-day"
	FocusMorning   RoutineFocus = "morning"
	FocusAfternoon RoutineFocus = "afternoon"
	FocusEvening   RoutineFocus = "evening"
)

// Context is where the day mostly happens.
type Context string

const (
	ContextHome   Context = "home"
	ContextSchool Context = "school"
	ContextMixed  Context = "mixed"
)

// leavesHome reports whether the morning needs a departure step.
func (c Context) leavesHome() bool {
	return c == ContextSchool || c == ContextMixed
}

// BlockLabel names one of the three fixed times of day.
type BlockLabel string

const (
	BlockMorning   BlockLabel = "morning"
	BlockAfternoon BlockLabel = "afternoon"
	BlockEvening   BlockLabel = "evening"
)

// BlockLabels lists the labels in routine order.
var BlockLabels = []BlockLabel{BlockMorning, BlockAfternoon, BlockEvening}

// Outcome is the caregiver's verdict on a step.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeHard   Outcome = "hard"
	OutcomeFailed Outcome = "failed"
)

// AssetType is the kind of media attached to a step.
type AssetType string

const (
	AssetPictogram AssetType = "pictogram"
	AssetPhoto     AssetType = "photo"
)

// ProfileInput is the caregiver-supplied configuration for generation.
type ProfileInput struct {
	Name               string             `json:"name,omitempty"`
	Age                int                `json:"age"`
	CommunicationLevel CommunicationLevel `json:"communicationLevel"`
	SensorySensitivity []Sensitivity      `json:"sensorySensitivity"`
	SupportLevel       SupportLevel       `json:"supportLevel,omitempty"`
	RoutineFocus       RoutineFocus       `json:"routineFocus,omitempty"`
	Goal               string             `json:"goal"`
	Context            Context            `json:"context"`
}

// Sensitivities returns the known sensitivities present in the profile,
// deduplicated and in canonical order.
func (p ProfileInput) Sensitivities() []Sensitivity {
	out := make([]Sensitivity, 0, len(canonicalSensitivities))
	for _, s := range canonicalSensitivities {
		if slices.Contains(p.SensorySensitivity, s) {
			out = append(out, s)
		}
	}
	return out
}

// VisualAsset is caregiver-attached media shown alongside a step.
type VisualAsset struct {
	Type  AssetType `json:"type"`
	Src   string    `json:"src"`
	Label string    `json:"label,omitempty"`
}

// Step is a single actionable item within a block.
type Step struct {
	// ID is a ULID, unique within the routine and stable across refinement
	ID string `json:"id"`

	Title        string   `json:"title"`
	DurationMin  int      `json:"durationMin"`
	Instructions []string `json:"instructions"`

	VisualSupport OrderedSet `json:"visualSupport,omitempty"`
	SensoryNotes  OrderedSet `json:"sensoryNotes,omitempty"`
	BackupPlan    OrderedSet `json:"backupPlan,omitempty"`

	// VisualAssets is never set by Generate
	VisualAssets []VisualAsset `json:"visualAssets,omitempty"`
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	out := s
	out.Instructions = cloneStrings(s.Instructions)
	out.VisualSupport = s.VisualSupport.Clone()
	out.SensoryNotes = s.SensoryNotes.Clone()
	out.BackupPlan = s.BackupPlan.Clone()
	if s.VisualAssets != nil {
		out.VisualAssets = slices.Clone(s.VisualAssets)
	}
	return out
}

// Block groups the steps of one time of day.
type Block struct {
	Label BlockLabel `json:"label"`
	Steps []Step     `json:"steps"`
}

// Routine is the generated artifact.
type Routine struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Goal            string     `json:"goal"`
	Blocks          []Block    `json:"blocks"`
	ChangePlan      []string   `json:"changePlan"`
	OverloadSignals []string   `json:"overloadSignals"`
	CaregiverNotes  []string   `json:"caregiverNotes"`
	Explainability  OrderedSet `json:"explainability"`
}

// Clone returns a deep, independent copy of the routine.
func (r *Routine) Clone() *Routine {
	if r == nil {
		return nil
	}
	out := *r
	if r.Blocks != nil {
		out.Blocks = make([]Block, len(r.Blocks))
		for i, b := range r.Blocks {
			out.Blocks[i] = Block{Label: b.Label}
			if b.Steps != nil {
				out.Blocks[i].Steps = make([]Step, len(b.Steps))
				for j, s := range b.Steps {
					out.Blocks[i].Steps[j] = s.Clone()
				}
			}
		}
	}
	out.ChangePlan = cloneStrings(r.ChangePlan)
	out.OverloadSignals = cloneStrings(r.OverloadSignals)
	out.CaregiverNotes = cloneStrings(r.CaregiverNotes)
	out.Explainability = r.Explainability.Clone()
	return &out
}

// Block returns the block with the given label, or nil.
func (r *Routine) Block(label BlockLabel) *Block {
	for i := range r.Blocks {
		if r.Blocks[i].Label == label {
			return &r.Blocks[i]
		}
	}
	return nil
}

// Step returns a pointer to the step with the given ID, or nil.
func (r *Routine) Step(id string) *Step {
	for i := range r.Blocks {
		for j := range r.Blocks[i].Steps {
			if r.Blocks[i].Steps[j].ID == id {
				return &r.Blocks[i].Steps[j]
			}
		}
	}
	return nil
}

// StepIDs returns every step ID in routine order.
func (r *Routine) StepIDs() []string {
	var ids []string
	for _, b := range r.Blocks {
		for _, s := range b.Steps {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Feedback is one caregiver verdict on one step.
type Feedback struct {
	RoutineID string  `json:"routineId"`
	StepID    string  `json:"stepId"`
	Outcome   Outcome `json:"outcome"`
	Note      string  `json:"note,omitempty"`
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

// displayName returns the trimmed profile name.
func (p ProfileInput) displayName() string {
	return strings.TrimSpace(p.Name)
}
