package routine

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ruleSet holds the per-profile values shared by every step.
type ruleSet struct {
	base    int
	support SupportLevel
	visual  OrderedSet
	sensory OrderedSet
	backup  OrderedSet
}

func newRuleSet(p ProfileInput) ruleSet {
	rs := ruleSet{
		base:    baseDurationByAge(p.Age),
		support: p.SupportLevel,
		visual:  NewOrderedSet(visualSupportByLevel[p.CommunicationLevel]...),
		backup:  NewOrderedSet(baseBackupPlan...),
	}
	for _, s := range p.Sensitivities() {
		rs.sensory = rs.sensory.Union(sensoryNoteBySensitivity[s])
		if extra, ok := backupBySensitivity[s]; ok {
			rs.backup = rs.backup.Union(extra)
		}
	}
	return rs
}

// buildStep instantiates a template. Every slice on the returned step is
// freshly allocated so steps never share backing arrays.
func (rs ruleSet) buildStep(id string, t stepTemplate) Step {
	instructions := cloneStrings(t.Instructions)
	visual := rs.visual.Clone()

	switch rs.support {
	case SupportHigh:
		instructions = microSteps(instructions)
		visual = visual.Union(highSupportVisuals...)
	case SupportModerate:
		visual = visual.Union(moderateSupportVisuals...)
	}

	step := Step{
		ID:            id,
		Title:         t.Title,
		DurationMin:   scaleDuration(clamp(rs.base+t.Offset, t.Min, t.Max), rs.support),
		Instructions:  instructions,
		VisualSupport: visual,
		BackupPlan:    rs.backup.Clone(),
	}
	if len(rs.sensory) > 0 {
		step.SensoryNotes = rs.sensory.Clone()
	}
	return step
}

// idSource hands out ULIDs that are strictly increasing within one call.
type idSource struct {
	ts      uint64
	entropy io.Reader
}

func newIDSource() *idSource {
	return &idSource{
		ts:      ulid.Timestamp(time.Now()),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (s *idSource) next() string {
	return ulid.MustNew(s.ts, s.entropy).String()
}

// Generate builds a routine from a validated profile. Content is fully
// determined by the profile; only routine and step IDs differ between calls.
func Generate(p ProfileInput) *Routine {
	rs := newRuleSet(p)
	ids := newIDSource()

	blocks := make([]Block, 0, len(blockTemplates))
	for _, bt := range blockTemplates {
		block := Block{Label: bt.Label, Steps: make([]Step, 0, len(bt.Steps))}
		for _, st := range bt.Steps {
			if st.LeavesHome && !p.Context.leavesHome() {
				continue
			}
			block.Steps = append(block.Steps, rs.buildStep(ids.next(), st))
		}
		blocks = append(blocks, block)
	}

	return &Routine{
		ID:              ids.next(),
		Title:           routineTitle(p),
		Goal:            p.Goal,
		Blocks:          blocks,
		ChangePlan:      cloneStrings(changePlan),
		OverloadSignals: cloneStrings(overloadSignals),
		CaregiverNotes:  cloneStrings(caregiverNotes),
		Explainability:  explain(p),
	}
}

func routineTitle(p ProfileInput) string {
	if name := p.displayName(); name != "" {
		return fmt.Sprintf(namedTitle, name)
	}
	return genericTitle
}

// explain lists the rules that fired for this profile.
func explain(p ProfileInput) OrderedSet {
	lines := NewOrderedSet(baseExplainability...)

	if sens := p.Sensitivities(); len(sens) > 0 {
		names := make([]string, len(sens))
		for i, s := range sens {
			names[i] = string(s)
		}
		lines = lines.Union(fmt.Sprintf("Se incorporaron ajustes sensoriales: %s.", strings.Join(names, ", ")))
	}

	if p.SupportLevel != "" {
		lines = lines.Union(fmt.Sprintf("Se ajustaron instrucciones y duraciones según el nivel de apoyo: %s.", p.SupportLevel))
	}

	return lines
}
