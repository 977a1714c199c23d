package routine

// refinePercent keeps 70% of a flagged step's duration (rounded down).
const refinePercent = 70

var escalationBackupPlan = []string{
	"Convertirlo en micro-pasos (1 acción).",
	"Reducir estímulos (silencio/luz suave).",
	"Terminar con una señal clara: 'listo' + refuerzo breve.",
}

const refineNote = "Se ajustaron duraciones y planes B según feedback del cuidador."

// Refine returns an adjusted copy of prev. Every step with at least one
// non-ok feedback entry is shortened and gains the escalation backup plan;
// all other steps are copied unchanged. Feedback for unknown steps is
// ignored. prev is never modified.
func Refine(prev *Routine, feedback []Feedback) *Routine {
	next := prev.Clone()
	if next == nil {
		return nil
	}

	flagged := flaggedSteps(feedback)
	for bi := range next.Blocks {
		steps := next.Blocks[bi].Steps
		for si := range steps {
			if _, ok := flagged[steps[si].ID]; ok {
				escalate(&steps[si])
			}
		}
	}

	next.Explainability = next.Explainability.Union(refineNote)
	return next
}

// flaggedSteps collects the IDs of steps judged hard or failed. Severity is
// not distinguished.
func flaggedSteps(feedback []Feedback) map[string]struct{} {
	out := make(map[string]struct{}, len(feedback))
	for _, f := range feedback {
		if f.Outcome != OutcomeOK {
			out[f.StepID] = struct{}{}
		}
	}
	return out
}

func escalate(s *Step) {
	s.DurationMin = max(minDurationMin, s.DurationMin*refinePercent/100)
	s.BackupPlan = s.BackupPlan.Union(escalationBackupPlan...)
}
