package routine

import (
	"fmt"
	"strings"
)

// blockHeadings are the caregiver-facing names of each block.
var blockHeadings = map[BlockLabel]string{
	BlockMorning:   "Mañana",
	BlockAfternoon: "Tarde",
	BlockEvening:   "Noche",
}

// BlockHeading returns the display name of a block label.
func BlockHeading(label BlockLabel) string {
	if h, ok := blockHeadings[label]; ok {
		return h
	}
	return string(label)
}

// TotalMinutes sums step durations across all blocks.
func (r *Routine) TotalMinutes() int {
	total := 0
	for _, b := range r.Blocks {
		for _, s := range b.Steps {
			total += s.DurationMin
		}
	}
	return total
}

// Markdown renders the routine as a printable markdown document.
func Markdown(r *Routine) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", r.Title)
	fmt.Fprintf(&sb, "**Objetivo:** %s\n\n", r.Goal)
	fmt.Fprintf(&sb, "_Duración total estimada: %d min_\n\n", r.TotalMinutes())

	for _, b := range r.Blocks {
		fmt.Fprintf(&sb, "## %s\n\n", BlockHeading(b.Label))
		for i, s := range b.Steps {
			writeStep(&sb, i+1, s)
		}
	}

	writeList(&sb, "## Plan ante cambios", r.ChangePlan)
	writeList(&sb, "## Señales de sobrecarga", r.OverloadSignals)
	writeList(&sb, "## Notas para el cuidador", r.CaregiverNotes)
	writeList(&sb, "## Por qué esta rutina", r.Explainability)

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func writeStep(sb *strings.Builder, n int, s Step) {
	fmt.Fprintf(sb, "### %d. %s (%d min)\n\n", n, s.Title, s.DurationMin)
	for _, instr := range s.Instructions {
		fmt.Fprintf(sb, "- %s\n", instr)
	}
	sb.WriteString("\n")

	if len(s.VisualSupport) > 0 {
		fmt.Fprintf(sb, "**Apoyos visuales:** %s\n\n", strings.Join(s.VisualSupport, ", "))
	}
	if len(s.SensoryNotes) > 0 {
		writeList(sb, "**Notas sensoriales:**", s.SensoryNotes)
	}
	if len(s.BackupPlan) > 0 {
		writeList(sb, "**Plan B:**", s.BackupPlan)
	}
	for _, a := range s.VisualAssets {
		label := a.Label
		if label == "" {
			label = string(a.Type)
		}
		fmt.Fprintf(sb, "![%s](%s)\n\n", label, a.Src)
	}
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading)
	sb.WriteString("\n\n")
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
	sb.WriteString("\n")
}
