package routine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func schoolProfile() ProfileInput {
	return ProfileInput{
		Age:                8,
		CommunicationLevel: CommunicationVerbal,
		SensorySensitivity: []Sensitivity{SensitivitySound},
		Goal:               "Rutina matutina para ir a la escuela",
		Context:            ContextSchool,
	}
}

func durations(b *Block) []int {
	out := make([]int, len(b.Steps))
	for i, s := range b.Steps {
		out[i] = s.DurationMin
	}
	return out
}

func titles(b *Block) []string {
	out := make([]string, len(b.Steps))
	for i, s := range b.Steps {
		out[i] = s.Title
	}
	return out
}

func TestGenerate_SchoolExample(t *testing.T) {
	r := Generate(schoolProfile())

	require.Len(t, r.Blocks, 3)
	require.Equal(t, BlockMorning, r.Blocks[0].Label)
	require.Equal(t, BlockAfternoon, r.Blocks[1].Label)
	require.Equal(t, BlockEvening, r.Blocks[2].Label)

	morning := r.Block(BlockMorning)
	require.Equal(t, []string{"Inicio suave", "Higiene", "Vestirse", "Desayuno", "Preparación para salir"}, titles(morning))
	require.Equal(t, []int{5, 6, 7, 7, 6}, durations(morning))
	require.Equal(t, []int{5, 9, 6}, durations(r.Block(BlockAfternoon)))
	require.Equal(t, []int{7, 6, 5}, durations(r.Block(BlockEvening)))

	for _, b := range r.Blocks {
		for _, s := range b.Steps {
			require.Equal(t, OrderedSet{"Checklist"}, s.VisualSupport, s.Title)
			require.Equal(t, OrderedSet{sensoryNoteBySensitivity[SensitivitySound]}, s.SensoryNotes, s.Title)
			require.Equal(t, OrderedSet{
				"Ofrecer elección limitada (A o B).",
				"Reducir el paso a micro-pasos (solo 1 acción).",
				"Pausa breve 1–2 min y retomar.",
				"Moverse a un espacio más silencioso.",
			}, s.BackupPlan, s.Title)
			require.Empty(t, s.VisualAssets)
		}
	}

	require.Equal(t, "Rutina diaria personalizada", r.Title)
	require.Equal(t, "Rutina matutina para ir a la escuela", r.Goal)
	require.Len(t, r.Explainability, 4)
	require.Equal(t, "Se incorporaron ajustes sensoriales: sound.", r.Explainability[3])
}

func TestGenerate_HomeContextSkipsDeparture(t *testing.T) {
	p := schoolProfile()
	p.Context = ContextHome
	r := Generate(p)

	require.Len(t, r.Block(BlockMorning).Steps, 4)
	require.NotContains(t, titles(r.Block(BlockMorning)), "Preparación para salir")
	require.Len(t, r.Block(BlockAfternoon).Steps, 3)
	require.Len(t, r.Block(BlockEvening).Steps, 3)
}

func TestGenerate_MixedContextIncludesDeparture(t *testing.T) {
	p := schoolProfile()
	p.Context = ContextMixed
	require.Len(t, Generate(p).Block(BlockMorning).Steps, 5)
}

func TestBaseDurationByAge(t *testing.T) {
	tests := []struct {
		age  int
		want int
	}{
		{2, 3}, {6, 3}, {7, 5}, {10, 5}, {11, 7}, {15, 7}, {16, 10}, {99, 10},
	}
	for _, tt := range tests {
		if got := baseDurationByAge(tt.age); got != tt.want {
			t.Errorf("baseDurationByAge(%d) = %d, want %d", tt.age, got, tt.want)
		}
	}
}

func TestGenerate_ClampsToStepRange(t *testing.T) {
	p := schoolProfile()
	p.Age = 30
	r := Generate(p)

	// base 10: each step clamps to its own range
	require.Equal(t, []int{6, 8, 10, 12, 10}, durations(r.Block(BlockMorning)))
	require.Equal(t, []int{8, 14, 10}, durations(r.Block(BlockAfternoon)))
	require.Equal(t, []int{12, 11, 10}, durations(r.Block(BlockEvening)))
}

func TestGenerate_VisualSupportByCommunication(t *testing.T) {
	tests := []struct {
		level CommunicationLevel
		want  OrderedSet
	}{
		{CommunicationNonVerbal, OrderedSet{"Pictogramas", "Checklist visual", "Temporizador visual"}},
		{CommunicationSemiVerbal, OrderedSet{"Checklist", "Temporizador (visual o app)"}},
		{CommunicationVerbal, OrderedSet{"Checklist"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			p := schoolProfile()
			p.CommunicationLevel = tt.level
			r := Generate(p)
			require.Equal(t, tt.want, r.Blocks[0].Steps[0].VisualSupport)
		})
	}
}

func TestGenerate_SensoryNotesCanonicalOrder(t *testing.T) {
	p := schoolProfile()
	p.SensorySensitivity = []Sensitivity{SensitivityCrowds, SensitivityTouch, SensitivityCrowds, SensitivityLight, SensitivitySound}
	r := Generate(p)

	step := r.Blocks[1].Steps[0]
	require.Equal(t, OrderedSet{
		sensoryNoteBySensitivity[SensitivitySound],
		sensoryNoteBySensitivity[SensitivityLight],
		sensoryNoteBySensitivity[SensitivityTouch],
		sensoryNoteBySensitivity[SensitivityCrowds],
	}, step.SensoryNotes)
	require.Len(t, step.BackupPlan, 5)
	require.Equal(t, "Cambiar a un lugar con menos personas.", step.BackupPlan[4])
	require.Contains(t, r.Explainability, "Se incorporaron ajustes sensoriales: sound, light, touch, crowds.")
}

func TestGenerate_NoSensitivities(t *testing.T) {
	p := schoolProfile()
	p.SensorySensitivity = nil
	r := Generate(p)

	for _, b := range r.Blocks {
		for _, s := range b.Steps {
			require.Nil(t, s.SensoryNotes)
			require.Len(t, s.BackupPlan, 3)
		}
	}
	require.Len(t, r.Explainability, 3)
}

func TestGenerate_TouchOnlyAddsNoBackup(t *testing.T) {
	p := schoolProfile()
	p.SensorySensitivity = []Sensitivity{SensitivityTouch, SensitivityLight}
	r := Generate(p)
	require.Len(t, r.Blocks[0].Steps[0].BackupPlan, 3)
	require.Len(t, r.Blocks[0].Steps[0].SensoryNotes, 2)
}

func TestGenerate_HighSupport(t *testing.T) {
	p := schoolProfile()
	p.Age = 3
	p.SupportLevel = SupportHigh
	r := Generate(p)

	// base 3, clamped then ×0.85 rounded
	require.Equal(t, []int{3, 3, 4, 4, 3}, durations(r.Block(BlockMorning)))
	require.Equal(t, []int{3, 7, 3}, durations(r.Block(BlockAfternoon)))
	require.Equal(t, []int{5, 3, 3}, durations(r.Block(BlockEvening)))

	first := r.Blocks[0].Steps[0]
	require.Equal(t, OrderedSet{"Checklist", "Pictogramas", "Primero-Luego"}, first.VisualSupport)
	for _, instr := range first.Instructions {
		require.True(t, strings.HasSuffix(instr, "."), instr)
	}
	require.Contains(t, r.Explainability, "Se ajustaron instrucciones y duraciones según el nivel de apoyo: high.")
}

func TestGenerate_HighSupportNonVerbalDeduplicatesPictograms(t *testing.T) {
	p := schoolProfile()
	p.CommunicationLevel = CommunicationNonVerbal
	p.SupportLevel = SupportHigh
	r := Generate(p)

	require.Equal(t, OrderedSet{"Pictogramas", "Checklist visual", "Temporizador visual", "Primero-Luego"}, r.Blocks[0].Steps[0].VisualSupport)
}

func TestGenerate_ModerateSupport(t *testing.T) {
	p := schoolProfile()
	p.Age = 30
	p.SupportLevel = SupportModerate
	r := Generate(p)

	require.Equal(t, []int{6, 8, 10, 11, 10}, durations(r.Block(BlockMorning)))
	require.Equal(t, []int{8, 13, 10}, durations(r.Block(BlockAfternoon)))
	require.Equal(t, OrderedSet{"Checklist", "Checklist visual"}, r.Blocks[0].Steps[0].VisualSupport)
	require.Equal(t, blockTemplates[0].Steps[0].Instructions, r.Blocks[0].Steps[0].Instructions)
}

func TestGenerate_LowSupportMatchesAbsent(t *testing.T) {
	p := schoolProfile()
	base := Generate(p)
	p.SupportLevel = SupportLow
	low := Generate(p)

	for i := range base.Blocks {
		require.Equal(t, durations(&base.Blocks[i]), durations(&low.Blocks[i]))
	}
	require.Len(t, low.Explainability, len(base.Explainability)+1)
}

func TestGenerate_DurationFloor(t *testing.T) {
	for age := MinAge; age <= MaxAge; age++ {
		for _, level := range []SupportLevel{"", SupportLow, SupportModerate, SupportHigh} {
			p := schoolProfile()
			p.Age = age
			p.SupportLevel = level
			for _, b := range Generate(p).Blocks {
				for _, s := range b.Steps {
					if s.DurationMin < 2 {
						t.Fatalf("age %d support %q step %q: durationMin = %d", age, level, s.Title, s.DurationMin)
					}
				}
			}
		}
	}
}

func TestGenerate_Title(t *testing.T) {
	p := schoolProfile()
	p.Name = "  Sofía "
	require.Equal(t, "Rutina diaria de Sofía", Generate(p).Title)

	p.Name = "   "
	require.Equal(t, "Rutina diaria personalizada", Generate(p).Title)
}

func TestGenerate_RoutineFocusIsIgnored(t *testing.T) {
	p := schoolProfile()
	full := Generate(p)
	p.RoutineFocus = FocusEvening
	focused := Generate(p)

	require.Len(t, focused.Blocks, 3)
	require.Equal(t, titles(&full.Blocks[0]), titles(&focused.Blocks[0]))
}

func TestGenerate_DeterministicExceptIDs(t *testing.T) {
	a := Generate(schoolProfile())
	b := Generate(schoolProfile())

	require.NotEqual(t, a.StepIDs(), b.StepIDs())
	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)

	stripIDs := func(r *Routine) *Routine {
		c := r.Clone()
		c.ID = ""
		for bi := range c.Blocks {
			for si := range c.Blocks[bi].Steps {
				c.Blocks[bi].Steps[si].ID = ""
			}
		}
		return c
	}
	require.Equal(t, stripIDs(a), stripIDs(b))
}

func TestGenerate_UniqueStepIDs(t *testing.T) {
	r := Generate(schoolProfile())
	seen := map[string]bool{}
	for _, id := range r.StepIDs() {
		require.NotEmpty(t, id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	require.Len(t, seen, 11)
}

func TestGenerate_StepsDoNotShareSlices(t *testing.T) {
	r := Generate(schoolProfile())
	r.Blocks[0].Steps[0].BackupPlan[0] = "changed"
	r.Blocks[0].Steps[0].Instructions[0] = "changed"

	require.NotEqual(t, "changed", r.Blocks[0].Steps[1].BackupPlan[0])
	require.NotEqual(t, "changed", blockTemplates[0].Steps[0].Instructions[0])
	require.NotEqual(t, "changed", baseBackupPlan[0])
}

func TestGenerate_FixedGuidanceLists(t *testing.T) {
	a := Generate(schoolProfile())
	p := schoolProfile()
	p.Age = 40
	p.CommunicationLevel = CommunicationNonVerbal
	b := Generate(p)

	require.Equal(t, a.ChangePlan, b.ChangePlan)
	require.Equal(t, a.OverloadSignals, b.OverloadSignals)
	require.Equal(t, a.CaregiverNotes, b.CaregiverNotes)
	require.Len(t, a.ChangePlan, 3)
}

func TestMicroSteps(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"single sentence", []string{"Ir al baño."}, []string{"Ir al baño."}},
		{"two sentences", []string{"Beber agua. Snack simple"}, []string{"Beber agua.", "Snack simple."}},
		{"line breaks", []string{"Mochila lista\nZapatos puestos"}, []string{"Mochila lista.", "Zapatos puestos."}},
		{"exclamation and question", []string{"¡Muy bien! ¿Seguimos?"}, []string{"¡Muy bien.", "¿Seguimos."}},
		{"empty fragments dropped", []string{"  ...  ", "Dormir."}, []string{"Dormir."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, microSteps(tt.in))
		})
	}
}
