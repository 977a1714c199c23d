package routine

import (
	"math"
	"regexp"
	"strings"
)

// stepTemplate is a fixed step of a block. Duration is base+Offset clamped
// to [Min, Max] before the support multiplier applies.
type stepTemplate struct {
	Title        string
	Offset       int
	Min, Max     int
	Instructions []string

	// LeavesHome steps exist only for school or mixed contexts
	LeavesHome bool
}

type blockTemplate struct {
	Label BlockLabel
	Steps []stepTemplate
}

var blockTemplates = []blockTemplate{
	{
		Label: BlockMorning,
		Steps: []stepTemplate{
			{
				Title: "Inicio suave", Offset: 0, Min: 2, Max: 6,
				Instructions: []string{"Saludo breve y claro.", "Mostrar la rutina visual (qué sigue).", "1 respiración profunda o presión profunda si ayuda."},
			},
			{
				Title: "Higiene", Offset: 1, Min: 3, Max: 8,
				Instructions: []string{"Ir al baño.", "Lavarse manos/cara.", "Cepillado de dientes con temporizador."},
			},
			{
				Title: "Vestirse", Offset: 2, Min: 3, Max: 10,
				Instructions: []string{"Elegir entre 2 opciones de ropa.", "Vestirse por partes (camisa → pantalón → zapatos).", "Confirmar con checklist."},
			},
			{
				Title: "Desayuno", Offset: 2, Min: 5, Max: 12,
				Instructions: []string{"Ofrecer 1 opción preferida + 1 opción saludable.", "Evitar prisas.", "Refuerzo positivo breve."},
			},
			{
				Title: "Preparación para salir", Offset: 1, Min: 4, Max: 10, LeavesHome: true,
				Instructions: []string{"Mochila lista (lista visual).", "Anticipar: 'en 5 minutos salimos'.", "Transición con temporizador."},
			},
		},
	},
	{
		Label: BlockAfternoon,
		Steps: []stepTemplate{
			{
				Title: "Transición / regreso", Offset: 0, Min: 3, Max: 8,
				Instructions: []string{"Tiempo de descompresión 10–15 min (sin demandas).", "Actividad tranquila (legos, dibujo, música suave)."},
			},
			{
				Title: "Actividad principal", Offset: 4, Min: 8, Max: 20,
				Instructions: []string{"Elegir actividad según interés.", "Dividir en 2 bloques con pausa.", "Cerrar con señal clara de fin."},
			},
			{
				Title: "Snack / hidratación", Offset: 1, Min: 4, Max: 10,
				Instructions: []string{"Beber agua.", "Snack simple.", "Volver a mostrar 'qué sigue'."},
			},
		},
	},
	{
		Label: BlockEvening,
		Steps: []stepTemplate{
			{
				Title: "Cena", Offset: 2, Min: 6, Max: 15,
				Instructions: []string{"Ambiente predecible.", "Evitar estímulos fuertes.", "Refuerzo positivo breve."},
			},
			{
				Title: "Higiene nocturna", Offset: 1, Min: 4, Max: 12,
				Instructions: []string{"Baño/ducha (si aplica).", "Cepillado con temporizador.", "Pijama cómoda."},
			},
			{
				Title: "Cierre del día", Offset: 0, Min: 3, Max: 10,
				Instructions: []string{"Actividad calmante (lectura corta).", "Anticipar mañana con 1 frase.", "Dormir."},
			},
		},
	},
}

var visualSupportByLevel = map[CommunicationLevel][]string{
	CommunicationNonVerbal:  {"Pictogramas", "Checklist visual", "Temporizador visual"},
	CommunicationSemiVerbal: {"Checklist", "Temporizador (visual o app)"},
	CommunicationVerbal:     {"Checklist"},
}

var sensoryNoteBySensitivity = map[Sensitivity]string{
	SensitivitySound:  "Reducir ruido (TV baja, puerta cerrada, audífonos si aplica).",
	SensitivityLight:  "Evitar luz directa; usar iluminación suave.",
	SensitivityTouch:  "Preferir ropa sin etiquetas / texturas suaves.",
	SensitivityCrowds: "Evitar aglomeraciones; planificar rutas y horarios.",
}

var baseBackupPlan = []string{
	"Ofrecer elección limitada (A o B).",
	"Reducir el paso a micro-pasos (solo 1 acción).",
	"Pausa breve 1–2 min y retomar.",
}

// Sensitivities missing here add nothing to the backup plan.
var backupBySensitivity = map[Sensitivity]string{
	SensitivitySound:  "Moverse a un espacio más silencioso.",
	SensitivityCrowds: "Cambiar a un lugar con menos personas.",
}

var (
	highSupportVisuals     = []string{"Pictogramas", "Primero-Luego"}
	moderateSupportVisuals = []string{"Checklist visual"}
)

var durationMultiplier = map[SupportLevel]float64{
	SupportHigh:     0.85,
	SupportModerate: 0.95,
	SupportLow:      1,
}

var baseExplainability = []string{
	"Los pasos se dividen en bloques para reducir carga cognitiva.",
	"Se usa anticipación y temporizador para transiciones predecibles.",
	"Se agregan apoyos visuales según el nivel de comunicación.",
}

var changePlan = []string{
	"Avisar cambios con anticipación (5–10 min) usando temporizador.",
	"Ofrecer opciones limitadas para mantener control percibido.",
	"Mantener 1–2 elementos constantes (objeto, frase, orden).",
}

var overloadSignals = []string{
	"Aumento de estereotipias o repetición.",
	"Irritabilidad, cubrirse oídos/ojos, evasión.",
	"Cambios abruptos en tono, llanto o silencio marcado.",
}

var caregiverNotes = []string{
	"Usar frases cortas, consistentes y concretas.",
	"Evitar negociaciones largas durante una transición.",
	"Refuerzo positivo específico: 'Bien hecho por X'.",
}

const (
	genericTitle = "Rutina diaria personalizada"
	namedTitle   = "Rutina diaria de %s"

	minDurationMin = 2
)

// baseDurationByAge: shorter steps for young children, longer for adults.
func baseDurationByAge(age int) int {
	switch {
	case age <= 6:
		return 3
	case age <= 10:
		return 5
	case age <= 15:
		return 7
	default:
		return 10
	}
}

func clamp(n, lo, hi int) int {
	return max(lo, min(hi, n))
}

// scaleDuration applies the support multiplier, rounding to the nearest
// minute and never going below the floor.
func scaleDuration(minutes int, level SupportLevel) int {
	m, ok := durationMultiplier[level]
	if !ok {
		m = 1
	}
	return max(minDurationMin, int(math.Round(float64(minutes)*m)))
}

// sentenceBreak splits on sentence-ending punctuation or line breaks.
var sentenceBreak = regexp.MustCompile(`[.!?]+|\r?\n`)

// microSteps rewrites instructions into short fragments, each ending in a period.
func microSteps(instructions []string) []string {
	out := make([]string, 0, len(instructions))
	for _, instr := range instructions {
		for _, frag := range sentenceBreak.Split(instr, -1) {
			frag = strings.TrimSpace(frag)
			if frag == "" {
				continue
			}
			out = append(out, frag+".")
		}
	}
	return out
}
