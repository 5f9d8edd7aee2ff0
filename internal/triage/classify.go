package triage

// Per-category static text and confidence for rule-based results. Rationale,
// discriminators and confidence are fixed per category; the record only
// selects which category fires. The confidences reflect how decisive the
// keyword lists are at each level, not any per-record measurement.
var ruleProfiles = map[Category]struct {
	rationale      string
	discriminators []string
	confidence     float64
}{
	Critical: {
		"Paciente apresenta sinais de ameaça imediata à vida. " +
			"Necessita atendimento imediato conforme Protocolo de Manchester.",
		[]string{"Comprometimento de via aérea", "Nível de consciência alterado", "Hemorragia ativa"},
		0.95,
	},
	VeryUrgent: {
		"Quadro clínico sugere condição muito urgente com risco potencial. " +
			"Discriminadores-chave indicam necessidade de avaliação em até 10 minutos.",
		[]string{"Dor severa (8-10)", "Risco cardíaco", "Desconforto respiratório grave"},
		0.90,
	},
	Urgent: {
		"Paciente apresenta sinais de urgência moderada. " +
			"Sinais vitais e quadro clínico indicam necessidade de avaliação em até 60 minutos.",
		[]string{"Dor moderada (4-7)", "Sinais vitais alterados", "Febre significativa"},
		0.85,
	},
	Standard: {
		"Quadro clínico estável, sem sinais de urgência. " +
			"Paciente pode aguardar atendimento em até 120 minutos.",
		[]string{"Dor leve (1-3)", "Sinais vitais estáveis", "Lesão menor"},
		0.88,
	},
	NonUrgent: {
		"Demanda não urgente, sem achados clínicos agudos. " +
			"Paciente pode ser atendido em até 240 minutos ou encaminhado " +
			"para unidade básica de saúde.",
		[]string{"Sem achados agudos", "Demanda administrativa", "Queixa crônica estável"},
		0.92,
	},
}

// Classify runs the rule-based baseline over the record. The keyword
// baseline reads the chief complaint only; pain-scale escalation and
// vital-sign escalation are combined by taking the most urgent of the three
// signals. It cannot fail and never produces a degraded result; callers
// validate the record first.
func Classify(r *PatientRecord) Result {
	cat, _ := keywordCategory(r.ChiefComplaint)

	if pc := painCategory(r.PainScale); Priority(pc) < Priority(cat) {
		cat = pc
	}
	if vc, _ := vitalCategory(r.Vitals); Priority(vc) < Priority(cat) {
		cat = vc
	}

	profile := ruleProfiles[cat]
	lvl := Levels[cat]
	return Result{
		Category:       cat,
		Level:          lvl.Label,
		MaxWaitMinutes: lvl.MaxWaitMinutes,
		Rationale:      profile.rationale,
		Discriminators: append([]string(nil), profile.discriminators...),
		Confidence:     profile.confidence,
	}
}
