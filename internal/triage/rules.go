package triage

import (
	"strconv"
	"strings"
)

// Keyword lists for the rule-based baseline, Portuguese and English mixed
// since patients answer in either. Checked in a fixed order with the first
// substring hit winning; NonUrgent is deliberately checked before the
// intermediate lists so that administrative visits ("renovar receita") are
// not dragged up by incidental symptom words.
var (
	criticalKeywords = []string{
		"unresponsive", "inconsciente", "not breathing", "parada",
		"cardiac arrest", "airway", "choking", "engasgo",
		"hemorrhage", "hemorragia", "seizure", "convuls",
	}
	nonUrgentKeywords = []string{
		"receita", "refill", "prescription", "renovar",
		"atestado", "certificate", "consulta de rotina", "routine visit",
	}
	veryUrgentKeywords = []string{
		"chest pain", "dor no peito", "peito", "stroke", "avc",
		"altered consciousness", "confus", "severe pain", "dor intensa",
	}
	urgentKeywords = []string{
		"febre", "fever", "vomit", "vômito", "abdomen", "abdômen",
		"falta de ar", "dyspnea", "dispneia", "asma", "wheezing", "chiado",
	}
	standardKeywords = []string{
		"torci", "twisted", "sprain", "minor", "leve",
		"cut", "corte", "pequeno", "dor leve",
	}
)

// keywordCategory returns the baseline category for the chief complaint.
// Only the complaint is matched; symptoms and notes are deliberately
// excluded so incidental words elsewhere in the record cannot move the
// baseline. Lists are checked Critical, NonUrgent, VeryUrgent, Urgent,
// Standard and the first match wins. No match defaults to Urgent.
func keywordCategory(complaint string) (Category, string) {
	text := strings.ToLower(complaint)

	checks := []struct {
		cat  Category
		list []string
	}{
		{Critical, criticalKeywords},
		{NonUrgent, nonUrgentKeywords},
		{VeryUrgent, veryUrgentKeywords},
		{Urgent, urgentKeywords},
		{Standard, standardKeywords},
	}
	for _, c := range checks {
		for _, kw := range c.list {
			if strings.Contains(text, kw) {
				return c.cat, kw
			}
		}
	}
	return Urgent, ""
}

// painCategory maps the reported pain scale to a floor category. Nil pain
// never escalates.
func painCategory(pain *int) Category {
	switch {
	case pain == nil:
		return NonUrgent
	case *pain >= 8:
		return VeryUrgent
	case *pain >= 4:
		return Urgent
	default:
		return NonUrgent
	}
}

// vitalCategory applies the derangement thresholds in a fixed order and
// stops at the first hit. Oxygen saturation and blood pressure are checked
// before rate and temperature derangements so the more dangerous finding
// names the discriminator.
func vitalCategory(v *VitalSigns) (Category, string) {
	if v.Empty() {
		return NonUrgent, ""
	}
	if v.SpO2 != nil && *v.SpO2 < 92 {
		return VeryUrgent, "oxygen saturation below 92%"
	}
	if sys, ok := systolic(v.BloodPressure); ok && (sys < 90 || sys > 200) {
		return VeryUrgent, "systolic blood pressure out of range"
	}
	if v.HeartRate != nil && (*v.HeartRate > 120 || *v.HeartRate < 50) {
		return Urgent, "heart rate out of range"
	}
	if v.RespiratoryRate != nil && (*v.RespiratoryRate > 30 || *v.RespiratoryRate < 10) {
		return Urgent, "respiratory rate out of range"
	}
	if v.Temperature != nil && (*v.Temperature > 40 || *v.Temperature < 35) {
		return Urgent, "temperature out of range"
	}
	if v.Glucose != nil && (*v.Glucose < 60 || *v.Glucose > 400) {
		return Urgent, "blood glucose out of range"
	}
	return NonUrgent, ""
}

// systolic parses the systolic half of a "120/80" style reading.
func systolic(bp *string) (int, bool) {
	if bp == nil {
		return 0, false
	}
	part, _, _ := strings.Cut(*bp, "/")
	n, err := strconv.Atoi(strings.TrimSpace(part))
	if err != nil {
		return 0, false
	}
	return n, true
}

// MoreUrgent returns the more urgent of a and b; ties go to a.
func MoreUrgent(a, b Category) Category {
	if Priority(b) < Priority(a) {
		return b
	}
	return a
}
