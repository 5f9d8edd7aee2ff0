package intake

import (
	"strings"

	"github.com/intellidoctor/medgemma-triage/internal/triage"
)

// Record is one partial extraction of patient data, produced by a single
// parser invocation and folded into the running record turn by turn. Every
// field is optional; nil means "the model said nothing about this".
type Record struct {
	ChiefComplaint *string            `json:"chief_complaint,omitempty"`
	Symptoms       []string           `json:"symptoms,omitempty"`
	Onset          *string            `json:"onset,omitempty"`
	Duration       *string            `json:"duration,omitempty"`
	PainScale      *int               `json:"pain_scale,omitempty"`
	Vitals         *triage.VitalSigns `json:"vital_signs,omitempty"`
	History        []string           `json:"history,omitempty"`
	Medications    []string           `json:"medications,omitempty"`
	Allergies      []string           `json:"allergies,omitempty"`
	Age            *int               `json:"age,omitempty"`
	Sex            *string            `json:"sex,omitempty"`
	ImageFindings  *string            `json:"image_findings,omitempty"`
	Notes          *string            `json:"notes,omitempty"`
}

// Merge folds incoming into previous and returns the combined record.
// Neither argument is modified. Field rules:
//   - nil incoming scalar keeps the previous value
//   - an incoming empty collection never displaces a non-empty previous one
//   - nested vitals merge recursively; an all-null vitals value is never
//     adopted over an absent previous one
//   - any other incoming value overwrites
//
// Merge is idempotent and associative over a left fold across turns.
func Merge(previous, incoming Record) Record {
	out := previous

	if incoming.ChiefComplaint != nil {
		out.ChiefComplaint = incoming.ChiefComplaint
	}
	out.Symptoms = mergeList(previous.Symptoms, incoming.Symptoms)
	if incoming.Onset != nil {
		out.Onset = incoming.Onset
	}
	if incoming.Duration != nil {
		out.Duration = incoming.Duration
	}
	if incoming.PainScale != nil {
		out.PainScale = incoming.PainScale
	}
	out.Vitals = mergeVitals(previous.Vitals, incoming.Vitals)
	out.History = mergeList(previous.History, incoming.History)
	out.Medications = mergeList(previous.Medications, incoming.Medications)
	out.Allergies = mergeList(previous.Allergies, incoming.Allergies)
	if incoming.Age != nil {
		out.Age = incoming.Age
	}
	if incoming.Sex != nil {
		out.Sex = incoming.Sex
	}
	if incoming.ImageFindings != nil {
		out.ImageFindings = incoming.ImageFindings
	}
	if incoming.Notes != nil {
		out.Notes = incoming.Notes
	}
	return out
}

// mergeList keeps the previous collection when the incoming one is absent,
// or empty while the previous one has entries.
func mergeList(previous, incoming []string) []string {
	if incoming == nil {
		return previous
	}
	if len(incoming) == 0 && len(previous) > 0 {
		return previous
	}
	return incoming
}

// mergeVitals merges nested vitals field by field. A previous value with at
// least one measurement is merged into; an absent or all-null previous value
// is replaced only by an incoming value carrying at least one measurement.
func mergeVitals(previous, incoming *triage.VitalSigns) *triage.VitalSigns {
	if incoming == nil {
		return previous
	}
	if previous.Empty() {
		if incoming.Empty() {
			return previous
		}
		v := *incoming
		return &v
	}
	v := *previous
	if incoming.HeartRate != nil {
		v.HeartRate = incoming.HeartRate
	}
	if incoming.BloodPressure != nil {
		v.BloodPressure = incoming.BloodPressure
	}
	if incoming.RespiratoryRate != nil {
		v.RespiratoryRate = incoming.RespiratoryRate
	}
	if incoming.Temperature != nil {
		v.Temperature = incoming.Temperature
	}
	if incoming.SpO2 != nil {
		v.SpO2 = incoming.SpO2
	}
	if incoming.Glucose != nil {
		v.Glucose = incoming.Glucose
	}
	return &v
}

// PatientRecord converts the accumulated record into the classifier's input
// type. Callers validate the result before classification.
func (r Record) PatientRecord() triage.PatientRecord {
	p := triage.PatientRecord{
		Symptoms:    r.Symptoms,
		PainScale:   r.PainScale,
		Vitals:      r.Vitals,
		History:     r.History,
		Medications: r.Medications,
		Allergies:   r.Allergies,
		Age:         r.Age,
	}
	if r.ChiefComplaint != nil {
		p.ChiefComplaint = *r.ChiefComplaint
	}
	if r.Onset != nil {
		p.Onset = *r.Onset
	}
	if r.Duration != nil {
		p.Duration = *r.Duration
	}
	if r.Sex != nil {
		p.Sex = *r.Sex
	}
	if r.ImageFindings != nil {
		p.ImageFindings = *r.ImageFindings
	}
	if r.Notes != nil {
		p.Notes = *r.Notes
	}
	return p
}

// has reports whether the named checklist field is present and non-empty.
func (r Record) has(field string) bool {
	switch field {
	case "chief_complaint":
		return r.ChiefComplaint != nil && strings.TrimSpace(*r.ChiefComplaint) != ""
	case "symptoms":
		return len(r.Symptoms) > 0
	case "onset":
		return r.Onset != nil && *r.Onset != ""
	case "pain_scale":
		return r.PainScale != nil
	case "history":
		return len(r.History) > 0
	case "medications":
		return len(r.Medications) > 0
	case "allergies":
		return len(r.Allergies) > 0
	}
	return false
}
