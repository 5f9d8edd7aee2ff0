package triage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecord marks construction-time validation failures. These are
// caller errors, never silently coerced.
var ErrInvalidRecord = errors.New("invalid patient record")

// Category is a Manchester Triage System urgency category. The five members
// form a closed total order: a lower priority index means more urgent.
type Category string

const (
	Critical   Category = "CRITICAL"
	VeryUrgent Category = "VERY_URGENT"
	Urgent     Category = "URGENT"
	Standard   Category = "STANDARD"
	NonUrgent  Category = "NON_URGENT"
)

// Categories lists all members in priority order, most urgent first.
var Categories = []Category{Critical, VeryUrgent, Urgent, Standard, NonUrgent}

// Level is the static (label, max-wait) pair attached to a category.
type Level struct {
	Label          string
	MaxWaitMinutes int
}

// Levels maps each category to its label and maximum acceptable wait.
var Levels = map[Category]Level{
	Critical:   {"Emergency", 0},
	VeryUrgent: {"Very urgent", 10},
	Urgent:     {"Urgent", 60},
	Standard:   {"Less urgent", 120},
	NonUrgent:  {"Non-urgent", 240},
}

// Priority returns the ordinal position of c, most urgent first. Unknown
// categories sort after every real member.
func Priority(c Category) int {
	for i, m := range Categories {
		if m == c {
			return i
		}
	}
	return len(Categories)
}

// ParseCategory matches s case-insensitively against the category set.
func ParseCategory(s string) (Category, bool) {
	up := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, m := range Categories {
		if m == up {
			return m, true
		}
	}
	return "", false
}

// VitalSigns holds measured vitals. Every field is independently optional;
// a nil pointer means "not measured", never zero.
type VitalSigns struct {
	HeartRate       *int     `json:"heart_rate,omitempty"`       // beats per minute
	BloodPressure   *string  `json:"blood_pressure,omitempty"`   // "systolic/diastolic", e.g. "120/80"
	RespiratoryRate *int     `json:"respiratory_rate,omitempty"` // breaths per minute
	Temperature     *float64 `json:"temperature,omitempty"`      // Celsius
	SpO2            *float64 `json:"spo2,omitempty"`             // oxygen saturation %
	Glucose         *float64 `json:"glucose,omitempty"`          // blood glucose mg/dL
}

// Empty reports whether no vital has been measured.
func (v *VitalSigns) Empty() bool {
	if v == nil {
		return true
	}
	return v.HeartRate == nil && v.BloodPressure == nil && v.RespiratoryRate == nil &&
		v.Temperature == nil && v.SpO2 == nil && v.Glucose == nil
}

// PatientRecord is the structured patient data a classification runs on.
type PatientRecord struct {
	ChiefComplaint string      `json:"chief_complaint"`
	Symptoms       []string    `json:"symptoms,omitempty"`
	Onset          string      `json:"onset,omitempty"`
	Duration       string      `json:"duration,omitempty"`
	PainScale      *int        `json:"pain_scale,omitempty"` // 0-10
	Vitals         *VitalSigns `json:"vital_signs,omitempty"`
	History        []string    `json:"history,omitempty"`
	Medications    []string    `json:"medications,omitempty"`
	Allergies      []string    `json:"allergies,omitempty"`
	Age            *int        `json:"age,omitempty"`
	Sex            string      `json:"sex,omitempty"` // "M" or "F"
	ImageFindings  string      `json:"image_findings,omitempty"`
	Notes          string      `json:"notes,omitempty"`
}

// Validate checks construction invariants. A record that fails validation
// must never reach a classifier; this is a caller error, not a runtime
// classification condition.
func (r *PatientRecord) Validate() error {
	if strings.TrimSpace(r.ChiefComplaint) == "" {
		return fmt.Errorf("%w: chief complaint is required", ErrInvalidRecord)
	}
	if r.PainScale != nil && (*r.PainScale < 0 || *r.PainScale > 10) {
		return fmt.Errorf("%w: pain scale %d out of range 0..10", ErrInvalidRecord, *r.PainScale)
	}
	return nil
}

// Result is the outcome of one classification call. Constructed once,
// immutable, owned by the caller.
type Result struct {
	Category       Category `json:"category"`
	Level          string   `json:"level"`
	MaxWaitMinutes int      `json:"max_wait_minutes"`
	Rationale      string   `json:"rationale"`
	Discriminators []string `json:"discriminators"`
	Confidence     float64  `json:"confidence"` // in [0,1]

	// Degraded marks results produced by a fallback parse tier or a
	// swallowed provider failure; flagged for manual review.
	Degraded bool `json:"degraded"`

	// RawResponse is the verbatim model output for model-backed
	// classifications. Empty for rule-based results.
	RawResponse string `json:"raw_response,omitempty"`
}
