// Package fhir builds FHIR R4 documents from triage outcomes for the
// downstream documentation consumer. Only the resources and fields that
// consumer reads are modeled; this is not a general FHIR library.
package fhir

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/intellidoctor/medgemma-triage/internal/triage"
)

// loincTriageCode identifies the emergency department triage observation.
const loincTriageCode = "56838-1"

// Bundle is a FHIR R4 collection bundle.
type Bundle struct {
	ResourceType string  `json:"resourceType"`
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Timestamp    string  `json:"timestamp"`
	Entry        []Entry `json:"entry"`
}

type Entry struct {
	FullURL  string `json:"fullUrl"`
	Resource any    `json:"resource"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference"`
}

type HumanName struct {
	Text string `json:"text"`
}

type Patient struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id"`
	Name         []HumanName `json:"name,omitempty"`
	Gender       string      `json:"gender,omitempty"`
}

type Encounter struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Class        Coding            `json:"class"`
	Priority     *CodeableConcept  `json:"priority,omitempty"`
	Subject      Reference         `json:"subject"`
	ReasonCode   []CodeableConcept `json:"reasonCode,omitempty"`
}

type ObservationComponent struct {
	Code          CodeableConcept `json:"code"`
	ValueString   string          `json:"valueString,omitempty"`
	ValueQuantity *Quantity       `json:"valueQuantity,omitempty"`
}

type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

type Observation struct {
	ResourceType         string                 `json:"resourceType"`
	ID                   string                 `json:"id"`
	Status               string                 `json:"status"`
	Code                 CodeableConcept        `json:"code"`
	Subject              Reference              `json:"subject"`
	Encounter            Reference              `json:"encounter"`
	EffectiveDateTime    string                 `json:"effectiveDateTime"`
	ValueCodeableConcept *CodeableConcept       `json:"valueCodeableConcept,omitempty"`
	Component            []ObservationComponent `json:"component,omitempty"`
}

type Condition struct {
	ResourceType string          `json:"resourceType"`
	ID           string          `json:"id"`
	Code         CodeableConcept `json:"code"`
	Subject      Reference       `json:"subject"`
	Encounter    Reference       `json:"encounter"`
}

// BuildBundle assembles the triage document bundle: Patient, Encounter,
// the Manchester category Observation, and one Condition per reported
// symptom. Resource ids are fresh UUIDs on every call.
func BuildBundle(record *triage.PatientRecord, result *triage.Result, displayName string, now time.Time) *Bundle {
	patientID := uuid.NewString()
	encounterID := uuid.NewString()
	patientRef := Reference{Reference: "Patient/" + patientID}
	encounterRef := Reference{Reference: "Encounter/" + encounterID}

	patient := Patient{
		ResourceType: "Patient",
		ID:           patientID,
		Gender:       fhirGender(record.Sex),
	}
	if displayName != "" {
		patient.Name = []HumanName{{Text: displayName}}
	}

	encounter := Encounter{
		ResourceType: "Encounter",
		ID:           encounterID,
		Status:       "in-progress",
		Class: Coding{
			System: "http://terminology.hl7.org/CodeSystem/v3-ActCode",
			Code:   "EMER",
		},
		Priority: &CodeableConcept{
			Coding: []Coding{{
				Code:    fmt.Sprintf("%d", triage.Priority(result.Category)+1),
				Display: result.Level,
			}},
			Text: string(result.Category),
		},
		Subject:    patientRef,
		ReasonCode: []CodeableConcept{{Text: record.ChiefComplaint}},
	}

	observation := Observation{
		ResourceType: "Observation",
		ID:           uuid.NewString(),
		Status:       "final",
		Code: CodeableConcept{
			Coding: []Coding{{
				System:  "http://loinc.org",
				Code:    loincTriageCode,
				Display: "Emergency department triage",
			}},
		},
		Subject:           patientRef,
		Encounter:         encounterRef,
		EffectiveDateTime: now.UTC().Format(time.RFC3339),
		ValueCodeableConcept: &CodeableConcept{
			Coding: []Coding{{Code: string(result.Category), Display: result.Level}},
			Text:   result.Level,
		},
		Component: triageComponents(record, result),
	}

	entries := []Entry{
		{FullURL: "urn:uuid:" + patientID, Resource: patient},
		{FullURL: "urn:uuid:" + encounterID, Resource: encounter},
		{FullURL: "urn:uuid:" + observation.ID, Resource: observation},
	}
	for _, symptom := range record.Symptoms {
		cond := Condition{
			ResourceType: "Condition",
			ID:           uuid.NewString(),
			Code:         CodeableConcept{Text: symptom},
			Subject:      patientRef,
			Encounter:    encounterRef,
		}
		entries = append(entries, Entry{FullURL: "urn:uuid:" + cond.ID, Resource: cond})
	}

	return &Bundle{
		ResourceType: "Bundle",
		ID:           uuid.NewString(),
		Type:         "collection",
		Timestamp:    now.UTC().Format(time.RFC3339),
		Entry:        entries,
	}
}

// triageComponents renders confidence, rationale and measured vitals as
// observation components.
func triageComponents(record *triage.PatientRecord, result *triage.Result) []ObservationComponent {
	comps := []ObservationComponent{
		{
			Code:          CodeableConcept{Text: "confidence"},
			ValueQuantity: &Quantity{Value: result.Confidence},
		},
		{
			Code:        CodeableConcept{Text: "reasoning"},
			ValueString: result.Rationale,
		},
	}
	v := record.Vitals
	if v.Empty() {
		return comps
	}
	if v.HeartRate != nil {
		comps = append(comps, ObservationComponent{
			Code:          CodeableConcept{Text: "heart rate"},
			ValueQuantity: &Quantity{Value: float64(*v.HeartRate), Unit: "beats/min"},
		})
	}
	if v.BloodPressure != nil {
		comps = append(comps, ObservationComponent{
			Code:        CodeableConcept{Text: "blood pressure"},
			ValueString: *v.BloodPressure,
		})
	}
	if v.RespiratoryRate != nil {
		comps = append(comps, ObservationComponent{
			Code:          CodeableConcept{Text: "respiratory rate"},
			ValueQuantity: &Quantity{Value: float64(*v.RespiratoryRate), Unit: "breaths/min"},
		})
	}
	if v.Temperature != nil {
		comps = append(comps, ObservationComponent{
			Code:          CodeableConcept{Text: "temperature"},
			ValueQuantity: &Quantity{Value: *v.Temperature, Unit: "Cel"},
		})
	}
	if v.SpO2 != nil {
		comps = append(comps, ObservationComponent{
			Code:          CodeableConcept{Text: "oxygen saturation"},
			ValueQuantity: &Quantity{Value: *v.SpO2, Unit: "%"},
		})
	}
	if v.Glucose != nil {
		comps = append(comps, ObservationComponent{
			Code:          CodeableConcept{Text: "glucose"},
			ValueQuantity: &Quantity{Value: *v.Glucose, Unit: "mg/dL"},
		})
	}
	return comps
}

func fhirGender(sex string) string {
	switch sex {
	case "M", "m":
		return "male"
	case "F", "f":
		return "female"
	}
	return ""
}
