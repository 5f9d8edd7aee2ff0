package triage

import (
	"fmt"
	"strings"
)

const classifySystemPrompt = `You are an emergency department triage nurse applying the Manchester Triage System.
Classify the patient into exactly one category:
- CRITICAL: immediate life threat, seen now
- VERY_URGENT: high risk, seen within 10 minutes
- URGENT: significant symptoms, seen within 60 minutes
- STANDARD: less urgent, seen within 120 minutes
- NON_URGENT: routine or administrative, seen within 240 minutes

Respond with a single JSON object and nothing else:
{"category": "...", "reasoning": "...", "confidence": 0.0, "discriminators": ["..."]}`

// languageInstruction returns the reply-language line appended to prompts.
// Portuguese is the default; the tag comes from the case file or request.
func languageInstruction(lang string) string {
	if lang == "en" {
		return "Reply in English."
	}
	return "Responda em português."
}

// classifyPrompt renders the record as the user prompt for the model-backed
// classifier.
func classifyPrompt(r *PatientRecord, lang string) string {
	var b strings.Builder
	b.WriteString("Patient presentation:\n")
	fmt.Fprintf(&b, "- Chief complaint: %s\n", r.ChiefComplaint)
	if len(r.Symptoms) > 0 {
		fmt.Fprintf(&b, "- Symptoms: %s\n", strings.Join(r.Symptoms, ", "))
	}
	if r.Onset != "" {
		fmt.Fprintf(&b, "- Onset: %s\n", r.Onset)
	}
	if r.Duration != "" {
		fmt.Fprintf(&b, "- Duration: %s\n", r.Duration)
	}
	if r.PainScale != nil {
		fmt.Fprintf(&b, "- Pain scale: %d/10\n", *r.PainScale)
	}
	if v := r.Vitals; !v.Empty() {
		b.WriteString("- Vital signs:")
		if v.HeartRate != nil {
			fmt.Fprintf(&b, " HR %d bpm,", *v.HeartRate)
		}
		if v.BloodPressure != nil {
			fmt.Fprintf(&b, " BP %s mmHg,", *v.BloodPressure)
		}
		if v.RespiratoryRate != nil {
			fmt.Fprintf(&b, " RR %d/min,", *v.RespiratoryRate)
		}
		if v.Temperature != nil {
			fmt.Fprintf(&b, " temp %.1f C,", *v.Temperature)
		}
		if v.SpO2 != nil {
			fmt.Fprintf(&b, " SpO2 %.0f%%,", *v.SpO2)
		}
		if v.Glucose != nil {
			fmt.Fprintf(&b, " glucose %.0f mg/dL,", *v.Glucose)
		}
		b.WriteString("\n")
	}
	if len(r.History) > 0 {
		fmt.Fprintf(&b, "- History: %s\n", strings.Join(r.History, ", "))
	}
	if len(r.Medications) > 0 {
		fmt.Fprintf(&b, "- Medications: %s\n", strings.Join(r.Medications, ", "))
	}
	if len(r.Allergies) > 0 {
		fmt.Fprintf(&b, "- Allergies: %s\n", strings.Join(r.Allergies, ", "))
	}
	if r.Age != nil {
		fmt.Fprintf(&b, "- Age: %d\n", *r.Age)
	}
	if r.Sex != "" {
		fmt.Fprintf(&b, "- Sex: %s\n", r.Sex)
	}
	if r.ImageFindings != "" {
		fmt.Fprintf(&b, "- Imaging: %s\n", r.ImageFindings)
	}
	if r.Notes != "" {
		fmt.Fprintf(&b, "- Notes: %s\n", r.Notes)
	}
	b.WriteString("\n")
	b.WriteString(languageInstruction(lang))
	return b.String()
}
