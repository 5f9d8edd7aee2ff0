// Package triage implements Manchester-style urgency classification of
// structured patient records, both rule-based and model-backed.
package triage
