// Package slack posts completed classifications to Slack via incoming
// webhooks, so the charge nurse channel sees every disposition.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/intellidoctor/medgemma-triage/internal/session"
	"github.com/intellidoctor/medgemma-triage/internal/triage"
)

const (
	maxRationaleLen = 3000
	httpTimeout     = 10 * time.Second
)

// Notifier sends classification results to a Slack webhook. It implements
// session.Notifier.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, notifications
// are a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// ClassificationDone posts the classification to the configured webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) ClassificationDone(ctx context.Context, iv *session.Interview, result *triage.Result) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(iv, result)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(iv *session.Interview, r *triage.Result) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(iv, r),
			{"type": "divider"},
			fieldsBlock(iv, r),
			{"type": "divider"},
			rationaleBlock(r),
			{"type": "divider"},
			contextBlock(iv),
		},
	}
}

func headerBlock(iv *session.Interview, r *triage.Result) map[string]any {
	complaint := iv.State.Extracted.PatientRecord().ChiefComplaint
	text := fmt.Sprintf("%s Triage: %s", categoryEmoji(r.Category), complaint)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(iv *session.Interview, r *triage.Result) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Category:* %s (%s)", r.Category, r.Level),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Max wait:* %d min", r.MaxWaitMinutes),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Confidence:* %.2f", r.Confidence),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Turns:* %d", iv.State.TurnCount),
		},
	}
	if r.Degraded {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": "*Degraded:* needs manual review",
		})
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func rationaleBlock(r *triage.Result) map[string]any {
	text := truncate(r.Rationale, maxRationaleLen)
	if text == "" {
		text = "_No rationale available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Rationale*\n\n%s", text),
		},
	}
}

func contextBlock(iv *session.Interview) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("medtriage • interview %s • %s", iv.ID, iv.UpdatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func categoryEmoji(c triage.Category) string {
	switch c {
	case triage.Critical, triage.VeryUrgent:
		return "\U0001f534" // red circle
	case triage.Urgent:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
