package adapter

import (
	"context"
	"strings"
)

// Moderation scans text and prompt for banned terms. Matching is
// case-sensitive substring membership; every matched term is recorded in the
// raw result so reviewers can see what fired.
type Moderation struct {
	banned   []string
	severity float64
}

func NewModeration(banned []string, severity float64) *Moderation {
	if severity <= 0 || severity > 1 {
		severity = 0.8
	}
	return &Moderation{banned: banned, severity: severity}
}

func (m *Moderation) Name() string { return "moderation" }

func (m *Moderation) Run(_ context.Context, payload Payload) (Raw, error) {
	text := payload.Text
	if text == "" {
		text = payload.Prompt
	} else if payload.Prompt != "" {
		text = text + "\n" + payload.Prompt
	}

	hits := []string{}
	for _, term := range m.banned {
		if term == "" {
			continue
		}
		if strings.Contains(text, term) {
			hits = append(hits, term)
		}
	}

	severity := 0.0
	if len(hits) > 0 {
		severity = m.severity
	}
	return Raw{"severity": severity, "hits": hits}, nil
}

func (m *Moderation) Normalize(raw Raw) float64 {
	return clamp01(rawFloat(raw, "severity"))
}
