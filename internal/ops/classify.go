package ops

import (
	"strings"

	"github.com/hpungsan/vocap/internal/capture"
	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/utterance"
)

// ClassifyInput contains parameters for the Classify operation.
type ClassifyInput struct {
	Text string
}

// ClassifyOutput explains how a text would be classified. Nothing is
// recorded or written.
type ClassifyOutput struct {
	Normalized     string             `json:"normalized"`
	Reason         string             `json:"reason"`
	Category       utterance.Category `json:"category,omitempty"`
	Content        string             `json:"content,omitempty"`
	Fingerprint    string             `json:"fingerprint,omitempty"`
	RuleID         string             `json:"rule_id,omitempty"`
	RuleSetVersion int                `json:"rule_set_version"`
}

// Classify is a dry run of normalization and command matching.
func Classify(m *utterance.Matcher, input ClassifyInput) (*ClassifyOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}

	out := &ClassifyOutput{
		Normalized:     m.Normalizer().Normalize(input.Text),
		RuleSetVersion: utterance.RuleSetVersion,
	}
	if out.Normalized == "" {
		out.Reason = capture.ReasonEmpty
		return out, nil
	}

	match := m.Match(out.Normalized)
	out.Reason = string(match.Reason)
	if match.Matched() {
		out.Category = match.Category
		out.Content = match.Content
		out.Fingerprint = utterance.Fingerprint(match.Content)
		out.RuleID = match.Rule.ID
	}
	return out, nil
}
