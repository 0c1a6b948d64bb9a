package orchestrator

import (
	"github.com/zen-systems/fieldscore/pkg/envelope"
	"github.com/zen-systems/fieldscore/pkg/normalize"
)

// EvidenceResult is a validated evidence check.
type EvidenceResult struct {
	Source     string
	Answers    []string
	Reasonings []string
	Relevance  string
}

// Fields returns the success envelope fields.
func (r *EvidenceResult) Fields() map[string]any {
	reasonings := r.Reasonings
	if reasonings == nil {
		reasonings = []string{}
	}
	return map[string]any{
		"answers":    r.Answers,
		"reasonings": reasonings,
		"relevance":  r.Relevance,
	}
}

func (r *EvidenceResult) envelope() *envelope.Envelope {
	return envelope.Success(r.Source, r.Fields())
}

// Classification is one thematic label.
type Classification struct {
	Challenge string `json:"challenge"`
	ThemeID   int    `json:"theme_id"`
	ThemeName string `json:"theme_name"`
	PIIFlag   bool   `json:"pii_flag"`
}

// ThematicSummary aggregates a batch.
type ThematicSummary struct {
	Total       int            `json:"total"`
	PIICount    int            `json:"pii_count"`
	ThemeCounts map[string]int `json:"theme_counts"`
}

// ThematicResult is a validated thematic classification batch.
type ThematicResult struct {
	Source     string
	Classified []Classification
	Summary    ThematicSummary
}

// Fields returns the success envelope fields.
func (r *ThematicResult) Fields() map[string]any {
	classified := r.Classified
	if classified == nil {
		classified = []Classification{}
	}
	return map[string]any{
		"classified_data": classified,
		"summary":         r.Summary,
	}
}

func (r *ThematicResult) envelope() *envelope.Envelope {
	return envelope.Success(r.Source, r.Fields())
}

// StoryResult is a validated story rating.
type StoryResult struct {
	Source string

	DocumentLanguage    string
	ImpactScore         float64
	ImpactJustification string
	IssueScore          float64
	IssueJustification  string
	ActionScore         float64
	ActionJustification string
	CompositeScore      float64
	Tier                string
	OverallSummary      string

	// ModelReportedTier is set when the model's tier disagrees with the
	// derived one.
	ModelReportedTier string
	DegradedInput     bool
	AutoFilledFields  []string
}

// Fields returns the success envelope fields.
func (r *StoryResult) Fields() map[string]any {
	fields := map[string]any{
		"document_language":         r.DocumentLanguage,
		"impact_and_outcome_score":  r.ImpactScore,
		"impact_justification":      r.ImpactJustification,
		"issue_and_challenge_score": r.IssueScore,
		"issue_justification":       r.IssueJustification,
		"action_steps_score":        r.ActionScore,
		"action_justification":      r.ActionJustification,
		"composite_score":           r.CompositeScore,
		"tier":                      r.Tier,
		"overall_summary":           r.OverallSummary,
	}
	if r.ModelReportedTier != "" {
		fields["model_reported_tier"] = r.ModelReportedTier
	}
	if r.DegradedInput {
		fields["degraded_input"] = true
	}
	if len(r.AutoFilledFields) > 0 {
		fields[normalize.AutoFilledKey] = true
		fields[normalize.AutoFilledFieldsKey] = r.AutoFilledFields
	}
	return fields
}

func (r *StoryResult) envelope() *envelope.Envelope {
	return envelope.Success(r.Source, r.Fields())
}
