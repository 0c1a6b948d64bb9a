package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelevanceTag(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		want    string
	}{
		{"empty", nil, Irrelevant},
		{"two of three", []string{"YES", "YES", "NO"}, Relevant},
		{"half", []string{"yes", "no"}, Relevant},
		{"one of three", []string{"Yes", "no", "no"}, PartiallyRelevant},
		{"none", []string{"NO", "NO"}, Irrelevant},
		{"all", []string{"yes"}, Relevant},
		{"unrecognized counts against", []string{"yes", "maybe", "n/a"}, PartiallyRelevant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RelevanceTag(tt.answers))
		})
	}
}

func TestComposite(t *testing.T) {
	assert.InDelta(t, 0.725, Composite(0.8, 0.7, 0.65), 1e-9)
	assert.InDelta(t, 1.0, Composite(1, 1, 1), 1e-9)
	assert.InDelta(t, 0.0, Composite(0, 0, 0), 1e-9)
}

func TestTierBoundaries(t *testing.T) {
	tests := []struct {
		impact, issue, action float64
		want                  string
	}{
		{0.75, 0.75, 0.75, TierExcellent},
		{0.9, 0.9, 0.74, TierGood},
		{0.60, 0.60, 0.60, TierGood},
		{0.8, 0.7, 0.65, TierGood},
		{0.9, 0.59, 0.9, TierDeveloping},
		{0.40, 0.40, 0.40, TierDeveloping},
		{0.39, 1, 1, TierNeedsImprovement},
		{0, 0, 0, TierNeedsImprovement},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tier(tt.impact, tt.issue, tt.action), "scores %v %v %v", tt.impact, tt.issue, tt.action)
	}
}
