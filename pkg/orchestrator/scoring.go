package orchestrator

import (
	"math"
	"strings"
)

// Relevance tags for evidence.
const (
	Relevant          = "Relevant"
	PartiallyRelevant = "Partially Relevant"
	Irrelevant        = "Irrelevant"
)

// Story tiers, best first.
const (
	TierExcellent        = "Excellent"
	TierGood             = "Good"
	TierDeveloping       = "Developing"
	TierNeedsImprovement = "Needs Improvement"
)

// Tiers lists the allowed tier values.
var Tiers = []string{TierExcellent, TierGood, TierDeveloping, TierNeedsImprovement}

// Composite weights.
const (
	ImpactWeight = 0.4
	IssueWeight  = 0.3
	ActionWeight = 0.3
)

// RelevanceTag derives the evidence tag from the fraction of YES answers
// (case-insensitive). Any other answer counts against it.
func RelevanceTag(answers []string) string {
	if len(answers) == 0 {
		return Irrelevant
	}
	var yes int
	for _, a := range answers {
		if strings.EqualFold(strings.TrimSpace(a), "yes") {
			yes++
		}
	}
	ratio := float64(yes) / float64(len(answers))
	switch {
	case ratio >= 0.5:
		return Relevant
	case ratio > 0:
		return PartiallyRelevant
	default:
		return Irrelevant
	}
}

// Composite is the weighted story score, rounded to three decimals.
func Composite(impact, issue, action float64) float64 {
	v := impact*ImpactWeight + issue*IssueWeight + action*ActionWeight
	return math.Round(v*1000) / 1000
}

// Tier buckets a story by its weakest score.
func Tier(impact, issue, action float64) string {
	lowest := math.Min(impact, math.Min(issue, action))
	switch {
	case lowest >= 0.75:
		return TierExcellent
	case lowest >= 0.60:
		return TierGood
	case lowest >= 0.40:
		return TierDeveloping
	default:
		return TierNeedsImprovement
	}
}
