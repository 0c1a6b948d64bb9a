package router

import (
	"strings"

	"github.com/zen-systems/fieldscore/pkg/config"
)

// RuleSet contains the compiled choice rules in configuration order.
type RuleSet struct {
	rules []compiledRule
}

type compiledRule struct {
	trigger string
	adapter string
}

// NewRuleSet creates a new rule set from routing configuration.
func NewRuleSet(cfg *config.RoutingConfig) *RuleSet {
	rs := &RuleSet{}
	if cfg == nil {
		return rs
	}
	for _, choice := range cfg.Choices {
		for _, trigger := range choice.Triggers {
			trigger = strings.ToLower(strings.TrimSpace(trigger))
			if trigger == "" {
				continue
			}
			rs.rules = append(rs.rules, compiledRule{trigger: trigger, adapter: choice.Adapter})
		}
	}
	return rs
}

// Match returns the adapter of the first rule whose trigger occurs in the
// model choice. Matching ignores case.
func (rs *RuleSet) Match(choice string) (adapter string, trigger string, ok bool) {
	choiceLower := strings.ToLower(choice)
	for _, rule := range rs.rules {
		if containsTrigger(choiceLower, rule.trigger) {
			return rule.adapter, rule.trigger, true
		}
	}
	return "", "", false
}

// Len returns the number of compiled triggers.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// containsTrigger reports whether the trigger occurs in the choice. Model
// choices are labels like "Gemini-2.5-Flash", so plain containment is used
// rather than word matching.
func containsTrigger(choice, trigger string) bool {
	return trigger != "" && strings.Contains(choice, trigger)
}
