package router

import (
	"testing"

	"github.com/zen-systems/fieldscore/pkg/config"
)

func TestRuleSet_Match(t *testing.T) {
	rs := NewRuleSet(config.DefaultRoutingConfig())

	tests := []struct {
		name            string
		choice          string
		expectedAdapter string
		expectedOK      bool
	}{
		{"gemini label", "Gemini-2.5-Flash", "google", true},
		{"chatgpt label", "ChatGPT-4o", "openai", true},
		{"chatgpt mini label", "ChatGPT-4o-Mini", "openai", true},
		{"claude 3 label", "Claude-3-Sonnet", "anthropic", true},
		{"claude 4.5 goes to bedrock", "Claude-4.5-Sonnet", "bedrock", true},
		{"explicit bedrock", "Bedrock Claude", "bedrock", true},
		{"case insensitive", "gemini", "google", true},
		{"embedded trigger", "MyGeminiModel", "google", true},
		{"unknown", "Llama-3", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, _, ok := rs.Match(tt.choice)
			if ok != tt.expectedOK || adapter != tt.expectedAdapter {
				t.Errorf("Match(%q) = %q, %v; want %q, %v", tt.choice, adapter, ok, tt.expectedAdapter, tt.expectedOK)
			}
		})
	}
}

func TestRuleSet_ConfigOrderWins(t *testing.T) {
	cfg := &config.RoutingConfig{
		Choices: []config.ChoiceRule{
			{Triggers: []string{"Claude"}, Adapter: "anthropic"},
			{Triggers: []string{"Claude-4.5"}, Adapter: "bedrock"},
		},
	}
	rs := NewRuleSet(cfg)
	adapter, trigger, ok := rs.Match("Claude-4.5-Sonnet")
	if !ok || adapter != "anthropic" || trigger != "claude" {
		t.Errorf("first rule should win, got %q via %q", adapter, trigger)
	}
}

func TestRuleSet_SkipsBlankTriggers(t *testing.T) {
	cfg := &config.RoutingConfig{
		Choices: []config.ChoiceRule{{Triggers: []string{"", "  ", "Gemini"}, Adapter: "google"}},
	}
	rs := NewRuleSet(cfg)
	if rs.Len() != 1 {
		t.Fatalf("expected 1 compiled trigger, got %d", rs.Len())
	}
	if _, _, ok := rs.Match("anything"); ok {
		t.Error("blank triggers must not match")
	}
}

func TestContainsTrigger(t *testing.T) {
	tests := []struct {
		choice, trigger string
		want            bool
	}{
		{"gemini-2.5-flash", "gemini", true},
		{"chatgpt-4o", "chatgpt", true},
		{"claude-3-sonnet", "claude-4.5", false},
		{"anything", "", false},
	}
	for _, tt := range tests {
		if got := containsTrigger(tt.choice, tt.trigger); got != tt.want {
			t.Errorf("containsTrigger(%q, %q) = %v, want %v", tt.choice, tt.trigger, got, tt.want)
		}
	}
}
