package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Adapter names used across routing, configuration and the CLI.
const (
	AdapterGoogle    = "google"
	AdapterOpenAI    = "openai"
	AdapterAnthropic = "anthropic"
	AdapterBedrock   = "bedrock"
	AdapterSambaNova = "sambanova"
)

// Task names.
const (
	TaskEvidence = "evidence"
	TaskThematic = "thematic"
	TaskStory    = "story"
)

// RoutingConfig holds the routing rules configuration.
type RoutingConfig struct {
	// Choices are checked in order; the first rule with a trigger contained
	// in the caller's model choice wins.
	Choices  []ChoiceRule          `yaml:"choices"`
	Tasks    map[string]TaskModels `yaml:"tasks"`
	Default  map[string]string     `yaml:"default"`
	Retry    RetryConfig           `yaml:"retry,omitempty"`
	Fallback FallbackConfig        `yaml:"fallback,omitempty"`
	Story    StoryConfig           `yaml:"story,omitempty"`
}

// ChoiceRule maps model choice substrings to an adapter.
type ChoiceRule struct {
	Triggers []string `yaml:"triggers"`
	Adapter  string   `yaml:"adapter"`
}

// TaskModels maps adapter name to model for one task.
type TaskModels map[string]string

// RetryConfig defines retry and backoff behavior.
type RetryConfig struct {
	MaxAttempts   int `yaml:"max_attempts,omitempty"`
	BaseBackoffMs int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs  int `yaml:"max_backoff_ms,omitempty"`
}

// FallbackConfig defines the evidence fallback to the line-protocol provider.
type FallbackConfig struct {
	AllowFallback bool   `yaml:"allow_fallback,omitempty"`
	Adapter       string `yaml:"adapter,omitempty"`
	Model         string `yaml:"model,omitempty"`
	MaxAttempts   int    `yaml:"max_attempts,omitempty"`
	DelayMs       int    `yaml:"delay_ms,omitempty"`
}

// StoryConfig holds generation settings for story rating.
type StoryConfig struct {
	MaxTokens int `yaml:"max_tokens,omitempty"`
}

// LoadRoutingConfig reads routing configuration from a YAML file.
func LoadRoutingConfig(path string) (*RoutingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RoutingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyRoutingDefaults(&cfg)
	return &cfg, nil
}

// DefaultRoutingConfig returns the default routing configuration.
func DefaultRoutingConfig() *RoutingConfig {
	cfg := &RoutingConfig{}
	applyRoutingDefaults(cfg)
	return cfg
}

// ModelFor returns the model for adapter on task, falling back to the
// adapter default.
func (c *RoutingConfig) ModelFor(task, adapter string) string {
	if c == nil {
		return ""
	}
	if models, ok := c.Tasks[task]; ok {
		if m := models[adapter]; m != "" {
			return m
		}
	}
	return c.Default[adapter]
}

func defaultChoices() []ChoiceRule {
	return []ChoiceRule{
		{Triggers: []string{"Bedrock", "Claude-4.5"}, Adapter: AdapterBedrock},
		{Triggers: []string{"Gemini"}, Adapter: AdapterGoogle},
		{Triggers: []string{"ChatGPT"}, Adapter: AdapterOpenAI},
		{Triggers: []string{"Claude"}, Adapter: AdapterAnthropic},
	}
}

func defaultModels() map[string]string {
	return map[string]string{
		AdapterGoogle:    "gemini-2.5-flash",
		AdapterOpenAI:    "gpt-4o",
		AdapterAnthropic: "claude-3-sonnet-20240229",
		AdapterBedrock:   DefaultBedrockModelID,
		AdapterSambaNova: "Llama-4-Maverick-17B-128E-Instruct",
	}
}

func defaultTasks() map[string]TaskModels {
	return map[string]TaskModels{
		TaskEvidence: {AdapterGoogle: "gemini-2.0-flash"},
		TaskThematic: {
			AdapterOpenAI:    "gpt-4o-mini",
			AdapterAnthropic: "claude-3-haiku-20240307",
		},
	}
}

func applyRoutingDefaults(cfg *RoutingConfig) {
	if cfg == nil {
		return
	}
	if len(cfg.Choices) == 0 {
		cfg.Choices = defaultChoices()
	}
	if cfg.Default == nil {
		cfg.Default = make(map[string]string)
	}
	for adapter, model := range defaultModels() {
		if cfg.Default[adapter] == "" {
			cfg.Default[adapter] = model
		}
	}
	if cfg.Tasks == nil {
		cfg.Tasks = defaultTasks()
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseBackoffMs == 0 {
		cfg.Retry.BaseBackoffMs = 200
	}
	if cfg.Retry.MaxBackoffMs == 0 {
		cfg.Retry.MaxBackoffMs = 2000
	}
	if cfg.Retry.MaxBackoffMs < cfg.Retry.BaseBackoffMs {
		cfg.Retry.MaxBackoffMs = cfg.Retry.BaseBackoffMs
	}
	if cfg.Fallback.Adapter == "" {
		cfg.Fallback.Adapter = AdapterSambaNova
	}
	if cfg.Fallback.Model == "" {
		cfg.Fallback.Model = cfg.Default[cfg.Fallback.Adapter]
	}
	if cfg.Fallback.MaxAttempts == 0 {
		cfg.Fallback.MaxAttempts = 3
	}
	if cfg.Fallback.DelayMs == 0 {
		cfg.Fallback.DelayMs = 3000
	}
	if cfg.Story.MaxTokens == 0 {
		cfg.Story.MaxTokens = 8192
	}
}
