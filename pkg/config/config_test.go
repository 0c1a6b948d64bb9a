package config

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
)

func TestConfigUsesFileWhenEnvUnset(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearProviderEnv(t)

	configDir := filepath.Join(home, ".fieldscore")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data := []byte(`api_keys:
  gemini: [g1, g2]
  openai: file-openai
  anthropic: file-ant
aws:
  region: eu-west-1
`)
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg.GeminiAPIKeys, []string{"g1", "g2"}) {
		t.Fatalf("gemini keys = %v", cfg.GeminiAPIKeys)
	}
	if cfg.OpenAIAPIKey != "file-openai" || cfg.AnthropicAPIKey != "file-ant" {
		t.Fatalf("expected file API keys to be used")
	}
	if cfg.AWSRegion != "eu-west-1" {
		t.Fatalf("region = %q", cfg.AWSRegion)
	}
	if cfg.SambaNovaBaseURL != DefaultSambaNovaBaseURL || cfg.BedrockModelID != DefaultBedrockModelID {
		t.Fatalf("expected endpoint defaults")
	}
	if cfg.ConfigDir != configDir {
		t.Fatalf("config dir = %q", cfg.ConfigDir)
	}
}

func TestConfigEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearProviderEnv(t)

	configDir := filepath.Join(home, ".fieldscore")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data := []byte("api_keys:\n  openai: file-openai\n")
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("GEMINI_API_KEYS", "k1, k2 ,,k3")
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("SAMBANOVA_API_KEY", "env-sn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg.GeminiAPIKeys, []string{"k1", "k2", "k3"}) {
		t.Fatalf("gemini keys = %v", cfg.GeminiAPIKeys)
	}
	if cfg.OpenAIAPIKey != "env-openai" {
		t.Fatalf("expected env to win, got %q", cfg.OpenAIAPIKey)
	}
	if !cfg.HasAdapter(AdapterSambaNova) || !cfg.HasAdapter(AdapterGoogle) {
		t.Fatalf("expected configured adapters")
	}
	if cfg.HasAdapter(AdapterAnthropic) || cfg.HasAdapter(AdapterBedrock) {
		t.Fatalf("expected unconfigured adapters")
	}
}

func TestConfigLoadsDotEnv(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearProviderEnv(t)

	configDir := filepath.Join(home, ".fieldscore")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, ".env"), []byte("ANTHROPIC_API_KEY=dotenv-ant\n"), 0600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// godotenv skips variables that exist, even when empty.
	os.Unsetenv("ANTHROPIC_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "dotenv-ant" {
		t.Fatalf("expected .env key, got %q", cfg.AnthropicAPIKey)
	}
}

func TestLoadWithRoutingFile(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearProviderEnv(t)

	path := filepath.Join(t.TempDir(), "routing.yaml")
	data := []byte(`retry:
  max_attempts: 5
fallback:
  allow_fallback: true
tasks:
  story:
    google: gemini-2.0-flash
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write routing: %v", err)
	}

	cfg, err := LoadWithRoutingFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r := cfg.RoutingConfig
	if r.Retry.MaxAttempts != 5 || r.Retry.BaseBackoffMs != 200 {
		t.Fatalf("retry = %+v", r.Retry)
	}
	if !r.Fallback.AllowFallback || r.Fallback.DelayMs != 3000 || r.Fallback.Adapter != AdapterSambaNova {
		t.Fatalf("fallback = %+v", r.Fallback)
	}
	if got := r.ModelFor(TaskStory, AdapterGoogle); got != "gemini-2.0-flash" {
		t.Fatalf("story model = %q", got)
	}
	if got := r.ModelFor(TaskStory, AdapterOpenAI); got != "gpt-4o" {
		t.Fatalf("default model = %q", got)
	}
	if len(r.Choices) == 0 {
		t.Fatalf("expected default choice rules")
	}

	if _, err := LoadWithRoutingFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing routing file")
	}
}

func TestDefaultRoutingModels(t *testing.T) {
	r := DefaultRoutingConfig()
	tests := []struct {
		task, adapter, want string
	}{
		{TaskEvidence, AdapterGoogle, "gemini-2.0-flash"},
		{TaskThematic, AdapterGoogle, "gemini-2.5-flash"},
		{TaskThematic, AdapterOpenAI, "gpt-4o-mini"},
		{TaskThematic, AdapterAnthropic, "claude-3-haiku-20240307"},
		{TaskStory, AdapterOpenAI, "gpt-4o"},
		{TaskStory, AdapterAnthropic, "claude-3-sonnet-20240229"},
		{TaskStory, AdapterBedrock, DefaultBedrockModelID},
	}
	for _, tt := range tests {
		if got := r.ModelFor(tt.task, tt.adapter); got != tt.want {
			t.Errorf("ModelFor(%s, %s) = %q, want %q", tt.task, tt.adapter, got, tt.want)
		}
	}
	if r.Story.MaxTokens != 8192 || r.Fallback.Model != "Llama-4-Maverick-17B-128E-Instruct" {
		t.Errorf("unexpected defaults: %+v %+v", r.Story, r.Fallback)
	}
}

func setHomeEnv(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("FIELDSCORE_CONFIG_DIR", "")
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"GEMINI_API_KEYS", "GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"SAMBANOVA_API_KEY", "SAMBANOVA_BASE_URL", "AWS_REGION", "AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY", "BEDROCK_MODEL_ID", "FIELDSCORE_ADDR", "LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
}
