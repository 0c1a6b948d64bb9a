package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultSambaNovaBaseURL is the OpenAI-compatible endpoint used by the
	// evidence fallback.
	DefaultSambaNovaBaseURL = "https://api.sambanova.ai/v1"
	// DefaultBedrockModelID is the managed model invoked through Bedrock.
	DefaultBedrockModelID = "global.anthropic.claude-sonnet-4-5-20250929-v1:0"
	// DefaultListenAddr is where `fieldscore serve` listens.
	DefaultListenAddr = ":8080"
)

// Config holds the application configuration.
type Config struct {
	GeminiAPIKeys    []string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	SambaNovaAPIKey  string
	SambaNovaBaseURL string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	BedrockModelID     string

	ListenAddr string
	LogLevel   string

	RoutingConfig *RoutingConfig
	Aliases       *ModelAliases
	ConfigDir     string
}

// FileConfig represents the structure of ~/.fieldscore/config.yaml
type FileConfig struct {
	APIKeys  APIKeysConfig `yaml:"api_keys"`
	AWS      AWSConfig     `yaml:"aws"`
	Server   ServerConfig  `yaml:"server"`
	LogLevel string        `yaml:"log_level"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Gemini    []string `yaml:"gemini"`
	OpenAI    string   `yaml:"openai"`
	Anthropic string   `yaml:"anthropic"`
	SambaNova string   `yaml:"sambanova"`
}

// AWSConfig holds Bedrock settings from file.
type AWSConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	BedrockModelID  string `yaml:"bedrock_model_id"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	SambaNovaBaseURL string `yaml:"sambanova_base_url"`
}

// Load reads configuration from config files and environment variables.
// Environment variables take precedence over file configuration. A .env file
// in the working directory or the config directory is loaded first; it never
// overrides variables already set in the process environment.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return load(configDir, filepath.Join(configDir, "routing.yaml"), false)
}

// LoadWithRoutingFile loads config with a specific routing file.
func LoadWithRoutingFile(routingPath string) (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return load(configDir, routingPath, true)
}

func load(configDir, routingPath string, routingRequired bool) (*Config, error) {
	loadDotEnv(configDir)
	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		GeminiAPIKeys:      geminiKeys(fileConfig.APIKeys.Gemini),
		OpenAIAPIKey:       getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		AnthropicAPIKey:    getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		SambaNovaAPIKey:    getEnvOrDefault("SAMBANOVA_API_KEY", fileConfig.APIKeys.SambaNova),
		SambaNovaBaseURL:   getEnvOrDefault("SAMBANOVA_BASE_URL", fileConfig.Server.SambaNovaBaseURL),
		AWSRegion:          getEnvOrDefault("AWS_REGION", fileConfig.AWS.Region),
		AWSAccessKeyID:     getEnvOrDefault("AWS_ACCESS_KEY_ID", fileConfig.AWS.AccessKeyID),
		AWSSecretAccessKey: getEnvOrDefault("AWS_SECRET_ACCESS_KEY", fileConfig.AWS.SecretAccessKey),
		BedrockModelID:     getEnvOrDefault("BEDROCK_MODEL_ID", fileConfig.AWS.BedrockModelID),
		ListenAddr:         getEnvOrDefault("FIELDSCORE_ADDR", fileConfig.Server.Addr),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", fileConfig.LogLevel),
		ConfigDir:          configDir,
	}
	if cfg.SambaNovaBaseURL == "" {
		cfg.SambaNovaBaseURL = DefaultSambaNovaBaseURL
	}
	if cfg.BedrockModelID == "" {
		cfg.BedrockModelID = DefaultBedrockModelID
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if _, err := os.Stat(routingPath); err == nil || routingRequired {
		routing, err := LoadRoutingConfig(routingPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load routing config from %s: %w", routingPath, err)
		}
		cfg.RoutingConfig = routing
	} else {
		cfg.RoutingConfig = DefaultRoutingConfig()
	}

	aliases, err := LoadAliasesFrom(filepath.Join(configDir, "models.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load model aliases: %w", err)
	}
	cfg.Aliases = aliases

	return cfg, nil
}

// HasAdapter returns true if the credentials for the given adapter are configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case AdapterGoogle:
		return len(c.GeminiAPIKeys) > 0
	case AdapterOpenAI:
		return c.OpenAIAPIKey != ""
	case AdapterAnthropic:
		return c.AnthropicAPIKey != ""
	case AdapterSambaNova:
		return c.SambaNovaAPIKey != ""
	case AdapterBedrock:
		// The default AWS credential chain may still supply keys.
		return c.AWSRegion != ""
	default:
		return false
	}
}

// geminiKeys reads the Gemini pool from GEMINI_API_KEYS (comma separated),
// then GEMINI_API_KEY, then the file.
func geminiKeys(fromFile []string) []string {
	if v := os.Getenv("GEMINI_API_KEYS"); v != "" {
		return splitKeys(v)
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		return splitKeys(v)
	}
	var keys []string
	for _, k := range fromFile {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func splitKeys(csv string) []string {
	var keys []string
	for _, k := range strings.Split(csv, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func loadDotEnv(configDir string) {
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	if dir := os.Getenv("FIELDSCORE_CONFIG_DIR"); dir != "" {
		return dir, os.MkdirAll(dir, 0755)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".fieldscore")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
