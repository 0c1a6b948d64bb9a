package orchestrator

import (
	"context"
	"errors"

	"github.com/apex/log"

	"github.com/zen-systems/fieldscore/pkg/adapter"
	"github.com/zen-systems/fieldscore/pkg/config"
	"github.com/zen-systems/fieldscore/pkg/router"
	"github.com/zen-systems/fieldscore/pkg/tokenpool"
)

// GeminiPoolName labels the Gemini key pool in logs and metrics.
const GeminiPoolName = "gemini"

// NewFromConfig builds the adapters cfg has credentials for and wires them
// into an orchestrator. Providers without credentials are left out; a
// request routed to one of them gets a config failure envelope.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	routing := cfg.RoutingConfig
	if routing == nil {
		routing = config.DefaultRoutingConfig()
	}
	if cfg.BedrockModelID != "" && cfg.BedrockModelID != config.DefaultBedrockModelID {
		routing.Default[config.AdapterBedrock] = cfg.BedrockModelID
		if cfg.Aliases != nil {
			cfg.Aliases.Register(config.AdapterBedrock, cfg.BedrockModelID)
		}
	}

	adapters := make(map[string]adapter.Adapter)
	pool := tokenpool.New(GeminiPoolName, cfg.GeminiAPIKeys)

	if cfg.HasAdapter(config.AdapterGoogle) {
		if a, err := adapter.NewGoogleAdapter(pool); err != nil {
			warnAdapter(config.AdapterGoogle, err)
		} else {
			adapters[config.AdapterGoogle] = a
		}
	}
	if cfg.HasAdapter(config.AdapterOpenAI) {
		if a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey); err != nil {
			warnAdapter(config.AdapterOpenAI, err)
		} else {
			adapters[config.AdapterOpenAI] = a
		}
	}
	if cfg.HasAdapter(config.AdapterAnthropic) {
		if a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey); err != nil {
			warnAdapter(config.AdapterAnthropic, err)
		} else {
			adapters[config.AdapterAnthropic] = a
		}
	}
	if cfg.HasAdapter(config.AdapterBedrock) {
		a, err := adapter.NewBedrockAdapter(ctx, adapter.BedrockConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			warnAdapter(config.AdapterBedrock, err)
		} else {
			adapters[config.AdapterBedrock] = a
		}
	}

	base := []Option{WithGeminiPool(pool)}
	if cfg.HasAdapter(config.AdapterSambaNova) {
		if a, err := adapter.NewSambaNovaAdapter(cfg.SambaNovaAPIKey, cfg.SambaNovaBaseURL); err != nil {
			warnAdapter(config.AdapterSambaNova, err)
		} else {
			base = append(base, WithFallback(a))
		}
	}

	if cfg.Aliases != nil {
		for _, err := range cfg.Aliases.ValidateRoutingConfig(routing) {
			log.WithError(err).Warn("routing config references an unknown model")
		}
	}

	r := router.NewRouter(adapters, routing, router.WithAliases(cfg.Aliases))
	log.WithFields(log.Fields{
		"adapters":    r.Adapters(),
		"gemini_keys": pool.Len(),
	}).Debug("orchestrator configured")

	return New(r, append(base, opts...)...), nil
}

func warnAdapter(name string, err error) {
	log.WithField("adapter", name).WithError(err).Warn("adapter disabled")
}
