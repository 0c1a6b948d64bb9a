package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelAliases maps short names and UI model choices onto canonical model
// IDs, and lists the canonical models each provider serves. Alias lookup is
// case-insensitive so "Claude-4.5-Sonnet" and "claude-4.5-sonnet" agree.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// UnknownModelError reports a routing entry whose model no provider lists.
type UnknownModelError struct {
	// Scope is "default" or the task name.
	Scope   string
	Adapter string
	Model   string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("%s: model %q is not served by %s", e.Scope, e.Model, e.Adapter)
}

// LoadAliasesFrom returns DefaultAliases overlaid with the models.yaml at
// path. A missing file yields the defaults unchanged.
func LoadAliasesFrom(path string) (*ModelAliases, error) {
	aliases := DefaultAliases()
	if path == "" {
		return aliases, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return aliases, nil
	}
	if err != nil {
		return nil, err
	}

	var overlay ModelAliases
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for name, model := range overlay.Aliases {
		aliases.Aliases[aliasKey(name)] = model
	}
	for provider, models := range overlay.Providers {
		for _, model := range models {
			aliases.Register(provider, model)
		}
	}
	return aliases, nil
}

func aliasKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve returns the canonical model for an alias, or name itself.
func (a *ModelAliases) Resolve(name string) string {
	if a != nil {
		if model, ok := a.Aliases[aliasKey(name)]; ok {
			return model
		}
	}
	return strings.TrimSpace(name)
}

// Lookup resolves name and reports the provider serving the result.
func (a *ModelAliases) Lookup(name string) (provider, model string, ok bool) {
	model = a.Resolve(name)
	provider = a.GetProviderForModel(model)
	return provider, model, provider != ""
}

// Register adds model to provider's list if it is not there yet.
func (a *ModelAliases) Register(provider, model string) {
	if a.Providers == nil {
		a.Providers = make(map[string][]string)
	}
	if a.serves(provider, model) {
		return
	}
	a.Providers[provider] = append(a.Providers[provider], model)
}

func (a *ModelAliases) serves(provider, model string) bool {
	for _, m := range a.Providers[provider] {
		if m == model {
			return true
		}
	}
	return false
}

// ListAliases returns a copy of the alias table.
func (a *ModelAliases) ListAliases() map[string]string {
	out := make(map[string]string)
	if a == nil {
		return out
	}
	for k, v := range a.Aliases {
		out[k] = v
	}
	return out
}

// ListProviders returns provider names, sorted.
func (a *ModelAliases) ListProviders() []string {
	if a == nil {
		return nil
	}
	providers := make([]string, 0, len(a.Providers))
	for p := range a.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// GetProviderModels returns the canonical models for provider.
func (a *ModelAliases) GetProviderModels(provider string) []string {
	if a == nil {
		return nil
	}
	return a.Providers[provider]
}

// GetProviderForModel returns the first provider, by name, that serves model.
func (a *ModelAliases) GetProviderForModel(model string) string {
	for _, provider := range a.ListProviders() {
		if a.serves(provider, model) {
			return provider
		}
	}
	return ""
}

// ValidateRoutingConfig reports every per-task and default model that its
// adapter does not serve. Adapters without a provider entry are reported too.
func (a *ModelAliases) ValidateRoutingConfig(cfg *RoutingConfig) []error {
	if a == nil || cfg == nil {
		return nil
	}

	var errs []error
	check := func(scope string, models map[string]string) {
		for _, adapter := range sortedKeys(models) {
			model := a.Resolve(models[adapter])
			if !a.serves(adapter, model) {
				errs = append(errs, &UnknownModelError{Scope: scope, Adapter: adapter, Model: model})
			}
		}
	}

	tasks := make([]string, 0, len(cfg.Tasks))
	for task := range cfg.Tasks {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)
	for _, task := range tasks {
		check(task, cfg.Tasks[task])
	}
	check("default", cfg.Default)
	return errs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultAliases covers the short names and the UI model choices.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			"flash":     "gemini-2.5-flash",
			"flash-2.0": "gemini-2.0-flash",

			"4o":              "gpt-4o",
			"4o-mini":         "gpt-4o-mini",
			"chatgpt-4o":      "gpt-4o",
			"chatgpt-4o-mini": "gpt-4o-mini",

			"sonnet":          "claude-3-sonnet-20240229",
			"haiku":           "claude-3-haiku-20240307",
			"claude-3-sonnet": "claude-3-sonnet-20240229",

			"sonnet-4.5":        DefaultBedrockModelID,
			"claude-4.5-sonnet": DefaultBedrockModelID,

			"maverick": "Llama-4-Maverick-17B-128E-Instruct",
		},
		Providers: map[string][]string{
			AdapterGoogle:    {"gemini-2.5-flash", "gemini-2.0-flash"},
			AdapterOpenAI:    {"gpt-4o", "gpt-4o-mini"},
			AdapterAnthropic: {"claude-3-sonnet-20240229", "claude-3-haiku-20240307"},
			AdapterBedrock:   {DefaultBedrockModelID},
			AdapterSambaNova: {"Llama-4-Maverick-17B-128E-Instruct"},
		},
	}
}
