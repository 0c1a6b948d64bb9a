package router

import (
	"fmt"
	"sort"

	"github.com/apex/log"

	"github.com/zen-systems/fieldscore/pkg/adapter"
	"github.com/zen-systems/fieldscore/pkg/config"
)

// UnknownChoiceError is returned when no rule or model matches a choice.
type UnknownChoiceError struct {
	Choice string
}

func (e *UnknownChoiceError) Error() string {
	return fmt.Sprintf("Unknown model choice: %s", e.Choice)
}

// Route is the outcome of resolving a model choice for a task.
type Route struct {
	Task    string `json:"task"`
	Choice  string `json:"choice"`
	Adapter string `json:"adapter"`
	// Model is the canonical model name after alias resolution.
	Model   string `json:"model"`
	Trigger string `json:"trigger,omitempty"`
}

// RouteInfo describes one configured choice rule.
type RouteInfo struct {
	Triggers []string
	Adapter  string
	// Models maps task to resolved model.
	Models map[string]string
}

// Router maps caller model choices onto configured adapters.
type Router struct {
	adapters map[string]adapter.Adapter
	aliases  *config.ModelAliases
	rules    *RuleSet
	config   *config.RoutingConfig
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithAliases sets the model aliases for the router.
func WithAliases(aliases *config.ModelAliases) RouterOption {
	return func(r *Router) {
		r.aliases = aliases
	}
}

// NewRouter creates a new router with the given adapters and routing config.
func NewRouter(adapters map[string]adapter.Adapter, cfg *config.RoutingConfig, opts ...RouterOption) *Router {
	if cfg == nil {
		cfg = config.DefaultRoutingConfig()
	}
	if adapters == nil {
		adapters = make(map[string]adapter.Adapter)
	}
	r := &Router{
		adapters: adapters,
		rules:    NewRuleSet(cfg),
		config:   cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve determines the adapter and model for a task and model choice.
// Choice rules are tried first; a choice that names a model or alias known
// to the alias table is routed to that model's provider.
func (r *Router) Resolve(task, choice string) (Route, error) {
	route := Route{Task: task, Choice: choice}

	if name, trigger, ok := r.rules.Match(choice); ok {
		route.Adapter = name
		route.Trigger = trigger
		route.Model = r.resolveModel(r.config.ModelFor(task, name))
	} else if provider, model, ok := r.aliases.Lookup(choice); ok {
		route.Adapter = provider
		route.Model = model
	} else {
		return route, &UnknownChoiceError{Choice: choice}
	}

	if route.Model == "" {
		return route, adapter.ConfigError(route.Adapter, "no model configured for task %q", task)
	}

	log.WithFields(log.Fields{
		"task":    task,
		"choice":  choice,
		"adapter": route.Adapter,
		"model":   route.Model,
	}).Debug("routed model choice")
	return route, nil
}

// Select resolves the choice and returns the adapter that serves it.
func (r *Router) Select(task, choice string) (adapter.Adapter, Route, error) {
	route, err := r.Resolve(task, choice)
	if err != nil {
		return nil, route, err
	}
	a, ok := r.adapters[route.Adapter]
	if !ok || a == nil {
		return nil, route, adapter.ConfigError(route.Adapter, "%s credentials are not configured", route.Adapter)
	}
	return a, route, nil
}

// ModelFor returns the canonical model configured for adapter on task.
func (r *Router) ModelFor(task, adapterName string) string {
	return r.resolveModel(r.config.ModelFor(task, adapterName))
}

// resolveModel resolves a model alias to its canonical name.
func (r *Router) resolveModel(model string) string {
	if r.aliases != nil {
		return r.aliases.Resolve(model)
	}
	return model
}

// GetAdapter returns an adapter by name.
func (r *Router) GetAdapter(name string) (adapter.Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Adapters returns the names of the registered adapters, sorted.
func (r *Router) Adapters() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetRoutes returns all configured choice rules with the model each task
// would use.
func (r *Router) GetRoutes() []RouteInfo {
	tasks := []string{config.TaskEvidence, config.TaskThematic, config.TaskStory}
	routes := make([]RouteInfo, 0, len(r.config.Choices))
	for _, choice := range r.config.Choices {
		models := make(map[string]string, len(tasks))
		for _, task := range tasks {
			models[task] = r.resolveModel(r.config.ModelFor(task, choice.Adapter))
		}
		routes = append(routes, RouteInfo{
			Triggers: choice.Triggers,
			Adapter:  choice.Adapter,
			Models:   models,
		})
	}
	return routes
}

// GetAliases returns the model aliases, if configured.
func (r *Router) GetAliases() *config.ModelAliases {
	return r.aliases
}

// Config returns the routing configuration in use.
func (r *Router) Config() *config.RoutingConfig {
	return r.config
}
