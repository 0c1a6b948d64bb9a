// Package orchestrator runs the evidence, thematic and story analyses. Each
// operation validates its input, assembles a prompt, routes it to a provider,
// normalizes the reply and returns an envelope. Errors never escape as Go
// errors; they are folded into failure envelopes.
package orchestrator

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/zen-systems/fieldscore/pkg/adapter"
	"github.com/zen-systems/fieldscore/pkg/config"
	"github.com/zen-systems/fieldscore/pkg/document"
	"github.com/zen-systems/fieldscore/pkg/envelope"
	"github.com/zen-systems/fieldscore/pkg/fetch"
	"github.com/zen-systems/fieldscore/pkg/metrics"
	"github.com/zen-systems/fieldscore/pkg/router"
	"github.com/zen-systems/fieldscore/pkg/tokenpool"
)

// Orchestrator owns the router, the Gemini key pool and the collaborators
// that fetch images and documents.
type Orchestrator struct {
	router    *router.Router
	routing   *config.RoutingConfig
	pool      *tokenpool.Pool
	fallback  adapter.Adapter
	fetcher   fetch.Fetcher
	documents document.Extractor

	sleep func(context.Context, time.Duration) error
	newID func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGeminiPool sets the key pool rotated on Gemini quota errors. It must be
// the pool the Gemini adapter reads its key from.
func WithGeminiPool(p *tokenpool.Pool) Option {
	return func(o *Orchestrator) {
		o.pool = p
	}
}

// WithFallback sets the evidence fallback adapter.
func WithFallback(a adapter.Adapter) Option {
	return func(o *Orchestrator) {
		o.fallback = a
	}
}

// WithFetcher sets the image fetcher.
func WithFetcher(f fetch.Fetcher) Option {
	return func(o *Orchestrator) {
		o.fetcher = f
	}
}

// WithExtractor sets the story document extractor.
func WithExtractor(e document.Extractor) Option {
	return func(o *Orchestrator) {
		o.documents = e
	}
}

// WithSleep replaces the context-aware sleep used between retries.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		o.sleep = fn
	}
}

// New creates an orchestrator over r. Without WithFetcher or WithExtractor
// the HTTP implementations are used.
func New(r *router.Router, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		router:    r,
		routing:   r.Config(),
		fetcher:   fetch.NewHTTPFetcher(),
		documents: document.NewPDFExtractor(nil),
		sleep:     sleepWithContext,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Router returns the router used to pick providers.
func (o *Orchestrator) Router() *router.Router {
	return o.router
}

func (o *Orchestrator) policy(task string, adapterName string) callPolicy {
	p := callPolicy{task: task, retry: o.routing.Retry}
	if adapterName == config.AdapterGoogle {
		p.pool = o.pool
	}
	return p
}

// finish tags env with the request id, records metrics and logs the outcome.
func (o *Orchestrator) finish(task, requestID string, started time.Time, env *envelope.Envelope) *envelope.Envelope {
	env.WithRequestID(requestID)
	metrics.ObserveEnvelope(task, string(env.Code), started)

	ctx := log.WithFields(log.Fields{
		"task":       task,
		"request_id": requestID,
		"duration":   time.Since(started).String(),
	})
	if env.OK() {
		ctx.WithField("source", env.Source).Info("analysis complete")
	} else {
		ctx.WithField("code", env.Code).WithField("error", env.Error).Warn("analysis failed")
	}
	return env
}
