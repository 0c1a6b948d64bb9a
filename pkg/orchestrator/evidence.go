package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/zen-systems/fieldscore/pkg/adapter"
	"github.com/zen-systems/fieldscore/pkg/config"
	"github.com/zen-systems/fieldscore/pkg/envelope"
	"github.com/zen-systems/fieldscore/pkg/fetch"
	"github.com/zen-systems/fieldscore/pkg/metrics"
	"github.com/zen-systems/fieldscore/pkg/normalize"
	"github.com/zen-systems/fieldscore/pkg/prompt"
)

// EvidenceRequest asks yes/no questions about one evidence image.
type EvidenceRequest struct {
	ImageURL  string   `json:"image_url"`
	Questions []string `json:"questions"`
	// Instructions replaces the default validator preamble when set.
	Instructions string `json:"instructions,omitempty"`
	// UseFallback enables the line-protocol fallback for this request even
	// when the routing config leaves it off.
	UseFallback bool `json:"use_fallback,omitempty"`
}

var evidenceSchema = &adapter.Schema{
	Type: adapter.TypeObject,
	Properties: map[string]*adapter.Schema{
		"answers": {
			Type:  adapter.TypeArray,
			Items: &adapter.Schema{Type: adapter.TypeString, Enum: []string{"yes", "no"}},
		},
		"reasonings": {
			Type:  adapter.TypeArray,
			Items: &adapter.Schema{Type: adapter.TypeString},
		},
	},
	Required: []string{"answers", "reasonings"},
}

// Evidence checks an image against the questions. The Gemini route is tried
// first with key rotation; when it fails and fallback is enabled, the
// fallback provider is asked for the ANSWERS/REASONINGS line protocol.
func (o *Orchestrator) Evidence(ctx context.Context, req EvidenceRequest) *envelope.Envelope {
	started := time.Now()
	id := o.newID()
	return o.finish(config.TaskEvidence, id, started, o.evidence(ctx, req, id))
}

func (o *Orchestrator) evidence(ctx context.Context, req EvidenceRequest, id string) *envelope.Envelope {
	questions := nonBlank(req.Questions)
	if len(questions) == 0 {
		return failure(inputErrorf("At least one question is required."), "")
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		return failure(inputErrorf("Image URL is required."), "")
	}
	if o.fetcher == nil {
		return failure(adapter.ConfigError("fetch", "no image fetcher configured"), "")
	}

	img, err := o.fetcher.FetchBytes(ctx, req.ImageURL)
	if err != nil {
		return failure(inputErrorf("Unable to fetch evidence image: %v", err), "")
	}

	instructions := strings.TrimSpace(req.Instructions)
	if instructions == "" {
		instructions = prompt.DefaultEvidenceInstructions
	}
	vars := map[string]string{
		"instructions": instructions,
		"questions":    prompt.NumberQuestions(questions),
	}

	var primaryErr error
	var primaryRaw string
	if primary, ok := o.router.GetAdapter(config.AdapterGoogle); ok {
		result, raw, err := o.evidencePrimary(ctx, primary, img, vars, len(questions))
		if err == nil {
			return result.envelope()
		}
		primaryErr, primaryRaw = err, raw
	} else {
		primaryErr = adapter.ConfigError(config.AdapterGoogle, "Gemini API key is not configured.")
	}

	if !req.UseFallback && !o.routing.Fallback.AllowFallback {
		return failure(primaryErr, primaryRaw)
	}
	if o.fallback == nil {
		log.WithField("request_id", id).Warn("evidence fallback requested but no fallback provider is configured")
		return failure(primaryErr, primaryRaw)
	}

	log.WithFields(log.Fields{
		"request_id": id,
		"fallback":   o.fallback.Name(),
		"error":      primaryErr.Error(),
	}).Warn("primary evidence provider failed, using fallback")

	result, raw, err := o.evidenceFallback(ctx, img, vars, len(questions))
	if err != nil {
		metrics.FallbacksTotal.WithLabelValues(config.TaskEvidence, "error").Inc()
		return failure(fmt.Errorf("Unable to process image after retries: %w", err), raw)
	}
	metrics.FallbacksTotal.WithLabelValues(config.TaskEvidence, "ok").Inc()
	return result.envelope()
}

func (o *Orchestrator) evidencePrimary(ctx context.Context, a adapter.Adapter, img *fetch.Image, vars map[string]string, questions int) (*EvidenceResult, string, error) {
	text, err := prompt.Evidence().Render(withVar(vars, "format", prompt.EvidenceJSONFormat))
	if err != nil {
		return nil, "", err
	}
	req := &adapter.Request{
		Model:    o.router.ModelFor(config.TaskEvidence, config.AdapterGoogle),
		Parts:    []adapter.Part{adapter.ImagePart(img.Data, img.MIMEType), adapter.TextPart(text)},
		Schema:   evidenceSchema,
		JSONMode: true,
	}

	resp, _, err := o.callWithPolicy(ctx, a, req, o.policy(config.TaskEvidence, config.AdapterGoogle))
	if err != nil {
		return nil, "", err
	}

	obj, err := normalize.Extract(resp.Text)
	if err != nil {
		return nil, resp.Text, err
	}
	answers, err := stringList(obj, "answers")
	if err != nil {
		return nil, resp.Text, err
	}
	if len(answers) == 0 {
		return nil, resp.Text, &normalize.MissingFieldsError{Fields: []string{"answers"}}
	}
	if odd := unexpectedAnswers(answers); len(odd) > 0 {
		log.WithFields(log.Fields{
			"model":   req.Model,
			"answers": strings.Join(odd, ","),
		}).Debug("answers outside yes/no count as no")
	}
	var reasonings []string
	if _, ok := obj["reasonings"]; ok {
		if reasonings, err = stringList(obj, "reasonings"); err != nil {
			return nil, resp.Text, err
		}
	}

	return newEvidenceResult("gemini", answers, reasonings, questions), resp.Text, nil
}

// evidenceFallback asks the fallback provider for the line protocol, with a
// fixed delay between attempts.
func (o *Orchestrator) evidenceFallback(ctx context.Context, img *fetch.Image, vars map[string]string, questions int) (*EvidenceResult, string, error) {
	text, err := prompt.Evidence().Render(withVar(vars, "format", prompt.EvidenceLinesFormat))
	if err != nil {
		return nil, "", err
	}
	req := &adapter.Request{
		Model:       o.routing.Fallback.Model,
		Parts:       []adapter.Part{adapter.TextPart(text), adapter.ImagePart(img.Data, img.MIMEType)},
		Temperature: 0.1,
	}

	cfg := o.routing.Fallback
	delay := time.Duration(cfg.DelayMs) * time.Millisecond
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	var lastRaw string
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, delay); err != nil {
				return nil, lastRaw, err
			}
		}

		started := time.Now()
		resp, err := o.fallback.Invoke(ctx, req)
		if err != nil {
			metrics.ObserveCall(o.fallback.Name(), config.TaskEvidence, adapter.KindOf(err).String(), started)
			lastErr = err
			log.WithFields(log.Fields{
				"adapter": o.fallback.Name(),
				"attempt": attempt + 1,
				"kind":    adapter.KindOf(err).String(),
			}).WithError(err).Warn("fallback call failed")
			if kind := adapter.KindOf(err); kind == adapter.KindAuth || kind == adapter.KindConfig {
				break
			}
			continue
		}
		metrics.ObserveCall(o.fallback.Name(), config.TaskEvidence, "ok", started)

		lastRaw = resp.Text
		parsed, err := normalize.ParseLines(resp.Text)
		if err != nil {
			lastErr = err
			log.WithFields(log.Fields{
				"adapter": o.fallback.Name(),
				"attempt": attempt + 1,
			}).WithError(err).Warn("fallback reply has no answers")
			continue
		}
		return newEvidenceResult(o.fallback.Name(), parsed.Answers, parsed.Reasonings, questions), resp.Text, nil
	}
	return nil, lastRaw, lastErr
}

// newEvidenceResult trims answers and reasonings to the question count.
func newEvidenceResult(source string, answers, reasonings []string, questions int) *EvidenceResult {
	if len(answers) > questions {
		answers = answers[:questions]
	}
	if len(reasonings) > questions {
		reasonings = reasonings[:questions]
	}
	return &EvidenceResult{
		Source:     source,
		Answers:    answers,
		Reasonings: reasonings,
		Relevance:  RelevanceTag(answers),
	}
}

// unexpectedAnswers returns the answers that are neither yes nor no.
func unexpectedAnswers(answers []string) []string {
	var out []string
	for _, a := range answers {
		a = strings.TrimSpace(a)
		if !strings.EqualFold(a, "yes") && !strings.EqualFold(a, "no") {
			out = append(out, a)
		}
	}
	return out
}

func stringList(obj map[string]any, key string) ([]string, error) {
	items, ok := obj[key].([]any)
	if !ok {
		return nil, &normalize.TypeError{Field: key, Value: obj[key], Want: "list"}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			s = fmt.Sprint(it)
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}

func nonBlank(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func withVar(vars map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	out[key] = value
	return out
}
