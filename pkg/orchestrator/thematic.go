package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/zen-systems/fieldscore/pkg/adapter"
	"github.com/zen-systems/fieldscore/pkg/config"
	"github.com/zen-systems/fieldscore/pkg/envelope"
	"github.com/zen-systems/fieldscore/pkg/normalize"
	"github.com/zen-systems/fieldscore/pkg/prompt"
)

// UnknownTheme is assigned to classifications the model returned malformed.
const UnknownTheme = "Unknown"

// ThematicRequest classifies a batch of challenge statements.
type ThematicRequest struct {
	// Challenges holds statements separated by newlines or '|'.
	Challenges  string `json:"challenges"`
	ModelChoice string `json:"model_choice"`
}

var thematicSchema = &adapter.Schema{
	Type: adapter.TypeObject,
	Properties: map[string]*adapter.Schema{
		"classified_data": {
			Type: adapter.TypeArray,
			Items: &adapter.Schema{
				Type: adapter.TypeObject,
				Properties: map[string]*adapter.Schema{
					"theme_id":   {Type: adapter.TypeInteger},
					"theme_name": {Type: adapter.TypeString},
					"pii_flag":   {Type: adapter.TypeBoolean},
				},
				Required: []string{"theme_id", "theme_name", "pii_flag"},
			},
		},
	},
	Required: []string{"classified_data"},
}

// SplitChallenges splits on newlines and '|' and drops blank statements.
func SplitChallenges(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == '|'
	})
	return nonBlank(fields)
}

// Thematic classifies every statement in one provider call.
func (o *Orchestrator) Thematic(ctx context.Context, req ThematicRequest) *envelope.Envelope {
	started := time.Now()
	id := o.newID()
	return o.finish(config.TaskThematic, id, started, o.thematic(ctx, req, id))
}

func (o *Orchestrator) thematic(ctx context.Context, req ThematicRequest, id string) *envelope.Envelope {
	challenges := SplitChallenges(req.Challenges)
	if len(challenges) == 0 {
		return failure(inputErrorf("No valid challenge statements provided."), "")
	}

	a, route, err := o.router.Select(config.TaskThematic, req.ModelChoice)
	if err != nil {
		return failure(err, "")
	}

	rubric, err := prompt.ThematicRubric().Render(nil)
	if err != nil {
		return failure(err, "")
	}
	list, err := prompt.ThematicChallenges().Render(map[string]string{
		"challenges": prompt.BulletList(challenges),
	})
	if err != nil {
		return failure(err, "")
	}

	call := &adapter.Request{Model: route.Model, JSONMode: true}
	switch route.Adapter {
	case config.AdapterOpenAI:
		call.System = rubric
		call.Parts = []adapter.Part{adapter.TextPart(list)}
	case config.AdapterGoogle:
		call.Schema = thematicSchema
		call.Parts = []adapter.Part{adapter.TextPart(rubric + "\n\n" + list)}
	default:
		call.Parts = []adapter.Part{adapter.TextPart(rubric + "\n\n" + list)}
	}

	log.WithFields(log.Fields{
		"request_id": id,
		"adapter":    route.Adapter,
		"model":      route.Model,
		"challenges": len(challenges),
	}).Debug("classifying challenges")

	resp, _, err := o.callWithPolicy(ctx, a, call, o.policy(config.TaskThematic, route.Adapter))
	if err != nil {
		return failure(err, "")
	}

	obj, err := normalize.Extract(resp.Text)
	if err != nil {
		return failure(err, resp.Text)
	}
	items, ok := obj["classified_data"].([]any)
	if !ok {
		return failure(&normalize.TypeError{Field: "classified_data", Value: obj["classified_data"], Want: "list"}, resp.Text)
	}

	result := &ThematicResult{Source: route.Model}
	result.Classified = classify(challenges, items)
	result.Summary = summarize(result.Classified)
	return result.envelope()
}

// classify pairs model entries with their statements. Entries beyond the
// statement count are dropped and malformed entries become Unknown.
func classify(challenges []string, items []any) []Classification {
	if len(items) > len(challenges) {
		items = items[:len(challenges)]
	}
	out := make([]Classification, 0, len(items))
	for i, it := range items {
		c := coerceClassification(it)
		c.Challenge = challenges[i]
		out = append(out, c)
	}
	return out
}

func coerceClassification(v any) Classification {
	unknown := Classification{ThemeID: 0, ThemeName: UnknownTheme}
	entry, ok := v.(map[string]any)
	if !ok {
		return unknown
	}
	idValue, err := normalize.ToFloat(entry["theme_id"])
	if err != nil || idValue != float64(int(idValue)) {
		return unknown
	}
	name, ok := entry["theme_name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return unknown
	}
	pii, ok := entry["pii_flag"].(bool)
	if !ok {
		return unknown
	}
	return Classification{ThemeID: int(idValue), ThemeName: strings.TrimSpace(name), PIIFlag: pii}
}

func summarize(classified []Classification) ThematicSummary {
	s := ThematicSummary{Total: len(classified), ThemeCounts: make(map[string]int)}
	for _, c := range classified {
		if c.PIIFlag {
			s.PIICount++
		}
		s.ThemeCounts[c.ThemeName]++
	}
	return s
}
