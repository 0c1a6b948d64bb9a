package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/zen-systems/fieldscore/pkg/adapter"
	"github.com/zen-systems/fieldscore/pkg/config"
	"github.com/zen-systems/fieldscore/pkg/envelope"
	"github.com/zen-systems/fieldscore/pkg/metrics"
	"github.com/zen-systems/fieldscore/pkg/normalize"
	"github.com/zen-systems/fieldscore/pkg/prompt"
)

// Story result field names.
const (
	fieldLanguage            = "document_language"
	fieldImpactScore         = "impact_and_outcome_score"
	fieldImpactJustification = "impact_justification"
	fieldIssueScore          = "issue_and_challenge_score"
	fieldIssueJustification  = "issue_justification"
	fieldActionScore         = "action_steps_score"
	fieldActionJustification = "action_justification"
	fieldComposite           = "composite_score"
	fieldTier                = "tier"
	fieldSummary             = "overall_summary"
)

const (
	supplementalHeader = "--- SUPPLEMENTAL TEXT CONTENT PROVIDED BY USER (Use this for context): ---"
	fallbackHeader     = "--- FALLBACK TEXT CONTENT PROVIDED BY USER:"
)

// StoryRequest rates a story of change from a PDF, optional supplemental
// text and an optional evidence image.
type StoryRequest struct {
	Title            string `json:"title"`
	DocumentURL      string `json:"document_url"`
	SupplementalText string `json:"supplemental_text,omitempty"`
	ImageURL         string `json:"image_url,omitempty"`
	ModelChoice      string `json:"model_choice"`
}

var storySchema = &normalize.Schema{
	Name: "story",
	Fields: []normalize.Field{
		{Name: fieldLanguage, Kind: normalize.KindText},
		{Name: fieldImpactScore, Kind: normalize.KindScore},
		{Name: fieldImpactJustification, Kind: normalize.KindText},
		{Name: fieldIssueScore, Kind: normalize.KindScore},
		{Name: fieldIssueJustification, Kind: normalize.KindText},
		{Name: fieldActionScore, Kind: normalize.KindScore},
		{Name: fieldActionJustification, Kind: normalize.KindText},
		{Name: fieldComposite, Kind: normalize.KindScore},
		{Name: fieldTier, Kind: normalize.KindEnum, Allowed: Tiers},
		{Name: fieldSummary, Kind: normalize.KindText},
	},
}

var storyAutoFill = normalize.AutoFill{
	Weights: map[string]float64{
		fieldImpactScore: ImpactWeight,
		fieldIssueScore:  IssueWeight,
		fieldActionScore: ActionWeight,
	},
	Composite:      fieldComposite,
	Justifications: []string{fieldImpactJustification, fieldIssueJustification, fieldActionJustification},
}

var storyResponseSchema = func() *adapter.Schema {
	props := make(map[string]*adapter.Schema, len(storySchema.Fields))
	for _, f := range storySchema.Fields {
		switch f.Kind {
		case normalize.KindScore:
			props[f.Name] = &adapter.Schema{Type: adapter.TypeNumber}
		case normalize.KindEnum:
			props[f.Name] = &adapter.Schema{Type: adapter.TypeString, Enum: f.Allowed}
		default:
			props[f.Name] = &adapter.Schema{Type: adapter.TypeString}
		}
	}
	return &adapter.Schema{Type: adapter.TypeObject, Properties: props, Required: storySchema.RequiredFields()}
}()

// Story rates a story against the impact, issue and action rubric. The
// composite score and tier are always recomputed from the three scores.
func (o *Orchestrator) Story(ctx context.Context, req StoryRequest) *envelope.Envelope {
	started := time.Now()
	id := o.newID()
	return o.finish(config.TaskStory, id, started, o.story(ctx, req, id))
}

func (o *Orchestrator) story(ctx context.Context, req StoryRequest, id string) *envelope.Envelope {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return failure(inputErrorf("Title is mandatory for story analysis."), "")
	}

	a, route, err := o.router.Select(config.TaskStory, req.ModelChoice)
	if err != nil {
		return failure(err, "")
	}

	content, degraded, err := o.storyContent(ctx, req)
	if err != nil {
		return failure(err, "")
	}

	imageContext := prompt.ImageContextMissing
	var parts []adapter.Part
	if url := strings.TrimSpace(req.ImageURL); url != "" && o.fetcher != nil {
		img, err := o.fetcher.FetchBytes(ctx, url)
		if err != nil {
			log.WithField("request_id", id).WithError(err).Warn("story image unavailable, rating text only")
		} else {
			imageContext = prompt.ImageContextAttached
			parts = append(parts, adapter.ImagePart(img.Data, img.MIMEType))
		}
	}

	text, err := prompt.Story().Render(map[string]string{
		"title":         title,
		"image_context": imageContext,
		"content":       content,
	})
	if err != nil {
		return failure(err, "")
	}
	parts = append(parts, adapter.TextPart(text))

	call := &adapter.Request{
		Model:    route.Model,
		Parts:    parts,
		JSONMode: true,
	}
	if route.Adapter == config.AdapterGoogle {
		call.Schema = storyResponseSchema
		call.MaxTokens = o.routing.Story.MaxTokens
	}

	resp, _, err := o.callWithPolicy(ctx, a, call, o.policy(config.TaskStory, route.Adapter))
	if err != nil {
		return failure(err, "")
	}

	result, err := parseStory(resp.Text)
	if err != nil {
		return failure(err, resp.Text)
	}
	result.Source = route.Model
	result.DegradedInput = degraded

	for _, field := range result.AutoFilledFields {
		metrics.AutoFilledFieldsTotal.WithLabelValues(field).Inc()
	}
	if len(result.AutoFilledFields) > 0 {
		log.WithFields(log.Fields{
			"request_id": id,
			"fields":     strings.Join(result.AutoFilledFields, ","),
		}).Info("auto-filled missing story fields")
	}
	return result.envelope()
}

// storyContent builds the text the model rates. Extraction failure with
// supplemental text degrades to the supplemental text alone.
func (o *Orchestrator) storyContent(ctx context.Context, req StoryRequest) (string, bool, error) {
	supplemental := strings.TrimSpace(req.SupplementalText)

	var text string
	var extractErr error
	switch {
	case strings.TrimSpace(req.DocumentURL) == "":
		extractErr = errors.New("PDF link is mandatory for story analysis.")
	case o.documents == nil:
		extractErr = errors.New("no document extractor configured")
	default:
		text, extractErr = o.documents.ExtractText(ctx, req.DocumentURL)
	}

	if extractErr != nil {
		if supplemental == "" {
			return "", false, &InputError{Msg: extractErr.Error()}
		}
		log.WithError(extractErr).Warn("document extraction failed, using supplemental text")
		return fmt.Sprintf("[PDF ERROR: %s] %s \n\n%s", extractErr, fallbackHeader, supplemental), true, nil
	}

	if supplemental != "" {
		text += "\n\n" + supplementalHeader + "\n" + supplemental
	}
	return text, false, nil
}

// parseStory extracts, auto-fills and validates a story reply, then
// re-derives the composite score and tier.
func parseStory(raw string) (*StoryResult, error) {
	obj, err := normalize.Extract(raw)
	if err != nil {
		return nil, err
	}

	filled, missing, err := storyAutoFill.Apply(storySchema, obj)
	if err != nil {
		return nil, err
	}
	valid, err := storySchema.Validate(filled)
	if err != nil {
		return nil, err
	}

	impact := valid[fieldImpactScore].(float64)
	issue := valid[fieldIssueScore].(float64)
	action := valid[fieldActionScore].(float64)

	r := &StoryResult{
		DocumentLanguage:    valid[fieldLanguage].(string),
		ImpactScore:         impact,
		ImpactJustification: valid[fieldImpactJustification].(string),
		IssueScore:          issue,
		IssueJustification:  valid[fieldIssueJustification].(string),
		ActionScore:         action,
		ActionJustification: valid[fieldActionJustification].(string),
		CompositeScore:      Composite(impact, issue, action),
		Tier:                Tier(impact, issue, action),
		OverallSummary:      valid[fieldSummary].(string),
		AutoFilledFields:    missing,
	}

	if reported := valid[fieldTier].(string); reported != r.Tier {
		r.ModelReportedTier = reported
	}
	if reported := valid[fieldComposite].(float64); math.Abs(reported-r.CompositeScore) > 0.01 {
		log.WithFields(log.Fields{
			"reported": reported,
			"derived":  r.CompositeScore,
		}).Debug("model composite score disagrees with derived score")
	}
	return r, nil
}
