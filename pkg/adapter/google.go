package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// KeySource supplies the API key to use for the next call.
type KeySource interface {
	Current() (string, bool)
}

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GoogleAdapter implements the Adapter interface for Gemini models. Each call
// uses the key the KeySource currently points at, so rotating the source
// switches credentials between retries.
type GoogleAdapter struct {
	keys      KeySource
	newClient func(ctx context.Context, apiKey string) (contentGenerator, error)

	mu      sync.Mutex
	clients map[string]contentGenerator
}

// NewGoogleAdapter creates a new Google Gemini adapter.
func NewGoogleAdapter(keys KeySource) (*GoogleAdapter, error) {
	if keys == nil {
		return nil, ConfigError("google", "google API key is required")
	}
	if _, ok := keys.Current(); !ok {
		return nil, ConfigError("google", "google API key is required")
	}
	return &GoogleAdapter{
		keys:      keys,
		newClient: newGenAIClient,
		clients:   make(map[string]contentGenerator),
	}, nil
}

func newGenAIClient(ctx context.Context, apiKey string) (contentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}
	return client.Models, nil
}

// Name returns the adapter identifier.
func (a *GoogleAdapter) Name() string {
	return "google"
}

// Models returns the list of supported Gemini models.
func (a *GoogleAdapter) Models() []string {
	return []string{
		"gemini-2.5-flash",
		"gemini-2.0-flash",
	}
}

// Invoke sends the parts to Gemini. When req.Schema is set the reply is
// constrained to application/json matching that schema.
func (a *GoogleAdapter) Invoke(ctx context.Context, req *Request) (*Response, error) {
	client, err := a.client(ctx)
	if err != nil {
		return nil, err
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		switch p.Kind {
		case PartImage:
			parts = append(parts, genai.NewPartFromBytes(p.Data, p.MIMEType))
		default:
			parts = append(parts, genai.NewPartFromText(p.Text))
		}
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := client.GenerateContent(ctx, req.Model, contents, a.generateConfig(req))
	if err != nil {
		status := 0
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
		return nil, classify(a.Name(), status, fmt.Errorf("google API error: %w", err))
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, MalformedError(a.Name(), "google returned no candidates")
	}

	var content strings.Builder
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				content.WriteString(part.Text)
			}
		}
	}
	if strings.TrimSpace(content.String()) == "" {
		return nil, MalformedError(a.Name(), "google returned empty content")
	}

	var usage *Usage
	if resp.UsageMetadata != nil {
		usage = tokenUsage(int64(resp.UsageMetadata.PromptTokenCount), int64(resp.UsageMetadata.CandidatesTokenCount))
	}
	return newResponse(a.Name(), req.Model, content.String(), usage), nil
}

func (a *GoogleAdapter) generateConfig(req *Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGenAISchema(req.Schema)
	}
	return cfg
}

func (a *GoogleAdapter) client(ctx context.Context) (contentGenerator, error) {
	key, ok := a.keys.Current()
	if !ok {
		return nil, ConfigError(a.Name(), "google API key is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[key]; ok {
		return c, nil
	}
	c, err := a.newClient(ctx, key)
	if err != nil {
		return nil, &AdapterError{Provider: a.Name(), Kind: KindConfig, Err: err}
	}
	a.clients[key] = c
	return c, nil
}

func toGenAISchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:     genaiType(s.Type),
		Required: s.Required,
		Enum:     s.Enum,
		Items:    toGenAISchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenAISchema(prop)
		}
	}
	return out
}

func genaiType(t SchemaType) genai.Type {
	switch t {
	case TypeObject:
		return genai.TypeObject
	case TypeArray:
		return genai.TypeArray
	case TypeNumber:
		return genai.TypeNumber
	case TypeInteger:
		return genai.TypeInteger
	case TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
