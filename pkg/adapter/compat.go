package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SambaNovaBaseURL is the default OpenAI-compatible endpoint for the legacy
// text fallback.
const SambaNovaBaseURL = "https://api.sambanova.ai/v1"

// CompatAdapter talks to OpenAI-compatible chat endpoints over plain HTTP.
// The legacy evidence fallback uses it with SambaNova.
type CompatAdapter struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// compatRequest represents the OpenAI-compatible request format.
type compatRequest struct {
	Model       string          `json:"model"`
	Messages    []compatMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

// compatMessage carries either a string or a list of content parts.
type compatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type compatPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *compatImageURL `json:"image_url,omitempty"`
}

type compatImageURL struct {
	URL string `json:"url"`
}

// compatResponse represents the OpenAI-compatible response format.
type compatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// NewCompatAdapter creates an adapter for an OpenAI-compatible endpoint.
func NewCompatAdapter(name, apiKey, baseURL string) (*CompatAdapter, error) {
	if apiKey == "" {
		return nil, ConfigError(name, "%s API key is required", name)
	}
	if baseURL == "" {
		return nil, ConfigError(name, "%s base URL is required", name)
	}

	return &CompatAdapter{
		name:       name,
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// NewSambaNovaAdapter creates the SambaNova fallback adapter.
func NewSambaNovaAdapter(apiKey, baseURL string) (*CompatAdapter, error) {
	if baseURL == "" {
		baseURL = SambaNovaBaseURL
	}
	return NewCompatAdapter("sambanova", apiKey, baseURL)
}

// Name returns the adapter identifier.
func (a *CompatAdapter) Name() string {
	return a.name
}

// Models returns the list of supported models.
func (a *CompatAdapter) Models() []string {
	return []string{
		"Llama-4-Maverick-17B-128E-Instruct",
	}
}

// Invoke posts a chat completion request and returns the first choice.
func (a *CompatAdapter) Invoke(ctx context.Context, req *Request) (*Response, error) {
	reqBody := compatRequest{
		Model:       req.Model,
		Messages:    buildCompatMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(a.name, 0, fmt.Errorf("%s API request failed: %w", a.name, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(a.name, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classify(a.name, resp.StatusCode, fmt.Errorf("%s API returned status %d: %s", a.name, resp.StatusCode, truncateBody(body)))
	}

	var parsed compatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, MalformedError(a.name, "failed to parse response: %v", err)
	}

	if parsed.Error != nil {
		return nil, classify(a.name, 0, fmt.Errorf("%s API error: %s (type: %s, code: %v)",
			a.name, parsed.Error.Message, parsed.Error.Type, parsed.Error.Code))
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, MalformedError(a.name, "%s returned no choices", a.name)
	}

	usage := &Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}
	return newResponse(a.name, req.Model, parsed.Choices[0].Message.Content, usage), nil
}

func buildCompatMessages(req *Request) []compatMessage {
	var messages []compatMessage
	if req.System != "" {
		messages = append(messages, compatMessage{Role: "system", Content: req.System})
	}
	if len(req.Images()) == 0 {
		return append(messages, compatMessage{Role: "user", Content: req.Text()})
	}
	parts := make([]compatPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		switch p.Kind {
		case PartImage:
			parts = append(parts, compatPart{Type: "image_url", ImageURL: &compatImageURL{URL: p.DataURI()}})
		default:
			parts = append(parts, compatPart{Type: "text", Text: p.Text})
		}
	}
	return append(messages, compatMessage{Role: "user", Content: parts})
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
