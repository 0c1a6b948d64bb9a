package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIAdapter implements the Adapter interface for OpenAI chat completions.
type OpenAIAdapter struct {
	client openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter. Extra options are passed to
// the SDK client, e.g. option.WithBaseURL for compatible endpoints.
func NewOpenAIAdapter(apiKey string, opts ...option.RequestOption) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, ConfigError("openai", "openai API key is required")
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAIAdapter{client: client}, nil
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// Models returns the list of supported OpenAI models.
func (a *OpenAIAdapter) Models() []string {
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
	}
}

// Invoke sends the request as one system message (optional) and one user
// message whose parts keep their order. Images travel as data URIs.
func (a *OpenAIAdapter) Invoke(ctx context.Context, req *Request) (*Response, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	if len(req.Images()) == 0 {
		messages = append(messages, openai.UserMessage(req.Text()))
	} else {
		parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(req.Parts))
		for _, p := range req.Parts {
			switch p.Kind {
			case PartImage:
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: p.DataURI(),
				}))
			default:
				parts = append(parts, openai.TextContentPart(p.Text))
			}
		}
		messages = append(messages, openai.UserMessage(parts))
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONMode || req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		status := 0
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, classify(a.Name(), status, fmt.Errorf("openai API error: %w", err))
	}

	if len(resp.Choices) == 0 {
		return nil, MalformedError(a.Name(), "openai returned no choices")
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, MalformedError(a.Name(), "openai returned empty content")
	}
	usage := tokenUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return newResponse(a.Name(), req.Model, content, usage), nil
}
