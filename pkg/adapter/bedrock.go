package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
)

const (
	bedrockAnthropicVersion = "bedrock-2023-05-31"
	defaultBedrockMaxTokens = 4096
)

// modelInvoker is the subset of *bedrockruntime.Client used here.
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockConfig holds the AWS settings for managed model invocation.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// BedrockAdapter invokes Anthropic models hosted on AWS Bedrock.
type BedrockAdapter struct {
	client modelInvoker
}

// bedrockRequest is the Anthropic messages envelope Bedrock expects.
type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Temperature      *float64         `json:"temperature,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockMessage struct {
	Role    string           `json:"role"`
	Content []bedrockContent `json:"content"`
}

type bedrockContent struct {
	Type   string              `json:"type"`
	Text   string              `json:"text,omitempty"`
	Source *bedrockImageSource `json:"source,omitempty"`
}

type bedrockImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrockAdapter creates a Bedrock adapter. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain.
func NewBedrockAdapter(ctx context.Context, cfg BedrockConfig) (*BedrockAdapter, error) {
	if cfg.Region == "" {
		return nil, ConfigError("bedrock", "AWS region is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, ConfigError("bedrock", "AWS access key id and secret access key must be set together")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &AdapterError{Provider: "bedrock", Kind: KindConfig, Err: fmt.Errorf("failed to load AWS config: %w", err)}
	}
	return &BedrockAdapter{client: bedrockruntime.NewFromConfig(awsCfg)}, nil
}

// Name returns the adapter identifier.
func (a *BedrockAdapter) Name() string {
	return "bedrock"
}

// Models returns the list of supported Bedrock model ids.
func (a *BedrockAdapter) Models() []string {
	return []string{
		"global.anthropic.claude-sonnet-4-5-20250929-v1:0",
	}
}

// Invoke wraps the request in the Anthropic-on-Bedrock envelope and returns
// the first text content block.
func (a *BedrockAdapter) Invoke(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(buildBedrockRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, classifyBedrock(err)
	}
	if out == nil || len(out.Body) == 0 {
		return nil, MalformedError(a.Name(), "bedrock returned an empty body")
	}

	var parsed bedrockResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return nil, MalformedError(a.Name(), "failed to parse response: %v", err)
	}

	for _, block := range parsed.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			usage := tokenUsage(parsed.Usage.InputTokens, parsed.Usage.OutputTokens)
			return newResponse(a.Name(), req.Model, block.Text, usage), nil
		}
	}
	return nil, MalformedError(a.Name(), "bedrock returned no text content")
}

func buildBedrockRequest(req *Request) bedrockRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultBedrockMaxTokens
	}
	content := make([]bedrockContent, 0, len(req.Parts))
	for _, p := range req.Parts {
		switch p.Kind {
		case PartImage:
			content = append(content, bedrockContent{
				Type: "image",
				Source: &bedrockImageSource{
					Type:      "base64",
					MediaType: p.MIMEType,
					Data:      p.Base64(),
				},
			})
		default:
			content = append(content, bedrockContent{Type: "text", Text: p.Text})
		}
	}
	temp := req.Temperature
	return bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        maxTokens,
		System:           req.System,
		Temperature:      &temp,
		Messages:         []bedrockMessage{{Role: "user", Content: content}},
	}
}

func classifyBedrock(err error) error {
	status := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}
	wrapped := fmt.Errorf("bedrock API error: %w", err)

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceQuotaExceededException", "TooManyRequestsException":
			return &AdapterError{Provider: "bedrock", Kind: KindQuota, Status: status, Err: wrapped}
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			return &AdapterError{Provider: "bedrock", Kind: KindAuth, Status: status, Err: wrapped}
		case "ModelTimeoutException", "ServiceUnavailableException", "InternalServerException", "ModelNotReadyException":
			return &AdapterError{Provider: "bedrock", Kind: KindNetwork, Status: status, Temporary: true, Err: wrapped}
		}
	}
	return classify("bedrock", status, wrapped)
}
