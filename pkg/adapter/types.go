package adapter

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PartKind distinguishes request content parts.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// Part is one piece of user content: text or inline image bytes.
type Part struct {
	Kind     PartKind
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart returns a text content part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// ImagePart returns an inline image part.
func ImagePart(data []byte, mimeType string) Part {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return Part{Kind: PartImage, Data: data, MIMEType: mimeType}
}

// Base64 returns the standard base64 encoding of the part's bytes.
func (p Part) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// DataURI returns the part as a data: URI.
func (p Part) DataURI() string {
	return "data:" + p.MIMEType + ";base64," + p.Base64()
}

// SchemaType is the JSON type of a response schema node.
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
)

// Schema declares the response shape for providers that enforce one.
type Schema struct {
	Type       SchemaType
	Properties map[string]*Schema
	Required   []string
	Items      *Schema
	Enum       []string
}

// Request is a provider-neutral call.
type Request struct {
	Model  string
	System string
	Parts  []Part

	// Schema is honoured by providers with schema-constrained output.
	Schema *Schema
	// JSONMode asks chat providers for a JSON object response.
	JSONMode bool

	MaxTokens   int
	Temperature float64
}

// Text joins the request's text parts.
func (r *Request) Text() string {
	var parts []string
	for _, p := range r.Parts {
		if p.Kind == PartText {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Images returns the request's image parts.
func (r *Request) Images() []Part {
	var out []Part
	for _, p := range r.Parts {
		if p.Kind == PartImage {
			out = append(out, p)
		}
	}
	return out
}

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CallReport captures adapter call metadata.
type CallReport struct {
	Adapter      string `json:"adapter"`
	Model        string `json:"model"`
	Usage        Usage  `json:"usage"`
	Retries      int    `json:"retries"`
	Rotations    int    `json:"rotations,omitempty"`
	FallbackUsed bool   `json:"fallback_used"`
	Error        string `json:"error,omitempty"`
}

// Response is the raw provider output plus provenance. It lives only until
// the text has been normalized.
type Response struct {
	ID        string
	Text      string
	Provider  string
	Model     string
	Usage     *Usage
	CreatedAt time.Time
}

func newResponse(provider, model, text string, usage *Usage) *Response {
	return &Response{
		ID:        uuid.NewString(),
		Text:      text,
		Provider:  provider,
		Model:     model,
		Usage:     usage,
		CreatedAt: time.Now().UTC(),
	}
}

func tokenUsage(prompt, completion int64) *Usage {
	return &Usage{
		PromptTokens:     int(prompt),
		CompletionTokens: int(completion),
		TotalTokens:      int(prompt + completion),
	}
}
