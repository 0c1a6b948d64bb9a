package adapter

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type staticKeys struct{ key string }

func (s *staticKeys) Current() (string, bool) { return s.key, s.key != "" }

type fakeGenerator struct {
	key    string
	resp   *genai.GenerateContentResponse
	err    error
	config *genai.GenerateContentConfig
	parts  []*genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.config = config
	if len(contents) > 0 {
		f.parts = contents[0].Parts
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     12,
			CandidatesTokenCount: 3,
		},
	}
}

func newTestGoogleAdapter(t *testing.T, keys *staticKeys, gens map[string]*fakeGenerator) *GoogleAdapter {
	t.Helper()
	a, err := NewGoogleAdapter(keys)
	require.NoError(t, err)
	a.newClient = func(_ context.Context, key string) (contentGenerator, error) {
		g, ok := gens[key]
		if !ok {
			return nil, fmt.Errorf("no client for %s", key)
		}
		return g, nil
	}
	return a
}

func TestGoogleAdapterSchemaRequest(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"answers":["YES"]}`)}
	a := newTestGoogleAdapter(t, &staticKeys{key: "k1"}, map[string]*fakeGenerator{"k1": gen})

	resp, err := a.Invoke(context.Background(), &Request{
		Model: "gemini-2.0-flash",
		Parts: []Part{ImagePart([]byte("img"), "image/png"), TextPart("questions")},
		Schema: &Schema{
			Type:     TypeObject,
			Required: []string{"answers"},
			Properties: map[string]*Schema{
				"answers": {Type: TypeArray, Items: &Schema{Type: TypeString, Enum: []string{"YES", "NO"}}},
			},
		},
		MaxTokens: 8192,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"answers":["YES"]}`, resp.Text)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	require.Len(t, gen.parts, 2)
	require.NotNil(t, gen.parts[0].InlineData)
	assert.Equal(t, "image/png", gen.parts[0].InlineData.MIMEType)
	assert.Equal(t, "questions", gen.parts[1].Text)

	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
	assert.Equal(t, int32(8192), gen.config.MaxOutputTokens)
	require.NotNil(t, gen.config.ResponseSchema)
	answers := gen.config.ResponseSchema.Properties["answers"]
	assert.Equal(t, genai.TypeArray, answers.Type)
	assert.Equal(t, []string{"YES", "NO"}, answers.Items.Enum)
}

func TestGoogleAdapterFollowsKeySource(t *testing.T) {
	keys := &staticKeys{key: "k1"}
	first := &fakeGenerator{resp: textResponse("one")}
	second := &fakeGenerator{resp: textResponse("two")}
	a := newTestGoogleAdapter(t, keys, map[string]*fakeGenerator{"k1": first, "k2": second})

	resp, err := a.Invoke(context.Background(), &Request{Model: "gemini-2.5-flash", Parts: []Part{TextPart("x")}})
	require.NoError(t, err)
	assert.Equal(t, "one", resp.Text)

	keys.key = "k2"
	resp, err = a.Invoke(context.Background(), &Request{Model: "gemini-2.5-flash", Parts: []Part{TextPart("x")}})
	require.NoError(t, err)
	assert.Equal(t, "two", resp.Text)
	assert.Len(t, a.clients, 2)
}

func TestGoogleAdapterErrors(t *testing.T) {
	t.Run("quota status", func(t *testing.T) {
		gen := &fakeGenerator{err: genai.APIError{Code: 429, Message: "Resource has been exhausted"}}
		a := newTestGoogleAdapter(t, &staticKeys{key: "k"}, map[string]*fakeGenerator{"k": gen})
		_, err := a.Invoke(context.Background(), &Request{Model: "m"})
		assert.True(t, IsQuota(err))
	})
	t.Run("no candidates", func(t *testing.T) {
		gen := &fakeGenerator{resp: &genai.GenerateContentResponse{}}
		a := newTestGoogleAdapter(t, &staticKeys{key: "k"}, map[string]*fakeGenerator{"k": gen})
		_, err := a.Invoke(context.Background(), &Request{Model: "m"})
		assert.Equal(t, KindMalformed, KindOf(err))
	})
	t.Run("empty text", func(t *testing.T) {
		gen := &fakeGenerator{resp: textResponse("  ")}
		a := newTestGoogleAdapter(t, &staticKeys{key: "k"}, map[string]*fakeGenerator{"k": gen})
		_, err := a.Invoke(context.Background(), &Request{Model: "m"})
		assert.Equal(t, KindMalformed, KindOf(err))
	})
}

func TestNewGoogleAdapterRequiresKey(t *testing.T) {
	_, err := NewGoogleAdapter(&staticKeys{})
	assert.Equal(t, KindConfig, KindOf(err))
}
