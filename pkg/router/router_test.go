package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/fieldscore/pkg/adapter"
	"github.com/zen-systems/fieldscore/pkg/config"
)

func newTestRouter() *Router {
	adapters := map[string]adapter.Adapter{
		config.AdapterGoogle:    adapter.NewMockAdapter(config.AdapterGoogle),
		config.AdapterOpenAI:    adapter.NewMockAdapter(config.AdapterOpenAI),
		config.AdapterAnthropic: adapter.NewMockAdapter(config.AdapterAnthropic),
	}
	return NewRouter(adapters, config.DefaultRoutingConfig(), WithAliases(config.DefaultAliases()))
}

func TestResolvePerTaskModels(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		task, choice, adapter, model string
	}{
		{config.TaskThematic, "Gemini-2.5-Flash", "google", "gemini-2.5-flash"},
		{config.TaskThematic, "ChatGPT-4o-Mini", "openai", "gpt-4o-mini"},
		{config.TaskThematic, "Claude-3-Sonnet", "anthropic", "claude-3-haiku-20240307"},
		{config.TaskStory, "ChatGPT-4o", "openai", "gpt-4o"},
		{config.TaskStory, "Claude-3-Sonnet", "anthropic", "claude-3-sonnet-20240229"},
		{config.TaskStory, "Claude-4.5-Sonnet", "bedrock", config.DefaultBedrockModelID},
		{config.TaskEvidence, "Gemini", "google", "gemini-2.0-flash"},
	}
	for _, tt := range tests {
		t.Run(tt.task+"/"+tt.choice, func(t *testing.T) {
			route, err := r.Resolve(tt.task, tt.choice)
			require.NoError(t, err)
			assert.Equal(t, tt.adapter, route.Adapter)
			assert.Equal(t, tt.model, route.Model)
		})
	}
}

func TestResolveByModelOrAlias(t *testing.T) {
	r := newTestRouter()

	route, err := r.Resolve(config.TaskStory, "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "openai", route.Adapter)
	assert.Equal(t, "gpt-4o-mini", route.Model)

	route, err = r.Resolve(config.TaskStory, " SONNET-4.5 ")
	require.NoError(t, err)
	assert.Equal(t, "bedrock", route.Adapter)
	assert.Equal(t, config.DefaultBedrockModelID, route.Model)

	route, err = r.Resolve(config.TaskStory, "haiku")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", route.Adapter)
	assert.Equal(t, "claude-3-haiku-20240307", route.Model)
}

func TestResolveUnknownChoice(t *testing.T) {
	r := newTestRouter()
	for _, choice := range []string{"Llama-3", ""} {
		_, err := r.Resolve(config.TaskStory, choice)
		var unknown *UnknownChoiceError
		require.True(t, errors.As(err, &unknown), "choice %q", choice)
		assert.Equal(t, "Unknown model choice: "+choice, err.Error())
	}
}

func TestSelectMissingAdapterIsConfigError(t *testing.T) {
	r := newTestRouter()
	_, route, err := r.Select(config.TaskStory, "Claude-4.5-Sonnet")
	require.Error(t, err)
	assert.Equal(t, "bedrock", route.Adapter)
	assert.Equal(t, adapter.KindConfig, adapter.KindOf(err))

	a, route, err := r.Select(config.TaskThematic, "ChatGPT-4o-Mini")
	require.NoError(t, err)
	assert.Equal(t, "openai", a.Name())
	assert.Equal(t, "gpt-4o-mini", route.Model)
}

func TestGetRoutes(t *testing.T) {
	r := newTestRouter()
	routes := r.GetRoutes()
	require.Len(t, routes, 4)
	assert.Equal(t, "bedrock", routes[0].Adapter)
	assert.Equal(t, "gemini-2.0-flash", routes[1].Models[config.TaskEvidence])
	assert.Equal(t, []string{"anthropic", "google", "openai"}, r.Adapters())
}
