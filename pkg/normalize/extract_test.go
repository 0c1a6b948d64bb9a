package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFencedJSON(t *testing.T) {
	obj, err := Extract("```json\n{\"a\":1}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, obj)
}

func TestExtractRoundTrip(t *testing.T) {
	src := `{"tier":"Good","scores":[0.5,0.75],"nested":{"ok":true}}`
	var want map[string]any
	require.NoError(t, json.Unmarshal([]byte(src), &want))

	for name, raw := range map[string]string{
		"plain":          src,
		"fenced":         "```json\n" + src + "\n```",
		"fenced_no_tag":  "```\n" + src + "\n```",
		"surrounding":    "Here is the result:\n" + src + "\nThanks.",
		"leading_spaces": "   \n" + src,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Extract(raw)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestExtractWithReportsStrategy(t *testing.T) {
	_, name, err := ExtractWith(`{"a":1}`, DefaultStrategies())
	require.NoError(t, err)
	assert.Equal(t, "direct", name)

	_, name, err = ExtractWith(`noise {"a":1} noise`, DefaultStrategies())
	require.NoError(t, err)
	assert.Equal(t, "brace_scan", name)
}

func TestExtractFailures(t *testing.T) {
	for _, raw := range []string{"", "   ", "no json here", "{broken", "[1,2,3]", "null"} {
		_, err := Extract(raw)
		assert.ErrorIs(t, err, ErrNoJSON, "input %q", raw)
	}
}

func TestStrategiesIndependently(t *testing.T) {
	fenced := "```json\n{\"a\":1}\n```"

	_, err := DirectParse.Parse(fenced)
	assert.Error(t, err)

	obj, err := BraceScan.Parse(fenced)
	require.NoError(t, err)
	assert.Equal(t, float64(1), obj["a"])

	obj, err = FenceStrip.Parse(fenced)
	require.NoError(t, err)
	assert.Equal(t, float64(1), obj["a"])

	_, err = BraceScan.Parse("} before {")
	assert.Error(t, err)
}

func TestFenceStripOnlyStrategy(t *testing.T) {
	obj, name, err := ExtractWith("```json\n{\"a\":\"x\"}\n```", []Strategy{DirectParse, FenceStrip})
	require.NoError(t, err)
	assert.Equal(t, "fence_strip", name)
	assert.Equal(t, "x", obj["a"])
}
