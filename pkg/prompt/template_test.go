package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesEverySlot(t *testing.T) {
	tmpl := MustParse("greeting", "Hello {{.name}}, see {{.topic}}. Bye {{.name}}.")
	assert.Equal(t, []string{"name", "topic"}, tmpl.Slots())

	out, err := tmpl.Render(map[string]string{"name": "Asha", "topic": "attendance"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Asha, see attendance. Bye Asha.", out)
}

func TestRenderMissingSlot(t *testing.T) {
	tmpl := MustParse("greeting", "Hello {{.name}} {{.topic}}")
	_, err := tmpl.Render(map[string]string{"name": "Asha"})

	var tErr *TemplateError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "topic", tErr.Slot)
	assert.Equal(t, "greeting", tErr.Template)
}

func TestRenderIgnoresExtraVars(t *testing.T) {
	tmpl := MustParse("x", "{{.a}}")
	out, err := tmpl.Render(map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)
	assert.Equal(t, "1", out)
}

func TestTemplateIsReusable(t *testing.T) {
	tmpl := MustParse("x", "[{{.a}}]")
	first, _ := tmpl.Render(map[string]string{"a": "one"})
	second, _ := tmpl.Render(map[string]string{"a": "two"})
	assert.Equal(t, "[one]", first)
	assert.Equal(t, "[two]", second)
}

func TestParseError(t *testing.T) {
	_, err := Parse("bad", "{{.a")
	var tErr *TemplateError
	require.True(t, errors.As(err, &tErr))
	assert.Empty(t, tErr.Slot)
}

func TestSlotsInsideConditionals(t *testing.T) {
	tmpl := MustParse("cond", "{{if .flag}}{{.yes}}{{else}}{{.no}}{{end}}")
	assert.Equal(t, []string{"flag", "no", "yes"}, tmpl.Slots())
}

func TestNumberQuestionsSkipsBlanks(t *testing.T) {
	got := NumberQuestions([]string{"Are students present?", "  ", "", " Is there a chart? "})
	assert.Equal(t, "1. Are students present?\n2. Is there a chart?", got)
	assert.Empty(t, NumberQuestions(nil))
}

func TestBulletList(t *testing.T) {
	assert.Equal(t, "- a\n- b", BulletList([]string{"a", "b"}))
}

func TestEmbeddedRubricSlots(t *testing.T) {
	assert.Equal(t, []string{"format", "instructions", "questions"}, Evidence().Slots())
	assert.Empty(t, ThematicRubric().Slots())
	assert.Equal(t, []string{"challenges"}, ThematicChallenges().Slots())
	assert.Equal(t, []string{"content", "image_context", "title"}, Story().Slots())
}

func TestStoryRubricRenders(t *testing.T) {
	out, err := Story().Render(map[string]string{
		"title":         "Back to school",
		"image_context": ImageContextMissing,
		"content":       "Attendance rose from 40% to 80%.",
	})
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "**Title:** Back to school"))
	assert.True(t, strings.Contains(out, "Attendance rose from 40% to 80%."))
	assert.True(t, strings.Contains(out, ImageContextMissing))
}

func TestThematicRubricRendersWithoutVars(t *testing.T) {
	out, err := ThematicRubric().Render(nil)
	require.NoError(t, err)
	assert.Contains(t, out, "classified_data")
}
