package prompt

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// DefaultEvidenceInstructions opens the evidence prompt when the caller does
// not supply its own preamble.
const DefaultEvidenceInstructions = "You are an educational evidence validator. Analyze this image, which is field evidence from a Project-Based Learning classroom."

// Answer format hints for the evidence prompt.
const (
	EvidenceJSONFormat  = `Return a JSON object {"answers": ["yes"|"no", ...], "reasonings": ["...", ...]} with one entry per question, in order.`
	EvidenceLinesFormat = "Reply in exactly this layout:\nANSWERS: yes, no, ...\nREASONINGS:\n1. reason for question 1\n2. reason for question 2"
)

// Image context notes for the story prompt.
const (
	ImageContextAttached = "The image provided is field evidence related to this story. Use it to check for visual consistency and context (e.g., do the photos show the action steps described?)."
	ImageContextMissing  = "NO IMAGE PROVIDED. Please rely solely on the text content."
)

var (
	evidence           = mustLoad("evidence")
	thematicRubric     = mustLoad("thematic_rubric")
	thematicChallenges = mustLoad("thematic_challenges")
	story              = mustLoad("story")
)

// Evidence has slots instructions, questions and format.
func Evidence() *Template { return evidence }

// ThematicRubric is the fixed classification rubric. It has no slots.
func ThematicRubric() *Template { return thematicRubric }

// ThematicChallenges has the slot challenges.
func ThematicChallenges() *Template { return thematicChallenges }

// Story has slots title, image_context and content.
func Story() *Template { return story }

func mustLoad(name string) *Template {
	data, err := templateFS.ReadFile("templates/" + name + ".tmpl")
	if err != nil {
		panic(fmt.Sprintf("prompt: read template %s: %v", name, err))
	}
	return MustParse(name, string(data))
}

// NumberQuestions renders non-blank questions as "1. q" lines.
func NumberQuestions(questions []string) string {
	var lines []string
	for _, q := range questions {
		if q = strings.TrimSpace(q); q == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s", len(lines)+1, q))
	}
	return strings.Join(lines, "\n")
}

// BulletList renders items as "- item" lines.
func BulletList(items []string) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, "- "+it)
	}
	return strings.Join(lines, "\n")
}
