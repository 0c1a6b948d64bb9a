package normalize

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no strategy can recover a JSON object.
var ErrNoJSON = errors.New("no JSON object found in model response")

// Strategy recovers a JSON object from raw model text.
type Strategy struct {
	Name  string
	Parse func(raw string) (map[string]any, error)
}

// DirectParse parses the whole text as a JSON object.
var DirectParse = Strategy{Name: "direct", Parse: decodeObject}

// BraceScan parses the text between the first '{' and the last '}'.
var BraceScan = Strategy{Name: "brace_scan", Parse: func(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	return decodeObject(raw[start : end+1])
}}

// FenceStrip removes leading and trailing markdown code fences, including an
// optional language tag, and parses what is left.
var FenceStrip = Strategy{Name: "fence_strip", Parse: func(raw string) (map[string]any, error) {
	return decodeObject(stripFences(raw))
}}

// DefaultStrategies is the extraction order used by Extract.
func DefaultStrategies() []Strategy {
	return []Strategy{DirectParse, BraceScan, FenceStrip}
}

// Extract runs the default strategies in order and returns the first object
// that decodes.
func Extract(raw string) (map[string]any, error) {
	obj, _, err := ExtractWith(raw, DefaultStrategies())
	return obj, err
}

// ExtractWith runs strategies in order. It also reports which strategy won.
func ExtractWith(raw string, strategies []Strategy) (map[string]any, string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, "", ErrNoJSON
	}
	for _, s := range strategies {
		obj, err := s.Parse(raw)
		if err == nil && obj != nil {
			return obj, s.Name, nil
		}
	}
	return nil, "", ErrNoJSON
}

func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNoJSON
	}
	return obj, nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	// Opening fence, with or without a language tag.
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	s = strings.Join(lines, "\n")
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
