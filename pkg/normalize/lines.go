package normalize

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrNoAnswers is returned when the line protocol has no ANSWERS line.
var ErrNoAnswers = errors.New("no ANSWERS line found in model response")

var (
	answersLine   = regexp.MustCompile(`(?m)^\s*ANSWERS[:\-\s]*((?:YES|NO)(?:\s*,\s*(?:YES|NO))*)`)
	reasoningLine = regexp.MustCompile(`(?m)^\s*(\d+)[.)]\s*(\S[^\n]*)$`)
)

// LineAnswers is the result of the plain-text answer protocol:
//
//	ANSWERS: YES, NO, YES
//	REASONINGS:
//	1. ...
//	2. ...
type LineAnswers struct {
	Answers    []string
	Reasonings []string
}

// ParseLines reads the ANSWERS / REASONINGS protocol. Any non-empty answer
// list is accepted; reasonings may be shorter or absent.
func ParseLines(raw string) (*LineAnswers, error) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")

	m := answersLine.FindStringSubmatch(strings.ToUpper(text))
	if m == nil {
		return nil, ErrNoAnswers
	}
	var answers []string
	for _, a := range strings.Split(m[1], ",") {
		if a = strings.TrimSpace(a); a != "" {
			answers = append(answers, a)
		}
	}
	if len(answers) == 0 {
		return nil, ErrNoAnswers
	}

	type numbered struct {
		idx  int
		text string
	}
	var items []numbered
	for _, rm := range reasoningLine.FindAllStringSubmatch(text, -1) {
		idx, err := strconv.Atoi(rm[1])
		if err != nil {
			continue
		}
		items = append(items, numbered{idx: idx, text: strings.TrimSpace(rm[2])})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].idx < items[j].idx })

	out := &LineAnswers{Answers: answers}
	for _, it := range items {
		out.Reasonings = append(out.Reasonings, it.text)
	}
	return out, nil
}
