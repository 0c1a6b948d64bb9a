package prompt

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"
)

// TemplateError reports a slot referenced by a template but not supplied.
type TemplateError struct {
	Template string
	Slot     string
	Err      error
}

func (e *TemplateError) Error() string {
	if e.Slot != "" {
		return fmt.Sprintf("template %s: missing value for slot %q", e.Template, e.Slot)
	}
	return fmt.Sprintf("template %s: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// Template is an immutable rubric with named slots written as {{.name}}.
type Template struct {
	name  string
	tmpl  *template.Template
	slots []string
}

// Parse compiles a template. Every {{.slot}} it references must be supplied
// to Render.
func Parse(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &TemplateError{Template: name, Err: err}
	}
	seen := map[string]bool{}
	if tmpl.Tree != nil && tmpl.Tree.Root != nil {
		collectSlots(tmpl.Tree.Root, seen)
	}
	slots := make([]string, 0, len(seen))
	for s := range seen {
		slots = append(slots, s)
	}
	sort.Strings(slots)
	return &Template{name: name, tmpl: tmpl, slots: slots}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(name, text string) *Template {
	t, err := Parse(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// Slots returns the sorted slot names the template declares.
func (t *Template) Slots() []string {
	return append([]string(nil), t.slots...)
}

// Render substitutes every slot and returns the final prompt.
func (t *Template) Render(vars map[string]string) (string, error) {
	for _, slot := range t.slots {
		if _, ok := vars[slot]; !ok {
			return "", &TemplateError{Template: t.name, Slot: slot}
		}
	}
	var b strings.Builder
	if err := t.tmpl.Execute(&b, vars); err != nil {
		return "", &TemplateError{Template: t.name, Err: err}
	}
	return b.String(), nil
}

func collectSlots(node parse.Node, seen map[string]bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			collectSlots(child, seen)
		}
	case *parse.ActionNode:
		collectSlots(n.Pipe, seen)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			for _, arg := range cmd.Args {
				collectSlots(arg, seen)
			}
		}
	case *parse.FieldNode:
		if len(n.Ident) > 0 {
			seen[n.Ident[0]] = true
		}
	case *parse.IfNode:
		collectSlots(n.Pipe, seen)
		collectSlots(n.List, seen)
		collectSlots(n.ElseList, seen)
	case *parse.RangeNode:
		collectSlots(n.Pipe, seen)
		collectSlots(n.List, seen)
		collectSlots(n.ElseList, seen)
	case *parse.WithNode:
		collectSlots(n.Pipe, seen)
		collectSlots(n.List, seen)
		collectSlots(n.ElseList, seen)
	}
}
