package normalize

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Markers added to results that went through auto-fill.
const (
	AutoFilledKey       = "_auto_filled"
	AutoFilledFieldsKey = "_auto_filled_fields"
)

// GenericJustification replaces a missing justification field.
const GenericJustification = "No justification was returned by the model for this criterion; the score was kept as reported."

// AutoFill recovers gaps in a partially complete result. It runs once and
// never overwrites a value the model returned.
type AutoFill struct {
	// Weights maps each score field to its weight in the composite.
	Weights map[string]float64
	// Composite is the field holding the weighted sum of Weights.
	Composite string
	// Justifications lists text fields that may take GenericJustification.
	Justifications []string
}

// PartialError is returned when required fields are still missing after
// auto-fill. Partial holds the object as far as it could be completed.
type PartialError struct {
	Missing []string
	Partial map[string]any
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("unable to auto-fill critical fields: %s", strings.Join(e.Missing, ", "))
}

func (e *PartialError) Is(target error) bool { return target == ErrValidation }

// Apply fills what it can and returns a new map plus the names of the fields
// that were missing on entry. When nothing was missing obj is returned as is.
func (a AutoFill) Apply(schema *Schema, obj map[string]any) (map[string]any, []string, error) {
	missing := schema.Missing(obj)
	if len(missing) == 0 {
		return obj, nil, nil
	}

	out := make(map[string]any, len(obj)+2)
	for k, v := range obj {
		out[k] = v
	}

	for _, field := range a.scoreFields() {
		if _, ok := out[field]; ok {
			continue
		}
		if mean, ok := a.siblingMean(out, field); ok {
			out[field] = round2(mean)
		}
	}

	if a.Composite != "" {
		if _, ok := out[a.Composite]; !ok {
			if composite, ok := a.weighted(out); ok {
				out[a.Composite] = round2(composite)
			}
		}
	}

	for _, field := range a.Justifications {
		if _, ok := out[field]; !ok {
			out[field] = GenericJustification
		}
	}

	if still := schema.Missing(out); len(still) > 0 {
		return nil, missing, &PartialError{Missing: still, Partial: out}
	}

	out[AutoFilledKey] = true
	out[AutoFilledFieldsKey] = missing
	return out, missing, nil
}

func (a AutoFill) scoreFields() []string {
	fields := make([]string, 0, len(a.Weights))
	for f := range a.Weights {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (a AutoFill) siblingMean(obj map[string]any, field string) (float64, bool) {
	var sum float64
	var n int
	for _, sibling := range a.scoreFields() {
		if sibling == field {
			continue
		}
		v, ok := obj[sibling]
		if !ok {
			continue
		}
		f, err := ToFloat(v)
		if err != nil {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (a AutoFill) weighted(obj map[string]any) (float64, bool) {
	var total float64
	for field, w := range a.Weights {
		v, ok := obj[field]
		if !ok {
			return 0, false
		}
		f, err := ToFloat(v)
		if err != nil {
			return 0, false
		}
		total += f * w
	}
	return total, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
