package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrValidation is matched by every validation error type in this package.
var ErrValidation = errors.New("validation failed")

// FieldKind describes how a field is checked.
type FieldKind int

const (
	// KindText accepts any string.
	KindText FieldKind = iota
	// KindScore accepts a number (or numeric string) in [0, 1].
	KindScore
	// KindEnum accepts one of Field.Allowed.
	KindEnum
	// KindAny only checks presence.
	KindAny
)

// Field declares one key of a structured result.
type Field struct {
	Name     string
	Kind     FieldKind
	Allowed  []string
	Optional bool
}

// Schema is a flat set of field rules for a model result.
type Schema struct {
	Name   string
	Fields []Field
}

// RequiredFields lists non-optional field names in declaration order.
func (s *Schema) RequiredFields() []string {
	var out []string
	for _, f := range s.Fields {
		if !f.Optional {
			out = append(out, f.Name)
		}
	}
	return out
}

// Missing lists required fields absent from obj.
func (s *Schema) Missing(obj map[string]any) []string {
	var out []string
	for _, name := range s.RequiredFields() {
		if _, ok := obj[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Validate checks obj against the schema and returns a copy with score
// fields converted to float64. Validating the returned map again yields an
// identical map.
func (s *Schema) Validate(obj map[string]any) (map[string]any, error) {
	if obj == nil {
		return nil, &MissingFieldsError{Fields: s.RequiredFields()}
	}
	if missing := s.Missing(obj); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}

	for _, f := range s.Fields {
		v, ok := obj[f.Name]
		if !ok {
			continue
		}
		switch f.Kind {
		case KindScore:
			score, err := ToFloat(v)
			if err != nil {
				return nil, &RangeError{Field: f.Name, Value: v, Reason: "not a number"}
			}
			if math.IsNaN(score) || math.IsInf(score, 0) {
				return nil, &RangeError{Field: f.Name, Value: v, Reason: "not a finite number"}
			}
			if score < 0 || score > 1 {
				return nil, &RangeError{Field: f.Name, Value: v, Reason: "outside [0.0, 1.0]"}
			}
			out[f.Name] = score
		case KindEnum:
			str, _ := v.(string)
			if !contains(f.Allowed, str) {
				return nil, &EnumError{Field: f.Name, Value: fmt.Sprint(v), Allowed: f.Allowed}
			}
		case KindText:
			if _, isString := v.(string); !isString {
				return nil, &TypeError{Field: f.Name, Value: v, Want: "string"}
			}
		}
	}
	return out, nil
}

// ToFloat converts JSON numbers and numeric strings to float64.
func ToFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// MissingFieldsError lists required fields that are absent.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	fields := append([]string(nil), e.Fields...)
	sort.Strings(fields)
	return fmt.Sprintf("missing required fields: %s", strings.Join(fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool { return target == ErrValidation }

// RangeError reports a numeric field that is not a number in [0, 1].
type RangeError struct {
	Field  string
	Value  any
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s must be between 0.0 and 1.0, got %v (%s)", e.Field, e.Value, e.Reason)
}

func (e *RangeError) Is(target error) bool { return target == ErrValidation }

// EnumError reports a categorical field outside its value set.
type EnumError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *EnumError) Error() string {
	return fmt.Sprintf("invalid %s: %q, must be one of [%s]", e.Field, e.Value, strings.Join(e.Allowed, ", "))
}

func (e *EnumError) Is(target error) bool { return target == ErrValidation }

// TypeError reports a field with the wrong JSON type.
type TypeError struct {
	Field string
	Value any
	Want  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s must be a %s, got %T", e.Field, e.Want, e.Value)
}

func (e *TypeError) Is(target error) bool { return target == ErrValidation }
