package envelope

import (
	"encoding/json"
	"sort"
)

// MaxRawResponse bounds the raw model excerpt carried by a failure.
const MaxRawResponse = 1000

// Code classifies a failure.
type Code string

const (
	CodeConfig    Code = "config"
	CodeTransport Code = "transport"
	CodeQuota     Code = "quota"
	CodeAuth      Code = "auth"
	CodeMalformed Code = "malformed_response"
	CodeValidate  Code = "validation"
	CodeInput     Code = "input"
	CodeInternal  Code = "internal"
)

// Envelope is the only value returned to callers. Exactly one of the success
// or failure variants is populated.
type Envelope struct {
	Source string
	Fields map[string]any

	Error       string
	Code        Code
	RawResponse string
	Partial     map[string]any

	RequestID string
}

// Success builds a success envelope. Reserved keys in fields are dropped.
func Success(source string, fields map[string]any) *Envelope {
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		if reserved(k) {
			continue
		}
		clean[k] = v
	}
	return &Envelope{Source: source, Fields: clean}
}

// Failure builds a failure envelope.
func Failure(code Code, msg string) *Envelope {
	if msg == "" {
		msg = "analysis failed"
	}
	return &Envelope{Error: msg, Code: code}
}

// WithRaw attaches a bounded excerpt of the raw model output.
func (e *Envelope) WithRaw(raw string) *Envelope {
	e.RawResponse = Truncate(raw, MaxRawResponse)
	return e
}

// WithPartial attaches an incomplete model object for inspection.
func (e *Envelope) WithPartial(partial map[string]any) *Envelope {
	e.Partial = partial
	return e
}

// WithRequestID tags the envelope with a request identifier.
func (e *Envelope) WithRequestID(id string) *Envelope {
	e.RequestID = id
	return e
}

// OK reports whether this is a success envelope.
func (e *Envelope) OK() bool {
	return e != nil && e.Error == ""
}

// Get returns a success field.
func (e *Envelope) Get(key string) (any, bool) {
	if e == nil || e.Fields == nil {
		return nil, false
	}
	v, ok := e.Fields[key]
	return v, ok
}

// Keys returns the success field names, sorted.
func (e *Envelope) Keys() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON flattens success fields next to "source", or emits the failure
// keys.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if e.OK() {
		for k, v := range e.Fields {
			out[k] = v
		}
		out["source"] = e.Source
	} else {
		out["error"] = e.Error
		if e.Code != "" {
			out["error_code"] = e.Code
		}
		if e.RawResponse != "" {
			out["raw_response"] = e.RawResponse
		}
		if e.Partial != nil {
			out["partial_response"] = e.Partial
		}
	}
	if e.RequestID != "" {
		out["request_id"] = e.RequestID
	}
	return json.Marshal(out)
}

// Truncate returns at most n characters of s.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func reserved(k string) bool {
	switch k {
	case "source", "error", "error_code", "raw_response", "partial_response", "request_id":
		return true
	}
	return false
}
