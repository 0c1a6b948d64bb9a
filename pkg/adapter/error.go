package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies provider failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindConfig is a missing credential or endpoint. No call was made.
	KindConfig
	// KindAuth is an invalid credential. Not retried.
	KindAuth
	// KindNetwork is a transport failure or 5xx. Retried up to the ceiling.
	KindNetwork
	// KindQuota is a rate limit. Triggers key rotation where a pool exists.
	KindQuota
	// KindMalformed is a reply with no usable content. Not retried.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindQuota:
		return "quota"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// AdapterError wraps provider errors with status metadata.
type AdapterError struct {
	Provider  string
	Kind      ErrorKind
	Status    int
	Temporary bool
	Err       error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "adapter error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %s error (status=%d)", e.Provider, e.Kind, e.Status)
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ConfigError reports a missing credential for provider.
func ConfigError(provider, format string, args ...any) error {
	return &AdapterError{Provider: provider, Kind: KindConfig, Err: fmt.Errorf(format, args...)}
}

// MalformedError reports a reply with no usable content.
func MalformedError(provider, format string, args ...any) error {
	return &AdapterError{Provider: provider, Kind: KindMalformed, Err: fmt.Errorf(format, args...)}
}

// classify wraps err using the HTTP status when known and the message text
// otherwise.
func classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	var existing *AdapterError
	if errors.As(err, &existing) {
		return err
	}
	ae := &AdapterError{Provider: provider, Status: status, Err: err}
	switch {
	case status == 401 || status == 403:
		ae.Kind = KindAuth
	case status == 429:
		ae.Kind = KindQuota
	case status >= 500 && status <= 599:
		ae.Kind = KindNetwork
		ae.Temporary = true
	case IsQuotaMessage(err.Error()):
		ae.Kind = KindQuota
	case errors.Is(err, context.Canceled):
		ae.Kind = KindUnknown
	case isNetErr(err):
		ae.Kind = KindNetwork
		ae.Temporary = true
	case status >= 400 && status <= 499:
		ae.Kind = KindUnknown
	case isAuthMessage(err.Error()):
		ae.Kind = KindAuth
	}
	return ae
}

// IsQuotaMessage reports whether an error message describes a rate limit.
func IsQuotaMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range []string{"quota", "rate limit", "429"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isAuthMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "api key not valid") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "unauthenticated")
}

func isNetErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if err != nil && isNetErr(err) {
		return KindNetwork
	}
	return KindUnknown
}

// IsQuota reports whether err is a rate-limit failure.
func IsQuota(err error) bool {
	if KindOf(err) == KindQuota {
		return true
	}
	return err != nil && IsQuotaMessage(err.Error())
}

// IsTransient reports whether an error is safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		if adapterErr.Temporary || adapterErr.Kind == KindNetwork || adapterErr.Kind == KindQuota {
			return true
		}
		if adapterErr.Status == 429 || (adapterErr.Status >= 500 && adapterErr.Status <= 599) {
			return true
		}
	}
	return false
}
