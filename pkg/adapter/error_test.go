package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyByStatus(t *testing.T) {
	tests := []struct {
		status    int
		kind      ErrorKind
		transient bool
	}{
		{401, KindAuth, false},
		{403, KindAuth, false},
		{429, KindQuota, true},
		{500, KindNetwork, true},
		{503, KindNetwork, true},
		{400, KindUnknown, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := classify("openai", tt.status, errors.New("boom"))
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestClassifyQuotaMessages(t *testing.T) {
	for _, msg := range []string{
		"Resource has been exhausted (e.g. check quota).",
		"Rate limit reached for requests",
		"Error 429, Message: slow down",
	} {
		err := classify("google", 0, errors.New(msg))
		assert.True(t, IsQuota(err), msg)
	}
	assert.False(t, IsQuota(classify("google", 0, errors.New("bad request"))))
}

func TestClassifyKeepsExistingAdapterError(t *testing.T) {
	orig := MalformedError("bedrock", "no content")
	assert.Same(t, orig, classify("bedrock", 500, orig))
}

func TestClassifyDeadline(t *testing.T) {
	err := classify("sambanova", 0, fmt.Errorf("post: %w", context.DeadlineExceeded))
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, IsTransient(err))
}

func TestCanceledIsNotTransient(t *testing.T) {
	err := classify("openai", 0, context.Canceled)
	assert.False(t, IsTransient(err))
}

func TestConfigErrorKind(t *testing.T) {
	err := ConfigError("openai", "openai API key is required")
	assert.Equal(t, KindConfig, KindOf(err))
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "openai API key is required")
}
