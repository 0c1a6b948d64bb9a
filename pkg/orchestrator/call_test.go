package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/fieldscore/pkg/adapter"
	"github.com/zen-systems/fieldscore/pkg/config"
	"github.com/zen-systems/fieldscore/pkg/tokenpool"
)

func TestComputeBackoff(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, computeBackoff(200, 2000, 0))
	assert.Equal(t, 400*time.Millisecond, computeBackoff(200, 2000, 1))
	assert.Equal(t, 800*time.Millisecond, computeBackoff(200, 2000, 2))
	assert.Equal(t, 2000*time.Millisecond, computeBackoff(200, 2000, 10))
}

func TestSleepWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepWithContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, sleepWithContext(context.Background(), 0))
}

func TestCallRotatesKeyOnQuota(t *testing.T) {
	pool := tokenpool.New("gemini", []string{"k1", "k2"})
	mock := adapter.NewMockAdapterWithReplies("google",
		adapter.MockReply{Err: quotaErr("google")},
		adapter.MockReply{Text: "ok"},
	)
	o, rec := newTestOrchestrator(map[string]adapter.Adapter{"google": mock}, nil, WithGeminiPool(pool))

	resp, report, err := o.callWithPolicy(context.Background(), mock, &adapter.Request{Model: "gemini-2.0-flash"}, o.policy(config.TaskEvidence, config.AdapterGoogle))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, report.Rotations)
	assert.Empty(t, rec.recorded(), "quota rotation retries immediately")

	key, _ := pool.Current()
	assert.Equal(t, "k2", key)
}

func TestCallStopsAfterEveryKeyHitQuota(t *testing.T) {
	pool := tokenpool.New("gemini", []string{"k1", "k2"})
	mock := adapter.NewMockAdapterWithReplies("google",
		adapter.MockReply{Err: quotaErr("google")},
		adapter.MockReply{Err: quotaErr("google")},
		adapter.MockReply{Text: "never reached"},
	)
	o, _ := newTestOrchestrator(map[string]adapter.Adapter{"google": mock}, nil, WithGeminiPool(pool))

	_, _, err := o.callWithPolicy(context.Background(), mock, &adapter.Request{}, o.policy(config.TaskEvidence, config.AdapterGoogle))
	require.Error(t, err)
	assert.True(t, adapter.IsQuota(err))
	assert.Len(t, mock.Calls(), 2)

	key, _ := pool.Current()
	assert.Equal(t, "k1", key, "cursor moves past the last failed key")
}

// keyRecorder notes which pool key was current for each call.
type keyRecorder struct {
	adapter.Adapter
	pool *tokenpool.Pool
	keys []string
}

func (k *keyRecorder) Invoke(ctx context.Context, req *adapter.Request) (*adapter.Response, error) {
	key, _ := k.pool.Current()
	k.keys = append(k.keys, key)
	return k.Adapter.Invoke(ctx, req)
}

func TestCallStartingMidPoolTriesEveryKey(t *testing.T) {
	pool := tokenpool.New("gemini", []string{"k1", "k2", "k3"})
	mock := adapter.NewMockAdapterWithReplies("google",
		adapter.MockReply{Err: quotaErr("google")},
		adapter.MockReply{Text: "first"},
		adapter.MockReply{Err: quotaErr("google")},
		adapter.MockReply{Err: quotaErr("google")},
		adapter.MockReply{Text: "second"},
	)
	rec := &keyRecorder{Adapter: mock, pool: pool}
	o, _ := newTestOrchestrator(map[string]adapter.Adapter{"google": rec}, nil, WithGeminiPool(pool))
	policy := o.policy(config.TaskEvidence, config.AdapterGoogle)

	resp, _, err := o.callWithPolicy(context.Background(), rec, &adapter.Request{}, policy)
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Text)

	resp, report, err := o.callWithPolicy(context.Background(), rec, &adapter.Request{}, policy)
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Text)
	assert.Equal(t, 2, report.Rotations)
	assert.Equal(t, []string{"k1", "k2", "k2", "k3", "k1"}, rec.keys)
}

func TestCallBacksOffOnTransientErrors(t *testing.T) {
	mock := adapter.NewMockAdapterWithReplies("openai",
		adapter.MockReply{Err: networkErr("openai")},
		adapter.MockReply{Err: quotaErr("openai")},
		adapter.MockReply{Text: "done"},
	)
	o, rec := newTestOrchestrator(map[string]adapter.Adapter{"openai": mock}, nil)

	resp, report, err := o.callWithPolicy(context.Background(), mock, &adapter.Request{}, o.policy(config.TaskStory, config.AdapterOpenAI))
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Text)
	assert.Equal(t, 2, report.Retries)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, rec.recorded())
}

func TestCallDoesNotRetryFatalErrors(t *testing.T) {
	authErr := &adapter.AdapterError{Provider: "anthropic", Kind: adapter.KindAuth, Status: 401, Err: errors.New("invalid x-api-key")}
	mock := adapter.NewMockAdapterWithReplies("anthropic", adapter.MockReply{Err: authErr})
	o, rec := newTestOrchestrator(map[string]adapter.Adapter{"anthropic": mock}, nil)

	_, report, err := o.callWithPolicy(context.Background(), mock, &adapter.Request{}, o.policy(config.TaskStory, config.AdapterAnthropic))
	require.Error(t, err)
	assert.Equal(t, adapter.KindAuth, adapter.KindOf(err))
	assert.Len(t, mock.Calls(), 1)
	assert.Empty(t, rec.recorded())
	assert.Contains(t, report.Error, "invalid x-api-key")
}
