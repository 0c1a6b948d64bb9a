package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"

	"github.com/zen-systems/fieldscore/pkg/adapter"
	"github.com/zen-systems/fieldscore/pkg/config"
	"github.com/zen-systems/fieldscore/pkg/metrics"
	"github.com/zen-systems/fieldscore/pkg/tokenpool"
)

// callPolicy controls how one adapter call is retried.
type callPolicy struct {
	task  string
	retry config.RetryConfig
	// pool, when set, is rotated on quota errors instead of backing off.
	pool *tokenpool.Pool
}

// callWithPolicy invokes a with req until it succeeds, the error is not
// transient, the attempts run out, or every pool key has hit quota.
func (o *Orchestrator) callWithPolicy(ctx context.Context, a adapter.Adapter, req *adapter.Request, policy callPolicy) (*adapter.Response, adapter.CallReport, error) {
	report := adapter.CallReport{Adapter: a.Name(), Model: req.Model}
	attempts := policy.retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	// keysTried counts pool keys that hit quota during this call, so a call
	// that starts mid-pool still tries every key once.
	var keysTried int
	for attempt := 0; attempt < attempts; attempt++ {
		report.Retries = attempt
		started := time.Now()
		resp, err := a.Invoke(ctx, req)
		if err == nil {
			metrics.ObserveCall(a.Name(), policy.task, "ok", started)
			if resp.Usage != nil {
				report.Usage = *resp.Usage
				metrics.ObserveUsage(a.Name(), req.Model, report.Usage.PromptTokens, report.Usage.CompletionTokens, report.Usage.TotalTokens)
			}
			report.Error = ""
			return resp, report, nil
		}

		metrics.ObserveCall(a.Name(), policy.task, adapter.KindOf(err).String(), started)
		lastErr = err
		report.Error = err.Error()
		fields := log.Fields{
			"task":    policy.task,
			"adapter": a.Name(),
			"model":   req.Model,
			"attempt": attempt + 1,
			"kind":    adapter.KindOf(err).String(),
		}

		if policy.pool != nil && adapter.IsQuota(err) {
			keysTried++
			metrics.KeyRotationsTotal.WithLabelValues(policy.pool.Name()).Inc()
			if _, ok := policy.pool.Advance(); !ok || keysTried >= policy.pool.Len() {
				metrics.PoolExhaustedTotal.WithLabelValues(policy.pool.Name()).Inc()
				log.WithFields(fields).Warn("quota exceeded on every key")
				break
			}
			report.Rotations++
			log.WithFields(fields).Info("quota exceeded, retrying with next key")
			continue
		}

		if !adapter.IsTransient(err) || attempt == attempts-1 {
			log.WithFields(fields).WithError(err).Warn("provider call failed")
			break
		}

		backoff := computeBackoff(policy.retry.BaseBackoffMs, policy.retry.MaxBackoffMs, attempt)
		log.WithFields(fields).WithField("backoff", backoff.String()).Info("retrying provider call")
		if err := o.sleep(ctx, backoff); err != nil {
			lastErr = err
			report.Error = err.Error()
			break
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%s call failed", a.Name())
	}
	return nil, report, lastErr
}

func computeBackoff(baseMs, maxMs, attempt int) time.Duration {
	backoff := time.Duration(baseMs) * time.Millisecond
	ceiling := time.Duration(maxMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= ceiling {
			return ceiling
		}
	}
	if backoff > ceiling {
		return ceiling
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
