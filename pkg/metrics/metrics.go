package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ProviderCallsTotal counts provider invocations by outcome.
	ProviderCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldscore",
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "Total number of provider calls, labeled by provider, task and result (ok or error kind).",
	}, []string{"provider", "task", "result"})

	// ProviderCallDurationSeconds is the latency of a single provider call.
	ProviderCallDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fieldscore",
		Subsystem: "provider",
		Name:      "call_duration_seconds",
		Help:      "Time spent in a single provider call.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60, 120},
	}, []string{"provider", "task"})

	// ProviderTokensTotal counts tokens reported by providers.
	ProviderTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldscore",
		Subsystem: "provider",
		Name:      "tokens_total",
		Help:      "Total number of tokens reported by providers, labeled by provider, model and kind (prompt or completion).",
	}, []string{"provider", "model", "kind"})

	// KeyRotationsTotal counts credential rotations after quota errors.
	KeyRotationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldscore",
		Subsystem: "tokenpool",
		Name:      "rotations_total",
		Help:      "Total number of key rotations, labeled by pool.",
	}, []string{"pool"})

	// PoolExhaustedTotal counts requests that ran through every key in a pool.
	PoolExhaustedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldscore",
		Subsystem: "tokenpool",
		Name:      "exhausted_total",
		Help:      "Total number of calls that hit quota on every key in a pool.",
	}, []string{"pool"})

	// FallbacksTotal counts evidence requests answered by the fallback provider.
	FallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldscore",
		Subsystem: "orchestrator",
		Name:      "fallbacks_total",
		Help:      "Total number of fallback attempts, labeled by task and result.",
	}, []string{"task", "result"})

	// AutoFilledFieldsTotal counts fields supplied by the auto-fill step.
	AutoFilledFieldsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldscore",
		Subsystem: "normalize",
		Name:      "auto_filled_fields_total",
		Help:      "Total number of result fields filled in server side, labeled by field.",
	}, []string{"field"})

	// EnvelopesTotal counts result envelopes by task and code ("ok" on success).
	EnvelopesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldscore",
		Subsystem: "orchestrator",
		Name:      "envelopes_total",
		Help:      "Total number of result envelopes returned, labeled by task and code.",
	}, []string{"task", "code"})

	// RequestDurationSeconds is end-to-end time per orchestrated request.
	RequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fieldscore",
		Subsystem: "orchestrator",
		Name:      "request_duration_seconds",
		Help:      "End-to-end time to produce a result envelope.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120, 300},
	}, []string{"task"})
)

// Register registers fieldscore metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ProviderCallsTotal,
			ProviderCallDurationSeconds,
			ProviderTokensTotal,
			KeyRotationsTotal,
			PoolExhaustedTotal,
			FallbacksTotal,
			AutoFilledFieldsTotal,
			EnvelopesTotal,
			RequestDurationSeconds,
		)
	})
}

// ObserveCall records one provider call.
func ObserveCall(provider, task, result string, started time.Time) {
	ProviderCallsTotal.WithLabelValues(provider, task, result).Inc()
	ProviderCallDurationSeconds.WithLabelValues(provider, task).Observe(time.Since(started).Seconds())
}

// ObserveUsage records token usage for one successful call. Providers that
// report only a total are counted as prompt tokens.
func ObserveUsage(provider, model string, prompt, completion, total int) {
	if prompt == 0 && completion == 0 {
		prompt = total
	}
	if prompt > 0 {
		ProviderTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		ProviderTokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completion))
	}
}

// ObserveEnvelope records one finished request.
func ObserveEnvelope(task, code string, started time.Time) {
	if code == "" {
		code = "ok"
	}
	EnvelopesTotal.WithLabelValues(task, code).Inc()
	RequestDurationSeconds.WithLabelValues(task).Observe(time.Since(started).Seconds())
}
