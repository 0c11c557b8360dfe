// Package metrics exposes the Prometheus collectors that report EmotiBot
// activity: chat turns, external model calls, live conversations, mood
// distribution and face cache efficiency.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/emotibot/core"
)

const namespace = "emotibot"

// Call labels for external model calls.
const (
	CallClassify = "classify"
	CallReply    = "reply"
)

// Outcome and status label values.
const (
	StatusOK       = "ok"
	StatusFallback = "fallback"

	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	turns         *prometheus.CounterVec
	calls         *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	conversations prometheus.Gauge
	moodValues    *prometheus.HistogramVec
	faceCache     *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global Prometheus
// registry. Collectors are created once so repeated construction of bots
// never panics on duplicate registration.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNewMetrics constructs Metrics registered with reg (the default
// registerer when nil). Collectors already registered under the same name are
// reused; any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Metrics{
		turns: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Chat turns handled, by outcome.",
			},
			[]string{"outcome"},
		)),
		calls: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_calls_total",
				Help:      "Language model calls, by call and whether the fallback was used.",
			},
			[]string{"call", "status"},
		)),
		callDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "external_call_duration_seconds",
				Help:      "Latency of language model calls.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"call"},
		)),
		conversations: register(reg, prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "conversations",
				Help:      "Conversations currently held in memory.",
			},
		)),
		moodValues: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mood_value",
				Help:      "Mood field values after each update.",
				Buckets:   prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"field"},
		)),
		faceCache: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "face_cache_requests_total",
				Help:      "Face render cache lookups, by result.",
			},
			[]string{"result"},
		)),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveTurn counts a finished chat turn.
func (m *Metrics) ObserveTurn(err error) {
	if m == nil {
		return
	}
	outcome := OutcomeCompleted
	if err != nil {
		outcome = OutcomeFailed
	}
	m.turns.WithLabelValues(outcome).Inc()
}

// ObserveCall records one external call. fallback marks calls whose result
// was replaced by the fallback value.
func (m *Metrics) ObserveCall(call string, fallback bool, d time.Duration) {
	if m == nil {
		return
	}
	status := StatusOK
	if fallback {
		status = StatusFallback
	}
	m.calls.WithLabelValues(call, status).Inc()
	m.callDuration.WithLabelValues(call).Observe(d.Seconds())
}

// SetConversations updates the live conversation gauge.
func (m *Metrics) SetConversations(n int) {
	if m == nil {
		return
	}
	m.conversations.Set(float64(n))
}

// ObserveMood records every field of a mood vector.
func (m *Metrics) ObserveMood(v core.MoodVector) {
	if m == nil {
		return
	}
	for _, f := range core.Fields {
		m.moodValues.WithLabelValues(string(f)).Observe(v.Get(f))
	}
}

// ObserveFaceCache counts a face cache lookup.
func (m *Metrics) ObserveFaceCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.faceCache.WithLabelValues(result).Inc()
}
