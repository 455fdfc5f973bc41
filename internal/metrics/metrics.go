// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics provides Prometheus metrics for polychat.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for polychat.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Chat metrics
	ChatSendsTotal      *prometheus.CounterVec
	ProviderDuration    *prometheus.HistogramVec
	RateLimitRejections prometheus.Counter
	RateLimitFailOpen   prometheus.Counter

	// Server metrics
	ServerStartTime time.Time
}

// New creates and registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:        reg,
		ServerStartTime: time.Now(),
	}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polychat_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polychat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.HTTPRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "polychat_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	m.ChatSendsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polychat_chat_sends_total",
			Help: "Orchestrated chat sends by mentor and outcome",
		},
		[]string{"mentor", "outcome"},
	)

	m.ProviderDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polychat_provider_request_duration_seconds",
			Help:    "Duration of language model provider calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"model", "outcome"},
	)

	m.RateLimitRejections = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "polychat_rate_limit_rejections_total",
			Help: "Chat sends rejected by the per-conversation rate limit",
		},
	)

	m.RateLimitFailOpen = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "polychat_rate_limit_fail_open_total",
			Help: "Rate limit checks allowed because the count query failed",
		},
	)

	return m
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveSend records an orchestrated send.
func (m *Metrics) ObserveSend(mentor, outcome string) {
	if m == nil {
		return
	}
	m.ChatSendsTotal.WithLabelValues(mentor, outcome).Inc()
}

// ObserveProvider records a provider call.
func (m *Metrics) ObserveProvider(modelID, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderDuration.WithLabelValues(modelID, outcome).Observe(d.Seconds())
}

// IncRateLimited counts a rejected send.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitRejections.Inc()
}

// IncFailOpen counts a fail-open decision.
func (m *Metrics) IncFailOpen() {
	if m == nil {
		return
	}
	m.RateLimitFailOpen.Inc()
}

// InFlight adjusts the in-flight gauge by delta.
func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Add(delta)
}
