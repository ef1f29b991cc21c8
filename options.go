package gorawrcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Keksclan/goRawrCache/breaker"
	"github.com/Keksclan/goRawrCache/tracing"
)

// Option configures a Manager.
type Option func(*settings)

// settings collects everything assembled via functional options before the
// Manager is constructed.
type settings struct {
	logger     *zap.Logger
	tracing    *tracing.Config
	breakerCfg breaker.Config
	registerer prometheus.Registerer
}

// WithLogger sets the structured logger used for degraded-mode transitions
// and absorbed backend errors. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracing enables OpenTelemetry spans around cache operations.
func WithTracing(cfg *tracing.Config) Option {
	return func(s *settings) {
		s.tracing = cfg
	}
}

// WithBreaker overrides the circuit breaker parameters gating the L2
// backend.
func WithBreaker(cfg breaker.Config) Option {
	return func(s *settings) {
		s.breakerCfg = cfg
	}
}

// WithPrometheus registers the cache metrics with the given registerer so
// they appear in scrapes alongside the host process's own metrics.
func WithPrometheus(reg prometheus.Registerer) Option {
	return func(s *settings) {
		s.registerer = reg
	}
}
