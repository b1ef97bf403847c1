package services

import (
	"time"

	"flood-risk-aggregator/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	defaultDeadline      = 8 * time.Second
	defaultAlertTimeout  = 8 * time.Second
	defaultBBoxRadiusKm  = 1.0
	defaultFallbackScore = 25
)

type settings struct {
	clock         clockwork.Clock
	metrics       *observability.Metrics
	weights       Weights
	normalizer    NormalizerConfig
	deadline      time.Duration
	bboxRadiusKm  float64
	fallbackScore int
}

func newSettings(opts []Option) settings {
	s := settings{
		clock:         clockwork.NewRealClock(),
		weights:       DefaultWeights(),
		normalizer:    DefaultNormalizerConfig(),
		bboxRadiusKm:  defaultBBoxRadiusKm,
		fallbackScore: defaultFallbackScore,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a RiskAggregator or AlertAggregator.
type Option func(*settings)

func WithClock(clock clockwork.Clock) Option {
	return func(s *settings) { s.clock = clock }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

func WithWeights(w Weights) Option {
	return func(s *settings) { s.weights = w }
}

func WithNormalizerConfig(cfg NormalizerConfig) Option {
	return func(s *settings) { s.normalizer = cfg }
}

// WithDeadline bounds a whole assessment, or a whole alert query.
func WithDeadline(d time.Duration) Option {
	return func(s *settings) { s.deadline = d }
}

// WithBoundingBoxRadius sets the half-side, in km, of the box sent to the
// infrastructure provider.
func WithBoundingBoxRadius(km float64) Option {
	return func(s *settings) { s.bboxRadiusKm = km }
}

// WithFallbackScore sets the score reported when no provider answers.
func WithFallbackScore(score int) Option {
	return func(s *settings) { s.fallbackScore = score }
}
