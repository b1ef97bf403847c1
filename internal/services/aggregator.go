package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"flood-risk-aggregator/internal/geo"
	"flood-risk-aggregator/internal/models"
	"flood-risk-aggregator/internal/observability"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Provider outcomes, as reported on risk factors and metrics.
const (
	OutcomeOK            = "ok"
	OutcomeUnavailable   = "unavailable"
	OutcomeMalformed     = "malformed"
	OutcomeTimeout       = "timeout"
	OutcomeCredentials   = "credentials"
	OutcomeNotConfigured = "not_configured"
)

// ProviderClient is one external data source.
type ProviderClient interface {
	Kind() models.ProviderKind
	Fetch(ctx context.Context, q models.Query) (models.RawResult, error)
}

// RiskAggregator fans out to the providers and combines their answers into a
// flood risk assessment. It keeps no state between calls.
type RiskAggregator struct {
	providers     []ProviderClient
	normalizer    *Normalizer
	weights       Weights
	deadline      time.Duration
	bboxRadiusKm  float64
	fallbackScore int
	clock         clockwork.Clock
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// branchResult is the slot one provider branch fills.
type branchResult struct {
	index int
	raw   models.RawResult
	err   error
	took  time.Duration
}

func NewRiskAggregator(providers []ProviderClient, logger *zap.Logger, opts ...Option) (*RiskAggregator, error) {
	s := newSettings(opts)
	if s.deadline <= 0 {
		s.deadline = defaultDeadline
	}

	seen := make(map[models.ProviderKind]bool, len(providers))
	for _, p := range providers {
		kind := p.Kind()
		if !kind.Valid() {
			return nil, fmt.Errorf("provider %s is not a known kind", kind)
		}
		if seen[kind] {
			return nil, fmt.Errorf("provider %s registered twice", kind)
		}
		seen[kind] = true
	}
	if err := s.weights.Validate(); err != nil {
		return nil, err
	}
	if s.fallbackScore < 0 || s.fallbackScore > 100 {
		return nil, fmt.Errorf("fallback score %d is outside [0, 100]", s.fallbackScore)
	}
	if s.bboxRadiusKm <= 0 {
		return nil, fmt.Errorf("bounding box radius must be positive, got %v", s.bboxRadiusKm)
	}

	normalizer := NewNormalizer(s.normalizer)
	logger.Debug("Risk aggregator configured",
		zap.Int("providers", len(providers)),
		zap.Duration("deadline", s.deadline),
		zap.Stringer("thresholds", normalizer.cfg))

	return &RiskAggregator{
		providers:     append([]ProviderClient(nil), providers...),
		normalizer:    normalizer,
		weights:       s.weights,
		deadline:      s.deadline,
		bboxRadiusKm:  s.bboxRadiusKm,
		fallbackScore: s.fallbackScore,
		clock:         s.clock,
		metrics:       s.metrics,
		logger:        logger,
	}, nil
}

// Deadline is the default bound on one assessment.
func (a *RiskAggregator) Deadline() time.Duration {
	return a.deadline
}

// Providers lists the configured provider kinds in canonical order.
func (a *RiskAggregator) Providers() []models.ProviderKind {
	configured := make(map[models.ProviderKind]bool, len(a.providers))
	for _, p := range a.providers {
		configured[p.Kind()] = true
	}
	kinds := make([]models.ProviderKind, 0, len(a.providers))
	for _, kind := range models.ProviderKinds() {
		if configured[kind] {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// AssessFloodRisk returns a best-effort assessment for loc. The only error is
// an invalid location, reported before any provider is called. The call
// returns once every provider has settled or the deadline passes, whichever
// is first; ctx may carry a shorter deadline than the configured one.
func (a *RiskAggregator) AssessFloodRisk(ctx context.Context, loc models.Location) (*models.FloodRiskAssessment, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	start := a.clock.Now()
	ctx, cancel := context.WithTimeout(ctx, a.deadline)
	defer cancel()

	q := models.Query{Location: loc, BBox: geo.BoundingBoxAround(loc, a.bboxRadiusKm)}

	// Each branch owns one slot; the channel is buffered so late branches
	// never block after we stop listening.
	results := make(chan branchResult, len(a.providers))
	for i, p := range a.providers {
		go a.runBranch(ctx, i, p, q, results)
	}

	slots := make([]*branchResult, len(a.providers))
	pending := len(a.providers)
	deadlineExceeded := false

wait:
	for pending > 0 {
		select {
		case r := <-results:
			slots[r.index] = &r
			pending--
		case <-ctx.Done():
			deadlineExceeded = true
			break wait
		}
	}
	// Collect anything that settled while the deadline fired.
	for drained := false; pending > 0 && !drained; {
		select {
		case r := <-results:
			slots[r.index] = &r
			pending--
		default:
			drained = true
		}
	}
	deadlineExceeded = deadlineExceeded && pending > 0

	assessment := a.score(loc, slots)
	assessment.DeadlineExceeded = deadlineExceeded
	assessment.ComputedAt = a.clock.Now().UTC()

	a.metrics.ObserveAssessment(assessment.ConfidenceLevel.String(), string(assessment.Status))
	a.logger.Info("Flood risk assessed",
		zap.Float64("latitude", loc.Latitude),
		zap.Float64("longitude", loc.Longitude),
		zap.String("province", loc.Province),
		zap.Int("score", assessment.OverallRiskScore),
		zap.Stringer("level", assessment.RiskLevel),
		zap.Stringer("confidence", assessment.ConfidenceLevel),
		zap.Int("sources", len(assessment.DataSources)),
		zap.String("status", string(assessment.Status)),
		zap.Bool("deadline_exceeded", deadlineExceeded),
		zap.Duration("duration", a.clock.Since(start)))

	return assessment, nil
}

func (a *RiskAggregator) runBranch(ctx context.Context, index int, p ProviderClient, q models.Query, out chan<- branchResult) {
	start := a.clock.Now()
	result := branchResult{index: index}
	defer func() {
		if r := recover(); r != nil {
			result.raw = nil
			result.err = models.Unavailable(fmt.Errorf("%s provider panicked: %v", p.Kind(), r))
		}
		result.took = a.clock.Since(start)
		out <- result
	}()

	result.raw, result.err = p.Fetch(ctx, q)
}

// score turns settled slots into an assessment. A nil slot is a provider that
// was still pending at the deadline.
func (a *RiskAggregator) score(loc models.Location, slots []*branchResult) *models.FloodRiskAssessment {
	type settled struct {
		value   float64
		outcome string
		err     error
	}
	byKind := make(map[models.ProviderKind]settled, len(a.providers))

	for i, p := range a.providers {
		kind := p.Kind()
		slot := slots[i]
		if slot == nil {
			byKind[kind] = settled{outcome: OutcomeTimeout, err: fmt.Errorf("%s: no answer before deadline", kind)}
			a.metrics.ObserveProvider(kind.String(), OutcomeTimeout, 0)
			a.logger.Warn("Provider missed deadline",
				zap.String("provider", kind.String()),
				zap.String("outcome", OutcomeTimeout))
			continue
		}

		value, err := a.normalize(kind, slot)
		outcome := classify(err)
		byKind[kind] = settled{value: value, outcome: outcome, err: err}
		a.metrics.ObserveProvider(kind.String(), outcome, slot.took)

		if err != nil {
			a.logger.Warn("Provider failed",
				zap.String("provider", kind.String()),
				zap.String("outcome", outcome),
				zap.Duration("duration", slot.took),
				zap.Error(err))
		} else {
			a.logger.Debug("Provider answered",
				zap.String("provider", kind.String()),
				zap.Float64("value", value),
				zap.Duration("duration", slot.took))
		}
	}

	sources := make([]models.ProviderKind, 0, len(byKind))
	for _, kind := range models.ProviderKinds() {
		if s, ok := byKind[kind]; ok && s.err == nil {
			sources = append(sources, kind)
		}
	}
	weights, coverage := a.weights.Renormalize(sources)

	factors := make([]models.RiskFactor, 0, len(models.ProviderKinds()))
	sum := 0.0
	for _, kind := range models.ProviderKinds() {
		factor := models.RiskFactor{Source: kind, Outcome: OutcomeNotConfigured}
		if s, ok := byKind[kind]; ok {
			factor.Outcome = s.outcome
			if s.err != nil {
				factor.Error = s.err.Error()
			} else {
				factor.Available = true
				factor.Value = s.value
				factor.Weight = weights[kind]
				sum += factor.Value * factor.Weight
			}
		}
		factors = append(factors, factor)
	}

	assessment := &models.FloodRiskAssessment{
		Location:        loc,
		ConfidenceLevel: models.ConfidenceFor(len(sources)),
		DataSources:     sources,
		Factors:         factors,
		WeightCoverage:  coverage,
	}

	switch {
	case len(sources) == 0:
		assessment.OverallRiskScore = a.fallbackScore
		assessment.Status = models.StatusFallback
	case len(sources) == len(models.ProviderKinds()):
		assessment.OverallRiskScore = toScore(sum)
		assessment.Status = models.StatusComplete
	default:
		assessment.OverallRiskScore = toScore(sum)
		assessment.Status = models.StatusDegraded
	}
	assessment.RiskLevel = models.ClassifyRisk(assessment.OverallRiskScore)

	return assessment
}

func (a *RiskAggregator) normalize(kind models.ProviderKind, slot *branchResult) (float64, error) {
	if slot.err != nil {
		return 0, slot.err
	}
	if slot.raw == nil {
		return 0, models.Malformed("%s returned no reading", kind)
	}
	if slot.raw.Kind() != kind {
		return 0, models.Malformed("%s returned a %s reading", kind, slot.raw.Kind())
	}
	return a.normalizer.Normalize(slot.raw)
}

func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, models.ErrMissingCredentials):
		return OutcomeCredentials
	case errors.Is(err, models.ErrMalformedResponse):
		return OutcomeMalformed
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeUnavailable
	}
}

func toScore(weighted float64) int {
	score := int(math.Round(100 * weighted))
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
