package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"flood-risk-aggregator/internal/models"
	"flood-risk-aggregator/internal/observability"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// AlertSource publishes active flood warnings for a region.
type AlertSource interface {
	Kind() models.ProviderKind
	FetchAlerts(ctx context.Context, region models.Region) ([]models.FloodAlert, error)
}

// ProvinceResolver maps a province name to its centroid.
type ProvinceResolver interface {
	Resolve(province string) (models.Location, bool)
}

// AlertAggregator merges warnings from every source for one province. A
// failing source is left out of the merge; the call itself still succeeds.
type AlertAggregator struct {
	sources  []AlertSource
	resolver ProvinceResolver
	timeout  time.Duration
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *zap.Logger
}

type alertResult struct {
	index  int
	alerts []models.FloodAlert
	err    error
}

func NewAlertAggregator(sources []AlertSource, resolver ProvinceResolver, logger *zap.Logger, opts ...Option) *AlertAggregator {
	s := newSettings(opts)
	if s.deadline <= 0 {
		s.deadline = defaultAlertTimeout
	}

	ordered := append([]AlertSource(nil), sources...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Kind() < ordered[j].Kind()
	})

	return &AlertAggregator{
		sources:  ordered,
		resolver: resolver,
		timeout:  s.deadline,
		clock:    s.clock,
		metrics:  s.metrics,
		logger:   logger,
	}
}

// GetFloodAlerts returns the active alerts for province ordered by issue time.
// Only an empty province name is an error.
func (a *AlertAggregator) GetFloodAlerts(ctx context.Context, province string) (*models.AlertSummary, error) {
	province = strings.TrimSpace(province)
	if province == "" {
		return nil, &models.InvalidLocationError{Problems: []string{"province is required"}}
	}

	region := models.Region{Province: province}
	if a.resolver != nil {
		if center, ok := a.resolver.Resolve(province); ok {
			region.Province = center.Province
			region.Center = &center
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// Late sources are left out of the merge; the buffer keeps them from
	// blocking once we stop listening.
	results := make(chan alertResult, len(a.sources))
	for i, src := range a.sources {
		go func() {
			alerts, err := fetchAlerts(ctx, src, region)
			results <- alertResult{index: i, alerts: alerts, err: err}
		}()
	}

	slots := make([]*alertResult, len(a.sources))
	pending := len(a.sources)
wait:
	for pending > 0 {
		select {
		case r := <-results:
			slots[r.index] = &r
			pending--
		case <-ctx.Done():
			break wait
		}
	}
	for drained := false; pending > 0 && !drained; {
		select {
		case r := <-results:
			slots[r.index] = &r
			pending--
		default:
			drained = true
		}
	}

	summary := &models.AlertSummary{
		Province: region.Province,
		Alerts:   []models.FloodAlert{},
		Sources:  []models.ProviderKind{},
	}
	for i, slot := range slots {
		kind := a.sources[i].Kind().String()
		if slot == nil {
			a.metrics.ObserveAlertSource(kind, OutcomeTimeout)
			a.logger.Warn("Alert source missed deadline",
				zap.String("provider", kind),
				zap.String("province", region.Province))
			continue
		}
		outcome := classify(slot.err)
		a.metrics.ObserveAlertSource(kind, outcome)
		if slot.err != nil {
			a.logger.Warn("Alert source failed",
				zap.String("provider", kind),
				zap.String("province", region.Province),
				zap.String("outcome", outcome),
				zap.Error(slot.err))
			continue
		}
		summary.Sources = append(summary.Sources, a.sources[i].Kind())
		summary.Alerts = append(summary.Alerts, slot.alerts...)
	}

	sort.SliceStable(summary.Alerts, func(i, j int) bool {
		x, y := summary.Alerts[i], summary.Alerts[j]
		if !x.IssuedAt.Equal(y.IssuedAt) {
			return x.IssuedAt.Before(y.IssuedAt)
		}
		return x.ID < y.ID
	})

	summary.TotalAlerts = len(summary.Alerts)
	for _, alert := range summary.Alerts {
		if alert.Severity == models.AlertSeverityHigh {
			summary.HighSeverityCount++
		}
	}
	summary.GeneratedAt = a.clock.Now().UTC()

	a.logger.Info("Flood alerts merged",
		zap.String("province", summary.Province),
		zap.Int("total", summary.TotalAlerts),
		zap.Int("high", summary.HighSeverityCount),
		zap.Int("sources", len(summary.Sources)))

	return summary, nil
}

func fetchAlerts(ctx context.Context, src AlertSource, region models.Region) (alerts []models.FloodAlert, err error) {
	defer func() {
		if r := recover(); r != nil {
			alerts = nil
			err = models.Unavailable(fmt.Errorf("%s alert source panicked: %v", src.Kind(), r))
		}
	}()
	return src.FetchAlerts(ctx, region)
}
