package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flood-risk-aggregator/internal/models"
	"flood-risk-aggregator/internal/observability"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const refreshConcurrency = 3

type AlertFetcher interface {
	GetFloodAlerts(ctx context.Context, province string) (*models.AlertSummary, error)
}

type AlertStore interface {
	SetAlerts(province string, summary *models.AlertSummary)
}

// Scheduler periodically refreshes the alert summaries of a fixed province
// list so API reads hit a warm cache.
type Scheduler struct {
	alerts    AlertFetcher
	store     AlertStore
	metrics   *observability.Metrics
	logger    *zap.Logger
	cron      *cron.Cron
	schedule  string
	timeout   time.Duration
	mu        sync.Mutex
	provinces []string
	running   bool
	entryID   cron.EntryID
	lastRun   time.Time
	lastTook  time.Duration
	failures  int
}

func NewScheduler(alerts AlertFetcher, store AlertStore, provinces []string, schedule string, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		alerts:    alerts,
		store:     store,
		metrics:   metrics,
		logger:    logger,
		schedule:  schedule,
		timeout:   timeout,
		provinces: append([]string(nil), provinces...),
	}

	cl := cronLogger{logger.Named("cron")}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(
		cron.Recover(cl),
		cron.SkipIfStillRunning(cl),
	))

	id, err := s.cron.AddFunc(schedule, func() { s.RunNow(context.Background()) })
	if err != nil {
		return nil, fmt.Errorf("invalid alert schedule %q: %w", schedule, err)
	}
	s.entryID = id

	return s, nil
}

// Start refreshes once in the background, then follows the schedule.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("schedule", s.schedule),
		zap.Time("next_run", s.cron.Entry(s.entryID).Next))

	go s.RunNow(context.Background())
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// RunNow refreshes every configured province and returns once all are done.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.mu.Lock()
	provinces := append([]string(nil), s.provinces...)
	s.mu.Unlock()

	startTime := time.Now()
	s.logger.Info("Starting scheduled alert refresh", zap.Strings("provinces", provinces))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var mu sync.Mutex
	failures := 0

	var g errgroup.Group
	g.SetLimit(refreshConcurrency)
	for _, province := range provinces {
		g.Go(func() error {
			summary, err := s.alerts.GetFloodAlerts(ctx, province)
			if err != nil {
				s.logger.Error("Alert refresh failed", zap.String("province", province), zap.Error(err))
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}
			s.store.SetAlerts(province, summary)
			s.metrics.SetActiveAlerts(summary.Province, summary.TotalAlerts)
			return nil
		})
	}
	_ = g.Wait()

	took := time.Since(startTime)
	s.mu.Lock()
	s.lastRun = startTime
	s.lastTook = took
	s.failures = failures
	s.mu.Unlock()

	s.logger.Info("Scheduled alert refresh completed",
		zap.Int("provinces", len(provinces)),
		zap.Int("failures", failures),
		zap.Duration("duration", took))
}

func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"running":       s.running,
		"schedule":      s.schedule,
		"last_run":      s.lastRun,
		"last_duration": s.lastTook.String(),
		"last_failures": s.failures,
		"provinces":     s.provinces,
	}
	if s.running {
		status["next_run"] = s.cron.Entry(s.entryID).Next
	}
	return status
}

func (s *Scheduler) UpdateProvinces(provinces []string) {
	s.mu.Lock()
	s.provinces = append([]string(nil), provinces...)
	s.mu.Unlock()

	s.logger.Info("Scheduler provinces updated", zap.Strings("provinces", provinces))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
