package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"flood-risk-aggregator/internal/models"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type CacheItem struct {
	Data      interface{}
	ExpiresAt time.Time
}

// ResultCache keeps recent assessments, keyed by rounded location and time
// bucket, and recent alert summaries keyed by province. It lives outside the
// aggregators, which stay stateless.
type ResultCache struct {
	mu              sync.RWMutex
	assessments     map[string]CacheItem
	alerts          map[string]CacheItem
	clock           clockwork.Clock
	logger          *zap.Logger
	defaultDuration time.Duration
	maxSize         int
	precision       int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	hits            int
	misses          int
}

func NewResultCache(defaultDuration time.Duration, maxSize, precision int, clock clockwork.Clock, logger *zap.Logger) *ResultCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxSize <= 0 {
		maxSize = 1
	}
	if precision < 0 {
		precision = 0
	}
	cache := &ResultCache{
		assessments:     make(map[string]CacheItem),
		alerts:          make(map[string]CacheItem),
		clock:           clock,
		logger:          logger,
		defaultDuration: defaultDuration,
		maxSize:         maxSize,
		precision:       precision,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go cache.startCleanup()

	return cache
}

// AssessmentKey rounds the coordinates and appends the current time bucket, so
// nearby requests in the same window share an entry.
func (c *ResultCache) AssessmentKey(loc models.Location) string {
	key := fmt.Sprintf("%.*f,%.*f|%s", c.precision, loc.Latitude, c.precision, loc.Longitude, provinceKey(loc.Province))
	if c.defaultDuration > 0 {
		key = fmt.Sprintf("%s|%d", key, c.clock.Now().Truncate(c.defaultDuration).Unix())
	}
	return key
}

func provinceKey(province string) string {
	return strings.ToLower(strings.Join(strings.Fields(province), " "))
}

func (c *ResultCache) SetAssessment(loc models.Location, assessment *models.FloodRiskAssessment) {
	c.set(c.assessments, c.AssessmentKey(loc), assessment)
}

func (c *ResultCache) GetAssessment(loc models.Location) (*models.FloodRiskAssessment, bool) {
	data, ok := c.get(c.assessments, c.AssessmentKey(loc))
	if !ok {
		return nil, false
	}
	assessment, ok := data.(*models.FloodRiskAssessment)
	return assessment, ok
}

func (c *ResultCache) SetAlerts(province string, summary *models.AlertSummary) {
	c.set(c.alerts, provinceKey(province), summary)
}

func (c *ResultCache) GetAlerts(province string) (*models.AlertSummary, bool) {
	data, ok := c.get(c.alerts, provinceKey(province))
	if !ok {
		return nil, false
	}
	summary, ok := data.(*models.AlertSummary)
	return summary, ok
}

func (c *ResultCache) set(items map[string]CacheItem, key string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict if cache is too large
	if _, exists := items[key]; !exists && len(c.assessments)+len(c.alerts) >= c.maxSize {
		c.evictOldest()
	}

	expiresAt := c.clock.Now().Add(c.defaultDuration)
	items[key] = CacheItem{Data: data, ExpiresAt: expiresAt}

	c.logger.Debug("Result cached",
		zap.String("key", key),
		zap.Time("expires_at", expiresAt))
}

func (c *ResultCache) get(items map[string]CacheItem, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := items[key]
	if exists && !c.clock.Now().Before(item.ExpiresAt) {
		delete(items, key)
		exists = false
	}
	if !exists {
		c.misses++
		return nil, false
	}
	c.hits++
	return item.Data, true
}

// evictOldest drops the entry closest to expiry across both maps.
func (c *ResultCache) evictOldest() {
	var oldestMap map[string]CacheItem
	var oldestKey string
	var oldestTime time.Time

	for _, items := range []map[string]CacheItem{c.assessments, c.alerts} {
		for key, item := range items {
			if oldestMap == nil || item.ExpiresAt.Before(oldestTime) {
				oldestMap = items
				oldestKey = key
				oldestTime = item.ExpiresAt
			}
		}
	}

	if oldestMap != nil {
		delete(oldestMap, oldestKey)
		c.logger.Debug("Evicted oldest entry from cache", zap.String("key", oldestKey))
	}
}

func (c *ResultCache) startCleanup() {
	ticker := c.clock.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *ResultCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	expiredCount := 0

	for _, items := range []map[string]CacheItem{c.assessments, c.alerts} {
		for key, item := range items {
			if !now.Before(item.ExpiresAt) {
				delete(items, key)
				expiredCount++
			}
		}
	}

	if expiredCount > 0 {
		c.logger.Debug("Cleaned expired cache items", zap.Int("count", expiredCount))
	}
}

func (c *ResultCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

func (c *ResultCache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"assessment_items": len(c.assessments),
		"alert_items":      len(c.alerts),
		"hits":             c.hits,
		"misses":           c.misses,
		"max_size":         c.maxSize,
		"default_duration": c.defaultDuration.String(),
	}
}
