package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"flood-risk-aggregator/internal/models"
	"flood-risk-aggregator/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StatusReporter is anything that can describe its own state, such as the
// alert scheduler.
type StatusReporter interface {
	GetStatus() map[string]interface{}
}

type Handler struct {
	service   *services.Service
	scheduler StatusReporter
	logger    *zap.Logger
	startTime time.Time
}

func NewHandler(service *services.Service, scheduler StatusReporter, logger *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		scheduler: scheduler,
		logger:    logger,
		startTime: time.Now(),
	}
}

// GetRisk handles GET /api/v1/risk
func (h *Handler) GetRisk(c *fiber.Ctx) error {
	lat, latErr := parseCoordinate(c.Query("lat"))
	lon, lonErr := parseCoordinate(c.Query("lon"))
	if latErr != nil || lonErr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "lat and lon query parameters are required numbers",
		})
	}

	loc := models.Location{
		Latitude:  lat,
		Longitude: lon,
		Name:      strings.TrimSpace(c.Query("name")),
		Province:  strings.TrimSpace(c.Query("province")),
	}

	if cached, ok := h.service.Cache.GetAssessment(loc); ok {
		h.logger.Debug("Cache hit for assessment", zap.Float64("lat", lat), zap.Float64("lon", lon))
		c.Set("X-Cache", "HIT")
		hit := *cached
		hit.Location = loc
		return c.JSON(&hit)
	}

	assessment, err := h.service.Risk.AssessFloodRisk(c.UserContext(), loc)
	if err != nil {
		return h.failure(c, "Failed to assess flood risk", err)
	}

	// No source answered before the deadline: still return the fallback
	// assessment, flagged as a gateway timeout.
	if assessment.Status == models.StatusFallback && assessment.DeadlineExceeded {
		return c.Status(fiber.StatusGatewayTimeout).JSON(assessment)
	}
	if assessment.Status != models.StatusFallback {
		h.service.Cache.SetAssessment(loc, assessment)
	}

	c.Set("X-Cache", "MISS")
	return c.JSON(assessment)
}

// GetAlerts handles GET /api/v1/alerts
func (h *Handler) GetAlerts(c *fiber.Ctx) error {
	province := strings.TrimSpace(c.Query("province"))
	if province == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Province parameter is required",
		})
	}

	if cached, ok := h.service.Cache.GetAlerts(province); ok {
		c.Set("X-Cache", "HIT")
		return c.JSON(cached)
	}

	summary, err := h.service.Alerts.GetFloodAlerts(c.UserContext(), province)
	if err != nil {
		return h.failure(c, "Failed to fetch flood alerts", err)
	}
	h.service.Cache.SetAlerts(province, summary)

	c.Set("X-Cache", "MISS")
	return c.JSON(summary)
}

// GetProvinces handles GET /api/v1/provinces
func (h *Handler) GetProvinces(c *fiber.Ctx) error {
	names := h.service.Provinces.Names()
	provinces := make([]models.Location, 0, len(names))
	for _, name := range names {
		if loc, ok := h.service.Provinces.Resolve(name); ok {
			provinces = append(provinces, loc)
		}
	}

	return c.JSON(fiber.Map{
		"provinces": provinces,
	})
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now(),
		"uptime":    time.Since(h.startTime).String(),
		"providers": h.service.Risk.Providers(),
	})
}

// GetStats handles GET /api/v1/stats
func (h *Handler) GetStats(c *fiber.Ctx) error {
	stats := fiber.Map{
		"cache":     h.service.Cache.GetStats(),
		"providers": h.service.Risk.Providers(),
		"deadline":  h.service.Risk.Deadline().String(),
		"timestamp": time.Now(),
	}
	if h.scheduler != nil {
		stats["scheduler"] = h.scheduler.GetStatus()
	}
	return c.JSON(stats)
}

func (h *Handler) failure(c *fiber.Ctx, message string, err error) error {
	var invalid *models.InvalidLocationError
	if errors.As(err, &invalid) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    message,
			"problems": invalid.Problems,
		})
	}

	h.logger.Error(message, zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   message,
		"details": err.Error(),
	})
}

func parseCoordinate(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("missing coordinate")
	}
	return strconv.ParseFloat(raw, 64)
}
