package models

import (
	"strings"
	"time"
	"unicode"
)

type AlertSeverity string

const (
	AlertSeverityLow    AlertSeverity = "low"
	AlertSeverityMedium AlertSeverity = "medium"
	AlertSeverityHigh   AlertSeverity = "high"
)

var (
	highSeverityWords   = map[string]bool{"high": true, "extreme": true, "severe": true, "critical": true, "red": true}
	mediumSeverityWords = map[string]bool{"medium": true, "moderate": true, "warning": true, "orange": true}
)

// ParseAlertSeverity maps free-form severity wording onto the three levels.
// Unrecognised text is treated as low.
func ParseAlertSeverity(text string) AlertSeverity {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	severity := AlertSeverityLow
	for _, w := range words {
		if highSeverityWords[w] {
			return AlertSeverityHigh
		}
		if mediumSeverityWords[w] {
			severity = AlertSeverityMedium
		}
	}
	return severity
}

type FloodAlert struct {
	ID          string        `json:"id"`
	Province    string        `json:"province"`
	Severity    AlertSeverity `json:"severity"`
	IssuedAt    time.Time     `json:"issued_at"`
	Description string        `json:"description"`
	Source      ProviderKind  `json:"source"`
}

type AlertSummary struct {
	Province          string         `json:"province"`
	TotalAlerts       int            `json:"total_alerts"`
	HighSeverityCount int            `json:"high_severity_count"`
	Alerts            []FloodAlert   `json:"alerts"`
	Sources           []ProviderKind `json:"sources"`
	GeneratedAt       time.Time      `json:"generated_at"`
}
