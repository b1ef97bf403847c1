package models

import (
	"fmt"
	"strings"
	"time"
)

// ProviderKind identifies one of the external data sources. The declaration
// order is the canonical order used in assessments.
type ProviderKind int

const (
	Weather ProviderKind = iota
	Elevation
	Infrastructure
	GovernmentRegistry

	providerKindCount
)

// ProviderKinds returns every kind in canonical order.
func ProviderKinds() []ProviderKind {
	kinds := make([]ProviderKind, 0, providerKindCount)
	for k := Weather; k < providerKindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k ProviderKind) Valid() bool {
	return k >= Weather && k < providerKindCount
}

func (k ProviderKind) String() string {
	switch k {
	case Weather:
		return "weather"
	case Elevation:
		return "elevation"
	case Infrastructure:
		return "infrastructure"
	case GovernmentRegistry:
		return "government_registry"
	default:
		return fmt.Sprintf("provider(%d)", int(k))
	}
}

func (k ProviderKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown provider kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *ProviderKind) UnmarshalText(text []byte) error {
	for _, candidate := range ProviderKinds() {
		if strings.EqualFold(candidate.String(), string(text)) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown provider kind %q", text)
}

// RiskLevel is ordered from Low to Severe.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskSevere
)

// ClassifyRisk maps a 0-100 score to its level. Lower bounds are inclusive.
func ClassifyRisk(score int) RiskLevel {
	switch {
	case score >= 75:
		return RiskSevere
	case score >= 50:
		return RiskHigh
	case score >= 25:
		return RiskMedium
	default:
		return RiskLow
	}
}

func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskSevere:
		return "severe"
	default:
		return "unknown"
	}
}

func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// ConfidenceLevel is ordered from Low to High.
type ConfidenceLevel int

const (
	ConfidenceLow ConfidenceLevel = iota
	ConfidenceMedium
	ConfidenceHigh
)

// ConfidenceFor derives confidence from how many sources contributed.
func ConfidenceFor(available int) ConfidenceLevel {
	switch {
	case available >= 3:
		return ConfidenceHigh
	case available == 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (c ConfidenceLevel) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "unknown"
	}
}

func (c ConfidenceLevel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// AssessmentStatus tells how much of the pipeline answered.
type AssessmentStatus string

const (
	StatusComplete AssessmentStatus = "complete"
	StatusDegraded AssessmentStatus = "degraded"
	StatusFallback AssessmentStatus = "fallback"
)

// RiskFactor is one provider's normalized contribution. Value and Weight are
// meaningless when Available is false.
type RiskFactor struct {
	Source    ProviderKind `json:"source"`
	Value     float64      `json:"value"`
	Weight    float64      `json:"weight"`
	Available bool         `json:"available"`
	Outcome   string       `json:"outcome"`
	Error     string       `json:"error,omitempty"`
}

type FloodRiskAssessment struct {
	Location         Location         `json:"location"`
	OverallRiskScore int              `json:"overall_risk_score"`
	RiskLevel        RiskLevel        `json:"risk_level"`
	ConfidenceLevel  ConfidenceLevel  `json:"confidence_level"`
	DataSources      []ProviderKind   `json:"data_sources"`
	Factors          []RiskFactor     `json:"factors"`
	WeightCoverage   float64          `json:"weight_coverage"`
	Status           AssessmentStatus `json:"status"`
	DeadlineExceeded bool             `json:"deadline_exceeded"`
	ComputedAt       time.Time        `json:"computed_at"`
}
