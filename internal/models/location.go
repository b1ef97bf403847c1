package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Location is an immutable point of interest. Name and Province are optional.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Name      string  `json:"name,omitempty" validate:"max=200"`
	Province  string  `json:"province,omitempty" validate:"max=200"`
}

// BoundingBox is a lat/lon aligned rectangle.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Query is what a provider needs to answer for a single assessment.
type Query struct {
	Location Location
	BBox     BoundingBox
}

// Region identifies an administrative area for alert lookups. Center is nil
// when the province could not be resolved to coordinates.
type Region struct {
	Province string
	Center   *Location
}

var locationValidate = validator.New()

// Validate rejects coordinates outside the valid range.
func (l Location) Validate() error {
	err := locationValidate.Struct(l)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &InvalidLocationError{Problems: []string{err.Error()}}
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describeFieldError(fe))
	}
	return &InvalidLocationError{Problems: problems}
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch field {
	case "latitude":
		return fmt.Sprintf("latitude %v is outside [-90, 90]", fe.Value())
	case "longitude":
		return fmt.Sprintf("longitude %v is outside [-180, 180]", fe.Value())
	default:
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
}
