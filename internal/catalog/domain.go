// internal/catalog/domain.go
package catalog

import (
	"strings"
	"time"

	"carrental/internal/apperr"
)

// Car is a vehicle in the rental fleet.
type Car struct {
	ID          int64     `json:"id"`
	Brand       string    `json:"brand"`
	Model       string    `json:"model"`
	Year        *int      `json:"year,omitempty"`
	PricePerDay float64   `json:"price_per_day"`
	ImageURL    *string   `json:"image_url,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewCar holds the fields accepted when adding a car. New cars are always
// available.
type NewCar struct {
	Brand       string  `json:"brand"`
	Model       string  `json:"model"`
	Year        *int    `json:"year,omitempty"`
	PricePerDay float64 `json:"price_per_day"`
	ImageURL    *string `json:"image_url,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// CarPatch is a partial update; nil fields are left unchanged. Availability
// is not part of the patch.
type CarPatch struct {
	Brand       *string  `json:"brand,omitempty"`
	Model       *string  `json:"model,omitempty"`
	Year        *int     `json:"year,omitempty"`
	PricePerDay *float64 `json:"price_per_day,omitempty"`
	ImageURL    *string  `json:"image_url,omitempty"`
	Category    *string  `json:"category,omitempty"`
}

// CarFilter narrows a catalog listing.
type CarFilter struct {
	Available *bool
	Category  string
	Search    string
}

const minYear = 1886

// maxYear allows next year's models.
func maxYear() int {
	return time.Now().Year() + 1
}

// Normalize trims text fields and validates the result.
func (n *NewCar) Normalize() error {
	n.Brand = strings.TrimSpace(n.Brand)
	n.Model = strings.TrimSpace(n.Model)
	n.ImageURL = trimOptional(n.ImageURL)
	n.Category = trimOptional(n.Category)

	if n.Model == "" {
		return apperr.Validation(apperr.CodeInvalidField, "model is required")
	}
	if n.Brand == "" {
		return apperr.Validation(apperr.CodeInvalidField, "brand is required")
	}
	if err := validatePrice(n.PricePerDay); err != nil {
		return err
	}
	return validateYear(n.Year)
}

// Normalize trims text fields and validates whichever fields are present.
func (p *CarPatch) Normalize() error {
	if p.Brand != nil {
		b := strings.TrimSpace(*p.Brand)
		if b == "" {
			return apperr.Validation(apperr.CodeInvalidField, "brand cannot be empty")
		}
		p.Brand = &b
	}
	if p.Model != nil {
		m := strings.TrimSpace(*p.Model)
		if m == "" {
			return apperr.Validation(apperr.CodeInvalidField, "model cannot be empty")
		}
		p.Model = &m
	}
	if p.PricePerDay != nil {
		if err := validatePrice(*p.PricePerDay); err != nil {
			return err
		}
	}
	p.ImageURL = trimPatchString(p.ImageURL)
	p.Category = trimPatchString(p.Category)
	return validateYear(p.Year)
}

// Empty reports whether the patch changes nothing.
func (p CarPatch) Empty() bool {
	return p.Brand == nil && p.Model == nil && p.Year == nil &&
		p.PricePerDay == nil && p.ImageURL == nil && p.Category == nil
}

func validatePrice(price float64) error {
	if !(price > 0) {
		return apperr.Validation(apperr.CodeInvalidField, "price per day must be a positive number")
	}
	return nil
}

func validateYear(year *int) error {
	if year == nil {
		return nil
	}
	if *year < minYear || *year > maxYear() {
		return apperr.Validation(apperr.CodeInvalidField, "year is out of range")
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// trimPatchString keeps an explicit empty string so the column can be cleared.
func trimPatchString(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func notFound() *apperr.Error {
	return apperr.NotFound(apperr.CodeCarNotFound, "car not found")
}
