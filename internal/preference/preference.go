// Package preference holds a user's filter criteria and the PostgreSQL store
// behind them. Preferences are read-only input to scoring; they change only
// through explicit updates via the store.
package preference

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvertedRange is returned when min_price exceeds max_price on a write.
// Inverted ranges are rejected at the boundary so the scorer never sees one.
var ErrInvertedRange = errors.New("preference: min_price greater than max_price")

// Preferences is a user's fully-typed, normalized filter criteria. Optional
// numeric fields are pointers: nil means the criterion is unset and is skipped
// entirely during scoring.
type Preferences struct {
	UserID             string   `json:"user_id" validate:"required"`
	MinPrice           *int     `json:"min_price,omitempty" validate:"omitempty,gte=0"`
	MaxPrice           *int     `json:"max_price,omitempty" validate:"omitempty,gte=0"`
	MinBedrooms        *int     `json:"min_bedrooms,omitempty" validate:"omitempty,gte=0"`
	PropertyTypes      []string `json:"property_types,omitempty"`
	RequiredAmenities  []string `json:"required_amenities,omitempty"`
	PreferredLocations []string `json:"preferred_locations,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize lowercases and trims every set-valued field and drops empty
// entries, so the scorer compares already-canonical tokens.
func (p *Preferences) Normalize() {
	p.PropertyTypes = normalizeSet(p.PropertyTypes)
	p.RequiredAmenities = normalizeSet(p.RequiredAmenities)
	p.PreferredLocations = normalizeSet(p.PreferredLocations)
}

// Validate checks field constraints and the min/max cross-field invariant.
// An empty required-amenity set is valid and means "no requirement".
func (p *Preferences) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if p.MinPrice != nil && p.MaxPrice != nil && *p.MinPrice > *p.MaxPrice {
		return ErrInvertedRange
	}
	return nil
}

// HasAny reports whether at least one preference criterion is set.
func (p *Preferences) HasAny() bool {
	return (p.MinPrice != nil && p.MaxPrice != nil) ||
		p.MinBedrooms != nil ||
		len(p.PropertyTypes) > 0 ||
		len(p.RequiredAmenities) > 0 ||
		len(p.PreferredLocations) > 0
}

func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
