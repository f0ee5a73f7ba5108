package preference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Store manages preference records in PostgreSQL, one row per user.
type Store struct {
	db *sql.DB
}

// NewStore creates a preference store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get loads a user's preferences. A user with no stored row gets an empty
// Preferences value (every criterion unset), which scores everything neutral.
func (s *Store) Get(ctx context.Context, userID string) (Preferences, error) {
	const query = `
		SELECT min_price, max_price, min_bedrooms,
		       property_types, required_amenities, preferred_locations
		FROM preferences
		WHERE user_id = $1`

	p := Preferences{UserID: userID}
	var minPrice, maxPrice, minBedrooms sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&minPrice, &maxPrice, &minBedrooms,
		pq.Array(&p.PropertyTypes),
		pq.Array(&p.RequiredAmenities),
		pq.Array(&p.PreferredLocations),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("preference: get: %w", err)
	}

	if minPrice.Valid {
		v := int(minPrice.Int64)
		p.MinPrice = &v
	}
	if maxPrice.Valid {
		v := int(maxPrice.Int64)
		p.MaxPrice = &v
	}
	if minBedrooms.Valid {
		v := int(minBedrooms.Int64)
		p.MinBedrooms = &v
	}

	p.Normalize()
	return p, nil
}

// Put validates, normalizes, and upserts a user's preferences. Inverted price
// ranges are rejected here (ErrInvertedRange) so stored preferences are
// always well-formed.
func (s *Store) Put(ctx context.Context, p Preferences) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	const query = `
		INSERT INTO preferences
			(user_id, min_price, max_price, min_bedrooms,
			 property_types, required_amenities, preferred_locations, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET min_price = EXCLUDED.min_price,
		              max_price = EXCLUDED.max_price,
		              min_bedrooms = EXCLUDED.min_bedrooms,
		              property_types = EXCLUDED.property_types,
		              required_amenities = EXCLUDED.required_amenities,
		              preferred_locations = EXCLUDED.preferred_locations,
		              updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		p.UserID,
		nullableInt(p.MinPrice), nullableInt(p.MaxPrice), nullableInt(p.MinBedrooms),
		pq.Array(emptyIfNil(p.PropertyTypes)),
		pq.Array(emptyIfNil(p.RequiredAmenities)),
		pq.Array(emptyIfNil(p.PreferredLocations)),
	)
	if err != nil {
		return fmt.Errorf("preference: put: %w", err)
	}
	return nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
