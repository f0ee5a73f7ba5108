// Package swipe persists directional swipe decisions. Exactly one row exists
// per (user, target); re-swiping overwrites the stored direction rather than
// appending history. Writes are never retried: retry-on-write risks surprising
// duplicate side effects downstream, while a failed swipe is trivially
// re-issued by the user.
package swipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Swipe directions.
const (
	DirectionLeft  = "left"
	DirectionRight = "right"
)

// Target types a swipe can land on.
const (
	TargetListing = "listing"
	TargetProfile = "profile"
)

// ErrInvalidDirection is returned for directions outside {left, right}.
var ErrInvalidDirection = errors.New("swipe: invalid direction")

// ErrInvalidTargetType is returned for target types outside {listing, profile}.
var ErrInvalidTargetType = errors.New("swipe: invalid target type")

// Decision is one stored swipe.
type Decision struct {
	UserID     string    `json:"user_id"`
	TargetID   string    `json:"target_id"`
	TargetType string    `json:"target_type"`
	Direction  string    `json:"direction"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store manages swipe decisions in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a swipe store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record upserts a swipe decision. Last write wins on direction and
// created_at for the (user, target) key. Storage errors are surfaced
// immediately with no retry.
func (s *Store) Record(ctx context.Context, d Decision) error {
	if d.Direction != DirectionLeft && d.Direction != DirectionRight {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, d.Direction)
	}
	if d.TargetType != TargetListing && d.TargetType != TargetProfile {
		return fmt.Errorf("%w: %q", ErrInvalidTargetType, d.TargetType)
	}

	const query = `
		INSERT INTO swipe_decisions (user_id, target_id, target_type, direction, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, target_id)
		DO UPDATE SET direction = EXCLUDED.direction,
		              target_type = EXCLUDED.target_type,
		              created_at = EXCLUDED.created_at`

	if _, err := s.db.ExecContext(ctx, query, d.UserID, d.TargetID, d.TargetType, d.Direction); err != nil {
		return fmt.Errorf("swipe: record: %w", err)
	}
	return nil
}

// Get returns the stored decision for (user, target), or nil if none exists.
func (s *Store) Get(ctx context.Context, userID, targetID string) (*Decision, error) {
	const query = `
		SELECT user_id, target_id, target_type, direction, created_at
		FROM swipe_decisions
		WHERE user_id = $1 AND target_id = $2`

	var d Decision
	err := s.db.QueryRowContext(ctx, query, userID, targetID).Scan(
		&d.UserID, &d.TargetID, &d.TargetType, &d.Direction, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("swipe: get: %w", err)
	}
	return &d, nil
}

// Liked returns a user's right-swipes, newest first, for the liked-list view.
func (s *Store) Liked(ctx context.Context, userID string, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT user_id, target_id, target_type, direction, created_at
		FROM swipe_decisions
		WHERE user_id = $1 AND direction = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, userID, DirectionRight, limit)
	if err != nil {
		return nil, fmt.Errorf("swipe: liked: %w", err)
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.UserID, &d.TargetID, &d.TargetType, &d.Direction, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("swipe: liked scan: %w", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("swipe: liked rows: %w", err)
	}
	return decisions, nil
}

// HasRightSwipe reports whether userID has an active right-swipe on targetID.
// Used for mutual-match detection: the check reads the current stored
// direction, so a later left-swipe by the counterpart withdraws the like.
func (s *Store) HasRightSwipe(ctx context.Context, userID, targetID string) (bool, error) {
	d, err := s.Get(ctx, userID, targetID)
	if err != nil {
		return false, err
	}
	return d != nil && d.Direction == DirectionRight, nil
}
