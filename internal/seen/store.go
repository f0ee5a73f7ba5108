// Package seen tracks which candidates a user has already swiped or viewed.
// Records are upserted per (user, candidate, view type) and recycle after a
// 7-day window: expiry is a read-time cutoff, nothing is physically deleted.
package seen

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	// RecycleWindow is how long a viewed candidate stays excluded from the
	// feed before it becomes eligible to resurface.
	RecycleWindow = 7 * 24 * time.Hour

	// View types: which side of the marketplace the user was browsing as.
	ViewClient = "client"
	ViewOwner  = "owner"

	// Actions recorded against a candidate.
	ActionLike = "like"
	ActionPass = "pass"
	ActionView = "view"
)

// Record is one seen entry for a (user, candidate, view type) key.
type Record struct {
	UserID      string    `json:"user_id"`
	CandidateID string    `json:"candidate_id"`
	ViewType    string    `json:"view_type"`
	Action      string    `json:"action"`
	CreatedAt   time.Time `json:"created_at"`
}

// Eligible reports whether the record has aged out of the exclusion window
// relative to now and may resurface in the feed.
func (r Record) Eligible(now time.Time) bool {
	return r.CreatedAt.Before(now.Add(-RecycleWindow))
}

// Store manages seen records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a seen-record store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordView upserts a seen record. A repeated view of the same candidate in
// the same view type overwrites the prior action and timestamp (last write
// wins), which also restarts the exclusion window.
func (s *Store) RecordView(ctx context.Context, userID, candidateID, viewType, action string) error {
	const query = `
		INSERT INTO seen_records (user_id, candidate_id, view_type, action, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, candidate_id, view_type)
		DO UPDATE SET action = EXCLUDED.action, created_at = EXCLUDED.created_at`

	if _, err := s.db.ExecContext(ctx, query, userID, candidateID, viewType, action); err != nil {
		return fmt.Errorf("seen: record view: %w", err)
	}
	return nil
}

// Excluded returns the candidate IDs still inside the exclusion window for a
// user and view type. Feed assembly must source its exclusion list here;
// callers never build their own.
func (s *Store) Excluded(ctx context.Context, userID, viewType string) ([]string, error) {
	const query = `
		SELECT candidate_id
		FROM seen_records
		WHERE user_id = $1 AND view_type = $2 AND created_at >= $3`

	cutoff := time.Now().Add(-RecycleWindow)
	rows, err := s.db.QueryContext(ctx, query, userID, viewType, cutoff)
	if err != nil {
		return nil, fmt.Errorf("seen: excluded: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("seen: excluded scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seen: excluded rows: %w", err)
	}
	return ids, nil
}

// Recycled returns seen records older than the exclusion window: candidates
// that were shown before and are eligible to resurface.
func (s *Store) Recycled(ctx context.Context, userID, viewType string) ([]Record, error) {
	const query = `
		SELECT user_id, candidate_id, view_type, action, created_at
		FROM seen_records
		WHERE user_id = $1 AND view_type = $2 AND created_at < $3
		ORDER BY created_at DESC`

	cutoff := time.Now().Add(-RecycleWindow)
	rows, err := s.db.QueryContext(ctx, query, userID, viewType, cutoff)
	if err != nil {
		return nil, fmt.Errorf("seen: recycled: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.UserID, &r.CandidateID, &r.ViewType, &r.Action, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("seen: recycled scan: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seen: recycled rows: %w", err)
	}
	return records, nil
}
