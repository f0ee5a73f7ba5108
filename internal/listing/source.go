package listing

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/avdelag1/swipess/internal/metrics"
)

const (
	// fetchAttempts is the fixed retry budget for read queries. Writes are
	// never retried; see the swipe package.
	fetchAttempts = 3

	// retryBaseDelay scales linearly with the attempt number: the wait after
	// attempt n is n * retryBaseDelay.
	retryBaseDelay = 200 * time.Millisecond

	// DefaultPageSize bounds one scoring batch.
	DefaultPageSize = 20
)

// Source fetches candidate pages from PostgreSQL, newest first, with
// look-ahead cursor pagination.
type Source struct {
	db *sql.DB
}

// NewSource creates a candidate source backed by the given database handle.
func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

// Fetch returns one page of candidates with created_at strictly before cursor
// (all candidates when cursor is the zero time), excluding excludeIDs before
// pagination so excluded rows never count against pageSize.
//
// Transient query failures are retried up to fetchAttempts times with linear
// backoff; the last error is returned after the budget is exhausted.
func (s *Source) Fetch(ctx context.Context, cursor time.Time, pageSize int, excludeIDs []string, filters Filters) (Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		items, err := s.fetchOnce(ctx, cursor, pageSize, excludeIDs, filters)
		if err == nil {
			return trimPage(items, pageSize), nil
		}
		lastErr = err
		metrics.FetchRetriesTotal.Inc()
		log.Printf("[listing] fetch attempt %d/%d failed: %v", attempt, fetchAttempts, err)

		if attempt == fetchAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return Page{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBaseDelay):
		}
	}

	return Page{}, fmt.Errorf("listing: fetch after %d attempts: %w", fetchAttempts, lastErr)
}

// Get returns a single listing by ID, or nil if it does not exist. Lookups by
// primary key are not retried; callers treat a miss and an error the same way
// (no mutual-match side effects).
func (s *Source) Get(ctx context.Context, id string) (*Listing, error) {
	const query = `
		SELECT id, owner_id, title, price, bedrooms, property_type, amenities,
		       city, neighborhood, status, created_at
		FROM listings
		WHERE id = $1`

	var l Listing
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.OwnerID, &l.Title, &l.Price, &l.Bedrooms,
		&l.PropertyType, pq.Array(&l.Amenities),
		&l.City, &l.Neighborhood, &l.Status, &l.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing: get %s: %w", id, err)
	}
	return &l, nil
}

// fetchOnce runs a single page query, requesting pageSize+1 rows so the caller
// can detect whether more pages exist.
func (s *Source) fetchOnce(ctx context.Context, cursor time.Time, pageSize int, excludeIDs []string, filters Filters) ([]Listing, error) {
	query, args := buildFetchQuery(cursor, pageSize, excludeIDs, filters)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing: query: %w", err)
	}
	defer rows.Close()

	var items []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(
			&l.ID, &l.OwnerID, &l.Title, &l.Price, &l.Bedrooms,
			&l.PropertyType, pq.Array(&l.Amenities),
			&l.City, &l.Neighborhood, &l.Status, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("listing: scan: %w", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing: rows: %w", err)
	}
	return items, nil
}

// buildFetchQuery assembles the page query. Exclusion and filters are applied
// in the WHERE clause, before ORDER BY / LIMIT, so pagination only ever sees
// eligible rows.
func buildFetchQuery(cursor time.Time, pageSize int, excludeIDs []string, filters Filters) (string, []interface{}) {
	var where []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filters.Status != "" {
		where = append(where, "status = "+arg(filters.Status))
	}
	if filters.PropertyType != "" {
		where = append(where, "property_type = "+arg(filters.PropertyType))
	}
	if filters.City != "" {
		where = append(where, "city ILIKE "+arg("%"+filters.City+"%"))
	}
	if filters.MinPrice > 0 {
		where = append(where, "price >= "+arg(filters.MinPrice))
	}
	if filters.MaxPrice > 0 {
		where = append(where, "price <= "+arg(filters.MaxPrice))
	}
	if len(excludeIDs) > 0 {
		where = append(where, "id <> ALL("+arg(pq.Array(excludeIDs))+")")
	}
	if !cursor.IsZero() {
		where = append(where, "created_at < "+arg(cursor))
	}

	query := `
		SELECT id, owner_id, title, price, bedrooms, property_type, amenities,
		       city, neighborhood, status, created_at
		FROM listings`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY created_at DESC\n\t\tLIMIT " + arg(pageSize+1)

	return query, args
}

// trimPage applies the look-ahead trick: if the extra row is present, drop it,
// flag HasMore, and set NextCursor to the created_at of the last kept item.
// Repeating a fetch with the same cursor and page size is idempotent.
func trimPage(items []Listing, pageSize int) Page {
	if len(items) <= pageSize {
		return Page{Items: items}
	}

	kept := items[:pageSize]
	return Page{
		Items:      kept,
		NextCursor: kept[pageSize-1].CreatedAt,
		HasMore:    true,
	}
}
