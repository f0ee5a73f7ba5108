// Package listing defines the candidate model and the cursor-paginated
// candidate source backed by PostgreSQL. A candidate is a rental listing (or
// counterpart profile) snapshot as seen by the scoring pipeline: the source
// only ever reads fetched pages, ownership of the rows lives elsewhere.
package listing

import "time"

// Listing statuses as stored in the listings table.
const (
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusArchived = "archived"
)

// Listing is an immutable-for-scoring snapshot of a candidate.
type Listing struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	Price        int       `json:"price"`
	Bedrooms     int       `json:"bedrooms"`
	PropertyType string    `json:"property_type"`
	Amenities    []string  `json:"amenities"`
	City         string    `json:"city"`
	Neighborhood string    `json:"neighborhood"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Filters narrows a candidate fetch before pagination is applied. Zero values
// mean "no constraint" for that field.
type Filters struct {
	Status       string
	PropertyType string
	City         string
	MinPrice     int
	MaxPrice     int
}

// Page is one cursor-paginated slice of candidates. NextCursor is the
// created_at of the last kept item and is only meaningful when HasMore is true.
type Page struct {
	Items      []Listing `json:"items"`
	NextCursor time.Time `json:"next_cursor"`
	HasMore    bool      `json:"has_more"`
}
