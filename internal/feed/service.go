// Package feed composes the pipeline behind the card stack: exclusion lookup,
// candidate fetch, scoring, ranking, and the swipe write path with its
// downstream invalidation. It is the only package that wires the individual
// stores together.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/avdelag1/swipess/internal/listing"
	"github.com/avdelag1/swipess/internal/metrics"
	"github.com/avdelag1/swipess/internal/preference"
	"github.com/avdelag1/swipess/internal/scoring"
	"github.com/avdelag1/swipess/internal/seen"
	"github.com/avdelag1/swipess/internal/session"
	"github.com/avdelag1/swipess/internal/swipe"
)

// ErrRateLimited is returned when a user exceeds the swipe write budget.
var ErrRateLimited = errors.New("feed: rate limited")

// PreferenceStore loads a user's filter criteria.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (preference.Preferences, error)
}

// CandidateSource fetches candidate pages and single listings.
type CandidateSource interface {
	Fetch(ctx context.Context, cursor time.Time, pageSize int, excludeIDs []string, filters listing.Filters) (listing.Page, error)
	Get(ctx context.Context, id string) (*listing.Listing, error)
}

// SeenStore tracks viewed candidates and the exclusion window.
type SeenStore interface {
	RecordView(ctx context.Context, userID, candidateID, viewType, action string) error
	Excluded(ctx context.Context, userID, viewType string) ([]string, error)
}

// SwipeStore persists directional decisions.
type SwipeStore interface {
	Record(ctx context.Context, d swipe.Decision) error
	Liked(ctx context.Context, userID string, limit int) ([]swipe.Decision, error)
	HasRightSwipe(ctx context.Context, userID, targetID string) (bool, error)
}

// ReadCache caches ranked batches and liked lists per user.
type ReadCache interface {
	GetFeed(ctx context.Context, userID, viewType string, dest interface{}) (bool, error)
	SetFeed(ctx context.Context, userID, viewType string, value interface{}) error
	GetLikes(ctx context.Context, userID string, dest interface{}) (bool, error)
	SetLikes(ctx context.Context, userID string, value interface{}) error
	InvalidateUser(ctx context.Context, userID string) error
}

// Publisher fans invalidation and match events out to other listeners.
type Publisher interface {
	PublishSwipeRecorded(data []byte) error
	PublishInvalidate(userID string, data []byte) error
	PublishMatchCreated(userID string, data []byte) error
}

// SwipeGate throttles swipe writes per user. Nil disables throttling.
type SwipeGate interface {
	AllowSwipe(ctx context.Context, userID string) (bool, error)
}

// Batch is one ranked page of candidates ready for the card stack.
type Batch struct {
	Items      []scoring.Ranked `json:"items"`
	NextCursor time.Time        `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

// SwipeEvent is the payload published on swipe.recorded and
// candidates.invalidate subjects.
type SwipeEvent struct {
	UserID     string `json:"user_id"`
	TargetID   string `json:"target_id"`
	TargetType string `json:"target_type"`
	Direction  string `json:"direction"`
	Ts         int64  `json:"ts"`
}

// MatchEvent is published on match.created when both sides right-swiped.
type MatchEvent struct {
	UserID  string `json:"user_id"`
	OtherID string `json:"other_id"`
	Ts      int64  `json:"ts"`
}

// Service orchestrates the feed and swipe pipelines.
type Service struct {
	prefs      PreferenceStore
	candidates CandidateSource
	seenStore  SeenStore
	swipes     SwipeStore
	cache      ReadCache
	publisher  Publisher
	gate       SwipeGate
}

// NewService wires the feed service. cache, publisher, and gate may be nil;
// the corresponding side effects are skipped.
func NewService(prefs PreferenceStore, candidates CandidateSource, seenStore SeenStore, swipes SwipeStore, cache ReadCache, publisher Publisher, gate SwipeGate) *Service {
	return &Service{
		prefs:      prefs,
		candidates: candidates,
		seenStore:  seenStore,
		swipes:     swipes,
		cache:      cache,
		publisher:  publisher,
		gate:       gate,
	}
}

// NextBatch assembles one ranked page of candidates for a user.
//
// An empty userID fails closed to an empty batch, not an error. The exclusion
// list always comes from the seen store; callers cannot substitute their own.
// Only the cursorless first page is served from cache: cursor pages are
// one-shot continuations.
func (s *Service) NextBatch(ctx context.Context, userID, viewType string, cursor time.Time, pageSize int) (Batch, error) {
	if userID == "" {
		return Batch{}, nil
	}
	if pageSize <= 0 || pageSize > listing.DefaultPageSize {
		pageSize = listing.DefaultPageSize
	}

	start := time.Now()
	defer func() {
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	if s.cache != nil && cursor.IsZero() {
		var cached Batch
		if hit, err := s.cache.GetFeed(ctx, userID, viewType, &cached); err == nil && hit {
			return cached, nil
		}
	}

	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return Batch{}, fmt.Errorf("feed: load preferences: %w", err)
	}

	excluded, err := s.seenStore.Excluded(ctx, userID, viewType)
	if err != nil {
		return Batch{}, fmt.Errorf("feed: load exclusions: %w", err)
	}
	metrics.ExcludedSetSize.Observe(float64(len(excluded)))

	page, err := s.candidates.Fetch(ctx, cursor, pageSize, excluded, listing.Filters{
		Status: listing.StatusActive,
	})
	if err != nil {
		return Batch{}, fmt.Errorf("feed: fetch candidates: %w", err)
	}

	batch := Batch{
		Items:      scoring.Rank(prefs, page.Items),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	metrics.BatchCandidates.Observe(float64(len(batch.Items)))

	if s.cache != nil && cursor.IsZero() {
		if err := s.cache.SetFeed(ctx, userID, viewType, batch); err != nil {
			log.Printf("[feed] cache set for %s: %v", userID, err)
		}
	}

	return batch, nil
}

// RecordSwipe persists a directional decision and runs the downstream
// pipeline: seen-record upsert, cache invalidation, and event fan-out.
//
// Unlike reads, an unauthenticated swipe is a hard error, and storage
// failures surface immediately without retry.
func (s *Service) RecordSwipe(ctx context.Context, userID, viewType, targetID, targetType, direction string) error {
	if userID == "" {
		return session.ErrUnauthenticated
	}

	if s.gate != nil {
		allowed, err := s.gate.AllowSwipe(ctx, userID)
		if err == nil && !allowed {
			return ErrRateLimited
		}
	}

	err := s.swipes.Record(ctx, swipe.Decision{
		UserID:     userID,
		TargetID:   targetID,
		TargetType: targetType,
		Direction:  direction,
	})
	if err != nil {
		return err
	}
	metrics.SwipesTotal.WithLabelValues(direction).Inc()

	action := seen.ActionPass
	if direction == swipe.DirectionRight {
		action = seen.ActionLike
	}
	if err := s.seenStore.RecordView(ctx, userID, targetID, viewType, action); err != nil {
		// The swipe itself is durable; a failed seen upsert only delays
		// exclusion until the next successful view.
		log.Printf("[feed] seen record for %s/%s: %v", userID, targetID, err)
	}

	s.invalidate(ctx, userID, targetID, targetType, direction)

	if direction == swipe.DirectionRight {
		s.detectMutualMatch(ctx, userID, targetID, targetType)
	}

	return nil
}

// RecordView marks a candidate as seen without a directional decision, e.g.
// when a card was displayed but the user navigated away.
func (s *Service) RecordView(ctx context.Context, userID, viewType, candidateID string) error {
	if userID == "" {
		return session.ErrUnauthenticated
	}
	return s.seenStore.RecordView(ctx, userID, candidateID, viewType, seen.ActionView)
}

// Likes returns the user's liked-list, served from cache when warm.
func (s *Service) Likes(ctx context.Context, userID string, limit int) ([]swipe.Decision, error) {
	if userID == "" {
		return nil, nil
	}

	if s.cache != nil {
		var cached []swipe.Decision
		if hit, err := s.cache.GetLikes(ctx, userID, &cached); err == nil && hit {
			return cached, nil
		}
	}

	liked, err := s.swipes.Liked(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("feed: liked list: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetLikes(ctx, userID, liked); err != nil {
			log.Printf("[feed] likes cache set for %s: %v", userID, err)
		}
	}
	return liked, nil
}

// invalidate drops the user's cached views and notifies listeners. These are
// staleness hints, not consistency guarantees: every step is best-effort.
func (s *Service) invalidate(ctx context.Context, userID, targetID, targetType, direction string) {
	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, userID); err != nil {
			log.Printf("[feed] cache invalidate for %s: %v", userID, err)
		}
	}

	if s.publisher == nil {
		return
	}
	event := SwipeEvent{
		UserID:     userID,
		TargetID:   targetID,
		TargetType: targetType,
		Direction:  direction,
		Ts:         time.Now().Unix(),
	}
	data, _ := json.Marshal(event)
	if err := s.publisher.PublishSwipeRecorded(data); err != nil {
		log.Printf("[feed] publish swipe.recorded: %v", err)
	}
	if err := s.publisher.PublishInvalidate(userID, data); err != nil {
		log.Printf("[feed] publish invalidate for %s: %v", userID, err)
	}
}

// detectMutualMatch checks whether the counterpart behind targetID has an
// active right-swipe on the actor, and publishes match.created to both sides
// if so. For listing targets the counterpart is the listing's owner.
func (s *Service) detectMutualMatch(ctx context.Context, userID, targetID, targetType string) {
	counterpart := targetID
	if targetType == swipe.TargetListing {
		l, err := s.candidates.Get(ctx, targetID)
		if err != nil || l == nil {
			return
		}
		counterpart = l.OwnerID
	}

	mutual, err := s.swipes.HasRightSwipe(ctx, counterpart, userID)
	if err != nil || !mutual {
		return
	}

	metrics.MatchesTotal.Inc()
	log.Printf("[feed] mutual match: %s <-> %s", userID, counterpart)

	if s.publisher == nil {
		return
	}
	ts := time.Now().Unix()
	for _, pair := range [][2]string{{userID, counterpart}, {counterpart, userID}} {
		data, _ := json.Marshal(MatchEvent{UserID: pair[0], OtherID: pair[1], Ts: ts})
		if err := s.publisher.PublishMatchCreated(pair[0], data); err != nil {
			log.Printf("[feed] publish match.created for %s: %v", pair[0], err)
		}
	}
}
