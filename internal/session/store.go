package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avdelag1/swipess/internal/seen"
)

const (
	// SessionPrefix is the Redis key prefix for all session hashes.
	SessionPrefix = "session:"

	// SessionTTL is the time-to-live for session keys in Redis.
	SessionTTL = 24 * time.Hour
)

// Session is a user's server-side session state. Mode is the active
// marketplace side (client or owner); it is explicit session state passed
// into the feed as a parameter, never read from ambient globals.
type Session struct {
	UserID     string `redis:"user_id"`
	Mode       string `redis:"mode"` // client | owner
	CreatedAt  int64  `redis:"created_at"`
	LastActive int64  `redis:"last_active"`
}

// Store manages session state in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a session store connected to Redis at addr.
func NewStore(redisAddr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: redis connection failed: %w", err)
	}

	return &Store{client: client}, nil
}

// Touch creates the session record if absent and refreshes its TTL. New
// sessions start in client mode.
func (s *Store) Touch(ctx context.Context, userID string) error {
	key := SessionPrefix + userID
	now := time.Now().Unix()

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("session: touch %s: %w", userID, err)
	}

	pipe := s.client.Pipeline()
	if exists == 0 {
		pipe.HSet(ctx, key, map[string]interface{}{
			"user_id":     userID,
			"mode":        seen.ViewClient,
			"created_at":  now,
			"last_active": now,
		})
	} else {
		pipe.HSet(ctx, key, "last_active", now)
	}
	pipe.Expire(ctx, key, SessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: touch %s: %w", userID, err)
	}
	return nil
}

// Get retrieves a session. Returns nil if not found.
func (s *Store) Get(ctx context.Context, userID string) (*Session, error) {
	key := SessionPrefix + userID
	var sess Session
	if err := s.client.HGetAll(ctx, key).Scan(&sess); err != nil {
		return nil, err
	}
	if sess.UserID == "" {
		return nil, nil
	}
	return &sess, nil
}

// Mode returns the user's active marketplace mode, defaulting to client mode
// when no session record exists yet.
func (s *Store) Mode(ctx context.Context, userID string) (string, error) {
	sess, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if sess == nil || sess.Mode == "" {
		return seen.ViewClient, nil
	}
	return sess.Mode, nil
}

// SetMode switches the user's active marketplace mode.
func (s *Store) SetMode(ctx context.Context, userID, mode string) error {
	if mode != seen.ViewClient && mode != seen.ViewOwner {
		return fmt.Errorf("session: invalid mode %q", mode)
	}
	key := SessionPrefix + userID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "user_id", userID, "mode", mode, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, SessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Delete removes a session from Redis.
func (s *Store) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, SessionPrefix+userID).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}
