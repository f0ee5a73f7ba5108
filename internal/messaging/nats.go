// Package messaging provides a NATS client wrapper for invalidation fan-out.
// Swipe writes publish here so that other server instances and connected
// dashboard clients learn their cached candidate views are stale. Delivery is
// best-effort: readers that miss an event simply observe stale data until
// their next fetch.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used across the Swipess backend.
const (
	SubjectSwipeRecorded = "swipe.recorded"         // every persisted swipe decision
	SubjectInvalidate    = "candidates.invalidate"  // + .<user_id>
	SubjectMatchCreated  = "match.created"          // + .<user_id> (mutual right-swipe)
)

// Client wraps the NATS connection with helper methods for pub/sub.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "swipess",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NewClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// PublishSwipeRecorded publishes a persisted swipe decision to the shared
// swipe feed subject.
func (c *Client) PublishSwipeRecorded(data []byte) error {
	return c.Publish(SubjectSwipeRecorded, data)
}

// PublishInvalidate tells a user's listeners that their cached candidate
// views are stale.
func (c *Client) PublishInvalidate(userID string, data []byte) error {
	return c.Publish(SubjectInvalidate+"."+userID, data)
}

// PublishMatchCreated notifies a user of a new mutual match.
func (c *Client) PublishMatchCreated(userID string, data []byte) error {
	return c.Publish(SubjectMatchCreated+"."+userID, data)
}

// SubscribeInvalidate registers a handler for a user's invalidation events.
// The subscription is keyed per (user, listener) so multiple dashboard
// connections for the same account don't overwrite each other.
func (c *Client) SubscribeInvalidate(userID, listenerID string, handler func(data []byte)) error {
	subject := SubjectInvalidate + "." + userID
	key := "inval:" + listenerID
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[key] = sub
	c.mu.Unlock()
	return nil
}

// UnsubscribeInvalidate removes a listener's invalidation subscription.
func (c *Client) UnsubscribeInvalidate(listenerID string) error {
	return c.unsubscribe("inval:" + listenerID)
}

// SubscribeMatchCreated registers a handler for a user's match events.
func (c *Client) SubscribeMatchCreated(userID, listenerID string, handler func(data []byte)) error {
	subject := SubjectMatchCreated + "." + userID
	key := "match:" + listenerID
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[key] = sub
	c.mu.Unlock()
	return nil
}

// UnsubscribeMatchCreated removes a listener's match subscription.
func (c *Client) UnsubscribeMatchCreated(listenerID string) error {
	return c.unsubscribe("match:" + listenerID)
}

// SubscribeSwipeRecorded registers a handler for the shared swipe feed.
func (c *Client) SubscribeSwipeRecorded(handler func(data []byte)) error {
	sub, err := c.conn.Subscribe(SubjectSwipeRecorded, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", SubjectSwipeRecorded, err)
	}

	c.mu.Lock()
	c.subs[SubjectSwipeRecorded] = sub
	c.mu.Unlock()
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes a stored subscription by key.
func (c *Client) unsubscribe(key string) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for %s", key)
	}
	delete(c.subs, key)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", key, err)
	}
	return nil
}
