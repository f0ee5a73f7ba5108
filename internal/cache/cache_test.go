package cache

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newTestCache connects to a local Redis instance and cleans up test keys.
// Tests that call this helper require a running Redis on localhost:6379.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	cleanup := func() {
		for _, pattern := range []string{FeedPrefix + "test_*", LikesPrefix + "test_*"} {
			iter := client.Scan(ctx, 0, pattern, 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return New(client)
}

type cachedPage struct {
	IDs []string `json:"ids"`
}

func TestFeedRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	stored := cachedPage{IDs: []string{"l1", "l2"}}
	if err := c.SetFeed(ctx, "test_u1", "client", stored); err != nil {
		t.Fatalf("SetFeed() error: %v", err)
	}

	var loaded cachedPage
	hit, err := c.GetFeed(ctx, "test_u1", "client", &loaded)
	if err != nil {
		t.Fatalf("GetFeed() error: %v", err)
	}
	if !hit {
		t.Fatal("expected hit after set")
	}
	if len(loaded.IDs) != 2 || loaded.IDs[0] != "l1" {
		t.Errorf("unexpected cached page %+v", loaded)
	}
}

func TestFeedViewTypesAreSeparateKeys(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.SetFeed(ctx, "test_u2", "client", cachedPage{IDs: []string{"l1"}}); err != nil {
		t.Fatalf("SetFeed() error: %v", err)
	}

	var loaded cachedPage
	hit, err := c.GetFeed(ctx, "test_u2", "owner", &loaded)
	if err != nil {
		t.Fatalf("GetFeed() error: %v", err)
	}
	if hit {
		t.Error("owner view served from client view's key")
	}
}

func TestMissOnAbsentKey(t *testing.T) {
	c := newTestCache(t)

	var loaded cachedPage
	hit, err := c.GetFeed(context.Background(), "test_absent", "client", &loaded)
	if err != nil {
		t.Fatalf("GetFeed() error: %v", err)
	}
	if hit {
		t.Error("expected miss for absent key")
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	key := FeedPrefix + "test_u3:client"
	if err := c.client.Set(ctx, key, "{not json", EntryTTL).Err(); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	var loaded cachedPage
	hit, err := c.GetFeed(ctx, "test_u3", "client", &loaded)
	if err != nil {
		t.Fatalf("GetFeed() error: %v", err)
	}
	if hit {
		t.Error("corrupt entry must read as a miss")
	}
}

func TestInvalidateUserDropsAllViews(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.SetFeed(ctx, "test_u4", "client", cachedPage{IDs: []string{"l1"}})
	c.SetFeed(ctx, "test_u4", "owner", cachedPage{IDs: []string{"p1"}})
	c.SetLikes(ctx, "test_u4", []string{"l9"})

	if err := c.InvalidateUser(ctx, "test_u4"); err != nil {
		t.Fatalf("InvalidateUser() error: %v", err)
	}

	var page cachedPage
	for _, view := range []string{"client", "owner"} {
		if hit, _ := c.GetFeed(ctx, "test_u4", view, &page); hit {
			t.Errorf("%s feed survived invalidation", view)
		}
	}
	var likes []string
	if hit, _ := c.GetLikes(ctx, "test_u4", &likes); hit {
		t.Error("likes survived invalidation")
	}
}
