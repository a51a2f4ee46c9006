package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"leadlens/api/internal/store"
)

const channelPrefix = "activity:"

// RedisBus publishes and subscribes to per-tenant activity channels.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus wraps an existing Redis client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// Publish broadcasts an activity entry to the tenant's channel.
func (b *RedisBus) Publish(ctx context.Context, entry store.ActivityLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal activity entry: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+entry.TenantID, payload).Err(); err != nil {
		return fmt.Errorf("publish activity entry: %w", err)
	}
	return nil
}

// Subscribe returns a channel of live activity entries for a tenant. The
// channel closes when ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, tenantID string) (<-chan store.ActivityLogEntry, error) {
	sub := b.client.Subscribe(ctx, channelPrefix+tenantID)

	// Force the subscription to be established before returning.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to activity channel: %w", err)
	}

	out := make(chan store.ActivityLogEntry)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var entry store.ActivityLogEntry
				if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
					log.Printf("feed: dropping malformed activity payload: %v", err)
					continue
				}
				select {
				case out <- entry:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
