package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis publishes events as JSON on a pub/sub channel. Progress events are
// published only when enabled.
type Redis struct {
	client          redis.UniversalClient
	channel         string
	publishProgress bool
}

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, channel string, publishProgress bool) *Redis {
	return &Redis{client: client, channel: channel, publishProgress: publishProgress}
}

// NewRedisFromURL parses a redis:// URL and connects lazily.
func NewRedisFromURL(rawURL, channel string, publishProgress bool) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opts), channel, publishProgress), nil
}

func (r *Redis) Notify(ctx context.Context, event Event) error {
	if event.Type == EventUploadProgress && !r.publishProgress {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Close releases the client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
