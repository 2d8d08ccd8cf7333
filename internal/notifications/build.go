package notifications

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"courier/internal/config"
)

// Built is the assembled sink plus the resources that need shutting down.
type Built struct {
	Sink    Sink
	closers []func()
}

// Close drains async buffers and releases clients.
func (b *Built) Close() {
	if b == nil {
		return
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Build assembles the configured sinks. The hub may be nil. Network-bound
// sinks are wrapped in Async buffers; the hub is already non-blocking.
func Build(cfg *config.Config, hub *Hub, logger *slog.Logger) (*Built, error) {
	built := &Built{}
	var sinks Multi
	buffer := cfg.Notifications.Buffer

	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		async := NewAsync("ntfy", NewNtfy(topic, timeout), buffer, logger)
		sinks = append(sinks, async)
		built.closers = append(built.closers, async.Close)
	}

	if url := strings.TrimSpace(cfg.Notifications.RedisURL); url != "" {
		publisher, err := NewRedisFromURL(url, cfg.Notifications.RedisChannel, cfg.Notifications.PublishProgress)
		if err != nil {
			built.Close()
			return nil, fmt.Errorf("redis notifications: %w", err)
		}
		async := NewAsync("redis", publisher, buffer, logger)
		sinks = append(sinks, async)
		built.closers = append(built.closers, func() { _ = publisher.Close() }, async.Close)
	}

	if hub != nil {
		sinks = append(sinks, hub)
	}

	switch len(sinks) {
	case 0:
		built.Sink = Nop{}
	case 1:
		built.Sink = sinks[0]
	default:
		built.Sink = sinks
	}
	return built, nil
}
