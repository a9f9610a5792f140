package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"clinic-queue/internal/queue"
)

const DefaultChannel = "clinic:queue-events"

// RedisBus carries queue events between server instances over Redis
// pub/sub. Publishing never fails the caller.
type RedisBus struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

func NewRedisBus(client *redis.Client, channel string, log zerolog.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{client: client, channel: channel, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, ev queue.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.log.Error().Err(err).Str("event", string(ev.Type)).Msg("marshal event")
		return
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.log.Warn().Err(err).Str("event", string(ev.Type)).Msg("publish failed")
	}
}

// Run forwards every event on the channel to sink until ctx is done.
// ready, when non-nil, is closed once the subscription is confirmed.
func (b *RedisBus) Run(ctx context.Context, sink queue.Notifier, ready chan<- struct{}) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	b.log.Info().Str("channel", b.channel).Msg("subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev queue.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn().Err(err).Msg("drop malformed event")
				continue
			}
			sink.Publish(ctx, ev)
		}
	}
}
