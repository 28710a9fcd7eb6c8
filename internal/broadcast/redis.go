package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "events:"

// Channel returns the Redis pub/sub channel carrying changes of eventID.
func Channel(eventID uint64) string {
	return channelPrefix + strconv.FormatUint(eventID, 10)
}

// RedisHub publishes changes on Redis so that the subscribers of every
// replica see them.  Local subscribers are fed by Run, never directly by
// Broadcast, so a change is delivered exactly once per process.
type RedisHub struct {
	*Hub
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisHub(rdb *redis.Client, log *slog.Logger) *RedisHub {
	if log == nil {
		log = slog.Default()
	}
	return &RedisHub{Hub: NewHub(), rdb: rdb, log: log}
}

// Broadcast publishes the change on the event's channel.
func (h *RedisHub) Broadcast(ctx context.Context, eventID uint64, topics []string) error {
	payload, err := json.Marshal(Message{EventID: eventID, Topics: topics})
	if err != nil {
		return err
	}
	if err := h.rdb.Publish(ctx, Channel(eventID), string(payload)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", Channel(eventID), err)
	}
	return nil
}

// Run relays messages from Redis to local subscribers until ctx is done.
func (h *RedisHub) Run(ctx context.Context) error {
	sub := h.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", channelPrefix, err)
	}
	h.log.Info("relaying event changes from redis", "pattern", channelPrefix+"*")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			if err := h.relay(m.Channel, m.Payload); err != nil {
				h.log.Warn("dropping malformed change message", "channel", m.Channel, "err", err)
			}
		}
	}
}

func (h *RedisHub) relay(channel, payload string) error {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return err
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(channel, channelPrefix), 10, 64)
	if err != nil || id != msg.EventID {
		return fmt.Errorf("channel %q does not match event %d", channel, msg.EventID)
	}
	h.deliver(msg)
	return nil
}
