package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultChannelPrefix = "telecaller:notify"

// RedisBus publishes events over Redis pub/sub, one channel per recipient.
// Subscribers that are not connected simply miss the message.
type RedisBus struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBus(rdb *redis.Client, prefix string) *RedisBus {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	return &RedisBus{rdb: rdb, prefix: prefix}
}

// Channel returns the pub/sub channel used for recipient.
func (b *RedisBus) Channel(recipient string) string {
	if recipient == "" {
		return b.prefix + ":broadcast"
	}
	return b.prefix + ":" + recipient
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	if b.rdb == nil {
		return errors.New("notify: redis client is nil")
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("notify: encode %s: %w", e.Type, err)
	}
	return b.rdb.Publish(ctx, b.Channel(e.Recipient), raw).Err()
}
