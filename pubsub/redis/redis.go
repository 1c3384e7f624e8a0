package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/finch-technologies/storage-manager/log"
	"github.com/redis/go-redis/v9"
)

// RedisMessageBroker publishes over Redis pub/sub. Subscriptions are pattern based, so
// "storage.*" receives every storage event channel.
type RedisMessageBroker struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *RedisMessageBroker {
	return &RedisMessageBroker{rdb: rdb}
}

func encode(payload any) (string, error) {
	switch p := payload.(type) {
	case string:
		return p, nil
	case []byte:
		return string(p), nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

// Publish sends payload as JSON; strings and byte slices are sent as is.
func (b *RedisMessageBroker) Publish(ctx context.Context, channel string, payload any) error {
	message, err := encode(payload)
	if err != nil {
		return err
	}

	return b.rdb.Publish(ctx, channel, message).Err()
}

// Subscribe waits for the subscription to be confirmed, then delivers messages to callback
// on a separate goroutine until the returned function is called.
func (b *RedisMessageBroker) Subscribe(ctx context.Context, channel string, callback func(channel string, payload string)) func() error {
	sub := b.rdb.PSubscribe(ctx, channel)

	if _, err := sub.Receive(ctx); err != nil {
		log.Errorf("redis: subscribe to %s: %v", channel, err)
		return sub.Close
	}

	go func(messages <-chan *redis.Message) {
		for msg := range messages {
			callback(msg.Channel, msg.Payload)
		}
	}(sub.Channel())

	return sub.Close
}
