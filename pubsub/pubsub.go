package pubsub

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/finch-technologies/storage-manager/adapters"
	"github.com/finch-technologies/storage-manager/pubsub/redis"
	"github.com/finch-technologies/storage-manager/pubsub/sqs"
)

type IMessageBroker interface {
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channel string, callback func(channel string, payload string)) func() error
}

type Driver string

const (
	DriverRedis Driver = "redis"
	DriverSQS   Driver = "sqs"
)

var (
	mu        sync.Mutex
	msgBroker IMessageBroker
)

// Init creates the package broker. The driver defaults to MESSAGE_DRIVER.
func Init(driver ...Driver) (IMessageBroker, error) {
	mu.Lock()
	defer mu.Unlock()

	if msgBroker != nil {
		return msgBroker, nil
	}

	d := Driver(os.Getenv("MESSAGE_DRIVER"))
	if len(driver) > 0 && driver[0] != "" {
		d = driver[0]
	}

	switch d {
	case DriverRedis:
		msgBroker = redis.New(adapters.GetRedisClient(adapters.PubSubDB()))
	case DriverSQS:
		b, err := sqs.New(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to create sqs message broker: %w", err)
		}
		msgBroker = b
	default:
		return nil, fmt.Errorf("invalid message broker driver %q", d)
	}

	return msgBroker, nil
}

func GetBroker() (IMessageBroker, error) {
	mu.Lock()
	b := msgBroker
	mu.Unlock()

	if b == nil {
		return Init()
	}

	return b, nil
}
