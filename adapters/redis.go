package adapters

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisDBPubSub is the default logical database for message publishing.
const RedisDBPubSub = 3

var (
	redisMu        sync.Mutex
	redisClientMap = make(map[int]*redis.Client)
)

// GetRedisClient returns the shared client for db, configured from REDIS_HOST, REDIS_PORT,
// REDIS_PASSWORD and REDIS_SCHEME.
func GetRedisClient(db int) *redis.Client {
	redisMu.Lock()
	defer redisMu.Unlock()

	redisClient := redisClientMap[db]

	if redisClient == nil {
		redisClient = redis.NewClient(RedisOptions(db))
		redisClientMap[db] = redisClient
	}

	return redisClient
}

func RedisOptions(db int) *redis.Options {
	options := &redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}

	if os.Getenv("REDIS_SCHEME") == "tls" {
		options.TLSConfig = &tls.Config{}
	}

	return options
}

// PubSubDB is the database used for message publishing, REDIS_PUBSUB_DB when set.
func PubSubDB() int {
	if v, err := strconv.Atoi(os.Getenv("REDIS_PUBSUB_DB")); err == nil {
		return v
	}
	return RedisDBPubSub
}
