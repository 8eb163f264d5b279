package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Redis bundles the client with its lock client. A nil *Redis is a valid "not connected"
// value: reads miss and writes are dropped, so callers degrade to the database.
type Redis struct {
	client *redis.Client
	locker *redislock.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, locker: redislock.New(client)}
}

func (r *Redis) Client() *redis.Client {
	if r == nil {
		return nil
	}
	return r.client
}

func (r *Redis) GetObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	if r == nil {
		return false, nil
	}
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) SetObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	if r == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, objInByte, exp).Err()
}

func (r *Redis) GetValue(ctx context.Context, key string) (string, bool, error) {
	if r == nil {
		return "", false, nil
	}
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (r *Redis) SetValue(ctx context.Context, key string, value string, exp time.Duration) error {
	if r == nil {
		return nil
	}
	return r.client.Set(ctx, key, value, exp).Err()
}

// store key in a set for faster adding & retrieving
func (r *Redis) AddSet(ctx context.Context, setKey string, member string) error {
	if r == nil {
		return nil
	}
	return r.client.SAdd(ctx, setKey, member).Err()
}

func (r *Redis) SetMembers(ctx context.Context, setKey string) ([]string, error) {
	if r == nil {
		return nil, nil
	}
	return r.client.SMembers(ctx, setKey).Result()
}

func (r *Redis) RemoveSetMember(ctx context.Context, setKey string, member string) error {
	if r == nil {
		return nil
	}
	return r.client.SRem(ctx, setKey, member).Err()
}

func (r *Redis) RemoveKey(ctx context.Context, keys ...string) error {
	if r == nil || len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Incr adds one to key and returns the new value.
func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	if r == nil {
		return 0, nil
	}
	return r.client.Incr(ctx, key).Result()
}

// Obtain takes a short-lived lock on key. It fails with redislock.ErrNotObtained when held elsewhere.
func (r *Redis) Obtain(ctx context.Context, key string, ttl time.Duration) (*redislock.Lock, error) {
	if r == nil {
		return nil, errors.New("redis lock not initialized")
	}
	return r.locker.Obtain(ctx, key, ttl, nil)
}

func (r *Redis) Close() error {
	if r == nil {
		return nil
	}
	return r.client.Close()
}

const defaultRedisConnectAttempts = 3

// redisConnectAttempts reads REDIS_CONNECT_ATTEMPTS. Redis is optional, so an unset or
// non-positive value keeps a finite default rather than retrying forever.
func redisConnectAttempts() int {
	n := intFromEnv("REDIS_CONNECT_ATTEMPTS", defaultRedisConnectAttempts)
	if n <= 0 {
		return defaultRedisConnectAttempts
	}
	return n
}

// ConnectRedisWithRetry connects to REDIS_ADDRESS (default localhost:6379).
// REDIS_CONNECT_ATTEMPTS bounds the attempts (default 3).
func ConnectRedisWithRetry(ctx context.Context) (*Redis, error) {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
		log.Printf("REDIS_ADDRESS not set; defaulting to %s", redisAddr)
	}
	maxAttempts := redisConnectAttempts()

	var attempt int
	for {
		attempt++
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
			PoolSize: 100,
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, redisAddr)
			return NewRedis(client), nil
		}
		_ = client.Close()
		if attempt >= maxAttempts {
			return nil, fmt.Errorf("connect redis after %d attempts: %w", attempt, err)
		}

		sleep := backoff(attempt)
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, redisAddr, err, sleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}
