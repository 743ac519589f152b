package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/realfinder/verifier/src/verification/types"
)

// MustRedis parses url and returns a client, panicking on a malformed URL.
func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		panic(err)
	}
	return redis.NewClient(opt)
}

// ConnectRedis parses url and pings the server.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisCache stores analysis results as plain string values.
type RedisCache struct {
	rdb redis.Cmdable
}

// NewRedisCache wraps rdb.
func NewRedisCache(rdb redis.Cmdable) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// DefaultStream is the stream decisions are appended to.
const DefaultStream = "verifier.decisions"

// StreamPublisher appends decisions to a redis stream.
type StreamPublisher struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

// NewStreamPublisher returns a publisher for stream; an empty name uses
// DefaultStream.
func NewStreamPublisher(rdb redis.Cmdable, stream string) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{rdb: rdb, stream: stream, maxLen: 100000}
}

func (p *StreamPublisher) Publish(ctx context.Context, d *types.Decision) error {
	values, err := streamValues(d)
	if err != nil {
		return err
	}
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Err()
}

func streamValues(d *types.Decision) (map[string]interface{}, error) {
	payload, err := json.Marshal(d.Wire())
	if err != nil {
		return nil, fmt.Errorf("encode decision: %w", err)
	}
	return map[string]interface{}{
		"decision_id":    d.ID,
		"subject_type":   string(d.SubjectType),
		"subject_id":     d.SubjectID,
		"decision":       string(d.Decision),
		"combined_score": strconv.FormatFloat(d.CombinedScore, 'f', 4, 64),
		"time":           d.DecidedAt.Unix(),
		"payload":        string(payload),
	}, nil
}
