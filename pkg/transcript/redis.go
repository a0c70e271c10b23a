package transcript

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSinkClosed is returned when recording to a closed sink.
var ErrSinkClosed = errors.New("transcript sink is closed")

// RedisConfig holds Redis stream configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr"`
	// Password is the Redis password (optional).
	Password string `yaml:"password"`
	// DB is the Redis database number.
	DB int `yaml:"db"`
	// Stream is the stream key (default: "jenkinsbot:transcripts").
	Stream string `yaml:"stream"`
	// MaxLen caps the stream length approximately (default: 100000).
	MaxLen int64 `yaml:"max_len"`
}

const (
	defaultStream = "jenkinsbot:transcripts"
	defaultMaxLen = 100000
)

// RedisStreamSink appends records to a capped Redis stream.
type RedisStreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
	mu     sync.RWMutex
	closed bool
}

// NewRedisStreamSink connects to Redis and verifies the connection.
func NewRedisStreamSink(cfg RedisConfig) (*RedisStreamSink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStreamSinkFromClient(client, cfg.Stream, cfg.MaxLen), nil
}

// NewRedisStreamSinkFromClient creates a sink from an existing client.
// This is useful for testing with miniredis.
func NewRedisStreamSinkFromClient(client *redis.Client, stream string, maxLen int64) *RedisStreamSink {
	if stream == "" {
		stream = defaultStream
	}
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &RedisStreamSink{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Record appends rec to the stream.
func (s *RedisStreamSink) Record(ctx context.Context, rec Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"session_id": rec.SessionID,
			"question":   rec.Question,
			"answer":     rec.Answer,
			"persona":    rec.Persona,
			"created_at": rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

// Records returns up to limit records from the start of the stream.
// A non-positive limit returns everything.
func (s *RedisStreamSink) Records(ctx context.Context, limit int64) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSinkClosed
	}

	var (
		msgs []redis.XMessage
		err  error
	)
	if limit > 0 {
		msgs, err = s.client.XRangeN(ctx, s.stream, "-", "+", limit).Result()
	} else {
		msgs, err = s.client.XRange(ctx, s.stream, "-", "+").Result()
	}
	if err != nil {
		return nil, fmt.Errorf("read transcripts: %w", err)
	}

	records := make([]Record, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, recordFromValues(msg.ID, msg.Values))
	}
	return records, nil
}

// Ping checks the Redis connection.
func (s *RedisStreamSink) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStreamSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

func recordFromValues(id string, values map[string]any) Record {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}

	rec := Record{
		ID:        id,
		SessionID: str("session_id"),
		Question:  str("question"),
		Answer:    str("answer"),
		Persona:   str("persona"),
	}
	if ts, err := time.Parse(time.RFC3339Nano, str("created_at")); err == nil {
		rec.CreatedAt = ts
	}
	return rec
}
