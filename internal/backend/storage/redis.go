package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const redisTimelineKey = "timeline:entries"

// RedisStore keeps each entry as a JSON value in a redis list. RPUSH is
// atomic, so concurrent appends from any number of processes are preserved.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects using a redis URL such as redis://localhost:6379/0.
func NewRedisStore(connectionString string) (*RedisStore, error) {
	options, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return &RedisStore{client: client, key: redisTimelineKey}, nil
}

func (s *RedisStore) Append(ctx context.Context, entry Entry) error {
	data, err := encode(entry, "")
	if err != nil {
		return fmt.Errorf("failed to marshal timeline entry: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push timeline entry: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	values, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline entries: %w", err)
	}

	entries := make([]Entry, 0, len(values))
	for i, value := range values {
		var entry Entry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			slog.Warn("skipping undecodable timeline element", "key", s.key, "index", i, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
