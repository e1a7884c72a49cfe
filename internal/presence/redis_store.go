package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists presence records in Redis. Writes are whole-record
// sets with last-writer-wins semantics: the same participant heartbeating
// from two devices is expected and not arbitrated.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "presence:"}, nil
}

// NewRedisStoreWithClient wraps an existing client, sharing a connection pool
// with the change bus.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "presence:"}
}

func (s *RedisStore) key(showID, memberID string) string {
	return s.prefix + showID + ":" + memberID
}

// MarkOnline records a heartbeat. Called once on mount and then on every
// heartbeat interval; each call overwrites the record with a fresh timestamp.
func (s *RedisStore) MarkOnline(ctx context.Context, showID, memberID, deviceID string) error {
	return s.write(ctx, showID, memberID, Status{
		Online:     true,
		LastSeenAt: time.Now().UTC(),
		DeviceID:   deviceID,
	})
}

// MarkOffline records a clean teardown. Callers treat failures as
// best-effort; the participant is leaving regardless.
func (s *RedisStore) MarkOffline(ctx context.Context, showID, memberID string) error {
	return s.write(ctx, showID, memberID, Status{
		Online:     false,
		LastSeenAt: time.Now().UTC(),
	})
}

func (s *RedisStore) write(ctx context.Context, showID, memberID string, status Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	// No TTL: records persist until overwritten so that an abrupt disconnect
	// is visible as "online with a stale lastSeenAt" rather than vanishing.
	if err := s.client.Set(ctx, s.key(showID, memberID), payload, 0).Err(); err != nil {
		return fmt.Errorf("write presence for show %s member %s: %w", showID, memberID, err)
	}
	return nil
}

// Get returns a single member's presence; absent records read as offline
// with a zero timestamp.
func (s *RedisStore) Get(ctx context.Context, showID, memberID string) (Status, error) {
	raw, err := s.client.Get(ctx, s.key(showID, memberID)).Result()
	if err == redis.Nil {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read presence for show %s member %s: %w", showID, memberID, err)
	}
	var status Status
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return Status{}, fmt.Errorf("decode presence for show %s member %s: %w", showID, memberID, err)
	}
	return status, nil
}

// List returns presence for every member of a show, keyed by member id.
func (s *RedisStore) List(ctx context.Context, showID string) (map[string]Status, error) {
	pattern := s.prefix + showID + ":*"
	out := make(map[string]Status)

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		memberID := key[len(s.prefix)+len(showID)+1:]
		status, err := s.Get(ctx, showID, memberID)
		if err != nil {
			return nil, err
		}
		out[memberID] = status
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan presence for show %s: %w", showID, err)
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
