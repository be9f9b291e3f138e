// Package presence mirrors the gateway's online set into Redis so other
// processes can read it.
package presence

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const DefaultKey = "presence:online"

// RedisMirror keeps a Redis set of online user ids.
type RedisMirror struct {
	client *redis.Client
	key    string
}

// NewRedisMirror returns a mirror writing to key, or DefaultKey when key is
// empty.
func NewRedisMirror(client *redis.Client, key string) *RedisMirror {
	if key == "" {
		key = DefaultKey
	}
	return &RedisMirror{client: client, key: key}
}

// Connect dials addr and checks the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (m *RedisMirror) SetOnline(ctx context.Context, userID string) error {
	if err := m.client.SAdd(ctx, m.key, userID).Err(); err != nil {
		return fmt.Errorf("set %s online: %w", userID, err)
	}
	return nil
}

func (m *RedisMirror) SetOffline(ctx context.Context, userID string) error {
	if err := m.client.SRem(ctx, m.key, userID).Err(); err != nil {
		return fmt.Errorf("set %s offline: %w", userID, err)
	}
	return nil
}

// Reset clears the set. The gateway calls it on start since a fresh process
// has no live connections.
func (m *RedisMirror) Reset(ctx context.Context) error {
	if err := m.client.Del(ctx, m.key).Err(); err != nil {
		return fmt.Errorf("reset presence: %w", err)
	}
	return nil
}

// Members returns the mirrored online user ids, sorted.
func (m *RedisMirror) Members(ctx context.Context) ([]string, error) {
	ids, err := m.client.SMembers(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read presence: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *RedisMirror) IsOnline(ctx context.Context, userID string) (bool, error) {
	ok, err := m.client.SIsMember(ctx, m.key, userID).Result()
	if err != nil {
		return false, fmt.Errorf("check presence: %w", err)
	}
	return ok, nil
}
