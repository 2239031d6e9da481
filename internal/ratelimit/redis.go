// Package ratelimit counts requests in fixed windows stored in Redis. Without
// an external Redis address it runs an embedded in-process server.
package ratelimit

import (
	"context"
	"fmt"
	"log"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Store owns the Redis client and, when embedded, the in-process server.
type Store struct {
	client   *redis.Client
	embedded *miniredis.Miniredis
}

// Open connects to addr, or starts an embedded Redis when addr is empty.
func Open(ctx context.Context, addr string) (*Store, error) {
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		log.Printf("ratelimit: embedded redis started on %s", mr.Addr())
		return &Store{client: redis.NewClient(&redis.Options{Addr: mr.Addr()}), embedded: mr}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	log.Printf("ratelimit: connected to redis at %s", addr)
	return &Store{client: client}, nil
}

// Client returns the Redis client.
func (s *Store) Client() *redis.Client { return s.client }

// Embedded reports whether the store runs an in-process Redis.
func (s *Store) Embedded() bool { return s.embedded != nil }

// PingContext checks the Redis connection.
func (s *Store) PingContext(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client and stops the embedded server if running.
func (s *Store) Close() error {
	err := s.client.Close()
	if s.embedded != nil {
		s.embedded.Close()
	}
	return err
}
