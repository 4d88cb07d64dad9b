package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/palette/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the adapter writes.
const DefaultPrefix = "palette:"

// Store implements ports.RecencyStore using one Redis string key.
// Several composers sharing the key should pair it with a Locker.
type Store struct {
	client *backend.Client
	prefix string
	name   string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration of the recency key. Zero keeps it forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithName selects the list, e.g. one per user.
func WithName(name string) Option {
	return func(s *Store) {
		s.name = name
	}
}

// New creates a Redis store connected to address.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		name:   "default",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, e.g. to build a Locker on the same connection.
func (s *Store) Client() *backend.Client {
	return s.client
}

// Key returns the Redis key holding the list.
func (s *Store) Key() string {
	return s.prefix + "recent:" + s.name
}

// Load retrieves the list. A missing key is an empty list.
func (s *Store) Load(ctx context.Context) ([]domain.RecentUsage, error) {
	val, err := s.client.Get(ctx, s.Key()).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return domain.DecodeRecent(val)
}

// Save replaces the list.
func (s *Store) Save(ctx context.Context, entries []domain.RecentUsage) error {
	data, err := domain.EncodeRecent(entries)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.Key(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
