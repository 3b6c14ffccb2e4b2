// Package rediscas stores meta in Redis, one key per hash.
package rediscas

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rainlang.xyz/rainmeta/metahash"
	"rainlang.xyz/rainmeta/storage"
)

// DefaultPrefix namespaces keys written by this package.
const DefaultPrefix = "rainmeta:"

// CAS implements storage.CAS on a Redis server. Keys never expire; SETNX keeps
// the first write.
type CAS struct {
	client *redis.Client
	prefix string
}

var _ storage.CAS = (*CAS)(nil)

// New connects to the Redis server at redisURL (redis://host:port/db) and
// checks the connection.
func New(redisURL, prefix string) (*CAS, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewWithClient(client, prefix), nil
}

// NewWithClient creates a CAS from an existing client.
func NewWithClient(client *redis.Client, prefix string) *CAS {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &CAS{client: client, prefix: prefix}
}

func (c *CAS) key(h metahash.Hash) string {
	return c.prefix + h.String()
}

func (c *CAS) Put(ctx context.Context, data []byte) (metahash.Hash, error) {
	if len(data) == 0 {
		return metahash.Zero, errors.New("rediscas: refusing to store empty content")
	}
	h := metahash.Sum(data)
	ok, err := c.client.SetNX(ctx, c.key(h), data, 0).Result()
	if err != nil {
		return metahash.Zero, fmt.Errorf("rediscas: put: %w", err)
	}
	if ok {
		return h, nil
	}
	existing, err := c.client.Get(ctx, c.key(h)).Bytes()
	if err != nil || !bytes.Equal(existing, data) {
		return metahash.Zero, storage.ErrImmutable
	}
	return h, nil
}

func (c *CAS) Get(ctx context.Context, h metahash.Hash) ([]byte, error) {
	if !h.Defined() {
		return nil, storage.ErrInvalidHash
	}
	b, err := c.client.Get(ctx, c.key(h)).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rediscas: get: %w", err)
	}
	if err := storage.Verify(h, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *CAS) Has(ctx context.Context, h metahash.Hash) bool {
	if !h.Defined() {
		return false
	}
	n, err := c.client.Exists(ctx, c.key(h)).Result()
	return err == nil && n > 0
}

// Close closes the Redis client.
func (c *CAS) Close() error {
	return c.client.Close()
}
