package credstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps credentials in Redis under "<prefix>:<profile>:<key>".
// Useful when several machines (CI runners, shared jump hosts) must see the
// same session.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	profile string
}

// NewRedisStore returns a RedisStore. An empty prefix defaults to "verval".
func NewRedisStore(client redis.UniversalClient, prefix, profile string) *RedisStore {
	if prefix == "" {
		prefix = "verval"
	}
	return &RedisStore{client: client, prefix: prefix, profile: profile}
}

// NewRedisStoreFromURL parses a redis:// URL and returns the store along with
// the client so the caller can close it.
func NewRedisStoreFromURL(rawURL, prefix, profile string) (*RedisStore, *redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	return NewRedisStore(client, prefix, profile), client, nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StoreError{Op: "get", Key: key, Err: err}
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key Key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return &StoreError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return &StoreError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *RedisStore) key(k Key) string {
	return s.prefix + ":" + s.profile + ":" + string(k)
}
