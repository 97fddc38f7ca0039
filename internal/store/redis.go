package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cinetaste/authkit/internal/model"
)

// redisStore is an alternative backing for headless deployments where the
// subsystem runs as a daemon next to a Redis instance rather than on a
// device with local storage.
type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis at addr and returns a store keyed under prefix.
func NewRedis(addr, password, prefix string) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) key(name string) string {
	return s.prefix + name
}

func (s *redisStore) Session(ctx context.Context) (*model.Session, error) {
	val, err := s.client.Get(ctx, s.key(KeySession)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to decode stored session: %w", err)
	}
	return &session, nil
}

func (s *redisStore) PutSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.client.Set(ctx, s.key(KeySession), data, 0).Err()
}

func (s *redisStore) DeleteSession(ctx context.Context) error {
	return s.client.Del(ctx, s.key(KeySession)).Err()
}

func (s *redisStore) Token(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key(KeyToken)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *redisStore) PutToken(ctx context.Context, token string) error {
	return s.client.Set(ctx, s.key(KeyToken), token, 0).Err()
}

func (s *redisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key(KeySession), s.key(KeyToken)).Err()
}
