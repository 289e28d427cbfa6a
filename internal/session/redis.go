package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/domain"
)

const (
	keyPrefix        = "session:"
	maxUpdateRetries = 10
)

// RedisStore keeps drafts in Redis with a per-key expiry. Updates use optimistic WATCH/MULTI
// transactions so only one writer wins per session key.
type RedisStore struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisStore connects to the Redis instance in cfg.RedisURL.
func NewRedisStore(cfg domain.SessionConfig, logger *logrus.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithField("addr", opts.Addr).Info("Connected to Redis session store")
	return NewRedisStoreFromClient(client, logger), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, logger *logrus.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func sessionKey(id string) string {
	return keyPrefix + id
}

// Save stores a draft, replacing any previous one.
func (s *RedisStore) Save(ctx context.Context, id string, data *domain.SessionData, ttl time.Duration) error {
	payload, err := encode(data)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionKey(id), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get returns the draft or domain.ErrSessionNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.SessionData, error) {
	payload, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return decode(payload)
}

// Update runs fn inside a WATCH transaction and retries when another writer got there first.
func (s *RedisStore) Update(ctx context.Context, id string, ttl time.Duration, fn func(*domain.SessionData) error) error {
	key := sessionKey(id)

	txf := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}

		data, err := decode(payload)
		if err != nil {
			return err
		}
		if err := fn(data); err != nil {
			return err
		}
		updated, err := encode(data)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, ttl)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.WithFields(logrus.Fields{
			"session_id": id,
			"attempt":    attempt,
		}).Debug("Session changed during update, retrying")
	}
	return domain.ErrSessionConflict
}

// Delete removes a draft. Deleting a missing draft is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
