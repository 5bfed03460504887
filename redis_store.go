package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "wolfed"

func redisGameKey(id string) string     { return fmt.Sprintf("%s:game:%s", redisKeyPrefix, id) }
func redisSessionKey(tok string) string { return fmt.Sprintf("%s:session:%s", redisKeyPrefix, tok) }
func redisGamesIndexKey() string        { return fmt.Sprintf("%s:idx:games", redisKeyPrefix) }

// RedisConfig holds connection and retention settings for RedisStore.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	// FinishedGameTTL expires finished games on their own; 0 keeps them until pruned.
	FinishedGameTTL time.Duration
	SessionTTL      time.Duration
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		URL:             "redis://localhost:6379",
		PoolSize:        10,
		MinIdleConns:    2,
		FinishedGameTTL: 24 * time.Hour,
		SessionTTL:      7 * 24 * time.Hour,
	}
}

// RedisStore keeps each game as one JSON snapshot. A sorted set indexes games
// by their last save time.
type RedisStore struct {
	client *redis.Client
	cfg    RedisConfig
	reg    *Registry
}

var _ Store = (*RedisStore)(nil)

func OpenRedisStore(cfg RedisConfig, reg *Registry) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.URL, err)
	}
	return NewRedisStoreWithClient(client, cfg, reg), nil
}

// NewRedisStoreWithClient wraps an existing client (for tests)
func NewRedisStoreWithClient(client *redis.Client, cfg RedisConfig, reg *Registry) *RedisStore {
	return &RedisStore{client: client, cfg: cfg, reg: reg}
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) SaveGame(ctx context.Context, g GameState) error {
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if g.Phase == PhaseGameOver {
		ttl = s.cfg.FinishedGameTTL
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisGameKey(g.ID), data, ttl)
	pipe.ZAdd(ctx, redisGamesIndexKey(), redis.Z{Score: float64(g.UpdatedAt.UnixNano()), Member: g.ID})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) LoadGame(ctx context.Context, id string) (GameState, error) {
	data, err := s.client.Get(ctx, redisGameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return GameState{}, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	if err != nil {
		return GameState{}, err
	}
	var g GameState
	if err := json.Unmarshal(data, &g); err != nil {
		return GameState{}, fmt.Errorf("decode game %s: %w", id, err)
	}
	if err := rehydrateRoles(s.reg, &g); err != nil {
		return GameState{}, err
	}
	return g, nil
}

func (s *RedisStore) LatestGame(ctx context.Context) (GameState, error) {
	// entries whose snapshot has expired are dropped from the index on the way
	for {
		ids, err := s.client.ZRevRange(ctx, redisGamesIndexKey(), 0, 0).Result()
		if err != nil {
			return GameState{}, err
		}
		if len(ids) == 0 {
			return GameState{}, ErrGameNotFound
		}
		g, err := s.LoadGame(ctx, ids[0])
		if errors.Is(err, ErrGameNotFound) {
			if err := s.client.ZRem(ctx, redisGamesIndexKey(), ids[0]).Err(); err != nil {
				return GameState{}, err
			}
			continue
		}
		return g, err
	}
}

func (s *RedisStore) DeleteGame(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisGameKey(id))
	pipe.ZRem(ctx, redisGamesIndexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) PruneFinished(ctx context.Context, cutoff time.Time, keep string) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, redisGamesIndexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("(%d", cutoff.UnixNano()),
	}).Result()
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, id := range ids {
		if id == keep {
			continue
		}
		g, err := s.LoadGame(ctx, id)
		expired := errors.Is(err, ErrGameNotFound)
		if err != nil && !expired {
			return pruned, err
		}
		if !expired && g.Phase != PhaseGameOver {
			continue
		}
		if err := s.DeleteGame(ctx, id); err != nil {
			return pruned, err
		}
		if !expired {
			pruned++
		}
	}
	return pruned, nil
}

func (s *RedisStore) CreateSession(ctx context.Context, token string) error {
	return s.client.Set(ctx, redisSessionKey(token), time.Now().UTC().Format(time.RFC3339), s.cfg.SessionTTL).Err()
}

func (s *RedisStore) HasSession(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, redisSessionKey(token)).Result()
	return n > 0, err
}

func (s *RedisStore) DeleteSession(ctx context.Context, token string) error {
	return s.client.Del(ctx, redisSessionKey(token)).Err()
}
