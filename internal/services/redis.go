package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"trdelnik-backend/internal/config"
	"trdelnik-backend/internal/models"
)

// RedisService mirrors volatile client state: last-known session snapshots
// for players returning mid-game, the reconciled history cache, and rate
// limit counters. The ledger stays the durable record; everything here is
// rebuildable.
type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		_, err := client.Ping(context.Background()).Result()
		if err != nil {
			logrus.Warnf("Redis connection failed: %v, retrying...", err)
		}
		return err
	}, b)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %v", cfg.RedisURL, err)
	}

	return &RedisService{client: client}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// SaveSessionSnapshot stores the last-known session state for a player so a
// returning client can render something while the ledger is re-queried.
func (s *RedisService) SaveSessionSnapshot(ctx context.Context, session *models.GameSession) error {
	key := fmt.Sprintf(KeyPlayerSession, session.Player)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %v", err)
	}

	return s.client.Set(ctx, key, data, TTLPlayerSession).Err()
}

// GetSessionSnapshot returns the stored snapshot, or nil when none exists.
func (s *RedisService) GetSessionSnapshot(ctx context.Context, player string) (*models.GameSession, error) {
	key := fmt.Sprintf(KeyPlayerSession, player)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session snapshot: %v", err)
	}

	var session models.GameSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session snapshot: %v", err)
	}

	return &session, nil
}

func (s *RedisService) DeleteSessionSnapshot(ctx context.Context, player string) error {
	key := fmt.Sprintf(KeyPlayerSession, player)
	return s.client.Del(ctx, key).Err()
}

// CacheRecentGames stores the reconciled last-played records.
func (s *RedisService) CacheRecentGames(ctx context.Context, records []models.HistoricalGameRecord, ttl time.Duration) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal history cache: %v", err)
	}

	return s.client.Set(ctx, KeyHistoryCache, data, ttl).Err()
}

// GetCachedRecentGames returns the cached records, or nil on a cache miss.
func (s *RedisService) GetCachedRecentGames(ctx context.Context) ([]models.HistoricalGameRecord, error) {
	data, err := s.client.Get(ctx, KeyHistoryCache).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history cache: %v", err)
	}

	var records []models.HistoricalGameRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history cache: %v", err)
	}

	return records, nil
}

// CheckRateLimit counts actions per player in a sliding window.
func (s *RedisService) CheckRateLimit(ctx context.Context, player, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, player, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(ctx context.Context, player, action string) error {
	key := fmt.Sprintf(KeyRateLimit, player, action)
	return s.client.Del(ctx, key).Err()
}
