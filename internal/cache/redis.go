// Package cache mirrors the current activity snapshot into Redis so other local
// processes (status bars, dashboards) can read it without calling the tracker.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/actionsum/focustrack/internal/config"
	"github.com/actionsum/focustrack/internal/models"
)

const keyPrefix = "focustrack:activity:"

// Mirror implements tracker.SnapshotSink on top of Redis.
type Mirror struct {
	client *redis.Client
	ttl    time.Duration
}

// Open connects to Redis and verifies the connection.
func Open(cfg config.RedisConfig) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Mirror{client: client, ttl: cfg.TTL}, nil
}

func Key(userID string) string {
	return keyPrefix + userID
}

// PublishActivity stores the snapshot as JSON. A nil activity deletes the key.
func (m *Mirror) PublishActivity(ctx context.Context, userID string, activity *models.CurrentActivity) error {
	if activity == nil {
		return m.client.Del(ctx, Key(userID)).Err()
	}

	data, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to encode activity: %w", err)
	}
	return m.client.Set(ctx, Key(userID), data, m.ttl).Err()
}

// Activity reads the mirrored snapshot. It returns nil when none is stored.
func (m *Mirror) Activity(ctx context.Context, userID string) (*models.CurrentActivity, error) {
	data, err := m.client.Get(ctx, Key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var a models.CurrentActivity
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode activity: %w", err)
	}
	return &a, nil
}

func (m *Mirror) Close() error {
	return m.client.Close()
}
