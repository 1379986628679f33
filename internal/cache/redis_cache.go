package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
)

type RedisSettingsCache struct {
	client *redis.Client
}

func NewRedisSettingsCache(addr string, password string, db int) *RedisSettingsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSettingsCache{client: client}
}

func (c *RedisSettingsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSettingsCache) Close() error {
	return c.client.Close()
}

func settingsKey(typ domain.DocumentType) string {
	return "docsettings:" + string(typ)
}

func (c *RedisSettingsCache) Get(ctx context.Context, typ domain.DocumentType) (*domain.DocumentSettings, bool, error) {
	val, err := c.client.Get(ctx, settingsKey(typ)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var settings domain.DocumentSettings
	if err := json.Unmarshal([]byte(val), &settings); err != nil {
		return nil, false, err
	}
	return &settings, true, nil
}

func (c *RedisSettingsCache) Set(ctx context.Context, typ domain.DocumentType, value *domain.DocumentSettings, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, settingsKey(typ), payload, ttl).Err()
}

func (c *RedisSettingsCache) Invalidate(ctx context.Context, typ domain.DocumentType) error {
	return c.client.Del(ctx, settingsKey(typ)).Err()
}
