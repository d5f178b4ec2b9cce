package versionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sop-assistant/models"
	"sop-assistant/utils"

	"github.com/redis/go-redis/v9"
)

const currentKey = "sop:current"

// RedisCache stores the current sections as tagged, compressed JSON.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) ([]models.SOPSection, bool, error) {
	payload, err := c.client.Get(ctx, currentKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	data, err := utils.DecompressTagged(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decompress cached sections: %w", err)
	}
	var sections []models.SOPSection
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, false, fmt.Errorf("decode cached sections: %w", err)
	}
	return sections, true, nil
}

func (c *RedisCache) Set(ctx context.Context, sections []models.SOPSection) error {
	data, err := json.Marshal(sections)
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}
	payload, err := utils.CompressTagged(data)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, currentKey, payload, c.ttl).Err()
}
