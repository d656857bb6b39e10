package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"StudioLink/model"

	"github.com/go-redis/redis/v8"
)

// 日历缓存的过期时间。占位镜像写入后会主动失效，TTL只是兜底。
const calendarTTL = 10 * time.Minute

// CalendarKey 根据日历归属方生成Redis键
func CalendarKey(ownerType model.HoldOwnerType, ownerID int64) string {
	return fmt.Sprintf("calendar:%s:%d", ownerType, ownerID)
}

// GetCalendar 读取某一方日历的占位缓存。缓存未命中返回 (nil, false, nil)。
func GetCalendar(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64) ([]*model.AvailabilityHold, bool, error) {
	if RedisClient == nil {
		return nil, false, fmt.Errorf("Redis client not initialized")
	}

	raw, err := RedisClient.Get(ctx, CalendarKey(ownerType, ownerID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get calendar cache: %w", err)
	}

	var holds []*model.AvailabilityHold
	if err := json.Unmarshal([]byte(raw), &holds); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal calendar cache: %w", err)
	}
	return holds, true, nil
}

// SetCalendar 写入某一方日历的占位缓存
func SetCalendar(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64, holds []*model.AvailabilityHold) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(holds)
	if err != nil {
		return fmt.Errorf("failed to marshal calendar cache: %w", err)
	}
	return RedisClient.Set(ctx, CalendarKey(ownerType, ownerID), data, calendarTTL).Err()
}

// InvalidateCalendar 占位镜像变更后让对应日历缓存失效
func InvalidateCalendar(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return RedisClient.Del(ctx, CalendarKey(ownerType, ownerID)).Err()
}
