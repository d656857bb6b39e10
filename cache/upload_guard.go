package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 上传单飞守卫：同一用户对同一文件在守卫存活期内只允许一个进行中的上传。
// 守卫键在上传完成或失败后主动释放，TTL兜底防止客户端中途消失后永久锁死。
const uploadGuardTTL = 15 * time.Minute

// 进度键的存活时间，上传完成后客户端还能短暂查询到100%
const uploadProgressTTL = 30 * time.Minute

// uploadGuardKey 生成单飞守卫的Redis键
func uploadGuardKey(userID int64, fingerprint string) string {
	return fmt.Sprintf("upload:guard:%d:%s", userID, fingerprint)
}

// uploadProgressKey 生成进度上报的Redis键
func uploadProgressKey(uploadID string) string {
	return fmt.Sprintf("upload:progress:%s", uploadID)
}

// AcquireUploadGuard 尝试获取上传单飞守卫。返回 false 表示同一文件已有进行中的上传。
func AcquireUploadGuard(ctx context.Context, userID int64, fingerprint, uploadID string) (bool, error) {
	if RedisClient == nil {
		return false, fmt.Errorf("Redis client not initialized")
	}
	ok, err := RedisClient.SetNX(ctx, uploadGuardKey(userID, fingerprint), uploadID, uploadGuardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire upload guard: %w", err)
	}
	return ok, nil
}

// ReleaseUploadGuard 释放上传单飞守卫
func ReleaseUploadGuard(ctx context.Context, userID int64, fingerprint string) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return RedisClient.Del(ctx, uploadGuardKey(userID, fingerprint)).Err()
}

// ReportUploadProgress 上报上传进度（0-100）
func ReportUploadProgress(ctx context.Context, uploadID string, percent int) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return RedisClient.Set(ctx, uploadProgressKey(uploadID), percent, uploadProgressTTL).Err()
}

// GetUploadProgress 查询上传进度。未知的uploadID返回 (0, false, nil)。
func GetUploadProgress(ctx context.Context, uploadID string) (int, bool, error) {
	if RedisClient == nil {
		return 0, false, fmt.Errorf("Redis client not initialized")
	}
	percent, err := RedisClient.Get(ctx, uploadProgressKey(uploadID)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get upload progress: %w", err)
	}
	return percent, true, nil
}
