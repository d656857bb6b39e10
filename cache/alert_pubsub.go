package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"StudioLink/model"
)

// alertChannel 通知实时推送用的Redis频道。worker 写完通知后在这里广播，
// API 进程订阅后转发给收件人的 WebSocket 连接。
const alertChannel = "alerts:push"

// PublishAlert 把一条通知广播到推送频道。
func PublishAlert(ctx context.Context, alert *model.Alert) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("序列化通知失败: %w", err)
	}
	return RedisClient.Publish(ctx, alertChannel, data).Err()
}

// SubscribeAlerts 订阅推送频道。调用方负责 Close。
func SubscribeAlerts(ctx context.Context) *redis.PubSub {
	return RedisClient.Subscribe(ctx, alertChannel)
}

// DecodeAlertMessage 解出频道消息里的通知。
func DecodeAlertMessage(msg *redis.Message) (*model.Alert, error) {
	var alert model.Alert
	if err := json.Unmarshal([]byte(msg.Payload), &alert); err != nil {
		return nil, fmt.Errorf("解析通知推送消息失败: %w", err)
	}
	return &alert, nil
}
