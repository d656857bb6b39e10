package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"StudioLink/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc 处理一个变更事件。返回错误表示本次调用失败，
// 消息会被重新入队等待重投（at-least-once语义，处理器必须幂等）。
type HandlerFunc func(ctx context.Context, event ChangeEvent) error

// StartConsumer 连接RabbitMQ并消费变更事件队列，直到 ctx 取消。
// 断线后指数退避重连。每条消息手动确认：
//   - 处理成功 -> ack
//   - 处理失败 -> nack并重新入队，平台重投是唯一的重试机制
//   - 载荷无法解析 -> reject不入队，避免毒消息死循环
func StartConsumer(ctx context.Context, url, queue, consumerTag string, handler HandlerFunc) error {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("无法连接消息队列，稍后重试",
				logger.ErrorField(err),
				logger.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // 连接成功后重置退避

		if err := consumeLoop(ctx, conn, queue, consumerTag, handler); err != nil {
			if errors.Is(err, context.Canceled) {
				_ = conn.Close()
				return err
			}
			logger.Warn("消费循环中断，准备重连", logger.ErrorField(err))
		}
		_ = conn.Close()
		time.Sleep(2 * time.Second)
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue, consumerTag string, handler HandlerFunc) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// 限制未确认消息数量，避免单个worker囤积过多事件
	if err := ch.Qos(32, 0, false); err != nil {
		logger.Warn("设置QoS失败", logger.ErrorField(err))
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}

	msgs, err := ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}

	logger.Info("变更事件消费已启动", logger.String("queue", queue))

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}

			var event ChangeEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				// 无法解析的消息重投也不会成功，直接丢弃
				logger.Error("变更事件载荷无法解析，已丢弃",
					logger.String("messageId", d.MessageId),
					logger.ErrorField(err))
				_ = d.Reject(false)
				continue
			}

			if err := handler(ctx, event); err != nil {
				logger.Error("变更事件处理失败，等待重投",
					logger.String("eventId", event.EventID),
					logger.String("collection", event.Collection),
					logger.String("documentId", event.DocumentID),
					logger.ErrorField(err))
				_ = d.Nack(false, true)
				// 短暂停顿，避免同一条消息立刻重投形成紧循环
				time.Sleep(500 * time.Millisecond)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
