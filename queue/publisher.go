package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"StudioLink/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher 把文档变更事件发布到持久化队列。
// 发布失败只记录日志并返回错误，调用方（API处理器）可以选择忽略，
// 不让变更事件的投递失败阻断主请求。
type Publisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher 创建发布器。连接按需建立，断开后下次发布时重连。
func NewPublisher(url, queue string) *Publisher {
	return &Publisher{url: url, queue: queue}
}

// ensureChannel 确保连接和通道可用，并声明持久化队列（幂等）。
func (p *Publisher) ensureChannel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	p.conn = conn
	p.ch = ch
	return ch, nil
}

// reset 丢弃失效的连接，下次发布时重建
func (p *Publisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Publish 发布一个变更事件。消息标记为持久化。
func (p *Publisher) Publish(ctx context.Context, event ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	ch, err := p.ensureChannel()
	if err != nil {
		logger.Error("变更事件发布失败：无法连接消息队列",
			logger.String("collection", event.Collection),
			logger.String("documentId", event.DocumentID),
			logger.ErrorField(err))
		return err
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Body:         body,
	})
	if err != nil {
		p.reset()
		logger.Error("变更事件发布失败",
			logger.String("collection", event.Collection),
			logger.String("documentId", event.DocumentID),
			logger.ErrorField(err))
		return fmt.Errorf("publish change event: %w", err)
	}

	logger.Debug("变更事件已发布",
		logger.String("eventId", event.EventID),
		logger.String("collection", event.Collection),
		logger.String("documentId", event.DocumentID),
		logger.String("kind", string(event.Kind())))
	return nil
}

// Close 关闭底层连接
func (p *Publisher) Close() {
	p.reset()
}
