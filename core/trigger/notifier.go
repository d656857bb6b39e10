package trigger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"StudioLink/logger"
	"StudioLink/model"
)

// alertNamespace 派生通知ID用的uuid命名空间
var alertNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Notifier 通知分发器。所有触发器经由它写入通知，收件人缺失（ID为0）时
// 静默跳过而不是报错。通知ID由 (事件ID, 收件人) 确定性派生，配合写端的
// INSERT IGNORE，同一事件重投不会堆出重复通知。
type Notifier struct {
	alerts AlertStore
	push   func(alert *model.Alert) // 实时推送钩子，可为nil，失败不影响落库
}

// NewNotifier 创建通知分发器。push 为nil时只落库不推送。
func NewNotifier(alerts AlertStore, push func(alert *model.Alert)) *Notifier {
	return &Notifier{alerts: alerts, push: push}
}

// Dispatch 给单个收件人投递一条通知。eventID 是触发本次投递的变更事件ID。
func (n *Notifier) Dispatch(ctx context.Context, recipientID int64, eventID string, category model.AlertCategory, title, message, link string) error {
	if recipientID == 0 {
		logger.Debug("通知收件人缺失，跳过投递",
			logger.String("category", string(category)),
			logger.String("eventId", eventID))
		return nil
	}

	alert := &model.Alert{
		ID:       alertID(eventID, recipientID),
		UserID:   recipientID,
		Category: category,
		Title:    title,
		Message:  message,
		Link:     link,
	}

	if err := n.alerts.Create(ctx, alert); err != nil {
		return fmt.Errorf("写入通知失败: %w", err)
	}

	if n.push != nil {
		n.push(alert)
	}
	return nil
}

// alertID 由事件ID和收件人派生确定性的通知ID。事件ID缺失时退化为随机ID。
func alertID(eventID string, recipientID int64) string {
	if eventID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(alertNamespace, []byte(fmt.Sprintf("%s/%d", eventID, recipientID))).String()
}
