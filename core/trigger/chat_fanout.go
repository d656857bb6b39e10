package trigger

import (
	"context"
	"fmt"

	"StudioLink/logger"
	"StudioLink/model"
	"StudioLink/queue"
)

// ChatFanout 聊天消息触发器。新消息落库后给会话另一方投递通知。
type ChatFanout struct {
	threads  ThreadDirectory
	users    UserDirectory
	notifier *Notifier
}

// NewChatFanout 创建聊天消息触发器
func NewChatFanout(threads ThreadDirectory, users UserDirectory, notifier *Notifier) *ChatFanout {
	return &ChatFanout{threads: threads, users: users, notifier: notifier}
}

// Handle 处理一个 chat_messages 变更事件。只关心新建，编辑和删除直接确认。
func (f *ChatFanout) Handle(ctx context.Context, ev queue.ChangeEvent) error {
	if ev.Kind() != queue.ChangeCreate {
		return nil
	}

	var msg model.ChatMessage
	if _, err := ev.DecodeAfter(&msg); err != nil {
		logger.Warn("聊天消息快照无法解码，丢弃事件",
			logger.String("eventId", ev.EventID), logger.ErrorField(err))
		return nil
	}
	if msg.ThreadID == "" || msg.SenderID == 0 {
		return nil
	}

	thread, err := f.threads.GetThread(ctx, msg.ThreadID)
	if err != nil {
		return fmt.Errorf("回查会话失败: %w", err)
	}
	if thread == nil {
		logger.Warn("消息所属会话不存在，丢弃事件",
			logger.String("threadId", msg.ThreadID),
			logger.String("messageId", msg.ID))
		return nil
	}

	recipient := thread.Other(msg.SenderID)
	if recipient == 0 {
		logger.Warn("发送者不在会话内，丢弃事件",
			logger.String("threadId", msg.ThreadID),
			logger.Int64("senderId", msg.SenderID))
		return nil
	}

	senderName := "新消息"
	if u, err := f.users.GetUserByID(msg.SenderID); err == nil && u != nil {
		senderName = u.Name()
	}

	return f.notifier.Dispatch(ctx, recipient, ev.EventID,
		model.AlertNewMessage, senderName, preview(msg.Content), "/chats/"+thread.ID)
}

// preview 截取通知展示用的消息摘要。
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= 50 {
		return content
	}
	return string(runes[:50]) + "…"
}
