package model

import (
	"time"
)

// ChatThread 两个用户之间的会话。
type ChatThread struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserAID   int64     `json:"userAId" gorm:"index:idx_thread_pair;not null"`
	UserBID   int64     `json:"userBId" gorm:"index:idx_thread_pair;not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (ChatThread) TableName() string {
	return "chat_threads"
}

// Other 返回会话中另一方的用户ID；userID 不在会话内时返回 0。
func (t *ChatThread) Other(userID int64) int64 {
	switch userID {
	case t.UserAID:
		return t.UserBID
	case t.UserBID:
		return t.UserAID
	default:
		return 0
	}
}

// ChatMessage 会话内的单条消息。
type ChatMessage struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	ThreadID  string    `json:"threadId" gorm:"size:36;index;not null"`
	SenderID  int64     `json:"senderId" gorm:"index;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定表名
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// ChatSendRequest 发送消息的请求体
type ChatSendRequest struct {
	PeerID  int64  `json:"peerId"`
	Content string `json:"content"`
}
