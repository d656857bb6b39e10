// Package queue 定义文档变更事件的载荷以及RabbitMQ的收发端。
// 每次文档写入都会产生一个携带前后快照的事件；触发器按集合名消费。
package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// 集合名称。镜像自客户端可见的集合路径。
const (
	CollectionBookings     = "bookings"
	CollectionBeats        = "beats"
	CollectionBeatRatings  = "beat_ratings"
	CollectionDownloadReqs = "download_requests"
	CollectionChatMessages = "chat_messages"
)

// ChangeKind 变更类型，由前后快照的有无推导
type ChangeKind string

const (
	ChangeCreate  ChangeKind = "create"
	ChangeUpdate  ChangeKind = "update"
	ChangeDelete  ChangeKind = "delete"
	ChangeUnknown ChangeKind = "unknown"
)

// ChangeEvent 一次文档写入产生的变更事件。Before/After 是整个文档的JSON快照，
// 创建时 Before 为空，删除时 After 为空。
type ChangeEvent struct {
	EventID    string          `json:"eventId"`
	Collection string          `json:"collection"`
	DocumentID string          `json:"documentId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// NewChangeEvent 构造一个变更事件。before/after 传nil表示快照缺失。
func NewChangeEvent(collection, documentID string, before, after json.RawMessage) ChangeEvent {
	return ChangeEvent{
		EventID:    uuid.NewString(),
		Collection: collection,
		DocumentID: documentID,
		OccurredAt: time.Now().UTC(),
		Before:     before,
		After:      after,
	}
}

// Kind 推导变更类型。两个快照都缺失视为 unknown，处理器应当直接忽略。
func (e *ChangeEvent) Kind() ChangeKind {
	hasBefore := len(e.Before) > 0 && string(e.Before) != "null"
	hasAfter := len(e.After) > 0 && string(e.After) != "null"

	switch {
	case !hasBefore && hasAfter:
		return ChangeCreate
	case hasBefore && hasAfter:
		return ChangeUpdate
	case hasBefore && !hasAfter:
		return ChangeDelete
	default:
		return ChangeUnknown
	}
}

// DecodeBefore 将前快照解码到 v。快照缺失时返回 false 且不触碰 v。
func (e *ChangeEvent) DecodeBefore(v interface{}) (bool, error) {
	if len(e.Before) == 0 || string(e.Before) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(e.Before, v); err != nil {
		return false, err
	}
	return true, nil
}

// DecodeAfter 将后快照解码到 v。快照缺失时返回 false 且不触碰 v。
func (e *ChangeEvent) DecodeAfter(v interface{}) (bool, error) {
	if len(e.After) == 0 || string(e.After) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(e.After, v); err != nil {
		return false, err
	}
	return true, nil
}
