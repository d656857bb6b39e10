package model

import (
	"time"
)

// AlertCategory 通知类别
type AlertCategory string

const (
	AlertBookingCreated   AlertCategory = "booking_created"
	AlertBookingUpdated   AlertCategory = "booking_updated"
	AlertBookingCancelled AlertCategory = "booking_cancelled"
	AlertNewRating        AlertCategory = "new_rating"
	AlertDownloadReady    AlertCategory = "download_ready"
	AlertDownloadDeclined AlertCategory = "download_declined"
	AlertNewMessage       AlertCategory = "new_message"
)

// Alert 用户通知。只由通知分发器创建，只由收件人标记已读，其余字段不再变更。
type Alert struct {
	ID        string        `json:"id"` // uuid
	UserID    int64         `json:"userId"`
	Category  AlertCategory `json:"category"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	Link      string        `json:"link,omitempty"` // 客户端深链，例如 /bookings/{id}
	IsRead    bool          `json:"isRead"`
	CreatedAt time.Time     `json:"createdAt"`
}
