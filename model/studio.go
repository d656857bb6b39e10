package model

import (
	"database/sql"
	"time"
)

// Studio 录音棚。OwnerID 指向棚主用户，预订相关的通知通过它解析收件人。
type Studio struct {
	ID        int64          `json:"id"`
	OwnerID   int64          `json:"ownerId"`
	Name      string         `json:"name"`
	Address   sql.NullString `json:"address,omitempty"`
	Phone     sql.NullString `json:"phone,omitempty"`
	CoverURL  sql.NullString `json:"coverUrl,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Room 录音棚内的房间，预订的实际对象。
type Room struct {
	ID        int64     `json:"id"`
	StudioID  int64     `json:"studioId"`
	Name      string    `json:"name"`
	HourlyFee int64     `json:"hourlyFee"` // 分为单位
	CreatedAt time.Time `json:"createdAt"`
}
