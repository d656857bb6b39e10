package model

import (
	"time"
)

// HoldOwnerType 日历归属方类型
type HoldOwnerType string

const (
	HoldOwnerStudio   HoldOwnerType = "studio"
	HoldOwnerEngineer HoldOwnerType = "engineer"
)

// AvailabilityHold 可用性占位记录。由预订同步触发器派生：同一条预订在
// 录音棚日历和录音师日历下各写一份镜像，键为 (owner_type, owner_id, booking_id)，
// 因此重复投递只会覆盖而不会产生重复记录。
//
// SourceUpdatedAt 保存来源预订快照的 updated_at，写入时作为更新序号守卫：
// 镜像里已有更新的快照时，旧快照的 upsert 不生效。
type AvailabilityHold struct {
	BookingID       string        `json:"bookingId"`
	OwnerType       HoldOwnerType `json:"ownerType"`
	OwnerID         int64         `json:"ownerId"`
	RoomID          int64         `json:"roomId"`
	StartTime       time.Time     `json:"startTime"`
	EndTime         time.Time     `json:"endTime"`
	DurationMinutes int           `json:"durationMinutes"`
	SourceUpdatedAt time.Time     `json:"sourceUpdatedAt"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// HoldFromBooking 根据预订快照构造一侧日历的占位镜像。
func HoldFromBooking(b *Booking, ownerType HoldOwnerType, ownerID int64) *AvailabilityHold {
	start, end := b.ResolvedWindow()
	return &AvailabilityHold{
		BookingID:       b.ID,
		OwnerType:       ownerType,
		OwnerID:         ownerID,
		RoomID:          b.RoomID,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: int(end.Sub(start).Minutes()),
		SourceUpdatedAt: b.UpdatedAt,
	}
}
