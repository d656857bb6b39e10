package model

import (
	"time"
)

// BookingStatus 预订生命周期状态
type BookingStatus string

const (
	BookingPending     BookingStatus = "pending"
	BookingConfirmed   BookingStatus = "confirmed"
	BookingCompleted   BookingStatus = "completed"
	BookingCancelled   BookingStatus = "cancelled"
	BookingRescheduled BookingStatus = "rescheduled"
)

// Booking 录音预订。三方参与：艺人（发起）、录音棚（房间归属）、录音师。
// 请求时段由艺人填写；确认时段由棚主/录音师敲定，可以与请求时段不同。
type Booking struct {
	ID             string        `json:"id"` // uuid，同时作为可用性镜像记录的键
	ArtistID       int64         `json:"artistId"`
	StudioID       int64         `json:"studioId"`
	RoomID         int64         `json:"roomId"`
	EngineerID     int64         `json:"engineerId"`
	Status         BookingStatus `json:"status"`
	RequestedStart time.Time     `json:"requestedStart"`
	RequestedEnd   time.Time     `json:"requestedEnd"`
	ConfirmedStart *time.Time    `json:"confirmedStart,omitempty"`
	ConfirmedEnd   *time.Time    `json:"confirmedEnd,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// ResolvedWindow 返回预订实际占用的时段：确认时段优先，缺省回退到请求时段。
func (b *Booking) ResolvedWindow() (start, end time.Time) {
	if b.ConfirmedStart != nil && b.ConfirmedEnd != nil {
		return *b.ConfirmedStart, *b.ConfirmedEnd
	}
	return b.RequestedStart, b.RequestedEnd
}

// BookingCreateRequest 创建预订的请求体
type BookingCreateRequest struct {
	StudioID       int64     `json:"studioId"`
	RoomID         int64     `json:"roomId"`
	EngineerID     int64     `json:"engineerId"`
	RequestedStart time.Time `json:"requestedStart"`
	RequestedEnd   time.Time `json:"requestedEnd"`
	Notes          string    `json:"notes,omitempty"`
}

// BookingActionRequest 预订状态流转的请求体
type BookingActionRequest struct {
	Status         BookingStatus `json:"status"`
	ConfirmedStart *time.Time    `json:"confirmedStart,omitempty"`
	ConfirmedEnd   *time.Time    `json:"confirmedEnd,omitempty"`
}
