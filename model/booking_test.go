package model

import (
	"testing"
	"time"
)

func TestResolvedWindow(t *testing.T) {
	reqStart := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	reqEnd := reqStart.Add(2 * time.Hour)
	b := &Booking{RequestedStart: reqStart, RequestedEnd: reqEnd}

	start, end := b.ResolvedWindow()
	if !start.Equal(reqStart) || !end.Equal(reqEnd) {
		t.Errorf("unconfirmed booking resolved to (%v, %v), want requested window", start, end)
	}

	confStart := reqStart.Add(time.Hour)
	confEnd := confStart.Add(90 * time.Minute)
	b.ConfirmedStart = &confStart
	b.ConfirmedEnd = &confEnd

	start, end = b.ResolvedWindow()
	if !start.Equal(confStart) || !end.Equal(confEnd) {
		t.Errorf("confirmed booking resolved to (%v, %v), want confirmed window", start, end)
	}

	// 确认时段不完整时仍回退到请求时段
	b.ConfirmedEnd = nil
	start, end = b.ResolvedWindow()
	if !start.Equal(reqStart) || !end.Equal(reqEnd) {
		t.Errorf("half-confirmed booking resolved to (%v, %v), want requested window", start, end)
	}
}

func TestHoldFromBooking(t *testing.T) {
	start := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	end := start.Add(150 * time.Minute)
	updated := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	b := &Booking{
		ID:             "bk-1",
		RoomID:         3,
		RequestedStart: start.Add(-time.Hour),
		RequestedEnd:   end,
		ConfirmedStart: &start,
		ConfirmedEnd:   &end,
		UpdatedAt:      updated,
	}

	hold := HoldFromBooking(b, HoldOwnerEngineer, 202)
	if hold.BookingID != "bk-1" || hold.OwnerType != HoldOwnerEngineer || hold.OwnerID != 202 {
		t.Errorf("hold identity mismatch: %+v", hold)
	}
	if hold.RoomID != 3 {
		t.Errorf("RoomID = %d, want 3", hold.RoomID)
	}
	if !hold.StartTime.Equal(start) || !hold.EndTime.Equal(end) {
		t.Errorf("hold window = (%v, %v), want confirmed window", hold.StartTime, hold.EndTime)
	}
	if hold.DurationMinutes != 150 {
		t.Errorf("DurationMinutes = %d, want 150", hold.DurationMinutes)
	}
	if !hold.SourceUpdatedAt.Equal(updated) {
		t.Errorf("SourceUpdatedAt = %v, want booking's UpdatedAt", hold.SourceUpdatedAt)
	}
}
