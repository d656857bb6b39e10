package trigger

import (
	"context"
	"testing"
	"time"

	"StudioLink/model"
	"StudioLink/queue"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return parsed
}

func testBooking(t *testing.T, status model.BookingStatus) *model.Booking {
	t.Helper()
	return &model.Booking{
		ID:             "bk-1",
		ArtistID:       101,
		StudioID:       7,
		RoomID:         3,
		EngineerID:     202,
		Status:         status,
		RequestedStart: mustTime(t, "2026-09-01T10:00:00Z"),
		RequestedEnd:   mustTime(t, "2026-09-01T12:00:00Z"),
		UpdatedAt:      mustTime(t, "2026-08-27T08:00:00Z"),
	}
}

func newBookingSyncFixture() (*BookingSync, *fakeHolds, *fakeAlerts, map[string]int) {
	holds := newFakeHolds()
	alerts := newFakeAlerts()
	studios := &fakeStudios{owners: map[int64]int64{7: 303}}
	invalidated := make(map[string]int)
	sync := NewBookingSync(holds, studios, NewNotifier(alerts, nil),
		func(_ context.Context, ownerType model.HoldOwnerType, ownerID int64) {
			invalidated[holdKey(ownerType, ownerID, "")]++
		})
	return sync, holds, alerts, invalidated
}

func TestBookingCreatePendingWritesNoHolds(t *testing.T) {
	sync, holds, alerts, _ := newBookingSyncFixture()
	b := testBooking(t, model.BookingPending)

	ev := mustEvent(t, queue.CollectionBookings, b.ID, nil, b)
	if err := sync.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(holds.holds) != 0 {
		t.Errorf("pending booking wrote %d holds, want 0", len(holds.holds))
	}
	// 三方各一条创建通知
	for _, userID := range []int64{101, 202, 303} {
		if got := len(alerts.forUser(userID)); got != 1 {
			t.Errorf("user %d got %d alerts, want 1", userID, got)
		}
	}
	for _, a := range alerts.created {
		if a.Category != model.AlertBookingCreated {
			t.Errorf("alert category = %s, want %s", a.Category, model.AlertBookingCreated)
		}
	}
}

func TestBookingConfirmTransitionWritesBothHolds(t *testing.T) {
	sync, holds, _, invalidated := newBookingSyncFixture()
	before := testBooking(t, model.BookingPending)
	after := testBooking(t, model.BookingConfirmed)
	cs := mustTime(t, "2026-09-01T11:00:00Z")
	ce := mustTime(t, "2026-09-01T13:30:00Z")
	after.ConfirmedStart = &cs
	after.ConfirmedEnd = &ce
	after.UpdatedAt = mustTime(t, "2026-08-27T09:00:00Z")

	ev := mustEvent(t, queue.CollectionBookings, after.ID, before, after)
	if err := sync.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	studioHold := holds.get(model.HoldOwnerStudio, 7, "bk-1")
	engineerHold := holds.get(model.HoldOwnerEngineer, 202, "bk-1")
	if studioHold == nil || engineerHold == nil {
		t.Fatalf("expected holds on both calendars, got studio=%v engineer=%v", studioHold, engineerHold)
	}

	// 镜像时段取确认时段而非请求时段
	if !studioHold.StartTime.Equal(cs) || !studioHold.EndTime.Equal(ce) {
		t.Errorf("hold window = %v-%v, want %v-%v", studioHold.StartTime, studioHold.EndTime, cs, ce)
	}
	if studioHold.DurationMinutes != 150 {
		t.Errorf("DurationMinutes = %d, want 150", studioHold.DurationMinutes)
	}

	if invalidated[holdKey(model.HoldOwnerStudio, 7, "")] == 0 {
		t.Error("studio calendar cache not invalidated")
	}
}

func TestBookingCancelRemovesHoldsAndNotifies(t *testing.T) {
	sync, holds, alerts, _ := newBookingSyncFixture()
	before := testBooking(t, model.BookingConfirmed)

	// 先建好占用镜像
	evConfirm := mustEvent(t, queue.CollectionBookings, before.ID, testBooking(t, model.BookingPending), before)
	if err := sync.Handle(context.Background(), evConfirm); err != nil {
		t.Fatalf("Handle confirm: %v", err)
	}
	if len(holds.holds) != 2 {
		t.Fatalf("setup wrote %d holds, want 2", len(holds.holds))
	}

	after := testBooking(t, model.BookingCancelled)
	after.UpdatedAt = mustTime(t, "2026-08-27T10:00:00Z")
	evCancel := mustEvent(t, queue.CollectionBookings, after.ID, before, after)
	if err := sync.Handle(context.Background(), evCancel); err != nil {
		t.Fatalf("Handle cancel: %v", err)
	}

	if len(holds.holds) != 0 {
		t.Errorf("cancelled booking kept %d holds, want 0", len(holds.holds))
	}

	var cancelled int
	for _, a := range alerts.created {
		if a.Category == model.AlertBookingCancelled {
			cancelled++
		}
	}
	if cancelled != 3 {
		t.Errorf("cancelled alerts = %d, want 3 (one per participant)", cancelled)
	}
}

func TestBookingDeleteRemovesHolds(t *testing.T) {
	sync, holds, alerts, _ := newBookingSyncFixture()
	b := testBooking(t, model.BookingConfirmed)

	evConfirm := mustEvent(t, queue.CollectionBookings, b.ID, testBooking(t, model.BookingPending), b)
	if err := sync.Handle(context.Background(), evConfirm); err != nil {
		t.Fatalf("Handle confirm: %v", err)
	}

	evDelete := mustEvent(t, queue.CollectionBookings, b.ID, b, nil)
	if err := sync.Handle(context.Background(), evDelete); err != nil {
		t.Fatalf("Handle delete: %v", err)
	}

	if len(holds.holds) != 0 {
		t.Errorf("deleted booking kept %d holds, want 0", len(holds.holds))
	}
	if len(alerts.forUser(101)) < 2 {
		t.Error("artist missed the cancelled notification on delete")
	}
}

func TestBookingRedeliveryIsIdempotent(t *testing.T) {
	sync, holds, alerts, _ := newBookingSyncFixture()
	before := testBooking(t, model.BookingPending)
	after := testBooking(t, model.BookingConfirmed)

	ev := mustEvent(t, queue.CollectionBookings, after.ID, before, after)
	for i := 0; i < 3; i++ {
		if err := sync.Handle(context.Background(), ev); err != nil {
			t.Fatalf("Handle redelivery %d: %v", i, err)
		}
	}

	if len(holds.holds) != 2 {
		t.Errorf("redelivery produced %d holds, want 2", len(holds.holds))
	}
	// 通知ID由事件确定性派生，重投不堆积
	if len(alerts.created) != 3 {
		t.Errorf("redelivery produced %d alerts, want 3", len(alerts.created))
	}
}

func TestBookingStaleUpdateDoesNotRegressHold(t *testing.T) {
	sync, holds, _, _ := newBookingSyncFixture()

	fresh := testBooking(t, model.BookingConfirmed)
	fresh.UpdatedAt = mustTime(t, "2026-08-27T10:00:00Z")
	evFresh := mustEvent(t, queue.CollectionBookings, fresh.ID, testBooking(t, model.BookingPending), fresh)
	if err := sync.Handle(context.Background(), evFresh); err != nil {
		t.Fatalf("Handle fresh: %v", err)
	}

	// 旧快照乱序到达：时段不同但 updated_at 更早
	stale := testBooking(t, model.BookingConfirmed)
	stale.RequestedStart = mustTime(t, "2026-09-02T10:00:00Z")
	stale.RequestedEnd = mustTime(t, "2026-09-02T12:00:00Z")
	stale.UpdatedAt = mustTime(t, "2026-08-27T09:00:00Z")
	evStale := mustEvent(t, queue.CollectionBookings, stale.ID, testBooking(t, model.BookingPending), stale)
	if err := sync.Handle(context.Background(), evStale); err != nil {
		t.Fatalf("Handle stale: %v", err)
	}

	hold := holds.get(model.HoldOwnerStudio, 7, "bk-1")
	if hold == nil {
		t.Fatal("hold missing")
	}
	if !hold.StartTime.Equal(fresh.RequestedStart) {
		t.Errorf("stale update regressed hold window to %v", hold.StartTime)
	}
}

func TestBookingOwnerLookupFailureOmitsRecipient(t *testing.T) {
	holds := newFakeHolds()
	alerts := newFakeAlerts()
	studios := &fakeStudios{owners: map[int64]int64{}} // 棚主缺失
	sync := NewBookingSync(holds, studios, NewNotifier(alerts, nil), nil)

	b := testBooking(t, model.BookingPending)
	ev := mustEvent(t, queue.CollectionBookings, b.ID, nil, b)
	if err := sync.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(alerts.created) != 2 {
		t.Errorf("alerts = %d, want 2 (owner omitted, others kept)", len(alerts.created))
	}
}

func TestBookingNotesOnlyUpdateStaysSilent(t *testing.T) {
	sync, holds, alerts, _ := newBookingSyncFixture()
	before := testBooking(t, model.BookingPending)
	after := testBooking(t, model.BookingPending)
	after.Notes = "带自己的麦克风"

	ev := mustEvent(t, queue.CollectionBookings, after.ID, before, after)
	if err := sync.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(alerts.created) != 0 {
		t.Errorf("notes-only update produced %d alerts, want 0", len(alerts.created))
	}
	if len(holds.holds) != 0 {
		t.Errorf("notes-only update wrote %d holds, want 0", len(holds.holds))
	}
}

func TestBookingHoldFailureFailsInvocation(t *testing.T) {
	holds := newFakeHolds()
	holds.failUpsert = true
	alerts := newFakeAlerts()
	studios := &fakeStudios{owners: map[int64]int64{7: 303}}
	sync := NewBookingSync(holds, studios, NewNotifier(alerts, nil), nil)

	before := testBooking(t, model.BookingPending)
	after := testBooking(t, model.BookingConfirmed)
	ev := mustEvent(t, queue.CollectionBookings, after.ID, before, after)
	if err := sync.Handle(context.Background(), ev); err == nil {
		t.Fatal("expected error when hold write fails, got nil")
	}
}

func TestBookingWithoutEngineerWritesStudioHoldOnly(t *testing.T) {
	sync, holds, _, _ := newBookingSyncFixture()
	before := testBooking(t, model.BookingPending)
	before.EngineerID = 0
	after := testBooking(t, model.BookingConfirmed)
	after.EngineerID = 0

	ev := mustEvent(t, queue.CollectionBookings, after.ID, before, after)
	if err := sync.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(holds.holds) != 1 {
		t.Fatalf("holds = %d, want 1 (studio side only)", len(holds.holds))
	}
	if holds.get(model.HoldOwnerStudio, 7, "bk-1") == nil {
		t.Error("studio hold missing")
	}
}

func TestBookingMalformedSnapshotIsDropped(t *testing.T) {
	sync, holds, alerts, _ := newBookingSyncFixture()

	ev := queue.NewChangeEvent(queue.CollectionBookings, "bk-x", nil, []byte(`{"artistId":"not-a-number"}`))
	if err := sync.Handle(context.Background(), ev); err != nil {
		t.Fatalf("malformed snapshot should be dropped, got error: %v", err)
	}
	if len(holds.holds) != 0 || len(alerts.created) != 0 {
		t.Error("malformed snapshot produced side effects")
	}
}
