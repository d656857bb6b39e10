package trigger

import (
	"context"
	"testing"

	"StudioLink/model"
)

func TestNotifierSkipsMissingRecipient(t *testing.T) {
	alerts := newFakeAlerts()
	n := NewNotifier(alerts, nil)

	err := n.Dispatch(context.Background(), 0, "ev-1", model.AlertNewMessage, "t", "m", "")
	if err != nil {
		t.Fatalf("Dispatch with recipient 0: %v", err)
	}
	if len(alerts.created) != 0 {
		t.Error("alert was written for a missing recipient")
	}
}

func TestNotifierDerivesStableAlertID(t *testing.T) {
	alerts := newFakeAlerts()
	n := NewNotifier(alerts, nil)

	for i := 0; i < 2; i++ {
		if err := n.Dispatch(context.Background(), 101, "ev-1", model.AlertNewMessage, "t", "m", ""); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	if len(alerts.created) != 1 {
		t.Fatalf("same event and recipient wrote %d alerts, want 1", len(alerts.created))
	}

	// 不同收件人、不同事件各自派生不同的ID
	_ = n.Dispatch(context.Background(), 102, "ev-1", model.AlertNewMessage, "t", "m", "")
	_ = n.Dispatch(context.Background(), 101, "ev-2", model.AlertNewMessage, "t", "m", "")
	if len(alerts.created) != 3 {
		t.Fatalf("distinct recipients/events wrote %d alerts, want 3", len(alerts.created))
	}
	seen := make(map[string]bool)
	for _, a := range alerts.created {
		if seen[a.ID] {
			t.Errorf("duplicate alert id %s", a.ID)
		}
		seen[a.ID] = true
	}
}

func TestNotifierMissingEventIDFallsBackToRandomID(t *testing.T) {
	alerts := newFakeAlerts()
	n := NewNotifier(alerts, nil)

	for i := 0; i < 2; i++ {
		if err := n.Dispatch(context.Background(), 101, "", model.AlertNewMessage, "t", "m", ""); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	// 没有事件ID就没有幂等键，两次投递各写一条
	if len(alerts.created) != 2 {
		t.Fatalf("alerts = %d, want 2", len(alerts.created))
	}
	if alerts.created[0].ID == alerts.created[1].ID {
		t.Error("random fallback produced identical ids")
	}
}

func TestNotifierPushHookReceivesStoredAlert(t *testing.T) {
	alerts := newFakeAlerts()
	var pushed []*model.Alert
	n := NewNotifier(alerts, func(a *model.Alert) { pushed = append(pushed, a) })

	if err := n.Dispatch(context.Background(), 101, "ev-1", model.AlertBookingUpdated, "预订有更新", "m", "/bookings/bk-1"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(pushed) != 1 {
		t.Fatalf("push hook fired %d times, want 1", len(pushed))
	}
	if pushed[0].UserID != 101 || pushed[0].Category != model.AlertBookingUpdated {
		t.Errorf("pushed alert mismatch: %+v", pushed[0])
	}
}
