package booking

import (
	"testing"

	"StudioLink/model"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to model.BookingStatus
		want     bool
	}{
		{model.BookingPending, model.BookingConfirmed, true},
		{model.BookingPending, model.BookingCancelled, true},
		{model.BookingPending, model.BookingRescheduled, true},
		{model.BookingPending, model.BookingCompleted, false},
		{model.BookingConfirmed, model.BookingCompleted, true},
		{model.BookingConfirmed, model.BookingCancelled, true},
		{model.BookingConfirmed, model.BookingRescheduled, true},
		{model.BookingConfirmed, model.BookingPending, false},
		{model.BookingRescheduled, model.BookingConfirmed, true},
		{model.BookingRescheduled, model.BookingCancelled, true},
		{model.BookingRescheduled, model.BookingCompleted, false},
		// 终态无出边
		{model.BookingCompleted, model.BookingConfirmed, false},
		{model.BookingCancelled, model.BookingPending, false},
		{model.BookingCancelled, model.BookingConfirmed, false},
		// 自迁移不在表内
		{model.BookingConfirmed, model.BookingConfirmed, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []model.BookingStatus{
		model.BookingPending, model.BookingConfirmed, model.BookingCompleted,
		model.BookingCancelled, model.BookingRescheduled,
	} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%s) = false", s)
		}
	}
	for _, s := range []model.BookingStatus{"", "paid", "PENDING"} {
		if ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = true", s)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(model.BookingCompleted) || !IsTerminal(model.BookingCancelled) {
		t.Error("completed/cancelled should be terminal")
	}
	for _, s := range []model.BookingStatus{
		model.BookingPending, model.BookingConfirmed, model.BookingRescheduled,
	} {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true", s)
		}
	}
}

func TestOccupyingEdges(t *testing.T) {
	if !Occupying(model.BookingConfirmed) {
		t.Error("confirmed should occupy the calendar")
	}
	for _, s := range []model.BookingStatus{
		model.BookingPending, model.BookingRescheduled,
		model.BookingCompleted, model.BookingCancelled,
	} {
		if Occupying(s) {
			t.Errorf("Occupying(%s) = true", s)
		}
	}

	enter := Edge{From: model.BookingPending, To: model.BookingConfirmed}
	if !enter.EnteredOccupying() || enter.LeftOccupying() {
		t.Error("pending -> confirmed should enter occupying")
	}

	// confirmed -> rescheduled 也要释放占位，不只是取消
	for _, to := range []model.BookingStatus{
		model.BookingCancelled, model.BookingCompleted, model.BookingRescheduled,
	} {
		leave := Edge{From: model.BookingConfirmed, To: to}
		if !leave.LeftOccupying() || leave.EnteredOccupying() {
			t.Errorf("confirmed -> %s should leave occupying", to)
		}
	}

	stay := Edge{From: model.BookingConfirmed, To: model.BookingConfirmed}
	if stay.EnteredOccupying() || stay.LeftOccupying() {
		t.Error("confirmed -> confirmed should neither enter nor leave")
	}
}
