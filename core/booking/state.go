// Package booking 定义预订状态机。同步触发器的副作用全部挂在状态迁移边上，
// 而不是对前后快照做裸diff，这样状态机本身可以独立测试。
package booking

import (
	"StudioLink/model"
)

// allowedTransitions 允许的状态迁移表。completed 和 cancelled 是终态。
var allowedTransitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingPending:     {model.BookingConfirmed, model.BookingCancelled, model.BookingRescheduled},
	model.BookingConfirmed:   {model.BookingCompleted, model.BookingCancelled, model.BookingRescheduled},
	model.BookingRescheduled: {model.BookingConfirmed, model.BookingCancelled},
	model.BookingCompleted:   {},
	model.BookingCancelled:   {},
}

// ValidStatus 报告 s 是否是已知状态。
func ValidStatus(s model.BookingStatus) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition 报告 from -> to 是否是允许的迁移。
func CanTransition(from, to model.BookingStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal 报告状态是否为终态。
func IsTerminal(s model.BookingStatus) bool {
	return s == model.BookingCompleted || s == model.BookingCancelled
}

// Occupying 报告该状态下预订是否占用日历（需要可用性占位镜像）。
func Occupying(s model.BookingStatus) bool {
	return s == model.BookingConfirmed
}

// Edge 一次状态迁移边
type Edge struct {
	From model.BookingStatus
	To   model.BookingStatus
}

// EnteredOccupying 报告这条边是否进入占用状态（需要写占位镜像）。
func (e Edge) EnteredOccupying() bool {
	return !Occupying(e.From) && Occupying(e.To)
}

// LeftOccupying 报告这条边是否离开占用状态（需要删占位镜像）。
func (e Edge) LeftOccupying() bool {
	return Occupying(e.From) && !Occupying(e.To)
}
