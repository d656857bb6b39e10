package trigger

import (
	"context"
	"fmt"
	"time"

	"StudioLink/core/booking"
	"StudioLink/logger"
	"StudioLink/model"
	"StudioLink/queue"
)

// BookingSync 预订同步触发器。消费 bookings 集合的变更事件，维护录音棚和
// 录音师两侧日历的可用性占位镜像，并给参与三方投递通知。
//
// 副作用全部挂在状态迁移边上：进入占用态写镜像，离开占用态删镜像，
// 占用期间时段变化覆盖镜像。镜像键含预订ID，重投只会覆盖同一条记录。
type BookingSync struct {
	holds      HoldStore
	studios    StudioDirectory
	notifier   *Notifier
	invalidate CalendarInvalidator // 可为nil
}

// NewBookingSync 创建预订同步触发器
func NewBookingSync(holds HoldStore, studios StudioDirectory, notifier *Notifier, invalidate CalendarInvalidator) *BookingSync {
	return &BookingSync{holds: holds, studios: studios, notifier: notifier, invalidate: invalidate}
}

// Handle 处理一个 bookings 变更事件。
func (s *BookingSync) Handle(ctx context.Context, ev queue.ChangeEvent) error {
	var before, after model.Booking
	hasBefore, err := ev.DecodeBefore(&before)
	if err != nil {
		logger.Warn("预订前快照无法解码，丢弃事件",
			logger.String("eventId", ev.EventID), logger.ErrorField(err))
		return nil
	}
	hasAfter, err := ev.DecodeAfter(&after)
	if err != nil {
		logger.Warn("预订后快照无法解码，丢弃事件",
			logger.String("eventId", ev.EventID), logger.ErrorField(err))
		return nil
	}

	switch {
	case !hasBefore && hasAfter:
		return s.handleCreate(ctx, ev, &after)
	case hasBefore && hasAfter:
		return s.handleUpdate(ctx, ev, &before, &after)
	case hasBefore && !hasAfter:
		return s.handleDelete(ctx, ev, &before)
	default:
		return nil
	}
}

func (s *BookingSync) handleCreate(ctx context.Context, ev queue.ChangeEvent, b *model.Booking) error {
	// 一般创建即 pending，不占日历；直接建成 confirmed 的也要立即写镜像。
	if booking.Occupying(b.Status) {
		if err := s.writeHolds(ctx, b); err != nil {
			return err
		}
	}

	start, end := b.ResolvedWindow()
	message := fmt.Sprintf("预订时段 %s - %s",
		start.Format("2006-01-02 15:04"), end.Format("15:04"))
	return s.notifyParticipants(ctx, ev, b, model.AlertBookingCreated, "新的预订请求", message)
}

func (s *BookingSync) handleUpdate(ctx context.Context, ev queue.ChangeEvent, before, after *model.Booking) error {
	edge := booking.Edge{From: before.Status, To: after.Status}

	switch {
	case edge.LeftOccupying():
		if err := s.removeHolds(ctx, after); err != nil {
			return err
		}
	case booking.Occupying(after.Status) && (edge.EnteredOccupying() || windowChanged(before, after)):
		if err := s.writeHolds(ctx, after); err != nil {
			return err
		}
	}

	if after.Status == model.BookingCancelled && before.Status != model.BookingCancelled {
		return s.notifyParticipants(ctx, ev, after, model.AlertBookingCancelled, "预订已取消",
			fmt.Sprintf("预订 %s 已被取消", after.ID))
	}

	if !notifiableDiff(before, after) {
		// 与通知无关的字段变动（备注等）不打扰参与方
		return nil
	}

	start, end := after.ResolvedWindow()
	message := fmt.Sprintf("状态 %s，时段 %s - %s",
		after.Status, start.Format("2006-01-02 15:04"), end.Format("15:04"))
	return s.notifyParticipants(ctx, ev, after, model.AlertBookingUpdated, "预订有更新", message)
}

func (s *BookingSync) handleDelete(ctx context.Context, ev queue.ChangeEvent, b *model.Booking) error {
	if err := s.removeHolds(ctx, b); err != nil {
		return err
	}
	return s.notifyParticipants(ctx, ev, b, model.AlertBookingCancelled, "预订已取消",
		fmt.Sprintf("预订 %s 已被删除", b.ID))
}

// writeHolds 在录音棚和录音师两侧日历各写一份占位镜像。
// 未指派录音师（EngineerID为0）时只写录音棚一侧。
func (s *BookingSync) writeHolds(ctx context.Context, b *model.Booking) error {
	for ownerType, ownerID := range holdOwners(b) {
		hold := model.HoldFromBooking(b, ownerType, ownerID)
		if err := s.holds.Upsert(ctx, hold); err != nil {
			return fmt.Errorf("写入%s侧占位镜像失败: %w", ownerType, err)
		}
		s.invalidateCalendar(ctx, ownerType, ownerID)
	}
	return nil
}

// removeHolds 删除两侧占位镜像，镜像本就不存在时不算错误。
func (s *BookingSync) removeHolds(ctx context.Context, b *model.Booking) error {
	for ownerType, ownerID := range holdOwners(b) {
		if err := s.holds.Delete(ctx, ownerType, ownerID, b.ID); err != nil {
			return fmt.Errorf("删除%s侧占位镜像失败: %w", ownerType, err)
		}
		s.invalidateCalendar(ctx, ownerType, ownerID)
	}
	return nil
}

func (s *BookingSync) invalidateCalendar(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64) {
	if s.invalidate != nil {
		s.invalidate(ctx, ownerType, ownerID)
	}
}

// notifyParticipants 给预订参与三方（艺人、录音师、棚主）各投递一条通知，收件人去重。
// 棚主通过录音棚记录反查，查不到时跳过该收件人而不是让整个事件失败。
func (s *BookingSync) notifyParticipants(ctx context.Context, ev queue.ChangeEvent, b *model.Booking, category model.AlertCategory, title, message string) error {
	recipients := map[int64]struct{}{}
	if b.ArtistID != 0 {
		recipients[b.ArtistID] = struct{}{}
	}
	if b.EngineerID != 0 {
		recipients[b.EngineerID] = struct{}{}
	}
	ownerID, err := s.studios.OwnerID(ctx, b.StudioID)
	if err != nil {
		logger.Warn("解析棚主失败，跳过该收件人",
			logger.Int64("studioId", b.StudioID),
			logger.String("bookingId", b.ID),
			logger.ErrorField(err))
	} else if ownerID != 0 {
		recipients[ownerID] = struct{}{}
	}

	link := "/bookings/" + b.ID
	for userID := range recipients {
		if err := s.notifier.Dispatch(ctx, userID, ev.EventID, category, title, message, link); err != nil {
			return err
		}
	}
	return nil
}

// holdOwners 返回预订两侧日历的归属方。
func holdOwners(b *model.Booking) map[model.HoldOwnerType]int64 {
	owners := map[model.HoldOwnerType]int64{
		model.HoldOwnerStudio: b.StudioID,
	}
	if b.EngineerID != 0 {
		owners[model.HoldOwnerEngineer] = b.EngineerID
	}
	return owners
}

// windowChanged 报告前后快照占用时段是否发生变化。
func windowChanged(before, after *model.Booking) bool {
	bs, be := before.ResolvedWindow()
	as, ae := after.ResolvedWindow()
	return !bs.Equal(as) || !be.Equal(ae) || before.RoomID != after.RoomID
}

// notifiableDiff 报告前后快照在需要通知参与方的字段上是否有差异：
// 状态、请求时段、确认时段。
func notifiableDiff(before, after *model.Booking) bool {
	if before.Status != after.Status {
		return true
	}
	if !before.RequestedStart.Equal(after.RequestedStart) || !before.RequestedEnd.Equal(after.RequestedEnd) {
		return true
	}
	return !timePtrEqual(before.ConfirmedStart, after.ConfirmedStart) ||
		!timePtrEqual(before.ConfirmedEnd, after.ConfirmedEnd)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
