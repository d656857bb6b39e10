package trigger

import (
	"context"
	"encoding/json"
	"fmt"

	"StudioLink/logger"
	"StudioLink/model"
	"StudioLink/queue"
)

// ratingDoc 评分子记录的事件快照。分值用 json.Number 接收，
// 客户端传来的非整数或非数值载荷在这里兜住而不是让解码崩掉。
type ratingDoc struct {
	BeatID     string      `json:"beatId"`
	ReviewerID int64       `json:"reviewerId"`
	Rating     json.Number `json:"rating"`
}

// RatingAggregator 评分聚合触发器。消费 beat_ratings 集合的变更事件，
// 把评分子记录合并进父伴奏行的聚合map，并通知伴奏归属的制作人。
//
// 聚合写入按评分人ID为键覆盖，删除按键摘除，重投天然幂等。
type RatingAggregator struct {
	beats    BeatStore
	users    UserDirectory
	notifier *Notifier
}

// NewRatingAggregator 创建评分聚合触发器
func NewRatingAggregator(beats BeatStore, users UserDirectory, notifier *Notifier) *RatingAggregator {
	return &RatingAggregator{beats: beats, users: users, notifier: notifier}
}

// Handle 处理一个 beat_ratings 变更事件。
func (a *RatingAggregator) Handle(ctx context.Context, ev queue.ChangeEvent) error {
	kind := ev.Kind()

	if kind == queue.ChangeDelete {
		var doc ratingDoc
		if _, err := ev.DecodeBefore(&doc); err != nil {
			logger.Warn("评分前快照无法解码，丢弃事件",
				logger.String("eventId", ev.EventID), logger.ErrorField(err))
			return nil
		}
		if doc.BeatID == "" || doc.ReviewerID == 0 {
			return nil
		}
		if err := a.beats.RemoveRating(ctx, doc.BeatID, doc.ReviewerID); err != nil {
			return fmt.Errorf("摘除评分聚合失败: %w", err)
		}
		return nil
	}

	var doc ratingDoc
	hasAfter, err := ev.DecodeAfter(&doc)
	if err != nil {
		logger.Warn("评分后快照无法解码，丢弃事件",
			logger.String("eventId", ev.EventID), logger.ErrorField(err))
		return nil
	}
	if !hasAfter || doc.BeatID == "" || doc.ReviewerID == 0 {
		return nil
	}

	rating, ok := parseRating(doc.Rating)
	if !ok {
		logger.Warn("评分值非法，丢弃事件",
			logger.String("beatId", doc.BeatID),
			logger.Int64("reviewerId", doc.ReviewerID),
			logger.String("rating", doc.Rating.String()))
		return nil
	}

	// 父伴奏已被删除时 SetRating 静默跳过，这里无需预查。
	if err := a.beats.SetRating(ctx, doc.BeatID, doc.ReviewerID, rating); err != nil {
		return fmt.Errorf("合并评分聚合失败: %w", err)
	}

	// 新增和改分都通知制作人；通知ID按事件派生，重投不会重复
	return a.notifyOwner(ctx, ev, &doc, rating)
}

// notifyOwner 通知伴奏归属的制作人。自己给自己的作品评分不投递。
func (a *RatingAggregator) notifyOwner(ctx context.Context, ev queue.ChangeEvent, doc *ratingDoc, rating int) error {
	beat, err := a.beats.GetByID(ctx, doc.BeatID)
	if err != nil {
		logger.Warn("回查伴奏失败，跳过评分通知",
			logger.String("beatId", doc.BeatID), logger.ErrorField(err))
		return nil
	}
	if beat == nil || beat.OwnerID == 0 || beat.OwnerID == doc.ReviewerID {
		return nil
	}

	reviewerName := "有人"
	if u, err := a.users.GetUserByID(doc.ReviewerID); err == nil && u != nil {
		reviewerName = u.Name()
	}

	message := fmt.Sprintf("%s 给《%s》打了 %d 分", reviewerName, beat.Title, rating)
	return a.notifier.Dispatch(ctx, beat.OwnerID, ev.EventID,
		model.AlertNewRating, "收到新评分", message, "/beats/"+beat.ID)
}

// parseRating 解析分值，只接受 1-5 的整数。
func parseRating(n json.Number) (int, bool) {
	v, err := n.Int64()
	if err != nil || v < 1 || v > 5 {
		return 0, false
	}
	return int(v), true
}
