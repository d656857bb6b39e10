package trigger

import (
	"context"
	"fmt"

	"StudioLink/logger"
	"StudioLink/model"
	"StudioLink/queue"
)

// DownloadLifecycle 下载请求生命周期触发器。制作人终审（放行/拒绝）后，
// 把结果镜像到请求者命名空间的放行记录，并通知请求者。
//
// 镜像键是来源请求ID，重投只覆盖同一条记录；只有状态真正变化的更新才会触发，
// 其余写入（标题修正等）直接确认丢弃。
type DownloadLifecycle struct {
	downloads GrantStore
	beats     BeatStore
	notifier  *Notifier
}

// NewDownloadLifecycle 创建下载生命周期触发器
func NewDownloadLifecycle(downloads GrantStore, beats BeatStore, notifier *Notifier) *DownloadLifecycle {
	return &DownloadLifecycle{downloads: downloads, beats: beats, notifier: notifier}
}

// Handle 处理一个 download_requests 变更事件。
func (l *DownloadLifecycle) Handle(ctx context.Context, ev queue.ChangeEvent) error {
	if ev.Kind() != queue.ChangeUpdate {
		return nil
	}

	var before, after model.DownloadRequest
	if _, err := ev.DecodeBefore(&before); err != nil {
		logger.Warn("下载请求前快照无法解码，丢弃事件",
			logger.String("eventId", ev.EventID), logger.ErrorField(err))
		return nil
	}
	if _, err := ev.DecodeAfter(&after); err != nil {
		logger.Warn("下载请求后快照无法解码，丢弃事件",
			logger.String("eventId", ev.EventID), logger.ErrorField(err))
		return nil
	}

	if before.Status == after.Status {
		return nil
	}
	if after.Status != model.DownloadFulfilled && after.Status != model.DownloadRejected {
		return nil
	}
	// 请求者缺失或请求者就是制作人本人，不写镜像也不通知
	if after.RequesterID == 0 || after.RequesterID == after.ProducerID {
		logger.Debug("下载请求缺少有效请求者，跳过",
			logger.String("requestId", after.ID),
			logger.Int64("requesterId", after.RequesterID))
		return nil
	}

	grant := &model.DownloadGrant{
		RequestID:   after.ID,
		RequesterID: after.RequesterID,
		ProducerID:  after.ProducerID,
		BeatID:      after.BeatID,
		BeatTitle:   l.resolveTitle(ctx, &after),
		Status:      after.Status,
		RequestedAt: after.CreatedAt,
		DecidedAt:   after.DecidedAt,
	}
	if after.Status == model.DownloadFulfilled {
		grant.DownloadURL = after.DownloadURL
	}

	if err := l.downloads.UpsertGrant(ctx, grant); err != nil {
		return fmt.Errorf("写入下载放行镜像失败: %w", err)
	}

	if after.Status == model.DownloadFulfilled {
		return l.notifier.Dispatch(ctx, after.RequesterID, ev.EventID,
			model.AlertDownloadReady, "下载已放行",
			fmt.Sprintf("《%s》已可下载", grant.BeatTitle), "/downloads/"+after.ID)
	}
	return l.notifier.Dispatch(ctx, after.RequesterID, ev.EventID,
		model.AlertDownloadDeclined, "下载被拒绝",
		fmt.Sprintf("《%s》的下载请求未通过", grant.BeatTitle), "/downloads/"+after.ID)
}

// resolveTitle 解析镜像里展示的伴奏标题：优先用请求上缓存的快照，
// 缺省回查伴奏记录，仍查不到时落一个占位标题。
func (l *DownloadLifecycle) resolveTitle(ctx context.Context, req *model.DownloadRequest) string {
	if req.BeatTitle != "" {
		return req.BeatTitle
	}
	if beat, err := l.beats.GetByID(ctx, req.BeatID); err == nil && beat != nil {
		return beat.Title
	}
	return "未知伴奏"
}
