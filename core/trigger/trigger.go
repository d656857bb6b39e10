// Package trigger 实现派生状态同步触发器。worker 进程从队列消费文档变更事件，
// 按集合路由到各个处理器；队列按至少一次投递，处理器必须对同一事件的重投幂等。
//
// 处理函数的错误语义：返回非nil表示本次调用失败，消息会重回队列等待重投；
// 返回nil表示处理完成（包括识别出的畸形载荷和各类守卫拦截，这些直接确认丢弃）。
package trigger

import (
	"context"

	"StudioLink/model"
	"StudioLink/queue"
)

// Handler 单个集合的变更处理函数。
type Handler func(ctx context.Context, ev queue.ChangeEvent) error

// 下面是各触发器依赖的窄接口，repository 包的实现天然满足，
// 测试里用内存假实现替换。

// HoldStore 可用性占位镜像的写端。
type HoldStore interface {
	Upsert(ctx context.Context, hold *model.AvailabilityHold) error
	Delete(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64, bookingID string) error
}

// AlertStore 通知的写端。
type AlertStore interface {
	Create(ctx context.Context, alert *model.Alert) error
}

// StudioDirectory 解析录音棚归属。
type StudioDirectory interface {
	OwnerID(ctx context.Context, studioID int64) (int64, error)
}

// UserDirectory 按ID查用户，用于拼装通知文案。
type UserDirectory interface {
	GetUserByID(id int64) (*model.User, error)
}

// BeatStore 伴奏聚合的读写端。
type BeatStore interface {
	GetByID(ctx context.Context, id string) (*model.Beat, error)
	SetRating(ctx context.Context, beatID string, reviewerID int64, rating int) error
	RemoveRating(ctx context.Context, beatID string, reviewerID int64) error
}

// GrantStore 下载放行镜像的写端。
type GrantStore interface {
	UpsertGrant(ctx context.Context, grant *model.DownloadGrant) error
}

// ThreadDirectory 按ID查会话，用于消息通知定位收件人。
type ThreadDirectory interface {
	GetThread(ctx context.Context, threadID string) (*model.ChatThread, error)
}

// CalendarInvalidator 占位镜像变更后让对应日历缓存失效，尽力而为。
type CalendarInvalidator func(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64)
