package repository

import (
	"context"
	"errors"
	"fmt"

	"StudioLink/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatRepository 聊天数据访问接口
type ChatRepository interface {
	// GetOrCreateThread 获取两个用户之间的会话，不存在则创建。
	// 参与方顺序无关：a/b 和 b/a 返回同一个会话。
	GetOrCreateThread(ctx context.Context, userA, userB int64) (*model.ChatThread, error)
	GetThread(ctx context.Context, threadID string) (*model.ChatThread, error)
	ListThreads(ctx context.Context, userID int64) ([]*model.ChatThread, error)

	CreateMessage(ctx context.Context, msg *model.ChatMessage) error
	ListMessages(ctx context.Context, threadID string, limit int) ([]*model.ChatMessage, error)
}

// gormChatRepository GORM 实现
type gormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository 创建 GORM 聊天仓库
func NewGormChatRepository(db *gorm.DB) ChatRepository {
	return &gormChatRepository{db: db}
}

func (r *gormChatRepository) GetOrCreateThread(ctx context.Context, userA, userB int64) (*model.ChatThread, error) {
	// 归一化参与方顺序，保证同一对用户只有一个会话
	if userA > userB {
		userA, userB = userB, userA
	}

	var thread model.ChatThread
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", userA, userB).
		First(&thread).Error
	if err == nil {
		return &thread, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query chat thread: %w", err)
	}

	thread = model.ChatThread{
		ID:      uuid.NewString(),
		UserAID: userA,
		UserBID: userB,
	}
	if err := r.db.WithContext(ctx).Create(&thread).Error; err != nil {
		return nil, fmt.Errorf("failed to create chat thread: %w", err)
	}
	return &thread, nil
}

func (r *gormChatRepository) GetThread(ctx context.Context, threadID string) (*model.ChatThread, error) {
	var thread model.ChatThread
	err := r.db.WithContext(ctx).Where("id = ?", threadID).First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat thread: %w", err)
	}
	return &thread, nil
}

func (r *gormChatRepository) ListThreads(ctx context.Context, userID int64) ([]*model.ChatThread, error) {
	var threads []*model.ChatThread
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&threads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chat threads: %w", err)
	}
	return threads, nil
}

func (r *gormChatRepository) CreateMessage(ctx context.Context, msg *model.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create chat message: %w", err)
	}
	// 推进会话的 updated_at，让会话列表按最近消息排序
	if err := r.db.WithContext(ctx).Model(&model.ChatThread{}).
		Where("id = ?", msg.ThreadID).
		Update("updated_at", msg.CreatedAt).Error; err != nil {
		return fmt.Errorf("failed to touch chat thread: %w", err)
	}
	return nil
}

func (r *gormChatRepository) ListMessages(ctx context.Context, threadID string, limit int) ([]*model.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var msgs []*model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return msgs, nil
}
