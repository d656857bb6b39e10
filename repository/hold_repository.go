package repository

import (
	"context"
	"database/sql"
	"fmt"

	"StudioLink/model"
)

// HoldRepository 可用性占位镜像的数据访问接口。
// 镜像键为 (owner_type, owner_id, booking_id)，写入是幂等覆盖，删除容忍不存在。
type HoldRepository interface {
	Upsert(ctx context.Context, hold *model.AvailabilityHold) error
	Delete(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64, bookingID string) error
	ListByOwner(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64) ([]*model.AvailabilityHold, error)
	GetByKey(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64, bookingID string) (*model.AvailabilityHold, error)
}

type mysqlHoldRepository struct {
	db *sql.DB
}

// NewMySQLHoldRepository 创建占位镜像仓库
func NewMySQLHoldRepository(db *sql.DB) HoldRepository {
	return &mysqlHoldRepository{db: db}
}

// Upsert 写入或覆盖占位镜像。带更新序号守卫：行内已有更新的来源快照时，
// 旧快照的写入退化为空操作，防止乱序投递用过期时段覆盖新镜像。
func (r *mysqlHoldRepository) Upsert(ctx context.Context, hold *model.AvailabilityHold) error {
	query := `INSERT INTO availability_holds
		(booking_id, owner_type, owner_id, room_id, start_time, end_time, duration_minutes, source_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			room_id = IF(VALUES(source_updated_at) >= source_updated_at, VALUES(room_id), room_id),
			start_time = IF(VALUES(source_updated_at) >= source_updated_at, VALUES(start_time), start_time),
			end_time = IF(VALUES(source_updated_at) >= source_updated_at, VALUES(end_time), end_time),
			duration_minutes = IF(VALUES(source_updated_at) >= source_updated_at, VALUES(duration_minutes), duration_minutes),
			source_updated_at = IF(VALUES(source_updated_at) >= source_updated_at, VALUES(source_updated_at), source_updated_at)`
	_, err := r.db.ExecContext(ctx, query,
		hold.BookingID, hold.OwnerType, hold.OwnerID, hold.RoomID,
		hold.StartTime, hold.EndTime, hold.DurationMinutes, hold.SourceUpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert availability hold: %w", err)
	}
	return nil
}

// Delete 删除占位镜像。记录不存在时静默成功（幂等重投安全）。
func (r *mysqlHoldRepository) Delete(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64, bookingID string) error {
	query := `DELETE FROM availability_holds WHERE owner_type = ? AND owner_id = ? AND booking_id = ?`
	_, err := r.db.ExecContext(ctx, query, ownerType, ownerID, bookingID)
	if err != nil {
		return fmt.Errorf("failed to delete availability hold: %w", err)
	}
	return nil
}

// ListByOwner 列出某一方日历下的全部占位，按开始时间排序
func (r *mysqlHoldRepository) ListByOwner(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64) ([]*model.AvailabilityHold, error) {
	query := `SELECT booking_id, owner_type, owner_id, room_id, start_time, end_time, duration_minutes, source_updated_at, created_at
		FROM availability_holds
		WHERE owner_type = ? AND owner_id = ?
		ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, query, ownerType, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability holds: %w", err)
	}
	defer rows.Close()

	var holds []*model.AvailabilityHold
	for rows.Next() {
		var h model.AvailabilityHold
		if err := rows.Scan(&h.BookingID, &h.OwnerType, &h.OwnerID, &h.RoomID,
			&h.StartTime, &h.EndTime, &h.DurationMinutes, &h.SourceUpdatedAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, &h)
	}
	return holds, rows.Err()
}

// GetByKey 按镜像键读取单条占位，不存在时返回 (nil, nil)
func (r *mysqlHoldRepository) GetByKey(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64, bookingID string) (*model.AvailabilityHold, error) {
	query := `SELECT booking_id, owner_type, owner_id, room_id, start_time, end_time, duration_minutes, source_updated_at, created_at
		FROM availability_holds
		WHERE owner_type = ? AND owner_id = ? AND booking_id = ?`
	var h model.AvailabilityHold
	err := r.db.QueryRowContext(ctx, query, ownerType, ownerID, bookingID).Scan(
		&h.BookingID, &h.OwnerType, &h.OwnerID, &h.RoomID,
		&h.StartTime, &h.EndTime, &h.DurationMinutes, &h.SourceUpdatedAt, &h.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get availability hold: %w", err)
	}
	return &h, nil
}
