package repository

import (
	"context"
	"database/sql"
	"fmt"

	"StudioLink/model"
)

// AlertRepository 通知数据访问接口。通知只追加、只被收件人标记已读。
type AlertRepository interface {
	Create(ctx context.Context, alert *model.Alert) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Alert, error)
	MarkRead(ctx context.Context, userID int64, alertID string) error
	CountUnread(ctx context.Context, userID int64) (int64, error)
}

type mysqlAlertRepository struct {
	db *sql.DB
}

// NewMySQLAlertRepository 创建通知仓库
func NewMySQLAlertRepository(db *sql.DB) AlertRepository {
	return &mysqlAlertRepository{db: db}
}

// Create 追加一条通知。created_at 由数据库赋值。
// 通知ID由触发事件确定性派生，INSERT IGNORE 让同一事件的重投只写一次。
func (r *mysqlAlertRepository) Create(ctx context.Context, alert *model.Alert) error {
	query := `INSERT IGNORE INTO alerts (id, user_id, category, title, message, link, is_read)
		VALUES (?, ?, ?, ?, ?, ?, 0)`
	_, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.UserID, alert.Category, alert.Title, alert.Message, alert.Link)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *mysqlAlertRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Alert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, user_id, category, title, message, link, is_read, created_at
		FROM alerts WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*model.Alert
	for rows.Next() {
		var a model.Alert
		var message, link sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.Category, &a.Title, &message, &link, &a.IsRead, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Message = message.String
		a.Link = link.String
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

// MarkRead 收件人标记通知已读。user_id 条件保证只有收件人能改。
func (r *mysqlAlertRepository) MarkRead(ctx context.Context, userID int64, alertID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET is_read = 1 WHERE id = ? AND user_id = ?`, alertID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *mysqlAlertRepository) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE user_id = ? AND is_read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread alerts: %w", err)
	}
	return count, nil
}
