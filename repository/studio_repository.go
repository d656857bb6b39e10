package repository

import (
	"context"
	"database/sql"
	"fmt"

	"StudioLink/model"
)

// StudioRepository 录音棚数据访问接口
type StudioRepository interface {
	Create(ctx context.Context, studio *model.Studio) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Studio, error)
	// OwnerID 解析录音棚的棚主用户ID。录音棚不存在时返回 sql.ErrNoRows。
	OwnerID(ctx context.Context, studioID int64) (int64, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.Studio, error)
	CreateRoom(ctx context.Context, room *model.Room) (int64, error)
	GetRoom(ctx context.Context, roomID int64) (*model.Room, error)
}

type mysqlStudioRepository struct {
	db *sql.DB
}

// NewMySQLStudioRepository 创建录音棚仓库
func NewMySQLStudioRepository(db *sql.DB) StudioRepository {
	return &mysqlStudioRepository{db: db}
}

func (r *mysqlStudioRepository) Create(ctx context.Context, studio *model.Studio) (int64, error) {
	query := `INSERT INTO studios (owner_id, name, address, phone, cover_url) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		studio.OwnerID, studio.Name, studio.Address, studio.Phone, studio.CoverURL)
	if err != nil {
		return 0, fmt.Errorf("failed to create studio: %w", err)
	}
	return res.LastInsertId()
}

func (r *mysqlStudioRepository) GetByID(ctx context.Context, id int64) (*model.Studio, error) {
	query := `SELECT id, owner_id, name, address, phone, cover_url, created_at, updated_at
		FROM studios WHERE id = ?`
	var s model.Studio
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.OwnerID, &s.Name, &s.Address, &s.Phone, &s.CoverURL, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get studio: %w", err)
	}
	return &s, nil
}

// OwnerID 只查棚主ID，用于通知收件人解析
func (r *mysqlStudioRepository) OwnerID(ctx context.Context, studioID int64) (int64, error) {
	var ownerID int64
	err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM studios WHERE id = ?`, studioID).Scan(&ownerID)
	if err != nil {
		return 0, err
	}
	return ownerID, nil
}

func (r *mysqlStudioRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*model.Studio, error) {
	query := `SELECT id, owner_id, name, address, phone, cover_url, created_at, updated_at
		FROM studios WHERE owner_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list studios: %w", err)
	}
	defer rows.Close()

	var studios []*model.Studio
	for rows.Next() {
		var s model.Studio
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Address, &s.Phone, &s.CoverURL, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		studios = append(studios, &s)
	}
	return studios, rows.Err()
}

func (r *mysqlStudioRepository) CreateRoom(ctx context.Context, room *model.Room) (int64, error) {
	query := `INSERT INTO rooms (studio_id, name, hourly_fee) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, room.StudioID, room.Name, room.HourlyFee)
	if err != nil {
		return 0, fmt.Errorf("failed to create room: %w", err)
	}
	return res.LastInsertId()
}

func (r *mysqlStudioRepository) GetRoom(ctx context.Context, roomID int64) (*model.Room, error) {
	query := `SELECT id, studio_id, name, hourly_fee, created_at FROM rooms WHERE id = ?`
	var room model.Room
	err := r.db.QueryRowContext(ctx, query, roomID).Scan(
		&room.ID, &room.StudioID, &room.Name, &room.HourlyFee, &room.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}
