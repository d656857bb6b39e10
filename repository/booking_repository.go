package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"StudioLink/model"
)

// BookingRepository 预订数据访问接口
type BookingRepository interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	// UpdateStatus 更新状态以及（可选的）确认时段，同时推进 updated_at。
	UpdateStatus(ctx context.Context, id string, status model.BookingStatus, confirmedStart, confirmedEnd *time.Time) error
	Delete(ctx context.Context, id string) error
	ListByParticipant(ctx context.Context, userID int64) ([]*model.Booking, error)
	ListByStudio(ctx context.Context, studioID int64) ([]*model.Booking, error)
}

type mysqlBookingRepository struct {
	db *sql.DB
}

// NewMySQLBookingRepository 创建预订仓库
func NewMySQLBookingRepository(db *sql.DB) BookingRepository {
	return &mysqlBookingRepository{db: db}
}

const bookingColumns = `id, artist_id, studio_id, room_id, engineer_id, status,
	requested_start, requested_end, confirmed_start, confirmed_end, notes, created_at, updated_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (*model.Booking, error) {
	var b model.Booking
	var confirmedStart, confirmedEnd sql.NullTime
	var notes sql.NullString
	err := row.Scan(
		&b.ID, &b.ArtistID, &b.StudioID, &b.RoomID, &b.EngineerID, &b.Status,
		&b.RequestedStart, &b.RequestedEnd, &confirmedStart, &confirmedEnd, &notes,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if confirmedStart.Valid {
		b.ConfirmedStart = &confirmedStart.Time
	}
	if confirmedEnd.Valid {
		b.ConfirmedEnd = &confirmedEnd.Time
	}
	if notes.Valid {
		b.Notes = notes.String
	}
	return &b, nil
}

func (r *mysqlBookingRepository) Create(ctx context.Context, b *model.Booking) error {
	query := `INSERT INTO bookings
		(id, artist_id, studio_id, room_id, engineer_id, status, requested_start, requested_end, confirmed_start, confirmed_end, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.ArtistID, b.StudioID, b.RoomID, b.EngineerID, b.Status,
		b.RequestedStart, b.RequestedEnd, b.ConfirmedStart, b.ConfirmedEnd, b.Notes)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mysqlBookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (r *mysqlBookingRepository) UpdateStatus(ctx context.Context, id string, status model.BookingStatus, confirmedStart, confirmedEnd *time.Time) error {
	// 确认时段只在调用方显式给出时覆盖，否则保留原值
	query := `UPDATE bookings SET status = ?,
		confirmed_start = COALESCE(?, confirmed_start),
		confirmed_end = COALESCE(?, confirmed_end),
		updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, status, confirmedStart, confirmedEnd, id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *mysqlBookingRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return nil
}

// ListByParticipant 列出用户以任一身份（艺人或录音师）参与的预订
func (r *mysqlBookingRepository) ListByParticipant(ctx context.Context, userID int64) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE artist_id = ? OR engineer_id = ?
		ORDER BY requested_start DESC`
	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *mysqlBookingRepository) ListByStudio(ctx context.Context, studioID int64) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE studio_id = ? ORDER BY requested_start DESC`
	rows, err := r.db.QueryContext(ctx, query, studioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list studio bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]*model.Booking, error) {
	var bookings []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
