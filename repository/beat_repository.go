package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"StudioLink/model"
)

// BeatRepository 伴奏数据访问接口。
// SetRating/RemoveRating 是评分聚合map的增量归约：在一个事务里用行锁
// 读出 rating_map，按键写入或删除后写回，重复执行同一补丁结果不变。
type BeatRepository interface {
	Create(ctx context.Context, beat *model.Beat) error
	GetByID(ctx context.Context, id string) (*model.Beat, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.Beat, error)
	ListReady(ctx context.Context, limit int) ([]*model.Beat, error)
	MarkReady(ctx context.Context, id, objectKey string) error
	SetRating(ctx context.Context, beatID string, reviewerID int64, rating int) error
	RemoveRating(ctx context.Context, beatID string, reviewerID int64) error

	// 评分子记录
	UpsertRatingEntry(ctx context.Context, entry *model.BeatRating) error
	DeleteRatingEntry(ctx context.Context, beatID string, reviewerID int64) error
	GetRatingEntry(ctx context.Context, beatID string, reviewerID int64) (*model.BeatRating, error)
}

type mysqlBeatRepository struct {
	db *sql.DB
}

// NewMySQLBeatRepository 创建伴奏仓库
func NewMySQLBeatRepository(db *sql.DB) BeatRepository {
	return &mysqlBeatRepository{db: db}
}

const beatColumns = `id, owner_id, title, genre, bpm, price_cents, object_key, status, rating_map, created_at, updated_at`

func scanBeat(row interface{ Scan(...interface{}) error }) (*model.Beat, error) {
	var b model.Beat
	var genre, objectKey sql.NullString
	var bpm sql.NullInt64
	var ratingMap sql.NullString
	err := row.Scan(
		&b.ID, &b.OwnerID, &b.Title, &genre, &bpm, &b.PriceCents,
		&objectKey, &b.Status, &ratingMap, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Genre = genre.String
	b.ObjectKey = objectKey.String
	if bpm.Valid {
		b.BPM = int(bpm.Int64)
	}
	if ratingMap.Valid && ratingMap.String != "" {
		if err := json.Unmarshal([]byte(ratingMap.String), &b.RatingMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rating map: %w", err)
		}
	}
	return &b, nil
}

func (r *mysqlBeatRepository) Create(ctx context.Context, beat *model.Beat) error {
	query := `INSERT INTO beats (id, owner_id, title, genre, bpm, price_cents, object_key, status, rating_map)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, JSON_OBJECT())`
	_, err := r.db.ExecContext(ctx, query,
		beat.ID, beat.OwnerID, beat.Title, beat.Genre, beat.BPM, beat.PriceCents, beat.ObjectKey, beat.Status)
	if err != nil {
		return fmt.Errorf("failed to create beat: %w", err)
	}
	return nil
}

func (r *mysqlBeatRepository) GetByID(ctx context.Context, id string) (*model.Beat, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+beatColumns+` FROM beats WHERE id = ?`, id)
	b, err := scanBeat(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get beat: %w", err)
	}
	return b, nil
}

func (r *mysqlBeatRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*model.Beat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+beatColumns+` FROM beats WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list beats: %w", err)
	}
	defer rows.Close()
	return collectBeats(rows)
}

func (r *mysqlBeatRepository) ListReady(ctx context.Context, limit int) ([]*model.Beat, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+beatColumns+` FROM beats WHERE status = 'ready' ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ready beats: %w", err)
	}
	defer rows.Close()
	return collectBeats(rows)
}

func collectBeats(rows *sql.Rows) ([]*model.Beat, error) {
	var beats []*model.Beat
	for rows.Next() {
		b, err := scanBeat(rows)
		if err != nil {
			return nil, err
		}
		beats = append(beats, b)
	}
	return beats, rows.Err()
}

// MarkReady 入库完成后记录对象键并标记可用
func (r *mysqlBeatRepository) MarkReady(ctx context.Context, id, objectKey string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE beats SET status = 'ready', object_key = ? WHERE id = ?`, objectKey, id)
	if err != nil {
		return fmt.Errorf("failed to mark beat ready: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetRating 把某个评分人的分值并入聚合map
func (r *mysqlBeatRepository) SetRating(ctx context.Context, beatID string, reviewerID int64, rating int) error {
	return r.patchRatingMap(ctx, beatID, reviewerID, &rating)
}

// RemoveRating 把某个评分人的分值从聚合map中移除
func (r *mysqlBeatRepository) RemoveRating(ctx context.Context, beatID string, reviewerID int64) error {
	return r.patchRatingMap(ctx, beatID, reviewerID, nil)
}

// patchRatingMap 在单个事务内对父记录加行锁后补丁聚合map。
// rating 为 nil 表示删除该评分人的键。伴奏不存在时静默成功（幂等重投安全）。
func (r *mysqlBeatRepository) patchRatingMap(ctx context.Context, beatID string, reviewerID int64, rating *int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rating patch tx: %w", err)
	}
	defer tx.Rollback()

	var raw sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT rating_map FROM beats WHERE id = ? FOR UPDATE`, beatID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to lock beat row: %w", err)
	}

	ratingMap := make(map[string]int)
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &ratingMap); err != nil {
			return fmt.Errorf("failed to unmarshal rating map: %w", err)
		}
	}

	key := strconv.FormatInt(reviewerID, 10)
	if rating == nil {
		delete(ratingMap, key)
	} else {
		ratingMap[key] = *rating
	}

	data, err := json.Marshal(ratingMap)
	if err != nil {
		return fmt.Errorf("failed to marshal rating map: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE beats SET rating_map = ? WHERE id = ?`, string(data), beatID); err != nil {
		return fmt.Errorf("failed to write rating map: %w", err)
	}

	return tx.Commit()
}

// UpsertRatingEntry 写入或覆盖评分子记录
func (r *mysqlBeatRepository) UpsertRatingEntry(ctx context.Context, entry *model.BeatRating) error {
	query := `INSERT INTO beat_ratings (beat_id, reviewer_id, rating)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE rating = VALUES(rating)`
	_, err := r.db.ExecContext(ctx, query, entry.BeatID, entry.ReviewerID, entry.Rating)
	if err != nil {
		return fmt.Errorf("failed to upsert rating entry: %w", err)
	}
	return nil
}

// DeleteRatingEntry 删除评分子记录，不存在时静默成功
func (r *mysqlBeatRepository) DeleteRatingEntry(ctx context.Context, beatID string, reviewerID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM beat_ratings WHERE beat_id = ? AND reviewer_id = ?`, beatID, reviewerID)
	if err != nil {
		return fmt.Errorf("failed to delete rating entry: %w", err)
	}
	return nil
}

func (r *mysqlBeatRepository) GetRatingEntry(ctx context.Context, beatID string, reviewerID int64) (*model.BeatRating, error) {
	query := `SELECT beat_id, reviewer_id, rating, created_at, updated_at
		FROM beat_ratings WHERE beat_id = ? AND reviewer_id = ?`
	var e model.BeatRating
	err := r.db.QueryRowContext(ctx, query, beatID, reviewerID).Scan(
		&e.BeatID, &e.ReviewerID, &e.Rating, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rating entry: %w", err)
	}
	return &e, nil
}
