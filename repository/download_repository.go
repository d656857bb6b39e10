package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"StudioLink/model"
)

// DownloadRepository 下载请求与请求者侧镜像记录的数据访问接口
type DownloadRepository interface {
	CreateRequest(ctx context.Context, req *model.DownloadRequest) error
	GetRequest(ctx context.Context, id string) (*model.DownloadRequest, error)
	// Decide 记录制作人的终审：状态、解析出的下载地址（拒绝时为空）与决定时间。
	Decide(ctx context.Context, id string, status model.DownloadStatus, downloadURL string, decidedAt time.Time) error
	ListByProducer(ctx context.Context, producerID int64) ([]*model.DownloadRequest, error)
	ListByRequester(ctx context.Context, requesterID int64) ([]*model.DownloadRequest, error)

	// 请求者命名空间里的镜像，键为来源请求ID，写入是幂等合并
	UpsertGrant(ctx context.Context, grant *model.DownloadGrant) error
	ListGrants(ctx context.Context, requesterID int64) ([]*model.DownloadGrant, error)
	GetGrant(ctx context.Context, requestID string) (*model.DownloadGrant, error)
}

type mysqlDownloadRepository struct {
	db *sql.DB
}

// NewMySQLDownloadRepository 创建下载请求仓库
func NewMySQLDownloadRepository(db *sql.DB) DownloadRepository {
	return &mysqlDownloadRepository{db: db}
}

const requestColumns = `id, beat_id, producer_id, requester_id, beat_title, status, download_url, created_at, updated_at, decided_at`

func scanRequest(row interface{ Scan(...interface{}) error }) (*model.DownloadRequest, error) {
	var req model.DownloadRequest
	var beatTitle, downloadURL sql.NullString
	var decidedAt sql.NullTime
	err := row.Scan(
		&req.ID, &req.BeatID, &req.ProducerID, &req.RequesterID, &beatTitle,
		&req.Status, &downloadURL, &req.CreatedAt, &req.UpdatedAt, &decidedAt,
	)
	if err != nil {
		return nil, err
	}
	req.BeatTitle = beatTitle.String
	req.DownloadURL = downloadURL.String
	if decidedAt.Valid {
		req.DecidedAt = &decidedAt.Time
	}
	return &req, nil
}

func (r *mysqlDownloadRepository) CreateRequest(ctx context.Context, req *model.DownloadRequest) error {
	query := `INSERT INTO download_requests (id, beat_id, producer_id, requester_id, beat_title, status)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.BeatID, req.ProducerID, req.RequesterID, req.BeatTitle, req.Status)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}
	return nil
}

func (r *mysqlDownloadRepository) GetRequest(ctx context.Context, id string) (*model.DownloadRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM download_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download request: %w", err)
	}
	return req, nil
}

func (r *mysqlDownloadRepository) Decide(ctx context.Context, id string, status model.DownloadStatus, downloadURL string, decidedAt time.Time) error {
	query := `UPDATE download_requests
		SET status = ?, download_url = ?, decided_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, status, downloadURL, decidedAt, id)
	if err != nil {
		return fmt.Errorf("failed to decide download request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *mysqlDownloadRepository) ListByProducer(ctx context.Context, producerID int64) ([]*model.DownloadRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM download_requests WHERE producer_id = ? ORDER BY created_at DESC`, producerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list producer download requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (r *mysqlDownloadRepository) ListByRequester(ctx context.Context, requesterID int64) ([]*model.DownloadRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM download_requests WHERE requester_id = ? ORDER BY created_at DESC`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requester download requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

func collectRequests(rows *sql.Rows) ([]*model.DownloadRequest, error) {
	var reqs []*model.DownloadRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// UpsertGrant 写入或覆盖请求者侧镜像。拒绝决定会把 download_url 覆盖为空串。
func (r *mysqlDownloadRepository) UpsertGrant(ctx context.Context, grant *model.DownloadGrant) error {
	query := `INSERT INTO download_grants
		(request_id, requester_id, producer_id, beat_id, beat_title, status, download_url, requested_at, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			beat_title = VALUES(beat_title),
			status = VALUES(status),
			download_url = VALUES(download_url),
			decided_at = VALUES(decided_at)`
	_, err := r.db.ExecContext(ctx, query,
		grant.RequestID, grant.RequesterID, grant.ProducerID, grant.BeatID,
		grant.BeatTitle, grant.Status, grant.DownloadURL, grant.RequestedAt, grant.DecidedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert download grant: %w", err)
	}
	return nil
}

func (r *mysqlDownloadRepository) ListGrants(ctx context.Context, requesterID int64) ([]*model.DownloadGrant, error) {
	query := `SELECT request_id, requester_id, producer_id, beat_id, beat_title, status, download_url, requested_at, decided_at
		FROM download_grants WHERE requester_id = ? ORDER BY requested_at DESC`
	rows, err := r.db.QueryContext(ctx, query, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list download grants: %w", err)
	}
	defer rows.Close()

	var grants []*model.DownloadGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *mysqlDownloadRepository) GetGrant(ctx context.Context, requestID string) (*model.DownloadGrant, error) {
	query := `SELECT request_id, requester_id, producer_id, beat_id, beat_title, status, download_url, requested_at, decided_at
		FROM download_grants WHERE request_id = ?`
	row := r.db.QueryRowContext(ctx, query, requestID)
	g, err := scanGrant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get download grant: %w", err)
	}
	return g, nil
}

func scanGrant(row interface{ Scan(...interface{}) error }) (*model.DownloadGrant, error) {
	var g model.DownloadGrant
	var beatTitle, downloadURL sql.NullString
	var decidedAt sql.NullTime
	err := row.Scan(
		&g.RequestID, &g.RequesterID, &g.ProducerID, &g.BeatID,
		&beatTitle, &g.Status, &downloadURL, &g.RequestedAt, &decidedAt,
	)
	if err != nil {
		return nil, err
	}
	g.BeatTitle = beatTitle.String
	g.DownloadURL = downloadURL.String
	if decidedAt.Valid {
		g.DecidedAt = &decidedAt.Time
	}
	return &g, nil
}
