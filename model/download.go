package model

import (
	"time"
)

// DownloadStatus 下载请求生命周期
type DownloadStatus string

const (
	DownloadPending   DownloadStatus = "pending"
	DownloadFulfilled DownloadStatus = "fulfilled"
	DownloadRejected  DownloadStatus = "rejected"
)

// DownloadRequest 对某个伴奏的下载请求。归制作人决策；BeatTitle 是创建时
// 缓存的标题快照，镜像时优先使用，缺省再回查伴奏记录。
type DownloadRequest struct {
	ID          string         `json:"id"` // uuid
	BeatID      string         `json:"beatId"`
	ProducerID  int64          `json:"producerId"`
	RequesterID int64          `json:"requesterId"`
	BeatTitle   string         `json:"beatTitle,omitempty"`
	Status      DownloadStatus `json:"status"`
	DownloadURL string         `json:"downloadUrl,omitempty"` // 放行时由服务端解析的预签名地址
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DecidedAt   *time.Time     `json:"decidedAt,omitempty"`
}

// DownloadGrant 写入请求者命名空间的镜像记录，键为来源请求的ID（幂等合并写）。
// 拒绝时 DownloadURL 为空串。
type DownloadGrant struct {
	RequestID   string         `json:"requestId"`
	RequesterID int64          `json:"requesterId"`
	ProducerID  int64          `json:"producerId"`
	BeatID      string         `json:"beatId"`
	BeatTitle   string         `json:"beatTitle"`
	Status      DownloadStatus `json:"status"`
	DownloadURL string         `json:"downloadUrl,omitempty"`
	RequestedAt time.Time      `json:"requestedAt"`
	DecidedAt   *time.Time     `json:"decidedAt,omitempty"`
}
