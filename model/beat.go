package model

import (
	"time"
)

// BeatStatus 上传生命周期：staged 表示文件仍在暂存目录等待入库，ready 表示已进入对象存储。
type BeatStatus string

const (
	BeatStaged BeatStatus = "staged"
	BeatReady  BeatStatus = "ready"
)

// Beat 制作人上传的伴奏。RatingMap 是评分子记录的去规范化聚合：
// key 为评分人ID（字符串形式），value 为 1-5 的整数分值。
// 不变量：RatingMap 的键集合始终等于当前存在的评分子记录集合。
type Beat struct {
	ID         string         `json:"id"` // uuid
	OwnerID    int64          `json:"ownerId"`
	Title      string         `json:"title"`
	Genre      string         `json:"genre,omitempty"`
	BPM        int            `json:"bpm,omitempty"`
	PriceCents int64          `json:"priceCents"`
	ObjectKey  string         `json:"objectKey,omitempty"` // MinIO 对象键，ready 后有值
	Status     BeatStatus     `json:"status"`
	RatingMap  map[string]int `json:"ratingMap,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// AverageRating 根据聚合map计算平均分与数量。
func (b *Beat) AverageRating() (avg float64, count int) {
	if len(b.RatingMap) == 0 {
		return 0, 0
	}
	sum := 0
	for _, v := range b.RatingMap {
		sum += v
	}
	return float64(sum) / float64(len(b.RatingMap)), len(b.RatingMap)
}

// BeatRating 单个评分子记录：每个评分人对每个伴奏至多一条。
type BeatRating struct {
	BeatID     string    `json:"beatId"`
	ReviewerID int64     `json:"reviewerId"`
	Rating     int       `json:"rating"` // 1-5
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
