package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"StudioLink/logger"
	"StudioLink/model"
	"StudioLink/queue"
)

// RatingRequest 评分请求体
type RatingRequest struct {
	Rating int `json:"rating"`
}

// ratingDocID 评分子记录在变更事件里的文档ID
func ratingDocID(beatID string, reviewerID int64) string {
	return fmt.Sprintf("%s:%d", beatID, reviewerID)
}

// PutRatingHandler 给伴奏打分（1-5），重复打分覆盖旧值。
// 父伴奏行上的聚合map由 worker 消费变更事件后合并。
func (h *APIHandler) PutRatingHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	beatID := mux.Vars(r)["id"]

	var req RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		respondError(w, http.StatusBadRequest, "Rating must be between 1 and 5")
		return
	}

	beat, err := h.beatRepo.GetByID(r.Context(), beatID)
	if err != nil {
		logger.Error("查询伴奏失败", logger.String("beat", beatID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if beat == nil {
		respondError(w, http.StatusNotFound, "Beat not found")
		return
	}
	if beat.OwnerID == userID {
		respondError(w, http.StatusForbidden, "Cannot rate your own beat")
		return
	}

	before, err := h.beatRepo.GetRatingEntry(r.Context(), beatID, userID)
	if err != nil {
		logger.Error("查询评分记录失败", logger.String("beat", beatID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	now := time.Now().UTC()
	entry := &model.BeatRating{
		BeatID:     beatID,
		ReviewerID: userID,
		Rating:     req.Rating,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if before != nil {
		entry.CreatedAt = before.CreatedAt
	}

	if err := h.beatRepo.UpsertRatingEntry(r.Context(), entry); err != nil {
		logger.Error("写入评分记录失败", logger.String("beat", beatID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to save rating")
		return
	}

	if before == nil {
		h.publishChange(r.Context(), queue.CollectionBeatRatings, ratingDocID(beatID, userID), nil, entry)
	} else {
		h.publishChange(r.Context(), queue.CollectionBeatRatings, ratingDocID(beatID, userID), before, entry)
	}
	respondJSON(w, http.StatusOK, entry)
}

// DeleteRatingHandler 撤回自己对某个伴奏的评分
func (h *APIHandler) DeleteRatingHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	beatID := mux.Vars(r)["id"]

	before, err := h.beatRepo.GetRatingEntry(r.Context(), beatID, userID)
	if err != nil {
		logger.Error("查询评分记录失败", logger.String("beat", beatID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if before == nil {
		respondError(w, http.StatusNotFound, "Rating not found")
		return
	}

	if err := h.beatRepo.DeleteRatingEntry(r.Context(), beatID, userID); err != nil {
		logger.Error("删除评分记录失败", logger.String("beat", beatID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete rating")
		return
	}

	h.publishChange(r.Context(), queue.CollectionBeatRatings, ratingDocID(beatID, userID), before, nil)
	respondJSON(w, http.StatusOK, map[string]string{"beatId": beatID})
}
