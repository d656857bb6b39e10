package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"StudioLink/logger"
	"StudioLink/model"
	"StudioLink/queue"
	"StudioLink/storage"
)

// DownloadDecisionRequest 制作人终审的请求体
type DownloadDecisionRequest struct {
	Approve bool `json:"approve"`
}

// CreateDownloadRequestHandler 对某个伴奏发起下载请求。
// 标题在创建时缓存成快照，之后伴奏改名或删除不影响镜像展示。
func (h *APIHandler) CreateDownloadRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	beatID := mux.Vars(r)["id"]

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
	if beat.Status != model.BeatReady {
		respondError(w, http.StatusConflict, "Beat is not ready for download")
		return
	}
	if beat.OwnerID == userID {
		respondError(w, http.StatusBadRequest, "Cannot request a download of your own beat")
		return
	}

	now := time.Now().UTC()
	req := &model.DownloadRequest{
		ID:          uuid.NewString(),
		BeatID:      beatID,
		ProducerID:  beat.OwnerID,
		RequesterID: userID,
		BeatTitle:   beat.Title,
		Status:      model.DownloadPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.downloadRepo.CreateRequest(r.Context(), req); err != nil {
		logger.Error("创建下载请求失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to create download request")
		return
	}

	h.publishChange(r.Context(), queue.CollectionDownloadReqs, req.ID, nil, req)

	logger.Info("下载请求已创建",
		logger.String("request", req.ID),
		logger.String("beat", beatID),
		logger.Int64("requester", userID))
	respondJSON(w, http.StatusCreated, req)
}

// DecideDownloadRequestHandler 制作人终审下载请求。放行时由服务端解析出
// 限时预签名地址写回请求记录，镜像和通知由 worker 消费更新事件后派生。
func (h *APIHandler) DecideDownloadRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	requestID := mux.Vars(r)["id"]

	var decision DownloadDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	before, err := h.downloadRepo.GetRequest(r.Context(), requestID)
	if err != nil {
		logger.Error("查询下载请求失败", logger.String("request", requestID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if before == nil {
		respondError(w, http.StatusNotFound, "Download request not found")
		return
	}
	if before.ProducerID != userID {
		respondError(w, http.StatusForbidden, "Not the producer of this beat")
		return
	}
	if before.Status != model.DownloadPending {
		respondError(w, http.StatusConflict, "Download request already decided")
		return
	}

	status := model.DownloadRejected
	downloadURL := ""
	if decision.Approve {
		beat, err := h.beatRepo.GetByID(r.Context(), before.BeatID)
		if err != nil || beat == nil || beat.ObjectKey == "" {
			logger.Error("放行时解析伴奏对象失败",
				logger.String("beat", before.BeatID), logger.ErrorField(err))
			respondError(w, http.StatusConflict, "Beat object is not available")
			return
		}
		expiry := time.Duration(h.cfg.PresignExpiryMin) * time.Minute
		downloadURL, err = storage.PresignBeatDownload(r.Context(), beat.ObjectKey, expiry)
		if err != nil {
			logger.Error("生成下载地址失败", logger.String("beat", before.BeatID), logger.ErrorField(err))
			respondError(w, http.StatusInternalServerError, "Failed to resolve download URL")
			return
		}
		status = model.DownloadFulfilled
	}

	decidedAt := time.Now().UTC()
	if err := h.downloadRepo.Decide(r.Context(), requestID, status, downloadURL, decidedAt); err != nil {
		logger.Error("写入终审结果失败", logger.String("request", requestID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to decide download request")
		return
	}

	after, err := h.downloadRepo.GetRequest(r.Context(), requestID)
	if err != nil || after == nil {
		logger.Error("回读下载请求失败", logger.String("request", requestID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.publishChange(r.Context(), queue.CollectionDownloadReqs, requestID, before, after)

	logger.Info("下载请求已终审",
		logger.String("request", requestID),
		logger.String("status", string(status)))
	respondJSON(w, http.StatusOK, after)
}

// ListIncomingDownloadRequestsHandler 列出发给当前制作人的下载请求
func (h *APIHandler) ListIncomingDownloadRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	reqs, err := h.downloadRepo.ListByProducer(r.Context(), userID)
	if err != nil {
		logger.Error("查询下载请求失败", logger.Int64("user", userID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, reqs)
}

// ListOutgoingDownloadRequestsHandler 列出当前用户发出的下载请求
func (h *APIHandler) ListOutgoingDownloadRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	reqs, err := h.downloadRepo.ListByRequester(r.Context(), userID)
	if err != nil {
		logger.Error("查询下载请求失败", logger.Int64("user", userID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, reqs)
}

// ListDownloadGrantsHandler 列出当前用户命名空间里的下载放行镜像
func (h *APIHandler) ListDownloadGrantsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	grants, err := h.downloadRepo.ListGrants(r.Context(), userID)
	if err != nil {
		logger.Error("查询下载放行失败", logger.Int64("user", userID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, grants)
}
