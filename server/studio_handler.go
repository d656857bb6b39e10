package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"StudioLink/logger"
	"StudioLink/model"
)

// StudioCreateRequest 创建录音棚的请求体
type StudioCreateRequest struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// RoomCreateRequest 创建房间的请求体
type RoomCreateRequest struct {
	Name      string `json:"name"`
	HourlyFee int64  `json:"hourlyFee"`
}

// CreateStudioHandler 创建录音棚，棚主即当前用户
func (h *APIHandler) CreateStudioHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req StudioCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	studio := &model.Studio{
		OwnerID: userID,
		Name:    req.Name,
	}
	if req.Address != "" {
		studio.Address = sql.NullString{String: req.Address, Valid: true}
	}
	if req.Phone != "" {
		studio.Phone = sql.NullString{String: req.Phone, Valid: true}
	}

	studioID, err := h.studioRepo.Create(r.Context(), studio)
	if err != nil {
		logger.Error("创建录音棚失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to create studio")
		return
	}
	studio.ID = studioID
	respondJSON(w, http.StatusCreated, studio)
}

// ListMyStudiosHandler 列出当前用户名下的录音棚
func (h *APIHandler) ListMyStudiosHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	studios, err := h.studioRepo.ListByOwner(r.Context(), userID)
	if err != nil {
		logger.Error("查询录音棚列表失败", logger.Int64("user", userID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, studios)
}

// GetStudioHandler 查询单个录音棚
func (h *APIHandler) GetStudioHandler(w http.ResponseWriter, r *http.Request) {
	studioID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid studio id")
		return
	}

	studio, err := h.studioRepo.GetByID(r.Context(), studioID)
	if err != nil {
		logger.Error("查询录音棚失败", logger.Int64("studio", studioID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if studio == nil {
		respondError(w, http.StatusNotFound, "Studio not found")
		return
	}
	respondJSON(w, http.StatusOK, studio)
}

// CreateRoomHandler 给自己名下的录音棚添加房间
func (h *APIHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	studioID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid studio id")
		return
	}

	studio, err := h.studioRepo.GetByID(r.Context(), studioID)
	if err != nil {
		logger.Error("查询录音棚失败", logger.Int64("studio", studioID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if studio == nil {
		respondError(w, http.StatusNotFound, "Studio not found")
		return
	}
	if studio.OwnerID != userID {
		respondError(w, http.StatusForbidden, "Not the studio owner")
		return
	}

	var req RoomCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	room := &model.Room{
		StudioID:  studioID,
		Name:      req.Name,
		HourlyFee: req.HourlyFee,
	}
	roomID, err := h.studioRepo.CreateRoom(r.Context(), room)
	if err != nil {
		logger.Error("创建房间失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to create room")
		return
	}
	room.ID = roomID
	respondJSON(w, http.StatusCreated, room)
}
