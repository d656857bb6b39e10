package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"StudioLink/core/booking"
	"StudioLink/logger"
	"StudioLink/model"
	"StudioLink/queue"
)

// CreateBookingHandler 艺人发起预订。落库后广播创建事件，
// 日历镜像和参与方通知由 worker 消费事件后派生。
func (h *APIHandler) CreateBookingHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req model.BookingCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.StudioID == 0 || req.RoomID == 0 {
		respondError(w, http.StatusBadRequest, "studioId and roomId are required")
		return
	}
	if !req.RequestedEnd.After(req.RequestedStart) {
		respondError(w, http.StatusBadRequest, "requestedEnd must be after requestedStart")
		return
	}

	room, err := h.studioRepo.GetRoom(r.Context(), req.RoomID)
	if err != nil {
		logger.Error("查询房间失败", logger.Int64("room", req.RoomID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if room == nil || room.StudioID != req.StudioID {
		respondError(w, http.StatusBadRequest, "Room does not belong to the studio")
		return
	}

	now := time.Now().UTC()
	b := &model.Booking{
		ID:             uuid.NewString(),
		ArtistID:       userID,
		StudioID:       req.StudioID,
		RoomID:         req.RoomID,
		EngineerID:     req.EngineerID,
		Status:         model.BookingPending,
		RequestedStart: req.RequestedStart,
		RequestedEnd:   req.RequestedEnd,
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.bookingRepo.Create(r.Context(), b); err != nil {
		logger.Error("创建预订失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to create booking")
		return
	}

	h.publishChange(r.Context(), queue.CollectionBookings, b.ID, nil, b)

	logger.Info("预订已创建",
		logger.String("booking", b.ID),
		logger.Int64("artist", userID),
		logger.Int64("studio", b.StudioID))
	respondJSON(w, http.StatusCreated, b)
}

// BookingActionHandler 推进预订状态。迁移合法性由状态机把关，
// 确认时可以携带与请求时段不同的确认时段。
func (h *APIHandler) BookingActionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	bookingID := mux.Vars(r)["id"]

	var req model.BookingActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !booking.ValidStatus(req.Status) {
		respondError(w, http.StatusBadRequest, "Unknown status")
		return
	}

	before, err := h.bookingRepo.GetByID(r.Context(), bookingID)
	if err != nil {
		logger.Error("查询预订失败", logger.String("booking", bookingID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if before == nil {
		respondError(w, http.StatusNotFound, "Booking not found")
		return
	}

	if !h.canActOnBooking(r, userID, before) {
		respondError(w, http.StatusForbidden, "Not a participant of this booking")
		return
	}

	if !booking.CanTransition(before.Status, req.Status) {
		respondError(w, http.StatusConflict, "Illegal status transition")
		return
	}
	if req.Status == model.BookingConfirmed && req.ConfirmedStart != nil && req.ConfirmedEnd != nil {
		if !req.ConfirmedEnd.After(*req.ConfirmedStart) {
			respondError(w, http.StatusBadRequest, "confirmedEnd must be after confirmedStart")
			return
		}
	}

	if err := h.bookingRepo.UpdateStatus(r.Context(), bookingID, req.Status, req.ConfirmedStart, req.ConfirmedEnd); err != nil {
		logger.Error("更新预订状态失败", logger.String("booking", bookingID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to update booking")
		return
	}

	// 回读拿到数据库赋值后的完整后快照
	after, err := h.bookingRepo.GetByID(r.Context(), bookingID)
	if err != nil || after == nil {
		logger.Error("回读预订失败", logger.String("booking", bookingID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.publishChange(r.Context(), queue.CollectionBookings, bookingID, before, after)

	logger.Info("预订状态已推进",
		logger.String("booking", bookingID),
		logger.String("from", string(before.Status)),
		logger.String("to", string(after.Status)))
	respondJSON(w, http.StatusOK, after)
}

// DeleteBookingHandler 删除预订记录。广播删除事件让 worker 清掉两侧镜像。
func (h *APIHandler) DeleteBookingHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	bookingID := mux.Vars(r)["id"]

	before, err := h.bookingRepo.GetByID(r.Context(), bookingID)
	if err != nil {
		logger.Error("查询预订失败", logger.String("booking", bookingID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if before == nil {
		respondError(w, http.StatusNotFound, "Booking not found")
		return
	}
	if !h.canActOnBooking(r, userID, before) {
		respondError(w, http.StatusForbidden, "Not a participant of this booking")
		return
	}

	if err := h.bookingRepo.Delete(r.Context(), bookingID); err != nil {
		logger.Error("删除预订失败", logger.String("booking", bookingID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete booking")
		return
	}

	h.publishChange(r.Context(), queue.CollectionBookings, bookingID, before, nil)
	respondJSON(w, http.StatusOK, map[string]string{"id": bookingID})
}

// GetBookingHandler 查询单条预订
func (h *APIHandler) GetBookingHandler(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]

	b, err := h.bookingRepo.GetByID(r.Context(), bookingID)
	if err != nil {
		logger.Error("查询预订失败", logger.String("booking", bookingID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if b == nil {
		respondError(w, http.StatusNotFound, "Booking not found")
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// ListMyBookingsHandler 列出当前用户参与的预订（艺人或录音师身份）
func (h *APIHandler) ListMyBookingsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	bookings, err := h.bookingRepo.ListByParticipant(r.Context(), userID)
	if err != nil {
		logger.Error("查询预订列表失败", logger.Int64("user", userID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, bookings)
}

// ListStudioBookingsHandler 列出某个录音棚的全部预订，仅棚主可见
func (h *APIHandler) ListStudioBookingsHandler(w http.ResponseWriter, r *http.Request) {
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

	ownerID, err := h.studioRepo.OwnerID(r.Context(), studioID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Studio not found")
		return
	}
	if ownerID != userID {
		respondError(w, http.StatusForbidden, "Not the studio owner")
		return
	}

	bookings, err := h.bookingRepo.ListByStudio(r.Context(), studioID)
	if err != nil {
		logger.Error("查询录音棚预订失败", logger.Int64("studio", studioID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, bookings)
}

// canActOnBooking 报告用户是否有权操作这条预订：参与双方或棚主。
func (h *APIHandler) canActOnBooking(r *http.Request, userID int64, b *model.Booking) bool {
	if userID == b.ArtistID || userID == b.EngineerID {
		return true
	}
	ownerID, err := h.studioRepo.OwnerID(r.Context(), b.StudioID)
	if err != nil {
		logger.Warn("解析棚主失败", logger.Int64("studio", b.StudioID), logger.ErrorField(err))
		return false
	}
	return userID == ownerID
}
