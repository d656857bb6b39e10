package server

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"StudioLink/logger"
)

// ListAlertsHandler 返回当前用户的通知列表，按时间倒序
func (h *APIHandler) ListAlertsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	alerts, err := h.alertRepo.ListByUser(r.Context(), userID, limit)
	if err != nil {
		logger.Error("查询通知列表失败", logger.Int64("user", userID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, alerts)
}

// MarkAlertReadHandler 标记一条通知已读，只能操作自己的通知
func (h *APIHandler) MarkAlertReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	alertID := mux.Vars(r)["id"]

	if err := h.alertRepo.MarkRead(r.Context(), userID, alertID); err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusNotFound, "Alert not found")
			return
		}
		logger.Error("标记通知已读失败", logger.String("alert", alertID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": alertID})
}

// CountUnreadAlertsHandler 返回当前用户的未读通知数量
func (h *APIHandler) CountUnreadAlertsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	count, err := h.alertRepo.CountUnread(r.Context(), userID)
	if err != nil {
		logger.Error("统计未读通知失败", logger.Int64("user", userID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"unread": count})
}
