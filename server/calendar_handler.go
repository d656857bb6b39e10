package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"StudioLink/cache"
	"StudioLink/logger"
	"StudioLink/model"
)

// GetCalendarHandler 返回某一方日历的可用性占位列表。
// 结果缓存在 Redis 里，占位镜像变更时由 worker 主动失效。
func (h *APIHandler) GetCalendarHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	ownerType := model.HoldOwnerType(vars["ownerType"])
	if ownerType != model.HoldOwnerStudio && ownerType != model.HoldOwnerEngineer {
		respondError(w, http.StatusBadRequest, "ownerType must be studio or engineer")
		return
	}
	ownerID, err := strconv.ParseInt(vars["ownerId"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid owner id")
		return
	}

	if holds, found, err := cache.GetCalendar(r.Context(), ownerType, ownerID); err == nil && found {
		respondJSON(w, http.StatusOK, holds)
		return
	} else if err != nil {
		logger.Warn("读取日历缓存失败", logger.ErrorField(err))
	}

	holds, err := h.holdRepo.ListByOwner(r.Context(), ownerType, ownerID)
	if err != nil {
		logger.Error("查询日历占位失败",
			logger.String("ownerType", string(ownerType)),
			logger.Int64("ownerId", ownerID),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := cache.SetCalendar(r.Context(), ownerType, ownerID, holds); err != nil {
		logger.Warn("写入日历缓存失败", logger.ErrorField(err))
	}
	respondJSON(w, http.StatusOK, holds)
}
