package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"StudioLink/logger"
	"StudioLink/model"
	"StudioLink/queue"
)

// SendMessageHandler 给另一个用户发消息。会话不存在时自动创建，
// 对方的新消息通知由 worker 消费变更事件后投递。
func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req model.ChatSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PeerID == 0 || req.PeerID == userID {
		respondError(w, http.StatusBadRequest, "Invalid peer")
		return
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "Content is required")
		return
	}

	thread, err := h.chatRepo.GetOrCreateThread(r.Context(), userID, req.PeerID)
	if err != nil {
		logger.Error("获取会话失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	msg := &model.ChatMessage{
		ID:       uuid.NewString(),
		ThreadID: thread.ID,
		SenderID: userID,
		Content:  req.Content,
	}
	if err := h.chatRepo.CreateMessage(r.Context(), msg); err != nil {
		logger.Error("写入消息失败", logger.String("thread", thread.ID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	h.publishChange(r.Context(), queue.CollectionChatMessages, msg.ID, nil, msg)
	respondJSON(w, http.StatusCreated, msg)
}

// ListThreadsHandler 列出当前用户参与的会话，按最近活跃排序
func (h *APIHandler) ListThreadsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	threads, err := h.chatRepo.ListThreads(r.Context(), userID)
	if err != nil {
		logger.Error("查询会话列表失败", logger.Int64("user", userID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, threads)
}

// ListMessagesHandler 列出某个会话的消息，只有参与方可见
func (h *APIHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	threadID := mux.Vars(r)["id"]

	thread, err := h.chatRepo.GetThread(r.Context(), threadID)
	if err != nil {
		logger.Error("查询会话失败", logger.String("thread", threadID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if thread == nil {
		respondError(w, http.StatusNotFound, "Thread not found")
		return
	}
	if thread.Other(userID) == 0 {
		respondError(w, http.StatusForbidden, "Not a participant of this thread")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	messages, err := h.chatRepo.ListMessages(r.Context(), threadID, limit)
	if err != nil {
		logger.Error("查询消息失败", logger.String("thread", threadID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, messages)
}
