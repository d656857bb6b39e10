package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"StudioLink/config"
	"StudioLink/core/alerthub"
	"StudioLink/core/auth"
	"StudioLink/logger"
	"StudioLink/queue"
	"StudioLink/repository"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	userRepo     repository.UserRepository
	studioRepo   repository.StudioRepository
	bookingRepo  repository.BookingRepository
	holdRepo     repository.HoldRepository
	alertRepo    repository.AlertRepository
	beatRepo     repository.BeatRepository
	downloadRepo repository.DownloadRepository
	chatRepo     repository.ChatRepository

	publisher *queue.Publisher
	hub       *alerthub.Hub
	cfg       *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	userRepo repository.UserRepository,
	studioRepo repository.StudioRepository,
	bookingRepo repository.BookingRepository,
	holdRepo repository.HoldRepository,
	alertRepo repository.AlertRepository,
	beatRepo repository.BeatRepository,
	downloadRepo repository.DownloadRepository,
	chatRepo repository.ChatRepository,
	publisher *queue.Publisher,
	hub *alerthub.Hub,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		userRepo:     userRepo,
		studioRepo:   studioRepo,
		bookingRepo:  bookingRepo,
		holdRepo:     holdRepo,
		alertRepo:    alertRepo,
		beatRepo:     beatRepo,
		downloadRepo: downloadRepo,
		chatRepo:     chatRepo,
		publisher:    publisher,
		hub:          hub,
		cfg:          cfg,
	}
}

// publishChange 把一次文档写入广播成变更事件。before/after 传nil表示快照缺失。
// 发布失败不阻断主请求，镜像会在下一次写入时追平。
func (h *APIHandler) publishChange(ctx context.Context, collection, documentID string, before, after interface{}) {
	var beforeRaw, afterRaw json.RawMessage
	if before != nil {
		data, err := json.Marshal(before)
		if err != nil {
			logger.Error("变更事件前快照序列化失败",
				logger.String("collection", collection),
				logger.String("documentId", documentID),
				logger.ErrorField(err))
			return
		}
		beforeRaw = data
	}
	if after != nil {
		data, err := json.Marshal(after)
		if err != nil {
			logger.Error("变更事件后快照序列化失败",
				logger.String("collection", collection),
				logger.String("documentId", documentID),
				logger.ErrorField(err))
			return
		}
		afterRaw = data
	}

	event := queue.NewChangeEvent(collection, documentID, beforeRaw, afterRaw)
	_ = h.publisher.Publish(ctx, event)
}

// respondJSON 写出JSON响应
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Error("写出响应失败", logger.ErrorField(err))
		}
	}
}

// respondError 写出统一格式的错误响应
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// AuthMiddleware is a middleware function that checks for a valid JWT token
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), "userID", claims.UserID)
		ctx = context.WithValue(ctx, "username", claims.Username)

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value("userID").(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetUsernameFromContext extracts the username from the request context
func GetUsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value("username").(string)
	if !ok {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}
