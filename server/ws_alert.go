package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"StudioLink/core/alerthub"
	"StudioLink/core/auth"
	"StudioLink/logger"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AlertStreamHandler 建立通知推送的 WebSocket 连接。
// 浏览器的 WebSocket API 设不了请求头，token 走查询参数。
func (h *APIHandler) AlertStreamHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Missing token")
		return
	}
	claims, err := auth.ParseToken(token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket升级失败", logger.ErrorField(err))
		return
	}

	client := &alerthub.Client{
		Hub:    h.hub,
		Conn:   conn,
		Send:   make(chan []byte, 64),
		UserID: claims.UserID,
	}
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
