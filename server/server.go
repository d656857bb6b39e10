package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"StudioLink/cache"
	"StudioLink/config"
	"StudioLink/core/alerthub"
	"StudioLink/core/auth"
	"StudioLink/core/ingest"
	"StudioLink/db"
	"StudioLink/logger"
	"StudioLink/queue"
	"StudioLink/repository"
	"StudioLink/storage"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	auth.SetSecret(cfg.JWTSecret)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 初始化 MinIO 客户端
	if err := storage.InitMinio(cfg); err != nil {
		log.Fatalf("Failed to initialize MinIO: %v", err)
	}

	// Connect to the database
	if err := db.ConnectDB(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.DB.Close()

	// Initialize database schema
	if err := db.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 聊天模块使用 GORM
	if err := db.ConnectGormDB(cfg); err != nil {
		log.Fatalf("Failed to connect database with GORM: %v", err)
	}
	defer db.CloseGormDB()
	if err := db.MigrateChatTables(); err != nil {
		log.Fatalf("Failed to migrate chat tables: %v", err)
	}

	// Connect to Redis
	if err := cache.ConnectRedis(cfg); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cache.CloseRedis()
	log.Println("Successfully connected to Redis")

	ensureDirExists(cfg.UploadDir)
	ensureDirExists(cfg.BeatStagingDir)

	// 变更事件发布器
	publisher := queue.NewPublisher(cfg.AmqpURL, cfg.ChangeQueue)
	defer publisher.Close()

	userRepo := repository.NewMySQLUserRepository(db.DB)
	studioRepo := repository.NewMySQLStudioRepository(db.DB)
	bookingRepo := repository.NewMySQLBookingRepository(db.DB)
	holdRepo := repository.NewMySQLHoldRepository(db.DB)
	alertRepo := repository.NewMySQLAlertRepository(db.DB)
	beatRepo := repository.NewMySQLBeatRepository(db.DB)
	downloadRepo := repository.NewMySQLDownloadRepository(db.DB)
	chatRepo := repository.NewGormChatRepository(db.GormDB)

	// 通知推送中心，worker 写完通知后经 Redis 频道转发到这里
	hub := alerthub.NewHub()
	go hub.Run()
	defer hub.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go forwardAlerts(ctx, hub)

	// 暂存目录监听器：把落盘完成的伴奏搬进对象存储
	watcher := ingest.NewWatcher(cfg.BeatStagingDir, beatRepo)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Error("暂存目录监听退出", logger.ErrorField(err))
		}
	}()

	apiHandler := NewAPIHandler(userRepo, studioRepo, bookingRepo, holdRepo,
		alertRepo, beatRepo, downloadRepo, chatRepo, publisher, hub, cfg)

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 用户认证相关的API端点
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)

	// 用户资料
	router.HandleFunc("/api/profile", apiHandler.AuthMiddleware(apiHandler.GetProfileHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/profile", apiHandler.AuthMiddleware(apiHandler.UpdateProfileHandler)).Methods(http.MethodPut)

	// 录音棚与房间
	router.HandleFunc("/api/studios", apiHandler.AuthMiddleware(apiHandler.CreateStudioHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/studios/mine", apiHandler.AuthMiddleware(apiHandler.ListMyStudiosHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/studios/{id}", apiHandler.GetStudioHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/studios/{id}/rooms", apiHandler.AuthMiddleware(apiHandler.CreateRoomHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/studios/{id}/bookings", apiHandler.AuthMiddleware(apiHandler.ListStudioBookingsHandler)).Methods(http.MethodGet)

	// 预订
	router.HandleFunc("/api/bookings", apiHandler.AuthMiddleware(apiHandler.CreateBookingHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/bookings", apiHandler.AuthMiddleware(apiHandler.ListMyBookingsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/bookings/{id}", apiHandler.AuthMiddleware(apiHandler.GetBookingHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/bookings/{id}", apiHandler.AuthMiddleware(apiHandler.BookingActionHandler)).Methods(http.MethodPatch)
	router.HandleFunc("/api/bookings/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteBookingHandler)).Methods(http.MethodDelete)

	// 日历可用性
	router.HandleFunc("/api/calendar/{ownerType}/{ownerId}", apiHandler.GetCalendarHandler).Methods(http.MethodGet)

	// 通知
	router.HandleFunc("/api/alerts", apiHandler.AuthMiddleware(apiHandler.ListAlertsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/alerts/unread", apiHandler.AuthMiddleware(apiHandler.CountUnreadAlertsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/alerts/{id}/read", apiHandler.AuthMiddleware(apiHandler.MarkAlertReadHandler)).Methods(http.MethodPost)

	// 伴奏市场
	router.HandleFunc("/api/beats", apiHandler.AuthMiddleware(apiHandler.UploadBeatHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/beats", apiHandler.ListMarketBeatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/beats/mine", apiHandler.AuthMiddleware(apiHandler.ListMyBeatsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/beats/{id}", apiHandler.GetBeatHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/beats/{id}/progress", apiHandler.AuthMiddleware(apiHandler.UploadProgressHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/beats/{id}/rating", apiHandler.AuthMiddleware(apiHandler.PutRatingHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/beats/{id}/rating", apiHandler.AuthMiddleware(apiHandler.DeleteRatingHandler)).Methods(http.MethodDelete)

	// 下载请求与放行
	router.HandleFunc("/api/beats/{id}/download-requests", apiHandler.AuthMiddleware(apiHandler.CreateDownloadRequestHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/download-requests/incoming", apiHandler.AuthMiddleware(apiHandler.ListIncomingDownloadRequestsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/download-requests/outgoing", apiHandler.AuthMiddleware(apiHandler.ListOutgoingDownloadRequestsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/download-requests/{id}/decision", apiHandler.AuthMiddleware(apiHandler.DecideDownloadRequestHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/downloads", apiHandler.AuthMiddleware(apiHandler.ListDownloadGrantsHandler)).Methods(http.MethodGet)

	// 聊天
	router.HandleFunc("/api/chat/messages", apiHandler.AuthMiddleware(apiHandler.SendMessageHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/chat/threads", apiHandler.AuthMiddleware(apiHandler.ListThreadsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/chat/threads/{id}/messages", apiHandler.AuthMiddleware(apiHandler.ListMessagesHandler)).Methods(http.MethodGet)

	// 通知实时推送
	router.HandleFunc("/ws/alerts", apiHandler.AlertStreamHandler)

	server.Handler = router

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 在goroutine中启动服务器
	go func() {
		log.Printf("Server starting on %s...", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待中断信号
	<-stop
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// forwardAlerts 订阅Redis推送频道，把 worker 广播的通知转发给在线连接。
func forwardAlerts(ctx context.Context, hub *alerthub.Hub) {
	sub := cache.SubscribeAlerts(ctx)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			alert, err := cache.DecodeAlertMessage(msg)
			if err != nil {
				logger.Warn("通知推送消息无法解析", logger.ErrorField(err))
				continue
			}
			hub.Push(alert.UserID, alert)
		}
	}
}

func ensureDirExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("Creating directory: %s", path)
		if err := os.MkdirAll(path, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", path, err)
		}
	} else if err != nil {
		log.Fatalf("Failed to check directory %s: %v", path, err)
	}
}
