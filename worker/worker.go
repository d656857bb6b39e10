// Package worker 是派生状态同步的消费进程。它与 API 进程共用一套存储，
// 从变更事件队列消费文档写入，按集合路由到各个触发器。
package worker

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"StudioLink/cache"
	"StudioLink/config"
	"StudioLink/core/trigger"
	"StudioLink/db"
	"StudioLink/logger"
	"StudioLink/model"
	"StudioLink/queue"
	"StudioLink/repository"
)

// Start initializes dependencies and runs the change event consumer
// until an interrupt signal arrives.
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

	if err := db.ConnectDB(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.DB.Close()

	// 聊天会话回查走 GORM
	if err := db.ConnectGormDB(cfg); err != nil {
		log.Fatalf("Failed to connect database with GORM: %v", err)
	}
	defer db.CloseGormDB()

	if err := cache.ConnectRedis(cfg); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cache.CloseRedis()

	userRepo := repository.NewMySQLUserRepository(db.DB)
	studioRepo := repository.NewMySQLStudioRepository(db.DB)
	holdRepo := repository.NewMySQLHoldRepository(db.DB)
	alertRepo := repository.NewMySQLAlertRepository(db.DB)
	beatRepo := repository.NewMySQLBeatRepository(db.DB)
	downloadRepo := repository.NewMySQLDownloadRepository(db.DB)
	chatRepo := repository.NewGormChatRepository(db.GormDB)

	// 通知落库后经Redis频道广播，由API进程推给在线连接
	notifier := trigger.NewNotifier(alertRepo, func(alert *model.Alert) {
		if err := cache.PublishAlert(context.Background(), alert); err != nil {
			logger.Warn("通知推送广播失败",
				logger.String("alert", alert.ID), logger.ErrorField(err))
		}
	})

	invalidate := func(ctx context.Context, ownerType model.HoldOwnerType, ownerID int64) {
		if err := cache.InvalidateCalendar(ctx, ownerType, ownerID); err != nil {
			logger.Warn("日历缓存失效失败",
				logger.String("ownerType", string(ownerType)),
				logger.Int64("ownerId", ownerID),
				logger.ErrorField(err))
		}
	}

	router := trigger.NewRouter()
	router.Register(queue.CollectionBookings,
		trigger.NewBookingSync(holdRepo, studioRepo, notifier, invalidate).Handle)
	router.Register(queue.CollectionBeatRatings,
		trigger.NewRatingAggregator(beatRepo, userRepo, notifier).Handle)
	router.Register(queue.CollectionDownloadReqs,
		trigger.NewDownloadLifecycle(downloadRepo, beatRepo, notifier).Handle)
	router.Register(queue.CollectionChatMessages,
		trigger.NewChatFanout(chatRepo, userRepo, notifier).Handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("Shutting down worker...")
		cancel()
	}()

	log.Printf("Worker consuming queue %q...", cfg.ChangeQueue)
	if err := queue.StartConsumer(ctx, cfg.AmqpURL, cfg.ChangeQueue, cfg.ConsumerTag, router.Handle); err != nil &&
		!errors.Is(err, context.Canceled) {
		log.Fatalf("Consumer stopped: %v", err)
	}

	log.Println("Worker stopped")
}
