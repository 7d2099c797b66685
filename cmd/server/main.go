package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"groupbuy_backend/internal/domain/group"
	groupService "groupbuy_backend/internal/domain/group/service"
	"groupbuy_backend/internal/domain/user"
	"groupbuy_backend/internal/pkg/config"
	"groupbuy_backend/internal/pkg/middleware"
	"groupbuy_backend/internal/pkg/notify"
	"groupbuy_backend/internal/pkg/registry"
	"groupbuy_backend/pkg/database"
	"groupbuy_backend/pkg/logger"
	"groupbuy_backend/pkg/metrics"

	// Self-registering domain modules.
	_ "groupbuy_backend/internal/domain/catalog"
	_ "groupbuy_backend/internal/domain/order"
	_ "groupbuy_backend/internal/domain/returns"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()

	logger.Init(config.GlobalConfig.App.Debug)
	defer logger.Sync()

	db := database.InitDatabase()
	rdb := database.InitRedis()

	if config.GlobalConfig.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.LoggerMiddleware(),
		middleware.RateLimitMiddleware(),
		metrics.Default.GinMiddleware(),
		cors.New(cors.Config{
			AllowOrigins:     []string{config.GlobalConfig.Telegram.WebAppURL},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	moduleCtx := &registry.ModuleContext{DB: db, Redis: rdb, Router: router}
	if err := registry.InitModules(moduleCtx); err != nil {
		logger.Log.Fatal("Module initialization failed", zap.Error(err))
	}

	startNotifications()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := groupService.NewScheduler(
		group.Service(),
		config.GlobalConfig.Business.SchedulerInterval(),
	)
	go scheduler.Start(ctx)

	srv := &http.Server{
		Addr:    ":" + config.GlobalConfig.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Log.Info("Server started", zap.String("port", config.GlobalConfig.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server")

	// Stop the sweep first so no settlement starts mid-shutdown.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Forced shutdown", zap.Error(err))
	}
	logger.Log.Info("Server stopped")
}

// startNotifications wires the telegram dispatcher. Missing bot token means
// notifications are simply off; everything else keeps working.
func startNotifications() {
	sender, err := notify.NewTelegramSender(user.Service())
	if err != nil {
		logger.Log.Warn("Notifications disabled", zap.Error(err))
		return
	}
	notify.GlobalDispatcher = notify.NewDispatcher(sender, 4, 1024)
	notify.GlobalDispatcher.Start()
}
