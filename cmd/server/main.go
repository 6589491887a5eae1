package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/Krimson/maternal-monitory/internal/alerts"
	"github.com/Krimson/maternal-monitory/internal/config"
	"github.com/Krimson/maternal-monitory/internal/handler"
	"github.com/Krimson/maternal-monitory/internal/ingest"
	"github.com/Krimson/maternal-monitory/internal/repository"
	"github.com/Krimson/maternal-monitory/internal/service"
	"github.com/Krimson/maternal-monitory/internal/websocket"
)

func main() {
	// Загрузка конфигурации
	cfg := config.Load()

	// PostgreSQL
	repo, err := repository.NewPostgreSQLRepository(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("[ERROR] PostgreSQL unavailable: %v", err)
	}
	defer repo.Close()
	log.Println("[INFO] Connected to PostgreSQL")

	// Redis (кэш производных представлений, best-effort)
	cache := repository.NewRedisCacheStore(
		cfg.RedisAddr,
		cfg.RedisPassword,
		cfg.RedisDB,
		cfg.SummaryTTL,
		cfg.ReportTTL,
	)
	defer cache.Close()
	log.Println("[INFO] Redis cache store initialized")

	// WebSocket hub для push-уведомлений
	hub := websocket.NewHub()
	go hub.Run()

	// Классификатор с порогами из конфигурации
	thresholds := alerts.DefaultThresholds()
	thresholds.SystolicHigh = cfg.SystolicHigh
	thresholds.DiastolicHigh = cfg.DiastolicHigh
	thresholds.SystolicModerate = cfg.SystolicModerate
	thresholds.DiastolicModerate = cfg.DiastolicModerate
	thresholds.HeartRateCeiling = cfg.HeartRateCeiling
	thresholds.OxygenFloor = cfg.OxygenFloor
	thresholds.WeightLossKg = cfg.WeightLossKg
	thresholds.MissedCheckinDays = cfg.MissedCheckinDays
	classifier := alerts.NewClassifier(thresholds)

	// Политика ревью
	var policy service.ReviewPolicy = service.AlwaysAllowPolicy{}
	if cfg.ReviewFailureRate > 0 {
		policy = service.NewRandomReviewPolicy(cfg.ReviewFailureRate, time.Now().UnixNano())
	}

	svc := service.NewMonitorService(repo, cache, classifier, policy, hub, cfg.TrendWindowDays)

	// Батчер приёма измерений, сервис выступает стоком
	batcher := ingest.NewBatcher(cfg, svc)
	defer batcher.Stop()

	// Маршруты
	router := mux.NewRouter()
	httpHandler := handler.NewHTTPHandler(svc, batcher)
	httpHandler.RegisterRoutes(router)
	router.HandleFunc("/ws", hub.HandleWebSocket)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.CORSMiddleware(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("[INFO] Monitor service starting on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[ERROR] Server failed: %v", err)
		}
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("[INFO] Received signal %v, starting graceful shutdown...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("[ERROR] Server forced to shutdown: %v", err)
	}

	log.Println("[INFO] Server exited gracefully")
}
