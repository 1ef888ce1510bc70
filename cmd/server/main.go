// CanPai 餐饮排班服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/canpai/canpai/internal/config"
	"github.com/canpai/canpai/internal/database"
	"github.com/canpai/canpai/internal/handler"
	"github.com/canpai/canpai/internal/metrics"
	"github.com/canpai/canpai/internal/repository"
	"github.com/canpai/canpai/pkg/draft"
	"github.com/canpai/canpai/pkg/logger"
	"github.com/canpai/canpai/pkg/publish"
	"github.com/canpai/canpai/pkg/scheduler/availability"
	"github.com/canpai/canpai/pkg/scheduler/solver"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	fmt.Printf("CanPai 餐饮排班服务 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Error().Err(err).Msg("数据库连接失败")
		os.Exit(1)
	}
	defer db.Close()

	// 数据访问层
	staffRepo := repository.NewStaffRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	draftRepo := repository.NewDraftRepository(db)
	publishRepo := repository.NewPublishRepository(db)
	source := repository.NewBizSource(staffRepo, ruleRepo)

	// 业务层
	draftManager := draft.NewManager(draftRepo, source, availability.Policy{
		BlockPendingTimeOff: cfg.Scheduler.BlockPendingTimeOff,
	})
	pipeline := publish.NewPipeline(draftManager, publishRepo, publish.Options{
		Channel: cfg.Publish.NotifyChannel,
	})
	auditRepo := repository.NewAuditRepository(db)
	handlers := handler.New(cfg, solver.NewGreedySolver(), draftManager, pipeline, shiftRepo, auditRepo)

	mux := http.NewServeMux()

	// 系统端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","database":"down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"canpai"}`))
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})

	// API v1 端点
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"message": "CanPai 排班服务 API v1",
			"endpoints": {
				"schedule": {
					"generate": "POST /api/v1/schedule/generate"
				},
				"drafts": {
					"list": "GET /api/v1/drafts?biz_id=",
					"get": "GET /api/v1/drafts/{id}",
					"changes": "POST /api/v1/drafts/{id}/changes",
					"validate": "POST /api/v1/drafts/{id}/validate",
					"archive": "POST /api/v1/drafts/{id}/archive",
					"publish": "POST /api/v1/drafts/{id}/publish",
					"stats": "GET /api/v1/drafts/{id}/stats"
				}
			}
		}`))
	})

	mux.HandleFunc("/api/v1/schedule/generate", handlers.Generate)
	mux.HandleFunc("/api/v1/drafts", handlers.ListDrafts)
	mux.HandleFunc("/api/v1/drafts/{id}", handlers.GetDraft)
	mux.HandleFunc("/api/v1/drafts/{id}/changes", handlers.ApplyChange)
	mux.HandleFunc("/api/v1/drafts/{id}/validate", handlers.ValidateDraft)
	mux.HandleFunc("/api/v1/drafts/{id}/archive", handlers.ArchiveDraft)
	mux.HandleFunc("/api/v1/drafts/{id}/publish", handlers.PublishDraft)
	mux.HandleFunc("/api/v1/drafts/{id}/stats", handlers.DraftStats)

	// Prometheus 指标端点
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// 中间件执行顺序：requestID -> cors -> logging -> handler
	root := requestIDMiddleware(corsMiddleware(loggingMiddleware(mux)))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		os.Exit(1)
	}

	logger.Info().Msg("服务器已关闭")
}

type contextKey string

const requestIDKey contextKey = "request_id"

// requestIDMiddleware 请求ID追踪中间件
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware 日志中间件
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID, _ := r.Context().Value(requestIDKey).(string)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", duration).
			Msg("请求处理")

		metrics.RecordRequest(r.Method, r.URL.Path, rw.statusCode, duration)
	})
}

// responseWriter 包装ResponseWriter以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware CORS中间件
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
