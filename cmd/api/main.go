package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiRepairKit/internal/config"
	"github.com/nemonet1337/zaiRepairKit/internal/metrics"
	"github.com/nemonet1337/zaiRepairKit/pkg/workshop"
	"github.com/nemonet1337/zaiRepairKit/pkg/workshop/storage"
)

func main() {
	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	// ログ設定
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	// データベース接続
	ctx := context.Background()
	store, err := storage.Open(ctx, storage.Options{
		Driver:     cfg.Database.Driver,
		DSN:        cfg.DSN(),
		SQLitePath: cfg.Database.SQLitePath,
		Pool: storage.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		},
	}, logger)
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer store.Close()

	if cfg.Database.AutoMigrate || cfg.Database.Driver == "sqlite" {
		if _, err := store.Migrate(ctx); err != nil {
			logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
		}
	}

	// ワークショップマネージャー初期化
	collector := metrics.NewCollector()
	manager := workshop.NewManager(store, collector, logger, &cfg.Workshop)

	// HTTPハンドラー設定
	handlers := NewHandlers(manager, store, logger)
	router := setupRouter(handlers, collector, cfg.API)

	// HTTPサーバー設定
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	// グレースフルシャットダウン設定
	go func() {
		logger.Info("修理工房在庫APIサーバーを開始します",
			zap.Int("port", cfg.API.Port),
			zap.String("driver", store.Dialect()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー開始に失敗しました", zap.Error(err))
		}
	}()

	// シャットダウンシグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// グレースフルシャットダウン
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンに失敗しました", zap.Error(err))
	}

	logger.Info("サーバーが正常に停止しました")
}

// setupRouter sets up HTTP routes
// HTTPルートを設定
func setupRouter(handlers *Handlers, collector *metrics.Collector, apiCfg config.APIConfig) *mux.Router {
	router := mux.NewRouter()

	// ヘルスチェック
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	if apiCfg.EnableMetrics && collector != nil {
		router.Handle("/metrics", collector.Handler()).Methods("GET")
	}

	// API v1ルート
	api := router.PathPrefix("/api/v1").Subrouter()

	// カテゴリ管理
	api.HandleFunc("/categories", handlers.ListCategories).Methods("GET")
	api.HandleFunc("/categories", handlers.CreateCategory).Methods("POST")
	api.HandleFunc("/categories/{categoryId}", handlers.GetCategory).Methods("GET")
	api.HandleFunc("/categories/{categoryId}", handlers.UpdateCategory).Methods("PUT")
	api.HandleFunc("/categories/{categoryId}", handlers.DeleteCategory).Methods("DELETE")

	// ポーチ管理
	api.HandleFunc("/pouches", handlers.ListPouches).Methods("GET")
	api.HandleFunc("/pouches", handlers.CreatePouch).Methods("POST")
	api.HandleFunc("/pouches/{pouchId}", handlers.GetPouch).Methods("GET")
	api.HandleFunc("/pouches/{pouchId}", handlers.UpdatePouch).Methods("PUT")
	api.HandleFunc("/pouches/{pouchId}", handlers.DeletePouch).Methods("DELETE")

	// 商品管理（/items/exportは/items/{itemId}より先に登録）
	api.HandleFunc("/items", handlers.ListItems).Methods("GET")
	api.HandleFunc("/items", handlers.CreateItem).Methods("POST")
	api.HandleFunc("/items/export", handlers.ExportItems).Methods("GET")
	api.HandleFunc("/items/{itemId}", handlers.GetItem).Methods("GET")
	api.HandleFunc("/items/{itemId}", handlers.UpdateItem).Methods("PUT")
	api.HandleFunc("/items/{itemId}", handlers.DeleteItem).Methods("DELETE")

	// 在庫履歴
	api.HandleFunc("/items/{itemId}/movements", handlers.GetHistory).Methods("GET")

	// 修理ジョブ
	api.HandleFunc("/jobs", handlers.ListJobs).Methods("GET")
	api.HandleFunc("/jobs", handlers.CreateJob).Methods("POST")
	api.HandleFunc("/jobs/{jobId}", handlers.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{jobId}", handlers.UpdateJob).Methods("PUT")
	api.HandleFunc("/jobs/{jobId}", handlers.DeleteJob).Methods("DELETE")
	api.HandleFunc("/jobs/{jobId}/items", handlers.ListJobItems).Methods("GET")
	api.HandleFunc("/jobs/{jobId}/items", handlers.CreateJobItem).Methods("POST")

	// ダッシュボード
	api.HandleFunc("/summary", handlers.GetSummary).Methods("GET")

	// CORS設定
	if apiCfg.EnableCORS {
		router.Use(corsMiddleware)
	}

	if collector != nil {
		router.Use(collector.Middleware)
	}

	// ログ機能
	router.Use(loggingMiddleware(handlers.logger))

	return router
}

// corsMiddleware sets permissive CORS headers for the admin panel
// 管理画面向けのCORSヘッダーを設定
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
// HTTPリクエストをログ出力するミドルウェア
func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// リクエスト処理
			next.ServeHTTP(w, r)

			// ログ出力
			logger.Info("HTTPリクエスト",
				zap.String("method", r.Method),
				zap.String("url", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
