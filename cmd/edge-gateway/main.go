package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/grahmos/edge-gateway/internal/config"
	dbRedis "github.com/grahmos/edge-gateway/internal/db/redis"
	"github.com/grahmos/edge-gateway/internal/domain"
	logpkg "github.com/grahmos/edge-gateway/internal/logger"
	"github.com/grahmos/edge-gateway/internal/metrics"
	ratelimitrepo "github.com/grahmos/edge-gateway/internal/repository/ratelimit"
	receiptrepo "github.com/grahmos/edge-gateway/internal/repository/receipt"
	replayrepo "github.com/grahmos/edge-gateway/internal/repository/replay"
	localBackend "github.com/grahmos/edge-gateway/internal/search/local"
	remoteBackend "github.com/grahmos/edge-gateway/internal/search/remote"
	"github.com/grahmos/edge-gateway/internal/sign"
	chiTransport "github.com/grahmos/edge-gateway/internal/transport/chi"
	authuc "github.com/grahmos/edge-gateway/internal/usecase/auth"
	healthuc "github.com/grahmos/edge-gateway/internal/usecase/health"
	purchaseuc "github.com/grahmos/edge-gateway/internal/usecase/purchase"
	searchuc "github.com/grahmos/edge-gateway/internal/usecase/search"
	"github.com/grahmos/edge-gateway/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting edge gateway",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("search_backend", cfg.Search.Backend),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create store", zap.Error(err))
	}

	// Wait for the store to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Store not ready", zap.Error(err))
	}
	logger.Info("Connected to store")

	// Register domain metrics explicitly (no init())
	metrics.RegisterGatewayMetrics()

	// Signing key: pre-provisioned, loaded once, read-only from here on.
	priv, err := sign.DecodePrivateKey(cfg.Auth.SigningKey)
	if err != nil {
		logger.Fatal("Failed to load signing key", zap.Error(err))
	}
	signer := sign.NewSigner(priv, cfg.Auth.KeyID)

	// Search backend — resolved once from config into a typed variant and
	// injected; never consulted from ambient state per call.
	backend, err := buildBackend(cfg.Search)
	if err != nil {
		logger.Fatal("Failed to resolve search backend", zap.Error(err))
	}

	skew := time.Duration(cfg.Auth.ClockSkewSec) * time.Second
	replays := replayrepo.New(store, cfg.Storage.KeyPrefix, 2*skew)
	receipts := receiptrepo.New(store, cfg.Storage.KeyPrefix,
		time.Duration(cfg.Purchase.ReceiptTTLHours)*time.Hour)
	limiter := ratelimitrepo.New(store, cfg.Storage.KeyPrefix,
		time.Duration(cfg.Purchase.RateWindowSec)*time.Second, cfg.Purchase.RateCapacity, logger)

	authSvc := authuc.New(priv, cfg.Auth.KeyID, replays, logger).
		WithTTL(time.Duration(cfg.Auth.TokenTTLSec) * time.Second).
		WithClockSkew(skew)
	searchSvc := searchuc.New(backend, logger).
		WithTimeout(time.Duration(cfg.Search.TimeoutSec) * time.Second)
	purchaseSvc := purchaseuc.New(receipts, limiter, signer, logger)
	healthSvc := healthuc.New(store, searchSvc)

	if err := searchSvc.Initialize(ctx); err != nil {
		logger.Fatal("Failed to initialize search backend", zap.Error(err))
	}

	server := chiTransport.NewServer(
		authSvc, searchSvc, purchaseSvc, healthSvc,
		cfg.Auth.KeyID, signer.PublicKeyBase64(), logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	// Ordered shutdown: drain in-flight requests, then release the backend,
	// then the store.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during HTTP shutdown", zap.Error(err))
	}
	if err := searchSvc.Cleanup(shutdownCtx); err != nil {
		logger.Error("Error during backend cleanup", zap.Error(err))
	}
	store.Close()

	logger.Info("Server stopped gracefully")
}

// buildBackend resolves the configured backend variant.
func buildBackend(cfg config.SearchConfig) (domain.SearchBackend, error) {
	kind, err := cfg.Kind()
	if err != nil {
		return nil, err
	}
	switch kind {
	case config.BackendRemote:
		return remoteBackend.New(cfg.RemoteURL).
			WithTimeout(time.Duration(cfg.TimeoutSec) * time.Second), nil
	default:
		idx := localBackend.New(cfg.SeedFile)
		if cfg.MinScore > 0 {
			idx.WithMinScore(cfg.MinScore)
		}
		return idx, nil
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    domain.CodeServerError,
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
