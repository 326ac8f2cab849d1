package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"chat-gateway/internal/config"
	"chat-gateway/internal/domain"
	"chat-gateway/internal/handler"
	"chat-gateway/internal/logger"
	"chat-gateway/internal/security"
	"chat-gateway/internal/service"
	"chat-gateway/internal/storage"
	"chat-gateway/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// app agrupa o que o servidor precisa e o que deve ser fechado no shutdown
type app struct {
	cfg    *config.Config
	logger domain.Logger
	store  domain.RateRecordStore
	router *gin.Engine
}

// buildApp monta o grafo de dependências a partir da configuração
func buildApp(cfg *config.Config) (*app, error) {
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	policy := cfg.RateLimit()

	// Storage de registros de rate limit
	storageConfig := storage.BuildStorageConfig(
		cfg.StorageType,
		cfg.RedisHost,
		cfg.RedisPort,
		cfg.RedisPassword,
		cfg.RedisDB,
		policy,
	)
	store, err := storage.NewStorageFactory().CreateStorage(storageConfig, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	limiter := service.NewRateLimiterService(store, policy, appLogger)
	client := webhook.NewClient(cfg.Webhook(), appLogger)
	verifier := security.NewSignatureVerifier(cfg.SigningSecret)
	gateway := service.NewChatGatewayService(limiter, client, verifier, appLogger)

	if !gateway.WebhookConfigured() {
		appLogger.Warn("N8N_WEBHOOK_URL is not set; chat requests will return 503", nil)
	}

	handlers := handler.NewHandlers(gateway, limiter, appLogger, cfg.AdminEnabled)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithFormatter(accessLogFormatter))
	handlers.SetupRoutes(router)

	return &app{
		cfg:    cfg,
		logger: appLogger,
		store:  store,
		router: router,
	}, nil
}

// accessLogFormatter formata o log de acesso do gin com o request ID gravado pelo middleware
func accessLogFormatter(param gin.LogFormatterParams) string {
	return fmt.Sprintf("[%s] %s \"%s %s %s %d %s \"%s\" %s\"\n",
		param.TimeStamp.Format("2006/01/02 - 15:04:05"),
		logger.GetRequestID(param.Request.Context()),
		param.Method,
		param.Path,
		param.Request.Proto,
		param.StatusCode,
		param.Latency,
		param.Request.UserAgent(),
		param.ErrorMessage,
	)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewConfigLoader().LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.store.Close()

	a.logger.Info("Starting Chat Gateway", map[string]interface{}{
		"version":      Version,
		"log_level":    cfg.LogLevel,
		"port":         cfg.ServerPort,
		"storage":      cfg.StorageType,
		"signing":      cfg.SigningSecret != "",
		"admin_routes": cfg.AdminEnabled,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:      a.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.UpstreamTimeout)*time.Second + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", map[string]interface{}{
			"addr": server.Addr,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	a.logger.Info("Chat Gateway is running", map[string]interface{}{
		"port": cfg.ServerPort,
		"endpoints": []string{
			"POST " + handler.ChatPath,
			"GET  /health",
			"GET  /stats",
			"GET  /metrics",
		},
		"rate_limit": map[string]interface{}{
			"max_requests": cfg.RateLimitMax,
			"block_after":  cfg.RateLimit().BlockThreshold(),
			"window":       cfg.RateWindow,
		},
	})

	select {
	case err := <-serverErr:
		a.logger.Error("Failed to start server", err, nil)
		return err
	case <-quit:
	}

	a.logger.Info("Shutting down server...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		a.logger.Error("Server forced to shutdown", err, nil)
		return err
	}

	a.logger.Info("Server stopped gracefully", nil)
	return nil
}
