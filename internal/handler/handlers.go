package handler

import (
	"io"
	"math"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/metrics"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/security"
)

const (
	// ChatPath é a única rota pública de mensagens
	ChatPath = "/api/chat"

	serviceName = "Chat Gateway"
	version     = "1.0.0"
)

// Handlers contém os handlers da API
type Handlers struct {
	gateway      domain.ChatGateway
	limiter      domain.RateLimiterService
	logger       domain.Logger
	adminEnabled bool
	startTime    time.Time
}

// NewHandlers cria uma nova instância dos handlers
func NewHandlers(gateway domain.ChatGateway, limiter domain.RateLimiterService, logger domain.Logger, adminEnabled bool) *Handlers {
	return &Handlers{
		gateway:      gateway,
		limiter:      limiter,
		logger:       logger,
		adminEnabled: adminEnabled,
		startTime:    time.Now(),
	}
}

// SetupRoutes configura as rotas da API
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Métodos não suportados respondem 405 antes de qualquer parse ou contagem
	router.HandleMethodNotAllowed = true
	router.Use(middleware.NewRequestContextMiddleware(h.logger))
	router.NoMethod(h.MethodNotAllowedHandler)

	router.POST(ChatPath, h.ChatHandler)

	// Rotas operacionais
	router.GET("/health", h.HealthHandler)
	router.GET("/stats", h.StatsHandler)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	if !h.adminEnabled {
		return
	}

	admin := router.Group("/admin")
	{
		admin.GET("/status", h.AdminStatusHandler)
		admin.POST("/reset", h.AdminResetHandler)
	}
}

// ChatHandler recebe um turno do widget e delega ao gate
func (h *Handlers) ChatHandler(c *gin.Context) {
	ctx := c.Request.Context()

	// Lê um byte além do limite para o gate distinguir corpos grandes demais.
	// O tamanho só é avaliado depois do rate limit, então abuso continua contando.
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, security.MaxBodyBytes+1))
	if err != nil {
		h.logger.WithContext(ctx).Debug("Failed to read request body", map[string]interface{}{
			"error": err.Error(),
		})
		body = nil
	}

	response, err := h.gateway.Handle(ctx, domain.GatewayRequest{
		Body:     body,
		ClientIP: middleware.GetClientIP(c),
		Signature: domain.SignatureHeaders{
			Nonce:     c.GetHeader("X-Chat-Nonce"),
			Timestamp: c.GetHeader("X-Chat-Timestamp"),
			Signature: c.GetHeader("X-Chat-Signature"),
		},
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// MethodNotAllowedHandler responde 405 com o corpo de erro padrão
func (h *Handlers) MethodNotAllowedHandler(c *gin.Context) {
	if c.Request.URL.Path == ChatPath {
		c.Header("Allow", http.MethodPost)
	}
	h.writeError(c, domain.NewMethodNotAllowedError())
}

// writeError traduz qualquer erro para {"error": mensagem}; detalhes internos ficam no log
func (h *Handlers) writeError(c *gin.Context, err error) {
	gateErr := domain.AsGateError(err)

	if gateErr.RetryAfter > 0 {
		seconds := int(math.Ceil(gateErr.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(seconds))
	}

	if gateErr.Status >= http.StatusInternalServerError {
		h.logger.WithContext(c.Request.Context()).Warn("Chat request failed", map[string]interface{}{
			"kind":   string(gateErr.Kind),
			"status": gateErr.Status,
		})
	}

	c.AbortWithStatusJSON(gateErr.Status, gin.H{"error": gateErr.Message})
}

// HealthHandler implementa health check básico
func (h *Handlers) HealthHandler(c *gin.Context) {
	status := http.StatusOK
	storageStatus := "healthy"

	if err := h.limiter.Health(c.Request.Context()); err != nil {
		h.logger.WithContext(c.Request.Context()).Error("Storage health check failed", err, nil)
		status = http.StatusServiceUnavailable
		storageStatus = "unhealthy"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}

	response := gin.H{
		"status":    overall,
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version,
		"storage":   storageStatus,
	}

	// Estado de configuração só aparece para operadores
	if h.adminEnabled {
		response["webhook_configured"] = h.gateway.WebhookConfigured()
	}

	c.JSON(status, response)
}

// StatsHandler implementa endpoint de estatísticas de runtime
func (h *Handlers) StatsHandler(c *gin.Context) {
	ctx := c.Request.Context()

	uptime := time.Since(h.startTime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	records, err := h.limiter.ActiveRecords(ctx)
	if err != nil {
		h.logger.WithContext(ctx).Error("Failed to count rate records", err, nil)
		records = -1
	}

	policy := h.limiter.Config()

	rateLimit := gin.H{
		"active_records": records,
		"max_requests":   policy.MaxRequests,
		"block_after":    policy.BlockThreshold(),
		"window_seconds": int64(policy.Window.Seconds()),
	}

	// Só o storage em memória sabe contar bloqueados sem varrer o Redis
	if stats := h.limiter.StoreStats(); stats != nil {
		if blocked, ok := stats["blocked_entries"]; ok {
			rateLimit["blocked_records"] = blocked
		}
		if storeType, ok := stats["type"]; ok {
			rateLimit["storage"] = storeType
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"service":        serviceName,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime":         uptime.String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"rate_limit":     rateLimit,
		"system": gin.H{
			"go_version":   runtime.Version(),
			"goroutines":   runtime.NumGoroutine(),
			"memory_alloc": formatBytes(m.Alloc),
			"memory_total": formatBytes(m.TotalAlloc),
			"memory_sys":   formatBytes(m.Sys),
			"gc_runs":      m.NumGC,
		},
	})
}

// AdminStatusHandler mostra o registro de rate limit de um cliente
func (h *Handlers) AdminStatusHandler(c *gin.Context) {
	ctx := c.Request.Context()
	key := strings.TrimSpace(c.Query("key"))

	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "key parameter is required",
		})
		return
	}

	record, err := h.limiter.GetStatus(ctx, key)
	if err != nil {
		h.logger.WithContext(ctx).Error("Failed to get rate limiter status", err, map[string]interface{}{
			"key": key,
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_server_error",
			"message": "Failed to retrieve rate limiter status",
		})
		return
	}

	policy := h.limiter.Config()
	response := gin.H{
		"key":       key,
		"exists":    record != nil,
		"limit":     policy.MaxRequests,
		"current":   0,
		"remaining": policy.MaxRequests,
		"blocked":   false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if record != nil {
		remaining := policy.MaxRequests - record.Count
		if remaining < 0 {
			remaining = 0
		}
		response["current"] = record.Count
		response["remaining"] = remaining
		response["blocked"] = record.Blocked
		response["reset_time"] = record.WindowStart.Add(policy.Window).Unix()
	}

	c.JSON(http.StatusOK, response)
}

// AdminResetRequest representa o corpo da requisição para reset
type AdminResetRequest struct {
	Key string `json:"key" binding:"required"`
}

// AdminResetHandler apaga o registro de rate limit de um cliente
func (h *Handlers) AdminResetHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var req AdminResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}

	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "key is required",
		})
		return
	}

	if err := h.limiter.Reset(ctx, req.Key); err != nil {
		h.logger.WithContext(ctx).Error("Failed to reset rate limiter", err, map[string]interface{}{
			"key": req.Key,
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_server_error",
			"message": "Failed to reset rate limiter",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "Rate limiter reset successfully",
		"key":       req.Key,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// formatBytes formata bytes em formato legível
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatUint(bytes, 10) + " B"
	}

	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return strconv.FormatFloat(float64(bytes)/float64(div), 'f', 1, 64) + " " + "KMGTPE"[exp:exp+1] + "B"
}
