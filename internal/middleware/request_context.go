package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/logger"
)

const (
	// UnknownClientIP é usado quando nenhum header de proxy identifica o cliente
	UnknownClientIP = "0.0.0.0"

	clientIPKey = "client_ip"
)

// RequestContextMiddleware identifica a requisição e o cliente antes dos handlers
type RequestContextMiddleware struct {
	logger domain.Logger
}

// NewRequestContextMiddleware cria o middleware de contexto
func NewRequestContextMiddleware(logger domain.Logger) gin.HandlerFunc {
	middleware := &RequestContextMiddleware{
		logger: logger,
	}

	return middleware.Handle
}

// Handle grava o IP no contexto do gin e request ID + IP no context.Context
func (m *RequestContextMiddleware) Handle(c *gin.Context) {
	requestID := m.getRequestID(c)
	clientIP := extractClientIP(c)

	c.Set(clientIPKey, clientIP)

	ctx := logger.ContextWithRequestInfo(c.Request.Context(), requestID, clientIP, c.GetHeader("User-Agent"))
	c.Request = c.Request.WithContext(ctx)

	m.logger.WithContext(ctx).Debug("Request received", map[string]interface{}{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	})

	c.Next()
}

// extractClientIP considera apenas headers de proxy.
// Prioridade: CF-Connecting-IP > X-Forwarded-For (primeiro) > X-Real-IP
func extractClientIP(c *gin.Context) string {
	if cf := strings.TrimSpace(c.GetHeader("CF-Connecting-IP")); cf != "" {
		return cf
	}

	// O primeiro IP do X-Forwarded-For é o cliente original
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}

	if xri := strings.TrimSpace(c.GetHeader("X-Real-IP")); xri != "" {
		return xri
	}

	return UnknownClientIP
}

// getRequestID obtém ou gera um Request ID para tracking
func (m *RequestContextMiddleware) getRequestID(c *gin.Context) string {
	if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
		c.Header("X-Request-ID", requestID)
		return requestID
	}

	requestID := uuid.New().String()
	c.Header("X-Request-ID", requestID)
	return requestID
}

// GetClientIP retorna o IP resolvido pelo middleware, ou resolve na hora
func GetClientIP(c *gin.Context) string {
	if ip := c.GetString(clientIPKey); ip != "" {
		return ip
	}
	return extractClientIP(c)
}
