package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/logger"
	"chat-gateway/internal/metrics"
	"chat-gateway/internal/security"
	"chat-gateway/internal/webhook"
)

// Rótulos de desfecho usados nas métricas
const (
	outcomeSuccess       = "success"
	outcomeThrottled     = "throttled"
	outcomeBlocked       = "blocked"
	outcomeInvalid       = "invalid_request"
	outcomeUnavailable   = "unavailable"
	outcomeUpstreamError = "upstream_error"
	outcomeTimeout       = "timeout"
)

// ChatGatewayService protege e repassa um turno de chat ao webhook de automação
type ChatGatewayService struct {
	limiter  domain.RateLimiterService
	webhook  domain.WebhookClient
	verifier *security.SignatureVerifier
	logger   domain.Logger
	now      func() time.Time
}

// NewChatGatewayService cria o gate. verifier pode ser nil (assinatura desligada).
func NewChatGatewayService(
	limiter domain.RateLimiterService,
	webhookClient domain.WebhookClient,
	verifier *security.SignatureVerifier,
	logger domain.Logger,
) *ChatGatewayService {
	return &ChatGatewayService{
		limiter:  limiter,
		webhook:  webhookClient,
		verifier: verifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WebhookConfigured indica se o gate consegue despachar mensagens
func (s *ChatGatewayService) WebhookConfigured() bool {
	return s.webhook != nil && s.webhook.Configured()
}

// Handle executa, em ordem: rate limit, parse do corpo, assinatura opcional,
// sanitização, despacho ao webhook e mapeamento de erros
func (s *ChatGatewayService) Handle(ctx context.Context, req domain.GatewayRequest) (*domain.ChatResponse, error) {
	log := s.logger.WithContext(ctx)

	if gateErr := s.checkRateLimit(ctx, req.ClientIP, log); gateErr != nil {
		return nil, gateErr
	}

	chatReq, gateErr := s.parseRequest(req, log)
	if gateErr != nil {
		metrics.RecordRequest(outcomeInvalid)
		return nil, gateErr
	}

	if !s.WebhookConfigured() {
		log.Error("Missing webhook URL", webhook.ErrNotConfigured, nil)
		metrics.RecordRequest(outcomeUnavailable)
		return nil, domain.NewUnavailableError(webhook.ErrNotConfigured)
	}

	ctx = logger.ContextWithSession(ctx, chatReq.SessionID)
	payload := domain.WebhookPayload{
		Message:   chatReq.Message,
		SessionID: chatReq.SessionID,
		Timestamp: s.now().UnixMilli(),
	}

	response, err := s.webhook.Forward(ctx, payload, req.ClientIP)
	if err != nil {
		return nil, s.mapUpstreamError(ctx, err)
	}

	metrics.RecordRequest(outcomeSuccess)
	s.logger.WithContext(ctx).Debug("Chat message forwarded", map[string]interface{}{
		"segments": len(response.Segments),
		"success":  response.Success,
	})

	return response, nil
}

func (s *ChatGatewayService) checkRateLimit(ctx context.Context, clientIP string, log domain.Logger) *domain.GateError {
	result, err := s.limiter.CheckLimit(ctx, clientIP)
	if err != nil {
		log.Error("Rate limit check failed", err, nil)
		metrics.RecordRequest(outcomeUnavailable)
		return domain.NewUnavailableError(err)
	}

	if result.Allowed() {
		return nil
	}

	retryAfter := result.ResetTime.Sub(s.now())
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	if result.Decision == domain.DecisionBlocked {
		metrics.RecordRequest(outcomeBlocked)
		return domain.NewBlockedError(retryAfter)
	}

	metrics.RecordRequest(outcomeThrottled)
	return domain.NewThrottledError(domain.MsgSlowDown, retryAfter, nil)
}

// parseRequest decodifica o corpo, confere a assinatura e sanitiza os campos
func (s *ChatGatewayService) parseRequest(req domain.GatewayRequest, log domain.Logger) (*domain.InboundChatRequest, *domain.GateError) {
	if len(req.Body) > security.MaxBodyBytes {
		log.Debug("Rejected oversized body", map[string]interface{}{"bytes": len(req.Body)})
		return nil, domain.NewInvalidRequestError(security.ErrBodyTooLarge)
	}

	var body interface{}
	if err := json.Unmarshal(req.Body, &body); err != nil {
		log.Debug("Rejected malformed body", map[string]interface{}{"error": err.Error()})
		return nil, domain.NewInvalidRequestError(err)
	}

	fields, ok := body.(map[string]interface{})
	if !ok || fields == nil {
		return nil, domain.NewInvalidRequestError(errors.New("body is not a JSON object"))
	}

	if s.verifier != nil {
		rawMessage, _ := fields["message"].(string)
		sig := req.Signature
		if err := s.verifier.Verify(rawMessage, sig.Nonce, sig.Timestamp, sig.Signature); err != nil {
			log.Warn("Rejected request signature", map[string]interface{}{"reason": err.Error()})
			return nil, domain.NewInvalidRequestError(err)
		}
	}

	message, err := security.SanitizeMessage(fields["message"])
	if err != nil {
		log.Debug("Rejected message", map[string]interface{}{"reason": err.Error()})
		return nil, domain.NewInvalidRequestError(err)
	}

	return &domain.InboundChatRequest{
		Message:   message,
		SessionID: security.SanitizeSessionID(fields["sessionId"]),
	}, nil
}

// mapUpstreamError traduz falhas do webhook para a taxonomia do gate
func (s *ChatGatewayService) mapUpstreamError(ctx context.Context, err error) *domain.GateError {
	log := s.logger.WithContext(ctx)

	var statusErr *webhook.StatusError
	switch {
	case errors.Is(err, webhook.ErrTimeout):
		log.Warn("Webhook timed out", map[string]interface{}{"error": err.Error()})
		metrics.RecordRequest(outcomeTimeout)
		return domain.NewTimeoutError(err)

	case errors.Is(err, webhook.ErrBudgetExhausted):
		log.Warn("Outbound budget exhausted", nil)
		metrics.RecordRequest(outcomeThrottled)
		return domain.NewThrottledError(domain.MsgTooManyRequests, time.Second, err)

	case errors.As(err, &statusErr):
		log.Error("Webhook returned error", err, map[string]interface{}{
			"status":  statusErr.StatusCode,
			"message": statusErr.Message,
		})
		if statusErr.StatusCode == http.StatusTooManyRequests {
			metrics.RecordRequest(outcomeThrottled)
			return domain.NewThrottledError(domain.MsgTooManyRequests, 0, err)
		}
		// 1xx e 3xx não podem ser repassados como resposta de erro
		if statusErr.StatusCode < http.StatusBadRequest {
			metrics.RecordRequest(outcomeUnavailable)
			return domain.NewUnavailableError(err)
		}
		metrics.RecordRequest(outcomeUpstreamError)
		return domain.NewUpstreamError(statusErr.StatusCode, statusErr.Message, err)

	default:
		log.Error("Webhook call failed", err, nil)
		metrics.RecordRequest(outcomeUnavailable)
		return domain.NewUnavailableError(fmt.Errorf("forward: %w", err))
	}
}
