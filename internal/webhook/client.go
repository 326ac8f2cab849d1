package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second

	// maxResponseBytes limita a leitura do corpo devolvido pelo webhook
	maxResponseBytes = 1 << 20
)

var (
	ErrNotConfigured   = errors.New("webhook URL not configured")
	ErrTimeout         = errors.New("webhook request timed out")
	ErrBudgetExhausted = errors.New("outbound request budget exhausted")
	ErrInvalidResponse = errors.New("webhook returned an invalid response body")
)

var tracer = otel.Tracer("chat-gateway/webhook")

// StatusError representa uma resposta não-2xx do webhook
type StatusError struct {
	StatusCode  int
	Message     string
	RawResponse []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Message)
}

// Client envia turnos de chat ao webhook de automação
type Client struct {
	url        string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     domain.Logger
}

// NewClient cria o cliente a partir da configuração carregada do ambiente
func NewClient(cfg domain.WebhookConfig, logger domain.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		url:        strings.TrimSpace(cfg.URL),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}

	// Orçamento global de saída, desligado quando MaxRPS é zero
	if cfg.MaxRPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), burst)
	}

	return client
}

// Configured indica se a URL do webhook está definida
func (c *Client) Configured() bool {
	return c != nil && c.url != ""
}

// Forward envia o payload ao webhook e devolve somente os campos conhecidos da resposta
func (c *Client) Forward(ctx context.Context, payload domain.WebhookPayload, clientIP string) (*domain.ChatResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	if c.limiter != nil && !c.limiter.Allow() {
		return nil, ErrBudgetExhausted
	}

	ctx, span := tracer.Start(ctx, "webhook.forward", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.Int("chat.message.length", len(payload.Message)))

	start := time.Now()
	response, err := c.forward(ctx, payload, clientIP, span)
	elapsed := time.Since(start)

	result := "success"
	if err != nil {
		result = resultLabel(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	metrics.ObserveUpstream(result, elapsed)

	return response, err
}

func (c *Client) forward(ctx context.Context, payload domain.WebhookPayload, clientIP string, span trace.Span) (*domain.ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-forwarded-ip", clientIP)
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &StatusError{
			StatusCode:  resp.StatusCode,
			Message:     extractErrorMessage(resp.StatusCode, respBody),
			RawResponse: respBody,
		}
		if c.logger != nil {
			c.logger.WithContext(ctx).Warn("Webhook returned error status", map[string]interface{}{
				"status":  statusErr.StatusCode,
				"message": statusErr.Message,
			})
		}
		return nil, statusErr
	}

	return shapeResponse(respBody)
}

// classifyTransportError separa timeouts de outras falhas de rede
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("request failed: %w", err)
}

// extractErrorMessage procura error.message, error (string) e message, nessa ordem
func extractErrorMessage(status int, body []byte) string {
	fallback := fmt.Sprintf("API Error: %d", status)

	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fallback
	}

	switch value := parsed["error"].(type) {
	case map[string]interface{}:
		if msg, ok := value["message"].(string); ok && msg != "" {
			return msg
		}
	case string:
		if value != "" {
			return value
		}
	}

	if msg, ok := parsed["message"].(string); ok && msg != "" {
		return msg
	}

	return fallback
}

// shapeResponse valida o corpo de sucesso e descarta campos desconhecidos
func shapeResponse(body []byte) (*domain.ChatResponse, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed == nil {
		return nil, ErrInvalidResponse
	}

	response := &domain.ChatResponse{
		Success:  true,
		Segments: []domain.Segment{},
	}

	if success, ok := parsed["success"].(bool); ok {
		response.Success = success
	}

	if items, ok := parsed["segments"].([]interface{}); ok {
		for _, item := range items {
			if segment, ok := toSegment(item); ok {
				response.Segments = append(response.Segments, segment)
			}
		}
	}

	if plainText, ok := parsed["plainText"].(string); ok {
		response.PlainText = plainText
	}

	return response, nil
}

func toSegment(item interface{}) (domain.Segment, bool) {
	fields, ok := item.(map[string]interface{})
	if !ok {
		return domain.Segment{}, false
	}

	kind, ok := fields["type"].(string)
	if !ok || !domain.SegmentType(kind).Valid() {
		return domain.Segment{}, false
	}

	content, ok := fields["content"].(string)
	if !ok {
		return domain.Segment{}, false
	}

	return domain.Segment{Type: domain.SegmentType(kind), Content: content}, true
}

// resultLabel reduz o erro a um rótulo de baixa cardinalidade para métricas
func resultLabel(err error) string {
	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("status_%dxx", statusErr.StatusCode/100)
	default:
		return "error"
	}
}
