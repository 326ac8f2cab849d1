package domain

import "time"

// RateRecord representa o contador de requisições de um cliente dentro da janela atual
type RateRecord struct {
	ClientKey   string    `json:"clientKey"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"windowStart"`
	Blocked     bool      `json:"blocked"`
}

// RateDecision define o resultado de uma verificação de rate limit
type RateDecision string

const (
	DecisionAllowed   RateDecision = "allowed"
	DecisionThrottled RateDecision = "throttled"
	DecisionBlocked   RateDecision = "blocked"
)

// RateLimitResult representa o resultado de uma verificação de rate limit
type RateLimitResult struct {
	Decision  RateDecision `json:"decision"`
	Count     int          `json:"count"`
	Limit     int          `json:"limit"`
	Remaining int          `json:"remaining"`
	ResetTime time.Time    `json:"resetTime"`
}

// Allowed indica se a requisição pode seguir para o webhook
func (r *RateLimitResult) Allowed() bool {
	return r != nil && r.Decision == DecisionAllowed
}

// RateLimitConfig representa a política de rate limiting em dois níveis
type RateLimitConfig struct {
	MaxRequests   int           `json:"maxRequests"`
	AbuseMargin   int           `json:"abuseMargin"`
	Window        time.Duration `json:"window"`
	SweepInterval time.Duration `json:"sweepInterval"`
}

// BlockThreshold retorna a contagem a partir da qual o cliente é bloqueado.
// A contagem é cumulativa: inclui as requisições já rejeitadas pelo limite suave.
func (c RateLimitConfig) BlockThreshold() int {
	return c.MaxRequests + c.AbuseMargin
}

// RecordMaxAge retorna a idade a partir da qual registros inativos são removidos
func (c RateLimitConfig) RecordMaxAge() time.Duration {
	return 5 * c.Window
}

// SegmentType define os tipos de trecho de uma resposta estruturada
type SegmentType string

const (
	SegmentHeading  SegmentType = "heading"
	SegmentListItem SegmentType = "list-item"
	SegmentText     SegmentType = "text"
)

// Valid verifica se o tipo é um dos tipos conhecidos pelo widget
func (t SegmentType) Valid() bool {
	switch t {
	case SegmentHeading, SegmentListItem, SegmentText:
		return true
	}
	return false
}

// Segment é um trecho tipado da resposta, renderizado em ordem pelo widget
type Segment struct {
	Type    SegmentType `json:"type"`
	Content string      `json:"content"`
}

// ChatResponse é a única forma de resposta repassada ao widget
type ChatResponse struct {
	Success   bool      `json:"success"`
	Segments  []Segment `json:"segments"`
	PlainText string    `json:"plainText"`
}

// InboundChatRequest representa a mensagem já sanitizada de um turno de chat
type InboundChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// WebhookPayload é o corpo enviado ao webhook de automação
type WebhookPayload struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"` // unix ms
}

// SignatureHeaders carrega os cabeçalhos opcionais de assinatura da requisição
type SignatureHeaders struct {
	Nonce     string
	Timestamp string
	Signature string
}

// GatewayRequest representa uma invocação do gate: corpo bruto e identidade do cliente
type GatewayRequest struct {
	Body      []byte
	ClientIP  string
	Signature SignatureHeaders
}

// WebhookConfig representa a configuração do colaborador externo
type WebhookConfig struct {
	URL     string        `json:"url"`
	APIKey  string        `json:"-"`
	Timeout time.Duration `json:"timeout"`
	MaxRPS  float64       `json:"maxRps"`
	Burst   int           `json:"burst"`
}
