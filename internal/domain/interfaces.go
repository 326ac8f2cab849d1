package domain

import (
	"context"
	"time"
)

// RateRecordStore define a interface para armazenamento dos registros de rate limit.
// Implementa o Strategy Pattern: memória (padrão) ou Redis.
type RateRecordStore interface {
	// Get recupera o registro atual de uma chave
	Get(ctx context.Context, key string) (*RateRecord, error)

	// Hit executa, de forma atômica por chave, o ciclo completo de contagem:
	// cria ou reinicia a janela, respeita o bloqueio, incrementa e bloqueia
	// quando a contagem ultrapassa blockAfter. Retorna uma cópia do registro.
	Hit(ctx context.Context, key string, window time.Duration, blockAfter int) (*RateRecord, error)

	// Reset limpa os dados de uma chave
	Reset(ctx context.Context, key string) error

	// Sweep remove registros cuja janela começou há mais de maxAge
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)

	// Len retorna a quantidade de registros ativos
	Len(ctx context.Context) (int, error)

	// Health verifica se o storage está saudável
	Health(ctx context.Context) error

	// Close encerra o storage e suas tarefas em segundo plano
	Close() error
}

// StatsReporter é implementado por stores que expõem estatísticas internas
type StatsReporter interface {
	GetStats() map[string]interface{}
}

// RateLimiterService define a interface para o serviço de rate limiting
type RateLimiterService interface {
	// CheckLimit contabiliza uma requisição do cliente e classifica o resultado
	CheckLimit(ctx context.Context, clientKey string) (*RateLimitResult, error)

	// GetStatus retorna o registro atual de um cliente
	GetStatus(ctx context.Context, clientKey string) (*RateRecord, error)

	// Reset limpa os dados de rate limit de um cliente
	Reset(ctx context.Context, clientKey string) error

	// ActiveRecords retorna quantos clientes possuem registro
	ActiveRecords(ctx context.Context) (int, error)

	// Health verifica o storage subjacente
	Health(ctx context.Context) error

	// Config retorna a política em uso
	Config() RateLimitConfig

	// StoreStats retorna as estatísticas do storage, ou nil se ele não as expõe
	StoreStats() map[string]interface{}
}

// WebhookClient define a interface para o webhook de automação
type WebhookClient interface {
	// Forward envia o payload e retorna a resposta já validada
	Forward(ctx context.Context, payload WebhookPayload, clientIP string) (*ChatResponse, error)

	// Configured indica se a URL do webhook está definida
	Configured() bool
}

// ChatGateway define a interface do gate de mensagens de chat
type ChatGateway interface {
	// Handle protege e repassa um único turno de chat
	Handle(ctx context.Context, req GatewayRequest) (*ChatResponse, error)

	// WebhookConfigured indica se o gate consegue despachar mensagens
	WebhookConfigured() bool
}

// Logger define a interface para logging estruturado
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
	WithContext(ctx context.Context) Logger
}
