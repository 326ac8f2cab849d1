package service

import (
	"context"
	"fmt"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/metrics"
)

// RateLimiterService implementa o limite em dois níveis por cliente:
// limite suave (throttle) e bloqueio por abuso até o fim da janela
type RateLimiterService struct {
	storage domain.RateRecordStore
	config  domain.RateLimitConfig
	logger  domain.Logger
}

// NewRateLimiterService cria uma nova instância do serviço
func NewRateLimiterService(
	storage domain.RateRecordStore,
	config domain.RateLimitConfig,
	logger domain.Logger,
) domain.RateLimiterService {
	return &RateLimiterService{
		storage: storage,
		config:  config,
		logger:  logger,
	}
}

// CheckLimit contabiliza a requisição e classifica o resultado.
// O storage faz o ciclo completo de forma atômica; aqui só se interpreta o registro.
func (s *RateLimiterService) CheckLimit(ctx context.Context, clientKey string) (*domain.RateLimitResult, error) {
	storageKey := s.buildStorageKey(clientKey)

	record, err := s.storage.Hit(ctx, storageKey, s.config.Window, s.config.BlockThreshold())
	if err != nil {
		s.logger.Error("Failed to record request", err, map[string]interface{}{
			"storage_key": storageKey,
		})
		return nil, fmt.Errorf("failed to record request: %w", err)
	}

	remaining := s.config.MaxRequests - record.Count
	if remaining < 0 {
		remaining = 0
	}

	result := &domain.RateLimitResult{
		Decision:  domain.DecisionAllowed,
		Count:     record.Count,
		Limit:     s.config.MaxRequests,
		Remaining: remaining,
		ResetTime: record.WindowStart.Add(s.config.Window),
	}

	switch {
	case record.Blocked:
		result.Decision = domain.DecisionBlocked
		s.logger.Warn("Client blocked", map[string]interface{}{
			"storage_key":   storageKey,
			"current_count": record.Count,
			"threshold":     s.config.BlockThreshold(),
			"reset_time":    result.ResetTime,
		})

	case record.Count > s.config.MaxRequests:
		result.Decision = domain.DecisionThrottled
		s.logger.Info("Client throttled", map[string]interface{}{
			"storage_key":   storageKey,
			"current_count": record.Count,
			"limit":         s.config.MaxRequests,
		})

	default:
		s.logger.Debug("Request allowed", map[string]interface{}{
			"storage_key":   storageKey,
			"current_count": record.Count,
			"limit":         s.config.MaxRequests,
			"remaining":     remaining,
		})
	}

	return result, nil
}

// GetStatus retorna o registro atual de um cliente
func (s *RateLimiterService) GetStatus(ctx context.Context, clientKey string) (*domain.RateRecord, error) {
	record, err := s.storage.Get(ctx, s.buildStorageKey(clientKey))
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return record, nil
}

// Reset limpa os dados de rate limit de um cliente
func (s *RateLimiterService) Reset(ctx context.Context, clientKey string) error {
	storageKey := s.buildStorageKey(clientKey)

	if err := s.storage.Reset(ctx, storageKey); err != nil {
		return fmt.Errorf("failed to reset key: %w", err)
	}

	s.logger.Info("Rate limit reset", map[string]interface{}{
		"client_key":  clientKey,
		"storage_key": storageKey,
	})

	return nil
}

// ActiveRecords retorna quantos clientes possuem registro e atualiza o gauge
func (s *RateLimiterService) ActiveRecords(ctx context.Context) (int, error) {
	count, err := s.storage.Len(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	metrics.SetRateRecords(count)
	return count, nil
}

// Health verifica o storage subjacente
func (s *RateLimiterService) Health(ctx context.Context) error {
	return s.storage.Health(ctx)
}

// Config retorna a política em uso
func (s *RateLimiterService) Config() domain.RateLimitConfig {
	return s.config
}

// StoreStats repassa as estatísticas do storage quando disponíveis
func (s *RateLimiterService) StoreStats() map[string]interface{} {
	reporter, ok := s.storage.(domain.StatsReporter)
	if !ok {
		return nil
	}
	return reporter.GetStats()
}

// buildStorageKey constrói a chave de storage no formato padrão
func (s *RateLimiterService) buildStorageKey(clientKey string) string {
	return fmt.Sprintf("rate_limit:ip:%s", clientKey)
}
