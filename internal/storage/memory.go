package storage

import (
	"context"
	"sync"
	"time"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/metrics"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultRecordMaxAge  = 5 * time.Minute
)

// MemoryStorage implementa a interface domain.RateRecordStore usando memória
type MemoryStorage struct {
	data   map[string]*domain.RateRecord
	mutex  sync.RWMutex
	logger domain.Logger
	now    func() time.Time

	sweepInterval time.Duration
	recordMaxAge  time.Duration
	stop          chan struct{}
	closeOnce     sync.Once
}

// MemoryOption configura o MemoryStorage
type MemoryOption func(*MemoryStorage)

// WithClock substitui o relógio (útil em testes)
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStorage) {
		m.now = now
	}
}

// WithSweep define o intervalo da limpeza periódica e a idade máxima dos registros.
// Intervalo zero desliga a goroutine de limpeza.
func WithSweep(interval, maxAge time.Duration) MemoryOption {
	return func(m *MemoryStorage) {
		m.sweepInterval = interval
		m.recordMaxAge = maxAge
	}
}

// NewMemoryStorage cria uma nova instância do MemoryStorage
func NewMemoryStorage(logger domain.Logger, opts ...MemoryOption) *MemoryStorage {
	storage := &MemoryStorage{
		data:          make(map[string]*domain.RateRecord),
		logger:        logger,
		now:           time.Now,
		sweepInterval: defaultSweepInterval,
		recordMaxAge:  defaultRecordMaxAge,
		stop:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(storage)
	}

	// Inicia goroutine de limpeza
	if storage.sweepInterval > 0 {
		go storage.cleanup()
	}

	if logger != nil {
		logger.Info("Memory storage initialized", map[string]interface{}{
			"sweep_interval": storage.sweepInterval.String(),
			"record_max_age": storage.recordMaxAge.String(),
		})
	}

	return storage
}

// Get recupera o registro atual de uma chave
func (m *MemoryStorage) Get(ctx context.Context, key string) (*domain.RateRecord, error) {
	start := time.Now()

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	record, exists := m.data[key]
	if !exists {
		m.logStorageOperation("GET", key, time.Since(start).Seconds()*1000)
		return nil, nil
	}

	// Cria cópia para evitar modificações concorrentes
	result := *record

	m.logStorageOperation("GET", key, time.Since(start).Seconds()*1000)
	return &result, nil
}

// Hit contabiliza uma requisição sob o lock de escrita, tornando o ciclo
// ler-reiniciar-incrementar-bloquear atômico para cada chave
func (m *MemoryStorage) Hit(ctx context.Context, key string, window time.Duration, blockAfter int) (*domain.RateRecord, error) {
	start := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()

	// Janela nova também limpa o bloqueio
	record, exists := m.data[key]
	if !exists || now.Sub(record.WindowStart) > window {
		record = &domain.RateRecord{
			ClientKey:   key,
			Count:       0,
			WindowStart: now,
			Blocked:     false,
		}
		m.data[key] = record
	}

	// Cliente bloqueado não incrementa mais o contador
	if !record.Blocked {
		record.Count++
		if record.Count > blockAfter {
			record.Blocked = true
		}
	}

	result := *record

	m.logStorageOperation("HIT", key, time.Since(start).Seconds()*1000)
	return &result, nil
}

// Reset limpa os dados de uma chave
func (m *MemoryStorage) Reset(ctx context.Context, key string) error {
	start := time.Now()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.data, key)

	m.logStorageOperation("RESET", key, time.Since(start).Seconds()*1000)
	return nil
}

// Sweep remove registros cuja janela começou há mais de maxAge
func (m *MemoryStorage) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0

	for key, record := range m.data {
		if record.WindowStart.Before(cutoff) {
			delete(m.data, key)
			removed++
		}
	}

	metrics.SetRateRecords(len(m.data))
	if removed > 0 {
		metrics.AddSweptRecords(removed)
		if m.logger != nil {
			m.logger.Debug("Memory storage sweep completed", map[string]interface{}{
				"removed_records":   removed,
				"remaining_records": len(m.data),
			})
		}
	}

	return removed, nil
}

// Len retorna a quantidade de registros ativos
func (m *MemoryStorage) Len(ctx context.Context) (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return len(m.data), nil
}

// Health verifica se o storage está saudável
func (m *MemoryStorage) Health(ctx context.Context) error {
	m.mutex.RLock()
	dataSize := len(m.data)
	m.mutex.RUnlock()

	if m.logger != nil {
		m.logger.Debug("Memory storage health check", map[string]interface{}{
			"data_entries": dataSize,
		})
	}

	return nil
}

// Close encerra a limpeza periódica e descarta os registros
func (m *MemoryStorage) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)

		m.mutex.Lock()
		m.data = make(map[string]*domain.RateRecord)
		m.mutex.Unlock()

		if m.logger != nil {
			m.logger.Info("Memory storage closed", nil)
		}
	})
	return nil
}

// cleanup remove registros antigos periodicamente
func (m *MemoryStorage) cleanup() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep(context.Background(), m.recordMaxAge)
		case <-m.stop:
			return
		}
	}
}

// GetStats retorna estatísticas do storage em memória
func (m *MemoryStorage) GetStats() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	blocked := 0
	for _, record := range m.data {
		if record.Blocked {
			blocked++
		}
	}

	return map[string]interface{}{
		"data_entries":    len(m.data),
		"blocked_entries": blocked,
		"type":            "memory",
	}
}

// logStorageOperation registra operações de storage
func (m *MemoryStorage) logStorageOperation(operation, key string, latency float64) {
	if m.logger == nil {
		return
	}

	m.logger.Debug("Storage operation completed", map[string]interface{}{
		"operation": operation,
		"key":       key,
		"latency":   latency,
	})
}
