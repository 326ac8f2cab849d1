package storage

import (
	"fmt"
	"strings"
	"time"

	"chat-gateway/internal/domain"
)

// StorageType define os tipos de storage disponíveis
type StorageType string

const (
	RedisStorageType  StorageType = "redis"
	MemoryStorageType StorageType = "memory"
)

// StorageConfig contém configurações para criação de storage
type StorageConfig struct {
	Type          StorageType
	RedisConfig   *RedisConfig
	SweepInterval time.Duration
	RecordMaxAge  time.Duration
}

// RedisConfig contém configurações específicas do Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	Database int
}

// StorageFactory cria instâncias de storage seguindo Strategy Pattern
type StorageFactory struct{}

// NewStorageFactory cria uma nova instância da factory
func NewStorageFactory() *StorageFactory {
	return &StorageFactory{}
}

// CreateStorage cria uma instância de storage baseada na configuração
func (f *StorageFactory) CreateStorage(config *StorageConfig, logger domain.Logger) (domain.RateRecordStore, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}

	switch strings.ToLower(string(config.Type)) {
	case string(RedisStorageType):
		return f.createRedisStorage(config, logger)
	default:
		return f.createMemoryStorage(config, logger), nil
	}
}

// createRedisStorage cria uma instância de Redis storage
func (f *StorageFactory) createRedisStorage(config *StorageConfig, logger domain.Logger) (domain.RateRecordStore, error) {
	redisConfig := config.RedisConfig

	storage, err := NewRedisStorage(redisConfig.Host, redisConfig.Port, redisConfig.Password, redisConfig.Database, config.RecordMaxAge, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis storage: %w", err)
	}

	if logger != nil {
		logger.Info("Redis storage created successfully", map[string]interface{}{
			"host":     redisConfig.Host,
			"port":     redisConfig.Port,
			"database": redisConfig.Database,
		})
	}

	return storage, nil
}

// createMemoryStorage cria uma instância de Memory storage
func (f *StorageFactory) createMemoryStorage(config *StorageConfig, logger domain.Logger) domain.RateRecordStore {
	opts := []MemoryOption{}
	if config.SweepInterval > 0 {
		maxAge := config.RecordMaxAge
		if maxAge <= 0 {
			maxAge = defaultRecordMaxAge
		}
		opts = append(opts, WithSweep(config.SweepInterval, maxAge))
	}

	return NewMemoryStorage(logger, opts...)
}

// GetSupportedTypes retorna os tipos de storage suportados
func (f *StorageFactory) GetSupportedTypes() []StorageType {
	return []StorageType{RedisStorageType, MemoryStorageType}
}

// ValidateConfig valida uma configuração de storage
func (f *StorageFactory) ValidateConfig(config *StorageConfig) error {
	if config == nil {
		return fmt.Errorf("storage config cannot be nil")
	}

	if config.SweepInterval < 0 || config.RecordMaxAge < 0 {
		return fmt.Errorf("sweep settings cannot be negative")
	}

	switch strings.ToLower(string(config.Type)) {
	case string(RedisStorageType):
		return f.validateRedisConfig(config.RedisConfig)
	case string(MemoryStorageType):
		// Memory storage não precisa de configurações específicas
		return nil
	default:
		return fmt.Errorf("unsupported storage type: %s (supported: %v)", config.Type, f.GetSupportedTypes())
	}
}

// validateRedisConfig valida configuração do Redis
func (f *StorageFactory) validateRedisConfig(config *RedisConfig) error {
	if config == nil {
		return fmt.Errorf("Redis config cannot be nil")
	}

	if config.Host == "" {
		return fmt.Errorf("Redis host cannot be empty")
	}

	if config.Port == "" {
		return fmt.Errorf("Redis port cannot be empty")
	}

	if config.Database < 0 || config.Database > 15 {
		return fmt.Errorf("Redis database must be between 0 and 15, got: %d", config.Database)
	}

	return nil
}

// BuildStorageConfig constrói a configuração de storage a partir dos valores carregados do ambiente
func BuildStorageConfig(storageType, redisHost, redisPort, redisPassword string, redisDB int, policy domain.RateLimitConfig) *StorageConfig {
	config := &StorageConfig{
		Type:          StorageType(strings.ToLower(storageType)),
		SweepInterval: policy.SweepInterval,
		RecordMaxAge:  policy.RecordMaxAge(),
	}

	if config.Type == RedisStorageType {
		config.RedisConfig = &RedisConfig{
			Host:     redisHost,
			Port:     redisPort,
			Password: redisPassword,
			Database: redisDB,
		}
	}

	return config
}
