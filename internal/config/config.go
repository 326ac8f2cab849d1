package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"chat-gateway/internal/domain"

	"github.com/joho/godotenv"
)

// Config representa todas as configurações da aplicação
type Config struct {
	// Server Configuration
	ServerPort string
	GinMode    string

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// Automation Webhook Configuration
	WebhookURL      string
	WebhookAPIKey   string
	UpstreamTimeout int // em segundos
	UpstreamMaxRPS  float64
	UpstreamBurst   int

	// Rate Limiting Configuration
	RateLimitMax  int
	AbuseMargin   int
	RateWindow    int // em segundos
	SweepInterval int // em segundos
	StorageType   string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Security / Admin
	SigningSecret string
	AdminEnabled  bool
}

// RateLimit converte a configuração para a política de rate limiting
func (c *Config) RateLimit() domain.RateLimitConfig {
	return domain.RateLimitConfig{
		MaxRequests:   c.RateLimitMax,
		AbuseMargin:   c.AbuseMargin,
		Window:        time.Duration(c.RateWindow) * time.Second,
		SweepInterval: time.Duration(c.SweepInterval) * time.Second,
	}
}

// Webhook converte a configuração para o cliente do webhook
func (c *Config) Webhook() domain.WebhookConfig {
	return domain.WebhookConfig{
		URL:     c.WebhookURL,
		APIKey:  c.WebhookAPIKey,
		Timeout: time.Duration(c.UpstreamTimeout) * time.Second,
		MaxRPS:  c.UpstreamMaxRPS,
		Burst:   c.UpstreamBurst,
	}
}

// ConfigLoader carrega a configuração de .env e do ambiente
type ConfigLoader struct {
	config *Config
}

// NewConfigLoader cria uma nova instância do ConfigLoader
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

// LoadConfig carrega as configurações do .env e das variáveis de ambiente
func (c *ConfigLoader) LoadConfig() (*Config, error) {
	// Sem .env, segue apenas com as variáveis do sistema
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	config, err := c.loadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	c.config = config
	return config, nil
}

// Reload recarrega todas as configurações
func (c *ConfigLoader) Reload() error {
	_, err := c.LoadConfig()
	return err
}

// GetConfig retorna a configuração atual
func (c *ConfigLoader) GetConfig() *Config {
	return c.config
}

// loadFromEnv carrega configurações das variáveis de ambiente
func (c *ConfigLoader) loadFromEnv() (*Config, error) {
	config := &Config{
		ServerPort: getEnvWithDefault("SERVER_PORT", "8080"),
		GinMode:    getEnvWithDefault("GIN_MODE", "debug"),

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "json"),

		WebhookURL:    strings.TrimSpace(os.Getenv("N8N_WEBHOOK_URL")),
		WebhookAPIKey: strings.TrimSpace(os.Getenv("N8N_API_KEY")),

		StorageType:   strings.ToLower(getEnvWithDefault("STORAGE_TYPE", "memory")),
		RedisHost:     getEnvWithDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvWithDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvWithDefault("REDIS_PASSWORD", ""),

		SigningSecret: os.Getenv("CHAT_SIGNING_SECRET"),
	}

	var err error
	if config.UpstreamTimeout, err = getEnvInt("UPSTREAM_TIMEOUT", 30); err != nil {
		return nil, err
	}
	if config.UpstreamMaxRPS, err = getEnvFloat("UPSTREAM_MAX_RPS", 0); err != nil {
		return nil, err
	}
	if config.UpstreamBurst, err = getEnvInt("UPSTREAM_BURST", 1); err != nil {
		return nil, err
	}
	if config.RateLimitMax, err = getEnvInt("RATE_LIMIT_MAX", 5); err != nil {
		return nil, err
	}
	if config.AbuseMargin, err = getEnvInt("RATE_LIMIT_ABUSE_MARGIN", 3); err != nil {
		return nil, err
	}
	if config.RateWindow, err = getEnvInt("RATE_WINDOW", 60); err != nil {
		return nil, err
	}
	if config.SweepInterval, err = getEnvInt("SWEEP_INTERVAL", 300); err != nil {
		return nil, err
	}
	if config.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if config.AdminEnabled, err = getEnvBool("ADMIN_ENABLED", false); err != nil {
		return nil, err
	}

	if err := c.validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateConfig valida se as configurações são válidas
func (c *ConfigLoader) validateConfig(config *Config) error {
	if config.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be greater than 0")
	}

	if config.AbuseMargin < 0 {
		return fmt.Errorf("RATE_LIMIT_ABUSE_MARGIN must not be negative")
	}

	if config.RateWindow <= 0 {
		return fmt.Errorf("RATE_WINDOW must be greater than 0")
	}

	if config.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be greater than 0")
	}

	if config.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be greater than 0")
	}

	if config.UpstreamMaxRPS < 0 {
		return fmt.Errorf("UPSTREAM_MAX_RPS must not be negative")
	}

	if config.UpstreamMaxRPS > 0 && config.UpstreamBurst < 1 {
		return fmt.Errorf("UPSTREAM_BURST must be at least 1 when UPSTREAM_MAX_RPS is set")
	}

	switch config.StorageType {
	case "memory", "redis":
	default:
		return fmt.Errorf("STORAGE_TYPE must be 'memory' or 'redis'")
	}

	if config.RedisDB < 0 || config.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15")
	}

	// A URL é opcional na carga: sem ela o gate responde 503 sem chamar o webhook
	if config.WebhookURL != "" {
		parsed, err := url.Parse(config.WebhookURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("N8N_WEBHOOK_URL must be an absolute http(s) URL")
		}
	}

	return nil
}

// getEnvWithDefault retorna o valor da variável de ambiente ou um valor padrão
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value, err := strconv.Atoi(getEnvWithDefault(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return value, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return value, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return value, nil
}
