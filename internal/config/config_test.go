package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoader_LoadConfig(t *testing.T) {
	tests := []struct {
		name           string
		envVars        map[string]string
		expectError    bool
		expectedMax    int
		expectedMargin int
		expectedWindow int
		expectedSweep  int
	}{
		{
			name:           "Default values",
			envVars:        map[string]string{},
			expectError:    false,
			expectedMax:    5,
			expectedMargin: 3,
			expectedWindow: 60,
			expectedSweep:  300,
		},
		{
			name: "Custom values",
			envVars: map[string]string{
				"RATE_LIMIT_MAX":          "10",
				"RATE_LIMIT_ABUSE_MARGIN": "0",
				"RATE_WINDOW":             "30",
				"SWEEP_INTERVAL":          "120",
			},
			expectError:    false,
			expectedMax:    10,
			expectedMargin: 0,
			expectedWindow: 30,
			expectedSweep:  120,
		},
		{
			name:        "Invalid max requests",
			envVars:     map[string]string{"RATE_LIMIT_MAX": "0"},
			expectError: true,
		},
		{
			name:        "Negative abuse margin",
			envVars:     map[string]string{"RATE_LIMIT_ABUSE_MARGIN": "-1"},
			expectError: true,
		},
		{
			name:        "Invalid window",
			envVars:     map[string]string{"RATE_WINDOW": "0"},
			expectError: true,
		},
		{
			name:        "Non numeric timeout",
			envVars:     map[string]string{"UPSTREAM_TIMEOUT": "thirty"},
			expectError: true,
		},
		{
			name:        "Unknown storage type",
			envVars:     map[string]string{"STORAGE_TYPE": "memcached"},
			expectError: true,
		},
		{
			name:        "Relative webhook URL",
			envVars:     map[string]string{"N8N_WEBHOOK_URL": "/webhook/chat"},
			expectError: true,
		},
		{
			name:        "Invalid admin flag",
			envVars:     map[string]string{"ADMIN_ENABLED": "maybe"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}
			defer func() {
				for key := range tt.envVars {
					os.Unsetenv(key)
				}
			}()

			// Act
			loader := NewConfigLoader()
			config, err := loader.LoadConfig()

			// Assert
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, config)
			assert.Equal(t, tt.expectedMax, config.RateLimitMax)
			assert.Equal(t, tt.expectedMargin, config.AbuseMargin)
			assert.Equal(t, tt.expectedWindow, config.RateWindow)
			assert.Equal(t, tt.expectedSweep, config.SweepInterval)
			assert.Same(t, config, loader.GetConfig())
		})
	}
}

func TestConfigLoader_WebhookSettings(t *testing.T) {
	os.Setenv("N8N_WEBHOOK_URL", "  https://automation.example.com/webhook/chat  ")
	os.Setenv("N8N_API_KEY", "secret-key")
	os.Setenv("UPSTREAM_MAX_RPS", "2.5")
	os.Setenv("UPSTREAM_BURST", "4")
	defer func() {
		os.Unsetenv("N8N_WEBHOOK_URL")
		os.Unsetenv("N8N_API_KEY")
		os.Unsetenv("UPSTREAM_MAX_RPS")
		os.Unsetenv("UPSTREAM_BURST")
	}()

	config, err := NewConfigLoader().LoadConfig()
	require.NoError(t, err)

	webhook := config.Webhook()
	assert.Equal(t, "https://automation.example.com/webhook/chat", webhook.URL)
	assert.Equal(t, "secret-key", webhook.APIKey)
	assert.Equal(t, 30*time.Second, webhook.Timeout)
	assert.Equal(t, 2.5, webhook.MaxRPS)
	assert.Equal(t, 4, webhook.Burst)
}

func TestConfig_RateLimit(t *testing.T) {
	config := &Config{RateLimitMax: 5, AbuseMargin: 3, RateWindow: 60, SweepInterval: 300}

	policy := config.RateLimit()

	assert.Equal(t, 5, policy.MaxRequests)
	assert.Equal(t, 8, policy.BlockThreshold())
	assert.Equal(t, time.Minute, policy.Window)
	assert.Equal(t, 5*time.Minute, policy.SweepInterval)
	assert.Equal(t, 5*time.Minute, policy.RecordMaxAge())
}

func TestConfigLoader_ValidateConfig(t *testing.T) {
	loader := NewConfigLoader()

	valid := func() *Config {
		return &Config{
			RateLimitMax:    5,
			AbuseMargin:     3,
			RateWindow:      60,
			SweepInterval:   300,
			UpstreamTimeout: 30,
			UpstreamBurst:   1,
			StorageType:     "memory",
			RedisDB:         0,
		}
	}

	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "Valid config",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "Valid config with webhook",
			mutate:      func(c *Config) { c.WebhookURL = "http://localhost:5678/webhook/chat" },
			expectError: false,
		},
		{
			name:        "Invalid max requests",
			mutate:      func(c *Config) { c.RateLimitMax = 0 },
			expectError: true,
			errorMsg:    "RATE_LIMIT_MAX must be greater than 0",
		},
		{
			name:        "Invalid Redis DB",
			mutate:      func(c *Config) { c.RedisDB = 16 },
			expectError: true,
			errorMsg:    "REDIS_DB must be between 0 and 15",
		},
		{
			name:        "Webhook without scheme",
			mutate:      func(c *Config) { c.WebhookURL = "automation.example.com/webhook" },
			expectError: true,
			errorMsg:    "N8N_WEBHOOK_URL must be an absolute http(s) URL",
		},
		{
			name:        "Webhook with unsupported scheme",
			mutate:      func(c *Config) { c.WebhookURL = "ftp://automation.example.com/webhook" },
			expectError: true,
			errorMsg:    "N8N_WEBHOOK_URL must be an absolute http(s) URL",
		},
		{
			name: "Budget without burst",
			mutate: func(c *Config) {
				c.UpstreamMaxRPS = 1
				c.UpstreamBurst = 0
			},
			expectError: true,
			errorMsg:    "UPSTREAM_BURST must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)

			err := loader.validateConfig(config)

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetEnvWithDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		expected     string
	}{
		{
			name:         "Environment variable exists",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			expected:     "custom",
		},
		{
			name:         "Environment variable does not exist",
			key:          "NON_EXISTENT_VAR",
			defaultValue: "default",
			envValue:     "",
			expected:     "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			result := getEnvWithDefault(tt.key, tt.defaultValue)
			assert.Equal(t, tt.expected, result)
		})
	}
}
