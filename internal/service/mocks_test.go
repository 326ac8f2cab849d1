package service

import (
	"context"
	"sync"
	"time"

	"chat-gateway/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MockStorage é um mock do RateRecordStore para testes
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Get(ctx context.Context, key string) (*domain.RateRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateRecord), args.Error(1)
}

func (m *MockStorage) Hit(ctx context.Context, key string, window time.Duration, blockAfter int) (*domain.RateRecord, error) {
	args := m.Called(ctx, key, window, blockAfter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateRecord), args.Error(1)
}

func (m *MockStorage) Reset(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorage) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	args := m.Called(ctx, maxAge)
	return args.Int(0), args.Error(1)
}

func (m *MockStorage) Len(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStorage) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockLogger é um mock do Logger para testes
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Info(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, err error, fields map[string]interface{}) {
	m.Called(msg, err, fields)
}

func (m *MockLogger) WithContext(ctx context.Context) domain.Logger {
	args := m.Called(ctx)
	return args.Get(0).(domain.Logger)
}

// newQuietLogger aceita qualquer chamada de log
func newQuietLogger() *MockLogger {
	logger := &MockLogger{}
	logger.On("Debug", mock.Anything, mock.Anything).Maybe()
	logger.On("Info", mock.Anything, mock.Anything).Maybe()
	logger.On("Warn", mock.Anything, mock.Anything).Maybe()
	logger.On("Error", mock.Anything, mock.Anything, mock.Anything).Maybe()
	logger.On("WithContext", mock.Anything).Return(logger).Maybe()
	return logger
}

// MockRateLimiter é um mock do RateLimiterService
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) CheckLimit(ctx context.Context, clientKey string) (*domain.RateLimitResult, error) {
	args := m.Called(ctx, clientKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateLimitResult), args.Error(1)
}

func (m *MockRateLimiter) GetStatus(ctx context.Context, clientKey string) (*domain.RateRecord, error) {
	args := m.Called(ctx, clientKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateRecord), args.Error(1)
}

func (m *MockRateLimiter) Reset(ctx context.Context, clientKey string) error {
	args := m.Called(ctx, clientKey)
	return args.Error(0)
}

func (m *MockRateLimiter) ActiveRecords(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRateLimiter) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRateLimiter) Config() domain.RateLimitConfig {
	args := m.Called()
	return args.Get(0).(domain.RateLimitConfig)
}

func (m *MockRateLimiter) StoreStats() map[string]interface{} {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(map[string]interface{})
}

// MockWebhookClient é um mock do WebhookClient
type MockWebhookClient struct {
	mock.Mock
}

func (m *MockWebhookClient) Forward(ctx context.Context, payload domain.WebhookPayload, clientIP string) (*domain.ChatResponse, error) {
	args := m.Called(ctx, payload, clientIP)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatResponse), args.Error(1)
}

func (m *MockWebhookClient) Configured() bool {
	args := m.Called()
	return args.Bool(0)
}

// fakeClock é um relógio manual para testes de janela
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
