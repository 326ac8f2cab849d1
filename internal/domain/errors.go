package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifica os erros que podem cruzar a fronteira do gate
type ErrorKind string

const (
	KindClientThrottled     ErrorKind = "client_throttled"
	KindClientBlocked       ErrorKind = "client_blocked"
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindUpstreamError       ErrorKind = "upstream_error"
	KindTimeout             ErrorKind = "timeout"
	KindMethodNotAllowed    ErrorKind = "method_not_allowed"
)

// Mensagens fixas devolvidas ao chamador
const (
	MsgSlowDown         = "Too many requests. Please wait a moment."
	MsgTooManyRequests  = "Too many requests."
	MsgInvalidRequest   = "Invalid request."
	MsgUnavailable      = "Service unavailable."
	MsgTimeout          = "Request timed out."
	MsgMethodNotAllowed = "Method not allowed."
)

// GateError carrega a classificação, o status HTTP e a mensagem pública.
// Err guarda a causa interna apenas para logs.
type GateError struct {
	Kind       ErrorKind
	Status     int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *GateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Kind, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

func (e *GateError) Unwrap() error {
	return e.Err
}

// NewThrottledError cria um erro de limite suave (retentável)
func NewThrottledError(message string, retryAfter time.Duration, cause error) *GateError {
	return &GateError{
		Kind:       KindClientThrottled,
		Status:     http.StatusTooManyRequests,
		Message:    message,
		RetryAfter: retryAfter,
		Err:        cause,
	}
}

// NewBlockedError cria um erro de bloqueio (persistente até o fim da janela)
func NewBlockedError(retryAfter time.Duration) *GateError {
	return &GateError{
		Kind:       KindClientBlocked,
		Status:     http.StatusTooManyRequests,
		Message:    MsgTooManyRequests,
		RetryAfter: retryAfter,
	}
}

// NewInvalidRequestError cria um erro de requisição inválida
func NewInvalidRequestError(cause error) *GateError {
	return &GateError{
		Kind:    KindInvalidRequest,
		Status:  http.StatusBadRequest,
		Message: MsgInvalidRequest,
		Err:     cause,
	}
}

// NewUnavailableError cria um erro de serviço indisponível
func NewUnavailableError(cause error) *GateError {
	return &GateError{
		Kind:    KindUpstreamUnavailable,
		Status:  http.StatusServiceUnavailable,
		Message: MsgUnavailable,
		Err:     cause,
	}
}

// NewUpstreamError cria um erro que repassa o status do webhook
func NewUpstreamError(status int, message string, cause error) *GateError {
	return &GateError{
		Kind:    KindUpstreamError,
		Status:  status,
		Message: message,
		Err:     cause,
	}
}

// NewTimeoutError cria um erro de timeout do webhook
func NewTimeoutError(cause error) *GateError {
	return &GateError{
		Kind:    KindTimeout,
		Status:  http.StatusGatewayTimeout,
		Message: MsgTimeout,
		Err:     cause,
	}
}

// NewMethodNotAllowedError cria um erro para métodos diferentes de POST
func NewMethodNotAllowedError() *GateError {
	return &GateError{
		Kind:    KindMethodNotAllowed,
		Status:  http.StatusMethodNotAllowed,
		Message: MsgMethodNotAllowed,
	}
}

// AsGateError classifica qualquer erro; o que não for GateError vira indisponibilidade
func AsGateError(err error) *GateError {
	if err == nil {
		return nil
	}
	var gateErr *GateError
	if errors.As(err, &gateErr) {
		return gateErr
	}
	return NewUnavailableError(err)
}
