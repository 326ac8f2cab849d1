package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// MaxClockSkew é a diferença máxima aceita entre o timestamp assinado e o relógio do servidor
const MaxClockSkew = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing signature headers")
	ErrInvalidTimestamp = errors.New("invalid signature timestamp")
	ErrStaleTimestamp   = errors.New("signature timestamp outside allowed skew")
	ErrBadSignature     = errors.New("signature mismatch")
)

// SignatureVerifier valida assinaturas HMAC-SHA256 de "message:nonce:timestamp"
type SignatureVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewSignatureVerifier cria o verificador. Sem segredo a verificação fica desligada e retorna nil.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	if secret == "" {
		return nil
	}
	return &SignatureVerifier{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// WithClock substitui o relógio usado na checagem de skew
func (v *SignatureVerifier) WithClock(now func() time.Time) *SignatureVerifier {
	v.now = now
	return v
}

// Sign gera a assinatura em base64 para a mensagem, nonce e timestamp (unix ms)
func (v *SignatureVerifier) Sign(message, nonce string, timestampMs int64) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(fmt.Sprintf("%s:%s:%d", message, nonce, timestampMs)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify confere timestamp e assinatura recebidos nos cabeçalhos
func (v *SignatureVerifier) Verify(message, nonce, timestamp, signature string) error {
	if nonce == "" || timestamp == "" || signature == "" {
		return ErrMissingSignature
	}

	timestampMs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}

	skew := v.now().Sub(time.UnixMilli(timestampMs))
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return ErrStaleTimestamp
	}

	expected := v.Sign(message, nonce, timestampMs)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}

	return nil
}
