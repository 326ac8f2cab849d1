package security

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxMessageLength é o tamanho máximo, em caracteres, de uma mensagem sanitizada
	MaxMessageLength = 500

	// MaxSessionIDLength é o tamanho máximo de um session ID
	MaxSessionIDLength = 64

	// MaxBodyBytes limita o corpo bruto aceito antes do parse
	MaxBodyBytes = 64 << 10

	// FallbackSessionID é usado quando o session ID está ausente ou inválido
	FallbackSessionID = "anonymous"

	minPrintableRatio  = 0.7
	ratioCheckMinChars = 10
)

var (
	ErrBodyTooLarge        = errors.New("request body exceeds maximum size")
	ErrMessageNotString    = errors.New("message must be a string")
	ErrMessageEmpty        = errors.New("message is empty after sanitization")
	ErrMessageTooLong      = errors.New("message exceeds maximum length")
	ErrMessageNotPrintable = errors.New("message has too many non-printable characters")
)

var (
	scriptBlockPattern  = regexp.MustCompile(`(?i)<script[\s\S]*?</script>`)
	htmlTagPattern      = regexp.MustCompile(`<[^>]+>`)
	jsProtocolPattern   = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)on\w+\s*=`)
	sessionIDPattern    = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// StripMessage remove bytes nulos, blocos <script>, tags HTML, o protocolo
// javascript: e atributos on*=, repetindo até o texto estabilizar.
// Uma remoção pode montar um novo padrão (ex.: "<scr<b>ipt>"), por isso o laço.
func StripMessage(text string) string {
	for {
		next := strings.ReplaceAll(text, "\x00", "")
		next = scriptBlockPattern.ReplaceAllString(next, "")
		next = htmlTagPattern.ReplaceAllString(next, "")
		next = jsProtocolPattern.ReplaceAllString(next, "")
		next = eventHandlerPattern.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)

		if next == text {
			return next
		}
		text = next
	}
}

// SanitizeMessage valida o campo message de um corpo JSON já decodificado
func SanitizeMessage(raw interface{}) (string, error) {
	text, ok := raw.(string)
	if !ok {
		return "", ErrMessageNotString
	}

	text = StripMessage(text)

	length := utf8.RuneCountInString(text)
	if length == 0 {
		return "", ErrMessageEmpty
	}
	if length > MaxMessageLength {
		return "", ErrMessageTooLong
	}

	if length > ratioCheckMinChars {
		printable := 0
		for _, r := range text {
			if isPrintable(r) {
				printable++
			}
		}
		if float64(printable)/float64(length) < minPrintableRatio {
			return "", ErrMessageNotPrintable
		}
	}

	return text, nil
}

// isPrintable aceita ASCII visível e qualquer caractere a partir de U+00A0
func isPrintable(r rune) bool {
	return (r >= 0x20 && r <= 0x7E) || r >= 0xA0
}

// SanitizeSessionID reduz o session ID a [A-Za-z0-9_-] com no máximo 64 caracteres
func SanitizeSessionID(raw interface{}) string {
	session, ok := raw.(string)
	if !ok {
		return FallbackSessionID
	}

	session = sessionIDPattern.ReplaceAllString(session, "")
	if len(session) > MaxSessionIDLength {
		session = session[:MaxSessionIDLength]
	}
	if session == "" {
		return FallbackSessionID
	}
	return session
}
