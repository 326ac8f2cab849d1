package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		name        string
		input       interface{}
		expected    string
		expectedErr error
	}{
		{name: "Plain text", input: "Olá, quero automatizar meu atendimento", expected: "Olá, quero automatizar meu atendimento"},
		{name: "Script block removed", input: "<script>alert(1)</script>hello", expected: "hello"},
		{name: "Multiline script block removed", input: "<SCRIPT type=\"x\">\nalert(1)\n</Script>hi", expected: "hi"},
		{name: "HTML tags removed", input: "<b>bold</b> and <i>italic</i>", expected: "bold and italic"},
		{name: "Javascript protocol removed", input: "click JavaScript:alert(1)", expected: "click alert(1)"},
		{name: "Event handler removed", input: "img onerror = x", expected: "img  x"},
		{name: "Null bytes removed", input: "he\x00llo", expected: "hello"},
		{name: "Whitespace trimmed", input: "   hello   ", expected: "hello"},
		{name: "Javascript protocol reassembled", input: "javajavascript:script:x", expected: "x"},
		{name: "Not a string", input: 42, expectedErr: ErrMessageNotString},
		{name: "Nil", input: nil, expectedErr: ErrMessageNotString},
		{name: "Empty", input: "", expectedErr: ErrMessageEmpty},
		{name: "Only markup", input: "<p></p>   ", expectedErr: ErrMessageEmpty},
		{name: "Exactly max length", input: strings.Repeat("a", MaxMessageLength), expected: strings.Repeat("a", MaxMessageLength)},
		{name: "Over max length", input: strings.Repeat("a", MaxMessageLength+1), expectedErr: ErrMessageTooLong},
		{name: "Multibyte characters count once", input: strings.Repeat("é", MaxMessageLength), expected: strings.Repeat("é", MaxMessageLength)},
		{name: "Control heavy string", input: "ab" + strings.Repeat("\x01", 10), expectedErr: ErrMessageNotPrintable},
		{name: "Short control string skips ratio check", input: "a\x01\x01\x01b", expected: "a\x01\x01\x01b"},
		{name: "Ratio at threshold accepted", input: strings.Repeat("a", 7) + strings.Repeat("\x02", 6) + strings.Repeat("a", 7), expected: strings.Repeat("a", 7) + strings.Repeat("\x02", 6) + strings.Repeat("a", 7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := SanitizeMessage(tt.input)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Empty(t, result)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSanitizeMessage_Idempotent(t *testing.T) {
	inputs := []string{
		"<script>alert(1)</script>hello",
		"<scr<script></script>ipt>alert(1)</script>ok",
		"ononclick==x",
		"javajavascript:script:void(0)",
		"<<b>i>text</<b>i>",
		"  spaced <br/> words  ",
		"onload=onload=hi",
		"Preciso de um orçamento para 3 robôs",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := SanitizeMessage(input)
			if err != nil {
				return
			}

			second, err := SanitizeMessage(first)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestStripMessage_NoResidualPatterns(t *testing.T) {
	result := StripMessage("ononclick==x javajavascript:script: <<b>i>")

	assert.NotRegexp(t, `(?i)on\w+\s*=`, result)
	assert.NotContains(t, strings.ToLower(result), "javascript:")
	assert.NotRegexp(t, `<[^>]+>`, result)
}

func TestSanitizeSessionID(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{name: "Valid session", input: "sess_1700000000_abc-def", expected: "sess_1700000000_abc-def"},
		{name: "Invalid characters removed", input: "abc!@#$%def ghi", expected: "abcdefghi"},
		{name: "Truncated to max length", input: strings.Repeat("x", 100), expected: strings.Repeat("x", MaxSessionIDLength)},
		{name: "Only invalid characters", input: "!!!", expected: FallbackSessionID},
		{name: "Empty string", input: "", expected: FallbackSessionID},
		{name: "Missing", input: nil, expected: FallbackSessionID},
		{name: "Wrong type", input: 12345, expected: FallbackSessionID},
		{name: "Non ASCII letters removed", input: "sessão-1", expected: "sesso-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeSessionID(tt.input)

			assert.Equal(t, tt.expected, result)
			assert.LessOrEqual(t, len(result), MaxSessionIDLength)
			assert.Regexp(t, `^[A-Za-z0-9_-]+$`, result)
		})
	}
}
