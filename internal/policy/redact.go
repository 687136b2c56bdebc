// Package policy masks personal data before it reaches logs.
package policy

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Phones need a leading "+" so ISO dates and plain counts survive.
	phonePattern = regexp.MustCompile(`\+\d[\d()\-\s.]{7,}\d`)
	cardPattern  = regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`)
)

// MaskPIIString replaces emails, international phone numbers and card
// numbers in value.
func MaskPIIString(value string) string {
	masked := emailPattern.ReplaceAllString(value, "[email_redacted]")
	masked = phonePattern.ReplaceAllString(masked, "[phone_redacted]")
	masked = cardPattern.ReplaceAllStringFunc(masked, maskCardNumber)
	return masked
}

// MaskPIIJSON masks every string inside payload. Invalid JSON is masked as
// plain text.
func MaskPIIJSON(payload json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return append(json.RawMessage(nil), payload...)
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return json.RawMessage(MaskPIIString(string(payload)))
	}

	encoded, err := json.Marshal(maskValue(decoded))
	if err != nil {
		return append(json.RawMessage(nil), payload...)
	}
	return encoded
}

// LogPreview masks value and cuts it to at most limit runes.
func LogPreview(value string, limit int) string {
	masked := MaskPIIString(strings.TrimSpace(value))
	if limit <= 0 || utf8.RuneCountInString(masked) <= limit {
		return masked
	}
	runes := []rune(masked)
	return string(runes[:limit]) + "…"
}

func maskValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		cloned := make(map[string]any, len(typed))
		for key, child := range typed {
			cloned[key] = maskValue(child)
		}
		return cloned
	case []any:
		cloned := make([]any, 0, len(typed))
		for _, child := range typed {
			cloned = append(cloned, maskValue(child))
		}
		return cloned
	case string:
		return MaskPIIString(typed)
	default:
		return value
	}
}

func maskCardNumber(value string) string {
	digits := make([]rune, 0, len(value))
	for _, char := range value {
		if char >= '0' && char <= '9' {
			digits = append(digits, char)
		}
	}
	if len(digits) < 8 {
		return "[card_redacted]"
	}
	return "**** **** **** " + string(digits[len(digits)-4:])
}
