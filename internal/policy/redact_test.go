package policy

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPIIStringMasksCommonPatterns(t *testing.T) {
	masked := MaskPIIString("mail ops@example.com or call +44 20 7946 0958, card 4111 1111 1111 1111")

	assert.NotContains(t, masked, "ops@example.com")
	assert.NotContains(t, masked, "7946 0958")
	assert.Contains(t, masked, "[email_redacted]")
	assert.Contains(t, masked, "[phone_redacted]")
	assert.Contains(t, masked, "**** **** **** 1111")
}

func TestMaskPIIStringKeepsFeedVocabulary(t *testing.T) {
	query := "feeds from IN between 2025-07-01 and 2025-07-31 with at least 1000 records"

	assert.Equal(t, query, MaskPIIString(query))
}

func TestMaskPIIJSONMasksNestedStrings(t *testing.T) {
	payload := json.RawMessage(`{"query":"contact ops@example.com","n":5,"tags":["+1 415 555 0100"]}`)

	raw := string(MaskPIIJSON(payload))

	assert.NotContains(t, raw, "ops@example.com")
	assert.NotContains(t, raw, "555 0100")
	assert.Contains(t, raw, `"n":5`)
}

func TestMaskPIIJSONHandlesInvalidJSON(t *testing.T) {
	raw := string(MaskPIIJSON(json.RawMessage(`not json ops@example.com`)))

	assert.Equal(t, "not json [email_redacted]", raw)
}

func TestLogPreviewTruncates(t *testing.T) {
	preview := LogPreview(strings.Repeat("a", 20), 8)

	assert.Equal(t, "aaaaaaaa…", preview)
	assert.Equal(t, "short", LogPreview("  short  ", 8))
}
