package retrieval

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iago/feed-agent-back/internal/docstore"
)

func TestNormalizerLiftsNestedMetadata(t *testing.T) {
	normalizer := NewNormalizer(func() time.Time { return fixedNow })

	record := normalizer.FromScored(docstore.ScoredDocument{
		Document: docstore.Document{
			ID:   "vec-1",
			Text: "Feed from IN in INR.",
			Fields: map[string]any{
				"metadata": map[string]any{
					"country_code":          "IN",
					"currency_code":         "INR",
					"status":                "completed",
					"transactionSourceName": "Deal1",
					"recordCount":           json.Number("1200"),
					"timestamp":             "2025-07-15T08:30:00Z",
					"progress": map[string]any{
						"TOTAL_JOBS_IN_FEED":    float64(340),
						"TOTAL_RECORDS_IN_FEED": "1200",
						"SWITCH_INDEX":          true,
					},
				},
			},
		},
		Score: 0.87,
	})

	assert.Equal(t, "vec-1", record.ID)
	assert.Equal(t, "IN", record.CountryCode)
	assert.Equal(t, "INR", record.CurrencyCode)
	assert.Equal(t, "Deal1", record.TransactionSourceName)
	assert.Equal(t, int64(1200), record.RecordCount)
	assert.Equal(t, int64(340), record.Progress.TotalJobsInFeed)
	assert.Equal(t, int64(1200), record.Progress.TotalRecordsInFeed)
	assert.True(t, record.Progress.SwitchIndex)
	assert.Equal(t, time.Date(2025, 7, 15, 8, 30, 0, 0, time.UTC), record.Timestamp)
	assert.False(t, record.Quality.TimestampDefaulted)
	assert.InDelta(t, 0.87, record.Score, 1e-9)
}

func TestNormalizerDefaultsMissingValues(t *testing.T) {
	normalizer := NewNormalizer(func() time.Time { return fixedNow })

	record := normalizer.FromDocument(docstore.Document{Fields: map[string]any{
		"_id":         "flat-1",
		"recordCount": -5,
		"timestamp":   "not a date",
	}})

	assert.Equal(t, "flat-1", record.ID)
	assert.Empty(t, record.CountryCode)
	assert.Empty(t, record.Status)
	assert.Zero(t, record.RecordCount)
	assert.Zero(t, record.Progress.TotalJobsInFeed)
	assert.True(t, record.Quality.CountsClamped)
	assert.True(t, record.Quality.TimestampDefaulted)
	assert.Equal(t, fixedNow, record.Timestamp)
}

func TestNormalizerIsAFixedPoint(t *testing.T) {
	normalizer := NewNormalizer(func() time.Time { return fixedNow })
	inputs := []docstore.Document{
		{ID: "a", Fields: map[string]any{"country_code": "IN", "recordCount": 10, "timestamp": "2025-07-01"}},
		{ID: "b", Fields: map[string]any{"recordCount": "-3"}},
		{ID: "c", Fields: map[string]any{}},
	}

	for _, input := range inputs {
		first := normalizer.FromDocument(input)
		second := normalizer.FromDocument(docstore.Document{ID: first.ID, Fields: first.Fields()})
		require.Equal(t, first, second, "document %s", input.ID)
		assert.Equal(t, first, normalizer.Canonical(first))
	}
}

func TestNormalizerKeepsDuplicates(t *testing.T) {
	normalizer := NewNormalizer(nil)
	document := docstore.Document{ID: "dup", Fields: map[string]any{"status": "completed", "timestamp": "2025-07-01"}}

	first := normalizer.FromDocument(document)
	second := normalizer.FromDocument(document)

	assert.Equal(t, first, second)
}
