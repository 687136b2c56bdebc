package retrieval

import (
	"time"

	"github.com/iago/feed-agent-back/internal/docstore"
	"github.com/iago/feed-agent-back/internal/domain"
)

const exactMatchScore = 1.0

// Normalizer converts raw store documents into canonical records.
// Missing strings become "", missing or negative counts become 0, and an
// absent or unparseable timestamp becomes the normalization time with
// Quality.TimestampDefaulted set. Records are never dropped or merged.
type Normalizer struct {
	now func() time.Time
}

func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

func (n *Normalizer) FromScored(hit docstore.ScoredDocument) domain.Record {
	record := n.fromFields(hit.ID, flattenMetadata(hit.Fields))
	record.Score = hit.Score
	record.Retrieval = domain.RetrievalSimilarity
	return record
}

func (n *Normalizer) FromDocument(document docstore.Document) domain.Record {
	record := n.fromFields(document.ID, flattenMetadata(document.Fields))
	record.Score = exactMatchScore
	record.Retrieval = domain.RetrievalExact
	return record
}

// Canonical re-applies the record invariants. It is a fixed point:
// Canonical(Canonical(r)) == Canonical(r).
func (n *Normalizer) Canonical(record domain.Record) domain.Record {
	counts := []*int64{
		&record.RecordCount,
		&record.UniqueRefNumberCount,
		&record.NoCoordinatesCount,
		&record.Progress.TotalRecordsInFeed,
		&record.Progress.TotalJobsInFeed,
		&record.Progress.TotalJobsFailIndexed,
		&record.Progress.TotalJobsSentToEnrich,
		&record.Progress.TotalJobsDontHaveMetadata,
		&record.Progress.TotalJobsDontHaveMetadataV2,
		&record.Progress.TotalJobsSentToIndex,
	}
	for _, count := range counts {
		if *count < 0 {
			*count = 0
			record.Quality.CountsClamped = true
		}
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = n.now().UTC()
		record.Quality.TimestampDefaulted = true
	}
	return record
}

func (n *Normalizer) fromFields(id string, fields map[string]any) domain.Record {
	record := domain.Record{
		ID:                    id,
		CountryCode:           stringField(fields, domain.FieldCountryCode),
		CurrencyCode:          stringField(fields, domain.FieldCurrencyCode),
		Status:                stringField(fields, domain.FieldStatus),
		TransactionSourceName: stringField(fields, domain.FieldTransactionSourceName),
	}
	if record.ID == "" {
		record.ID = firstString(fields, "_id", "id")
	}

	clamped := false
	count := func(path string) int64 {
		value, ok := domain.Lookup(fields, path)
		if !ok {
			return 0
		}
		number, ok := domain.AsInt64(value)
		if !ok {
			return 0
		}
		if number < 0 {
			clamped = true
			return 0
		}
		return number
	}

	record.RecordCount = count(domain.FieldRecordCount)
	record.UniqueRefNumberCount = count(domain.FieldUniqueRefNumberCount)
	record.NoCoordinatesCount = count(domain.FieldNoCoordinatesCount)
	record.Progress = domain.Progress{
		TotalRecordsInFeed:          count("progress.TOTAL_RECORDS_IN_FEED"),
		TotalJobsInFeed:             count(domain.FieldTotalJobsInFeed),
		TotalJobsFailIndexed:        count("progress.TOTAL_JOBS_FAIL_INDEXED"),
		TotalJobsSentToEnrich:       count("progress.TOTAL_JOBS_SENT_TO_ENRICH"),
		TotalJobsDontHaveMetadata:   count("progress.TOTAL_JOBS_DONT_HAVE_METADATA"),
		TotalJobsDontHaveMetadataV2: count("progress.TOTAL_JOBS_DONT_HAVE_METADATA_V2"),
		TotalJobsSentToIndex:        count("progress.TOTAL_JOBS_SENT_TO_INDEX"),
	}
	if value, ok := domain.Lookup(fields, "progress.SWITCH_INDEX"); ok {
		record.Progress.SwitchIndex = domain.AsBool(value)
	}

	if value, ok := domain.Lookup(fields, domain.FieldTimestamp); ok {
		if parsed, ok := domain.AsTime(value); ok {
			record.Timestamp = parsed
		}
	}

	record.Quality.CountsClamped = clamped || flagField(fields, "quality.counts_clamped")
	record.Quality.TimestampDefaulted = flagField(fields, "quality.timestamp_defaulted")
	return n.Canonical(record)
}

// flattenMetadata lifts a nested "metadata" document, as produced by vector
// search integrations, to the top level. Nested keys win.
func flattenMetadata(fields map[string]any) map[string]any {
	flat := make(map[string]any, len(fields))
	for key, value := range fields {
		if key == domain.FieldMetadata {
			continue
		}
		flat[key] = value
	}
	if metadata, ok := fields[domain.FieldMetadata].(map[string]any); ok {
		for key, value := range metadata {
			flat[key] = value
		}
	}
	return flat
}

func stringField(fields map[string]any, path string) string {
	value, _ := domain.Lookup(fields, path)
	return domain.AsString(value)
}

func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if value := stringField(fields, key); value != "" {
			return value
		}
	}
	return ""
}

func flagField(fields map[string]any, path string) bool {
	value, ok := domain.Lookup(fields, path)
	return ok && domain.AsBool(value)
}
