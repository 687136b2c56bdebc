package domain

import "time"

// Stored document field names shared by every backend.
const (
	FieldCountryCode           = "country_code"
	FieldCurrencyCode          = "currency_code"
	FieldStatus                = "status"
	FieldTransactionSourceName = "transactionSourceName"
	FieldRecordCount           = "recordCount"
	FieldTimestamp             = "timestamp"
	FieldProgress              = "progress"
	FieldTotalJobsInFeed       = "progress.TOTAL_JOBS_IN_FEED"
	FieldUniqueRefNumberCount  = "uniqueRefNumberCount"
	FieldNoCoordinatesCount    = "noCoordinatesCount"
	FieldEmbeddingText         = "embedding_text"
	FieldEmbedding             = "embedding"
	FieldMetadata              = "metadata"
)

const DefaultRetrievalLimit = 50

type RetrievalPath string

const (
	RetrievalSimilarity RetrievalPath = "similarity"
	RetrievalExact      RetrievalPath = "exact"
)

type Progress struct {
	SwitchIndex                 bool  `json:"SWITCH_INDEX"`
	TotalRecordsInFeed          int64 `json:"TOTAL_RECORDS_IN_FEED"`
	TotalJobsInFeed             int64 `json:"TOTAL_JOBS_IN_FEED"`
	TotalJobsFailIndexed        int64 `json:"TOTAL_JOBS_FAIL_INDEXED"`
	TotalJobsSentToEnrich       int64 `json:"TOTAL_JOBS_SENT_TO_ENRICH"`
	TotalJobsDontHaveMetadata   int64 `json:"TOTAL_JOBS_DONT_HAVE_METADATA"`
	TotalJobsDontHaveMetadataV2 int64 `json:"TOTAL_JOBS_DONT_HAVE_METADATA_V2"`
	TotalJobsSentToIndex        int64 `json:"TOTAL_JOBS_SENT_TO_INDEX"`
}

// DataQuality flags values the normalizer had to invent or repair.
type DataQuality struct {
	TimestampDefaulted bool `json:"timestamp_defaulted,omitempty"`
	CountsClamped      bool `json:"counts_clamped,omitempty"`
}

// Record is the canonical feed-processing entry surfaced to callers.
type Record struct {
	ID                    string        `json:"id,omitempty"`
	CountryCode           string        `json:"country_code"`
	CurrencyCode          string        `json:"currency_code"`
	Status                string        `json:"status"`
	TransactionSourceName string        `json:"transactionSourceName"`
	RecordCount           int64         `json:"recordCount"`
	Timestamp             time.Time     `json:"timestamp"`
	Progress              Progress      `json:"progress"`
	UniqueRefNumberCount  int64         `json:"uniqueRefNumberCount"`
	NoCoordinatesCount    int64         `json:"noCoordinatesCount"`
	Score                 float64       `json:"score"`
	Retrieval             RetrievalPath `json:"retrieval,omitempty"`
	Quality               DataQuality   `json:"quality"`
}

// Fields renders the record in stored-document shape. Quality flags are
// carried only when set so a re-normalized record keeps them.
func (r Record) Fields() map[string]any {
	fields := map[string]any{
		FieldCountryCode:           r.CountryCode,
		FieldCurrencyCode:          r.CurrencyCode,
		FieldStatus:                r.Status,
		FieldTransactionSourceName: r.TransactionSourceName,
		FieldRecordCount:           r.RecordCount,
		FieldTimestamp:             r.Timestamp,
		FieldProgress: map[string]any{
			"SWITCH_INDEX":                     r.Progress.SwitchIndex,
			"TOTAL_RECORDS_IN_FEED":            r.Progress.TotalRecordsInFeed,
			"TOTAL_JOBS_IN_FEED":               r.Progress.TotalJobsInFeed,
			"TOTAL_JOBS_FAIL_INDEXED":          r.Progress.TotalJobsFailIndexed,
			"TOTAL_JOBS_SENT_TO_ENRICH":        r.Progress.TotalJobsSentToEnrich,
			"TOTAL_JOBS_DONT_HAVE_METADATA":    r.Progress.TotalJobsDontHaveMetadata,
			"TOTAL_JOBS_DONT_HAVE_METADATA_V2": r.Progress.TotalJobsDontHaveMetadataV2,
			"TOTAL_JOBS_SENT_TO_INDEX":         r.Progress.TotalJobsSentToIndex,
		},
		FieldUniqueRefNumberCount: r.UniqueRefNumberCount,
		FieldNoCoordinatesCount:   r.NoCoordinatesCount,
	}
	if r.Quality.TimestampDefaulted || r.Quality.CountsClamped {
		fields["quality"] = map[string]any{
			"timestamp_defaulted": r.Quality.TimestampDefaulted,
			"counts_clamped":      r.Quality.CountsClamped,
		}
	}
	return fields
}

// RetrievalCriteria is the argument set accepted by the feed lookup tool.
// Query is required; every other field is an optional filter.
type RetrievalCriteria struct {
	Query                 string `json:"query"`
	N                     int    `json:"n,omitempty"`
	CountryCode           string `json:"country_code,omitempty"`
	CurrencyCode          string `json:"currency_code,omitempty"`
	Status                string `json:"status,omitempty"`
	TransactionSourceName string `json:"transactionSourceName,omitempty"`
	DateFrom              string `json:"date_from,omitempty"`
	DateTo                string `json:"date_to,omitempty"`
	MinRecords            int64  `json:"min_records,omitempty"`
	MinJobs               int64  `json:"min_jobs,omitempty"`
}

// Limit returns N bounded to [1, max]; max <= 0 disables the upper bound.
func (c RetrievalCriteria) Limit(max int) int {
	n := c.N
	if n <= 0 {
		n = DefaultRetrievalLimit
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}
