package filter

import (
	"strconv"
	"strings"

	"github.com/iago/feed-agent-back/internal/domain"
)

// Build translates retrieval criteria into a predicate. It never reads
// criteria.Query and never fails: blank fields, non-positive minimums and
// unparseable dates impose no constraint.
func Build(criteria domain.RetrievalCriteria) Predicate {
	predicate := Predicate{}

	equalities := []Equality{
		{Field: domain.FieldCountryCode, Value: criteria.CountryCode},
		{Field: domain.FieldCurrencyCode, Value: criteria.CurrencyCode},
		{Field: domain.FieldStatus, Value: criteria.Status},
		{Field: domain.FieldTransactionSourceName, Value: criteria.TransactionSourceName},
	}
	for _, equality := range equalities {
		equality.Value = strings.TrimSpace(equality.Value)
		if equality.Value == "" {
			continue
		}
		predicate.Equals = append(predicate.Equals, equality)
	}

	timeRange := TimeRange{Field: domain.FieldTimestamp}
	if from, ok := domain.ParseDateBound(criteria.DateFrom, false); ok {
		timeRange.From = &from
	}
	if to, ok := domain.ParseDateBound(criteria.DateTo, true); ok {
		timeRange.To = &to
	}
	if timeRange.From != nil || timeRange.To != nil {
		predicate.Range = &timeRange
	}

	if criteria.MinRecords > 0 {
		predicate.Minimums = append(predicate.Minimums, Minimum{Field: domain.FieldRecordCount, Value: criteria.MinRecords})
	}
	if criteria.MinJobs > 0 {
		predicate.Minimums = append(predicate.Minimums, Minimum{Field: domain.FieldTotalJobsInFeed, Value: criteria.MinJobs})
	}

	return predicate
}

func formatInt(value int64) string {
	return strconv.FormatInt(value, 10)
}
