package retrieval

import (
	"fmt"
	"strings"
	"time"

	"github.com/iago/feed-agent-back/internal/domain"
)

// NoDataMessage is shown to the model and the caller when nothing matched.
const NoDataMessage = "No matching feed data was found for the specified criteria."

const defaultContentTokenBudget = 3000

type Content struct {
	Text       string
	Included   int
	Omitted    int
	TokenCount int
}

// ContentBuilder renders records as the tool message the model reads,
// keeping the text inside a token budget. Omitted records are still
// returned to the caller; only their text is cut.
type ContentBuilder struct {
	maxTokens int
}

func NewContentBuilder(maxTokens int) *ContentBuilder {
	if maxTokens <= 0 {
		maxTokens = defaultContentTokenBudget
	}
	return &ContentBuilder{maxTokens: maxTokens}
}

func (b *ContentBuilder) Build(records []domain.Record) Content {
	if len(records) == 0 {
		return Content{Text: NoDataMessage, TokenCount: estimateTokens(NoDataMessage)}
	}

	builder := strings.Builder{}
	header := fmt.Sprintf("Found %d feed records:", len(records))
	builder.WriteString(header)
	totalTokens := estimateTokens(header)
	included := 0

	for index, record := range records {
		line := fmt.Sprintf("[%d] %s Score: %.4f.", index+1, FeedSummary(record), record.Score)
		lineTokens := estimateTokens(line)
		if included > 0 && totalTokens+lineTokens > b.maxTokens {
			break
		}
		builder.WriteString("\n")
		builder.WriteString(line)
		totalTokens += lineTokens
		included++
	}

	omitted := len(records) - included
	if omitted > 0 {
		builder.WriteString(fmt.Sprintf("\n(%d more records omitted)", omitted))
	}

	return Content{
		Text:       builder.String(),
		Included:   included,
		Omitted:    omitted,
		TokenCount: totalTokens,
	}
}

// FeedSummary is the one-line description used both as embedding text for
// stored feeds and as tool output.
func FeedSummary(record domain.Record) string {
	return fmt.Sprintf(
		"Feed from %s in %s. Total records: %d, Jobs in feed: %d. Status: %s, Transaction source: %s. "+
			"Record count: %d, Unique ref numbers: %d. Timestamp: %s.",
		record.CountryCode,
		record.CurrencyCode,
		record.Progress.TotalRecordsInFeed,
		record.Progress.TotalJobsInFeed,
		record.Status,
		record.TransactionSourceName,
		record.RecordCount,
		record.UniqueRefNumberCount,
		record.Timestamp.UTC().Format(time.RFC3339),
	)
}

func estimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	count := len([]rune(trimmed)) / 4
	if count < 1 {
		count = 1
	}
	return count
}
