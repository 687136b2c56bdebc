package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/iago/feed-agent-back/internal/ai"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/retrieval"
)

const (
	FeedLookupName        = "feed_lookup"
	FeedLookupDescription = "Searches for feed data based on various criteria"

	// FeedDateFormat accepts YYYY-MM-DD or RFC3339.
	FeedDateFormat = "feed-date"
)

var registerFormats sync.Once

type feedDateChecker struct{}

func (feedDateChecker) IsFormat(input interface{}) bool {
	value, ok := input.(string)
	if !ok {
		return true
	}
	return domain.IsFeedDate(value)
}

func feedLookupParameters() map[string]any {
	return toolParams(
		map[string]any{
			"query": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "The search query for semantic search.",
			},
			"country_code": map[string]any{
				"type":        "string",
				"description": "Filter by country code (e.g., 'US', 'IN', 'DE').",
			},
			"currency_code": map[string]any{
				"type":        "string",
				"description": "Filter by currency code (e.g., 'USD', 'EUR').",
			},
			"status": map[string]any{
				"type":        "string",
				"description": "Filter by feed status (e.g., 'completed').",
			},
			"transactionSourceName": map[string]any{
				"type":        "string",
				"description": "Filter by transaction source (e.g., 'Deal1', 'Deal2').",
			},
			"date_from": map[string]any{
				"type":        "string",
				"format":      FeedDateFormat,
				"description": "Filter by start date in ISO format (e.g., '2025-07-01').",
			},
			"date_to": map[string]any{
				"type":        "string",
				"format":      FeedDateFormat,
				"description": "Filter by end date in ISO format (e.g., '2025-07-31'). A date covers the whole day.",
			},
			"min_records": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"description": "Filter by minimum number of records.",
			},
			"min_jobs": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"description": "Filter by minimum number of jobs in feed.",
			},
			"n": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"default":     domain.DefaultRetrievalLimit,
				"description": fmt.Sprintf("Number of results to return (default: %d).", domain.DefaultRetrievalLimit),
			},
		},
		[]string{"query"},
	)
}

func toolParams(properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// FeedLookupTool validates model arguments and runs them through the
// hybrid retriever.
type FeedLookupTool struct {
	retriever  retrieval.Retriever
	content    *retrieval.ContentBuilder
	schema     *gojsonschema.Schema
	parameters json.RawMessage
}

func NewFeedLookupTool(retriever retrieval.Retriever, content *retrieval.ContentBuilder) (*FeedLookupTool, error) {
	registerFormats.Do(func() {
		gojsonschema.FormatCheckers.Add(FeedDateFormat, feedDateChecker{})
	})
	if content == nil {
		content = retrieval.NewContentBuilder(0)
	}

	parameters := feedLookupParameters()
	encoded, err := json.Marshal(parameters)
	if err != nil {
		return nil, fmt.Errorf("encode feed_lookup schema: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(encoded))
	if err != nil {
		return nil, fmt.Errorf("compile feed_lookup schema: %w", err)
	}

	return &FeedLookupTool{
		retriever:  retriever,
		content:    content,
		schema:     schema,
		parameters: encoded,
	}, nil
}

func (t *FeedLookupTool) Definition() ai.ToolDefinition {
	return ai.ToolDefinition{
		Name:        FeedLookupName,
		Description: FeedLookupDescription,
		Parameters:  t.parameters,
	}
}

func (t *FeedLookupTool) Call(ctx context.Context, arguments json.RawMessage) Result {
	criteria, err := t.decode(arguments)
	if err != nil {
		return Result{Records: []domain.Record{}, Error: err.Error()}
	}

	records := t.retriever.Retrieve(ctx, criteria)
	content := t.content.Build(records)
	return Result{Records: records, Content: content.Text}
}

func (t *FeedLookupTool) decode(arguments json.RawMessage) (domain.RetrievalCriteria, error) {
	if len(bytes.TrimSpace(arguments)) == 0 {
		arguments = json.RawMessage(`{}`)
	}

	result, err := t.schema.Validate(gojsonschema.NewBytesLoader(arguments))
	if err != nil {
		return domain.RetrievalCriteria{}, fmt.Errorf("invalid arguments: %v", err)
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, validationErr := range result.Errors() {
			messages = append(messages, validationErr.String())
		}
		return domain.RetrievalCriteria{}, fmt.Errorf("invalid arguments: %s", strings.Join(messages, "; "))
	}

	var criteria domain.RetrievalCriteria
	if err := json.Unmarshal(arguments, &criteria); err != nil {
		return domain.RetrievalCriteria{}, fmt.Errorf("invalid arguments: %v", err)
	}
	criteria.Query = strings.TrimSpace(criteria.Query)
	if criteria.Query == "" {
		return domain.RetrievalCriteria{}, fmt.Errorf("invalid arguments: query is required")
	}
	return criteria, nil
}
