package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iago/feed-agent-back/internal/ai"
	"github.com/iago/feed-agent-back/internal/docstore"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/filter"
	"github.com/iago/feed-agent-back/internal/retrieval"
)

type batchEmbedder struct {
	requests []ai.EmbedRequest
	err      error
}

func (e *batchEmbedder) Embed(_ context.Context, request ai.EmbedRequest) (ai.EmbedResult, error) {
	e.requests = append(e.requests, request)
	if e.err != nil {
		return ai.EmbedResult{}, e.err
	}
	vectors := make([][]float32, 0, len(request.Input))
	for index := range request.Input {
		vectors = append(vectors, []float32{float32(index), 1})
	}
	return ai.EmbedResult{Vectors: vectors}, nil
}

const feedsJSON = `[
	{"_id":"feed-1","country_code":"IN","currency_code":"INR","status":"completed","transactionSourceName":"Bank",
	 "recordCount":10,"uniqueRefNumberCount":8,"timestamp":"2025-07-10T00:00:00Z",
	 "progress":{"TOTAL_RECORDS_IN_FEED":120,"TOTAL_JOBS_IN_FEED":12}},
	{"_id":"feed-2","country_code":"US","currency_code":"USD","status":"failed","timestamp":"2025-07-11T00:00:00Z"},
	{"country_code":"BR","currency_code":"BRL","status":"completed","timestamp":"2025-07-12T00:00:00Z"}
]`

func TestSeederEmbedsSummariesInBatches(t *testing.T) {
	embedder := &batchEmbedder{}
	store := docstore.NewMemoryStore()
	seeder := Seeder{
		Embedder:   embedder,
		Model:      "text-embedding-3-small",
		Writer:     store,
		Normalizer: retrieval.NewNormalizer(func() time.Time { return time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC) }),
		BatchSize:  2,
	}

	count, err := seeder.Seed(context.Background(), strings.NewReader(feedsJSON))
	require.NoError(t, err)

	assert.Equal(t, 3, count)
	assert.Equal(t, 3, store.Len())
	require.Len(t, embedder.requests, 2)
	assert.Len(t, embedder.requests[0].Input, 2)
	assert.Equal(t, "text-embedding-3-small", embedder.requests[0].Model)
	assert.Equal(t,
		"Feed from IN in INR. Total records: 120, Jobs in feed: 12. Status: completed, Transaction source: Bank. "+
			"Record count: 10, Unique ref numbers: 8. Timestamp: 2025-07-10T00:00:00Z.",
		embedder.requests[0].Input[0],
	)

	documents, err := store.ExactQuery(context.Background(), filter.Build(domain.RetrievalCriteria{Query: "x", CountryCode: "IN"}), 10)
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.Equal(t, "feed-1", documents[0].ID)
	assert.Contains(t, documents[0].Text, "Feed from IN")
}

func TestSeederStopsOnEmbeddingFailure(t *testing.T) {
	store := docstore.NewMemoryStore()
	seeder := Seeder{Embedder: &batchEmbedder{err: errors.New("quota")}, Writer: store}

	count, err := seeder.Seed(context.Background(), strings.NewReader(feedsJSON))

	require.Error(t, err)
	assert.Zero(t, count)
	assert.Zero(t, store.Len())
}

func TestSeederRejectsMalformedInput(t *testing.T) {
	seeder := Seeder{Embedder: &batchEmbedder{}, Writer: docstore.NewMemoryStore()}

	_, err := seeder.Seed(context.Background(), strings.NewReader(`{"not":"an array"}`))

	assert.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t, "[user] hi", formatMessage(domain.Message{Role: domain.RoleUser, Content: "hi"}))
	assert.Equal(t, "[tool feed_lookup] Found 1 feed records:", formatMessage(domain.Message{
		Role: domain.RoleTool, Name: "feed_lookup", Content: "Found 1 feed records:",
	}))
	assert.Equal(t, `[assistant] calls [feed_lookup({"query":"india"})]`, formatMessage(domain.Message{
		Role:      domain.RoleAssistant,
		ToolCalls: []domain.ToolCall{{Name: "feed_lookup", Arguments: []byte(`{"query":"india"}`)}},
	}))
}

func TestHistoryRequiresThreadFlag(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"history"})

	err := root.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"thread"`)
}
