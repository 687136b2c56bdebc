package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iago/feed-agent-back/internal/ai"
	"github.com/iago/feed-agent-back/internal/domain"
)

type fakeCompleter struct {
	response  ai.ChatResponse
	err       error
	available bool
	requests  []ai.ChatRequest
}

func (c *fakeCompleter) Complete(_ context.Context, request ai.ChatRequest) (ai.ChatResponse, error) {
	c.requests = append(c.requests, request)
	return c.response, c.err
}

func (c *fakeCompleter) Available() bool {
	return c.available
}

func TestModelReasonerBuildsSystemDirective(t *testing.T) {
	client := &fakeCompleter{available: true, response: ai.ChatResponse{Content: "FINAL ANSWER: done"}}
	now := time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC)
	reasoner := NewModelReasoner(ModelReasonerConfig{
		Client:  client,
		Profile: ai.ModelProfile{Model: "gpt-4.1-mini", MaxOutputTokens: 1200},
		Now:     func() time.Time { return now },
	})

	decision, err := reasoner.Decide(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "feeds from india"},
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "c1", Name: "feed_lookup", Arguments: json.RawMessage(`{"query":"india"}`)}}},
		{Role: domain.RoleTool, ToolCallID: "c1", Name: "feed_lookup", Content: "Found 1 feed records:"},
	}, []ai.ToolDefinition{{Name: "feed_lookup"}})
	require.NoError(t, err)
	assert.Equal(t, FinalAnswer{Text: "FINAL ANSWER: done"}, decision)

	require.Len(t, client.requests, 1)
	request := client.requests[0]
	assert.Equal(t, "gpt-4.1-mini", request.Model)
	assert.Equal(t, 1200, request.MaxOutputTokens)
	require.Len(t, request.Messages, 4)

	system := request.Messages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "prefix your response with FINAL ANSWER")
	assert.Contains(t, system.Content, "You have access to the following tools: feed_lookup.")
	assert.Contains(t, system.Content, "Current time: 2025-08-01T09:30:00Z.")
	assert.False(t, strings.Contains(system.Content, "{{"))

	assert.Equal(t, `{"query":"india"}`, request.Messages[2].ToolCalls[0].Arguments)
	assert.Equal(t, "c1", request.Messages[3].ToolCallID)
}

func TestModelReasonerReturnsToolCalls(t *testing.T) {
	client := &fakeCompleter{available: true, response: ai.ChatResponse{
		Content: "Let me look that up.",
		ToolCalls: []ai.ToolCall{
			{ID: "call_1", Name: "feed_lookup", Arguments: `{"query":"india"}`},
			{Name: "feed_lookup", Arguments: `{"query":`},
			{ID: "call_3", Name: "feed_lookup"},
		},
	}}
	reasoner := NewModelReasoner(ModelReasonerConfig{Client: client})

	decision, err := reasoner.Decide(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "q"}}, nil)
	require.NoError(t, err)

	calls, ok := decision.(ToolCalls)
	require.True(t, ok)
	assert.Equal(t, "Let me look that up.", calls.Text)
	require.Len(t, calls.Calls, 3)
	assert.JSONEq(t, `{"query":"india"}`, string(calls.Calls[0].Arguments))
	assert.True(t, strings.HasPrefix(calls.Calls[1].ID, "call_"))
	assert.Equal(t, `"{\"query\":"`, string(calls.Calls[1].Arguments))
	assert.True(t, json.Valid(calls.Calls[1].Arguments))
	assert.Equal(t, `{}`, string(calls.Calls[2].Arguments))
}

func TestModelReasonerUnavailableClient(t *testing.T) {
	reasoner := NewModelReasoner(ModelReasonerConfig{Client: &fakeCompleter{available: false}})

	_, err := reasoner.Decide(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ai.ErrClientUnavailable)
}

func TestModelReasonerPropagatesClientErrors(t *testing.T) {
	client := &fakeCompleter{available: true, err: context.DeadlineExceeded}
	reasoner := NewModelReasoner(ModelReasonerConfig{Client: client})

	_, err := reasoner.Decide(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "q"}}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
