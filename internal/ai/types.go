package ai

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrClientUnavailable = errors.New("model client unavailable")

type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// ToolDefinition describes a callable tool with a JSON schema.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type ChatMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

type ChatRequest struct {
	Model           string
	Messages        []ChatMessage
	Tools           []ToolDefinition
	Temperature     float64
	MaxOutputTokens int
}

type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	ModelID      string
	Usage        TokenUsage
}

type EmbedRequest struct {
	Model string
	Input []string
}

type EmbedResult struct {
	Vectors [][]float32
	ModelID string
	Usage   TokenUsage
}

// ChatCompleter proposes the next assistant message given a conversation
// and the tools it may call.
type ChatCompleter interface {
	Complete(ctx context.Context, request ChatRequest) (ChatResponse, error)
	Available() bool
}

type Embedder interface {
	Embed(ctx context.Context, request EmbedRequest) (EmbedResult, error)
}
