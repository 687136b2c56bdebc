package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iago/feed-agent-back/internal/ai"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/metrics"
)

// Reasoner is the reasoning step: it reads the whole history and decides
// whether to answer or to call tools.
type Reasoner interface {
	Decide(ctx context.Context, history []domain.Message, tools []ai.ToolDefinition) (Decision, error)
}

type ModelReasonerConfig struct {
	Client  ai.ChatCompleter
	Profile ai.ModelProfile
	Now     func() time.Time
}

// ModelReasoner asks a chat-completions model for the next step.
type ModelReasoner struct {
	client  ai.ChatCompleter
	profile ai.ModelProfile
	now     func() time.Time
}

func NewModelReasoner(config ModelReasonerConfig) *ModelReasoner {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &ModelReasoner{client: config.Client, profile: config.Profile, now: now}
}

func (r *ModelReasoner) Decide(
	ctx context.Context,
	history []domain.Message,
	tools []ai.ToolDefinition,
) (Decision, error) {
	if r.client == nil || !r.client.Available() {
		metrics.ReasoningCallsTotal.WithLabelValues(r.profile.Model, "unavailable").Inc()
		return nil, ai.ErrClientUnavailable
	}

	toolNames := make([]string, 0, len(tools))
	for _, tool := range tools {
		toolNames = append(toolNames, tool.Name)
	}
	system, err := renderSystemPrompt(toolNames, r.now())
	if err != nil {
		return nil, err
	}

	messages := make([]ai.ChatMessage, 0, len(history)+1)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: system})
	for _, message := range history {
		messages = append(messages, toChatMessage(message))
	}

	startedAt := time.Now()
	response, err := r.client.Complete(ctx, ai.ChatRequest{
		Model:           r.profile.Model,
		Messages:        messages,
		Tools:           tools,
		Temperature:     r.profile.Temperature,
		MaxOutputTokens: r.profile.MaxOutputTokens,
	})
	metrics.ReasoningDuration.WithLabelValues(r.profile.Model).Observe(time.Since(startedAt).Seconds())
	if err != nil {
		metrics.ReasoningCallsTotal.WithLabelValues(r.profile.Model, "error").Inc()
		return nil, err
	}
	metrics.ReasoningCallsTotal.WithLabelValues(r.profile.Model, "ok").Inc()
	metrics.ReasoningTokensTotal.WithLabelValues(r.profile.Model, "input").Add(float64(response.Usage.InputTokens))
	metrics.ReasoningTokensTotal.WithLabelValues(r.profile.Model, "output").Add(float64(response.Usage.OutputTokens))

	return decisionFromResponse(response)
}

func decisionFromResponse(response ai.ChatResponse) (Decision, error) {
	if len(response.ToolCalls) == 0 {
		if strings.TrimSpace(response.Content) == "" && response.FinishReason == "length" {
			return nil, errors.New("model response truncated before any content")
		}
		return FinalAnswer{Text: response.Content}, nil
	}

	calls := make([]domain.ToolCall, 0, len(response.ToolCalls))
	for _, call := range response.ToolCalls {
		id := strings.TrimSpace(call.ID)
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		calls = append(calls, domain.ToolCall{
			ID:        id,
			Name:      call.Name,
			Arguments: rawArguments(call.Arguments),
		})
	}
	return ToolCalls{Text: response.Content, Calls: calls}, nil
}

// rawArguments keeps malformed model output as a JSON string so the state
// stays encodable; the tool schema then rejects it.
func rawArguments(arguments string) json.RawMessage {
	trimmed := strings.TrimSpace(arguments)
	if trimmed == "" {
		return json.RawMessage(`{}`)
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return json.RawMessage(strconv.Quote(trimmed))
}

func toChatMessage(message domain.Message) ai.ChatMessage {
	chat := ai.ChatMessage{
		Role:       string(message.Role),
		Content:    message.Content,
		ToolCallID: message.ToolCallID,
		Name:       message.Name,
	}
	for _, call := range message.ToolCalls {
		chat.ToolCalls = append(chat.ToolCalls, ai.ToolCall{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: string(call.Arguments),
		})
	}
	return chat
}
