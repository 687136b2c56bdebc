package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/iago/feed-agent-back/internal/ai"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/metrics"
	"github.com/iago/feed-agent-back/internal/policy"
)

// Result is what one tool call hands back to the conversation. Error is a
// marker for the model, never a Go error: a failed call still yields a
// tool message so the turn can continue.
type Result struct {
	ToolCallID string
	Name       string
	Records    []domain.Record
	Content    string
	Error      string
}

func (r Result) Failed() bool {
	return r.Error != ""
}

// Message renders the result as the tool message appended to history.
func (r Result) Message() domain.Message {
	content := r.Content
	if r.Failed() && content == "" {
		content = "Error: " + r.Error
	}
	return domain.Message{
		Role:       domain.RoleTool,
		Content:    content,
		ToolCallID: r.ToolCallID,
		Name:       r.Name,
		Error:      r.Error,
	}
}

type Tool interface {
	Definition() ai.ToolDefinition
	Call(ctx context.Context, arguments json.RawMessage) Result
}

type Registry struct {
	tools  map[string]Tool
	logger *logrus.Logger
}

func NewRegistry(logger *logrus.Logger, tools ...Tool) *Registry {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	registry := &Registry{tools: make(map[string]Tool, len(tools)), logger: logger}
	for _, tool := range tools {
		registry.tools[tool.Definition().Name] = tool
	}
	return registry
}

// Definitions lists every tool, sorted by name.
func (r *Registry) Definitions() []ai.ToolDefinition {
	definitions := make([]ai.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		definitions = append(definitions, tool.Definition())
	}
	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].Name < definitions[j].Name
	})
	return definitions
}

func (r *Registry) Names() []string {
	definitions := r.Definitions()
	names := make([]string, 0, len(definitions))
	for _, definition := range definitions {
		names = append(names, definition.Name)
	}
	return names
}

func (r *Registry) Execute(ctx context.Context, call domain.ToolCall) Result {
	entry := r.logger.WithFields(logrus.Fields{"tool": call.Name, "tool_call_id": call.ID})

	tool, ok := r.tools[call.Name]
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues("unknown", "unknown_tool").Inc()
		entry.Warn("model requested unknown tool")
		return Result{
			ToolCallID: call.ID,
			Name:       call.Name,
			Records:    []domain.Record{},
			Error:      fmt.Sprintf("unknown tool %q", call.Name),
		}
	}

	result := tool.Call(ctx, call.Arguments)
	result.ToolCallID = call.ID
	result.Name = call.Name
	if result.Records == nil {
		result.Records = []domain.Record{}
	}

	if result.Failed() {
		metrics.ToolCallsTotal.WithLabelValues(call.Name, "invalid_input").Inc()
		entry.WithFields(logrus.Fields{
			"reason":    result.Error,
			"arguments": string(policy.MaskPIIJSON(call.Arguments)),
		}).Warn("tool call rejected")
		return result
	}

	outcome := "ok"
	if len(result.Records) == 0 {
		outcome = "empty"
	}
	metrics.ToolCallsTotal.WithLabelValues(call.Name, outcome).Inc()
	entry.WithField("records", len(result.Records)).Debug("tool call completed")
	return result
}
