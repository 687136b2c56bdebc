package domain

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ConversationState is the durable state of one thread. Messages and
// Records only ever grow.
type ConversationState struct {
	ThreadID  string    `json:"thread_id"`
	Messages  []Message `json:"messages"`
	Records   []Record  `json:"records"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewConversationState(threadID string) *ConversationState {
	return &ConversationState{
		ThreadID: threadID,
		Messages: make([]Message, 0),
		Records:  make([]Record, 0),
	}
}

func (s *ConversationState) AppendMessages(messages ...Message) {
	s.Messages = append(s.Messages, messages...)
}

func (s *ConversationState) AppendRecords(records ...Record) {
	s.Records = append(s.Records, records...)
}

// Clone returns a deep copy that shares no slices with s.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	clone := &ConversationState{
		ThreadID:  s.ThreadID,
		Messages:  make([]Message, 0, len(s.Messages)),
		Records:   append(make([]Record, 0, len(s.Records)), s.Records...),
		Turns:     s.Turns,
		UpdatedAt: s.UpdatedAt,
	}
	for _, message := range s.Messages {
		copied := message
		if len(message.ToolCalls) > 0 {
			copied.ToolCalls = make([]ToolCall, 0, len(message.ToolCalls))
			for _, call := range message.ToolCalls {
				call.Arguments = append(json.RawMessage(nil), call.Arguments...)
				copied.ToolCalls = append(copied.ToolCalls, call)
			}
		}
		clone.Messages = append(clone.Messages, copied)
	}
	return clone
}
