package agent

import "github.com/iago/feed-agent-back/internal/domain"

// Decision is what one reasoning step produced: either FinalAnswer or
// ToolCalls.
type Decision interface {
	decision()
}

type FinalAnswer struct {
	Text string
}

// ToolCalls asks the loop to run Calls, in order, before reasoning again.
// Text is any content the model emitted alongside the calls.
type ToolCalls struct {
	Text  string
	Calls []domain.ToolCall
}

func (FinalAnswer) decision() {}
func (ToolCalls) decision()   {}
