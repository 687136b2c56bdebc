package ai

import "strings"

type TaskKind string

const (
	TaskReasoning TaskKind = "reasoning"
	TaskEmbedding TaskKind = "embedding"
)

type ModelProfile struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
}

type ModelRouterConfig struct {
	ReasoningModel           string
	ReasoningMaxOutputTokens int
	EmbeddingModel           string
}

type ModelRouter struct {
	config ModelRouterConfig
}

func NewModelRouter(config ModelRouterConfig) *ModelRouter {
	if strings.TrimSpace(config.ReasoningModel) == "" {
		config.ReasoningModel = "gpt-4.1-mini"
	}
	if config.ReasoningMaxOutputTokens <= 0 {
		config.ReasoningMaxOutputTokens = 1200
	}
	if strings.TrimSpace(config.EmbeddingModel) == "" {
		config.EmbeddingModel = "text-embedding-3-small"
	}
	return &ModelRouter{config: config}
}

// Select returns the profile for a task. Reasoning runs at temperature 0
// so tool selection is reproducible.
func (r *ModelRouter) Select(task TaskKind) ModelProfile {
	switch task {
	case TaskEmbedding:
		return ModelProfile{Model: r.config.EmbeddingModel}
	default:
		return ModelProfile{
			Model:           r.config.ReasoningModel,
			Temperature:     0,
			MaxOutputTokens: r.config.ReasoningMaxOutputTokens,
		}
	}
}
