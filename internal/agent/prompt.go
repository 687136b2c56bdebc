package agent

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/iago/feed-agent-back/internal/domain"
)

//go:embed prompts/*.tmpl
var promptFiles embed.FS

const systemPromptFile = "system_v1.tmpl"

var systemPrompt = template.Must(template.ParseFS(promptFiles, "prompts/"+systemPromptFile))

type systemPromptData struct {
	Sentinel     string
	ToolNames    string
	DefaultLimit int
	Now          string
}

func renderSystemPrompt(toolNames []string, now time.Time) (string, error) {
	buffer := bytes.NewBuffer(nil)
	err := systemPrompt.ExecuteTemplate(buffer, systemPromptFile, systemPromptData{
		Sentinel:     FinalAnswerSentinel,
		ToolNames:    strings.Join(toolNames, ", "),
		DefaultLimit: domain.DefaultRetrievalLimit,
		Now:          now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("execute template %s: %w", systemPromptFile, err)
	}
	return strings.TrimSpace(buffer.String()), nil
}
