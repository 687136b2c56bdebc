package ai

import (
	"net/http"
	"strings"
	"time"
)

type OpenRouterClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	SiteURL    string
	AppName    string
}

// NewOpenRouterClient returns an OpenAI-compatible client pointed at
// OpenRouter with its attribution headers set.
func NewOpenRouterClient(config OpenRouterClientConfig) *OpenAIClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://openrouter.ai/api/v1"
	}
	if strings.TrimSpace(config.AppName) == "" {
		config.AppName = "Feed Agent"
	}

	return NewOpenAIClient(OpenAIClientConfig{
		Provider:   "openrouter",
		APIKey:     config.APIKey,
		BaseURL:    config.BaseURL,
		Timeout:    config.Timeout,
		MaxRetries: config.MaxRetries,
		HTTPClient: config.HTTPClient,
		Headers: map[string]string{
			"HTTP-Referer": config.SiteURL,
			"X-Title":      config.AppName,
		},
	})
}

// IsOpenRouterURL reports whether baseURL points at OpenRouter.
func IsOpenRouterURL(baseURL string) bool {
	return strings.Contains(strings.ToLower(baseURL), "openrouter.ai")
}
