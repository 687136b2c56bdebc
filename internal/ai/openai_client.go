package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

type OpenAIClientConfig struct {
	Provider     string
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	HTTPClient   *http.Client
	Organization string
	// Headers are added to every request, e.g. OpenRouter attribution.
	Headers map[string]string
}

// OpenAIClient talks to any OpenAI-compatible chat completions and
// embeddings API. Chat completions are attempted once; embeddings retry on
// rate limits and server errors.
type OpenAIClient struct {
	provider     string
	apiKey       string
	baseURL      string
	timeout      time.Duration
	maxRetries   int
	httpClient   *http.Client
	organization string
	headers      map[string]string
}

func NewOpenAIClient(config OpenAIClientConfig) *OpenAIClient {
	if strings.TrimSpace(config.Provider) == "" {
		config.Provider = "openai"
	}
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	headers := make(map[string]string, len(config.Headers))
	for key, value := range config.Headers {
		if strings.TrimSpace(value) != "" {
			headers[key] = strings.TrimSpace(value)
		}
	}

	return &OpenAIClient{
		provider:     config.Provider,
		apiKey:       strings.TrimSpace(config.APIKey),
		baseURL:      strings.TrimSuffix(config.BaseURL, "/"),
		timeout:      config.Timeout,
		maxRetries:   config.MaxRetries,
		httpClient:   config.HTTPClient,
		organization: strings.TrimSpace(config.Organization),
		headers:      headers,
	}
}

func (c *OpenAIClient) Available() bool {
	return c.apiKey != ""
}

func (c *OpenAIClient) Complete(ctx context.Context, request ChatRequest) (ChatResponse, error) {
	if !c.Available() {
		return ChatResponse{}, ErrClientUnavailable
	}
	if strings.TrimSpace(request.Model) == "" {
		return ChatResponse{}, errors.New("model is required")
	}
	if len(request.Messages) == 0 {
		return ChatResponse{}, errors.New("messages are required")
	}

	payload := chatCompletionsRequest{
		Model:       request.Model,
		Messages:    make([]chatCompletionsMessage, 0, len(request.Messages)),
		Temperature: request.Temperature,
		MaxTokens:   request.MaxOutputTokens,
	}
	for _, message := range request.Messages {
		payload.Messages = append(payload.Messages, toWireMessage(message))
	}
	for _, tool := range request.Tools {
		payload.Tools = append(payload.Tools, chatCompletionsTool{
			Type: "function",
			Function: chatCompletionsFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("marshal %s payload: %w", c.provider, err)
	}

	body, err := c.post(ctx, "/chat/completions", encoded)
	if err != nil {
		return ChatResponse{}, err
	}

	var raw chatCompletionsResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return ChatResponse{}, fmt.Errorf("decode %s response: %w", c.provider, err)
	}
	if len(raw.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("%s response without choices", c.provider)
	}

	choice := raw.Choices[0]
	response := ChatResponse{
		Content:      extractMessageText(choice.Message.Content),
		FinishReason: choice.FinishReason,
		ModelID:      firstNonEmpty(raw.Model, request.Model),
		Usage: TokenUsage{
			InputTokens:  raw.Usage.PromptTokens,
			OutputTokens: raw.Usage.CompletionTokens,
			TotalTokens:  raw.Usage.TotalTokens,
		},
	}
	for _, call := range choice.Message.ToolCalls {
		if strings.TrimSpace(call.Function.Name) == "" {
			return ChatResponse{}, fmt.Errorf("%s tool call without function name", c.provider)
		}
		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	if strings.TrimSpace(response.Content) == "" && len(response.ToolCalls) == 0 {
		return ChatResponse{}, fmt.Errorf("%s response without content or tool calls", c.provider)
	}
	return response, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, request EmbedRequest) (EmbedResult, error) {
	if !c.Available() {
		return EmbedResult{}, ErrClientUnavailable
	}
	if strings.TrimSpace(request.Model) == "" {
		return EmbedResult{}, errors.New("model is required")
	}
	if len(request.Input) == 0 {
		return EmbedResult{}, errors.New("input is required")
	}

	encoded, err := json.Marshal(map[string]any{
		"model": request.Model,
		"input": request.Input,
	})
	if err != nil {
		return EmbedResult{}, fmt.Errorf("marshal %s embeddings payload: %w", c.provider, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result, callErr := c.callEmbeddingsAPI(ctx, encoded, request)
		if callErr == nil {
			return result, nil
		}
		lastErr = callErr

		if !isRetryableProviderError(callErr) || attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(350*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return EmbedResult{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("unknown %s error", c.provider)
	}
	return EmbedResult{}, lastErr
}

func (c *OpenAIClient) callEmbeddingsAPI(ctx context.Context, payload []byte, request EmbedRequest) (EmbedResult, error) {
	body, err := c.post(ctx, "/embeddings", payload)
	if err != nil {
		return EmbedResult{}, err
	}

	var raw embeddingsResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return EmbedResult{}, fmt.Errorf("decode %s embeddings: %w", c.provider, err)
	}
	if len(raw.Data) != len(request.Input) {
		return EmbedResult{}, fmt.Errorf("%s returned %d embeddings for %d inputs", c.provider, len(raw.Data), len(request.Input))
	}

	sort.Slice(raw.Data, func(i, j int) bool {
		return raw.Data[i].Index < raw.Data[j].Index
	})
	vectors := make([][]float32, 0, len(raw.Data))
	for _, item := range raw.Data {
		if len(item.Embedding) == 0 {
			return EmbedResult{}, fmt.Errorf("%s returned an empty embedding", c.provider)
		}
		vectors = append(vectors, item.Embedding)
	}

	return EmbedResult{
		Vectors: vectors,
		ModelID: firstNonEmpty(raw.Model, request.Model),
		Usage: TokenUsage{
			InputTokens: raw.Usage.PromptTokens,
			TotalTokens: raw.Usage.TotalTokens,
		},
	}, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", c.provider, err)
	}
	httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")
	if c.organization != "" {
		httpRequest.Header.Set("OpenAI-Organization", c.organization)
	}
	for key, value := range c.headers {
		httpRequest.Header.Set(key, value)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timeout: %w", c.provider, err)
		}
		return nil, fmt.Errorf("%s transport error: %w", c.provider, err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", c.provider, err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 700 {
			message = message[:700]
		}
		return nil, &providerHTTPError{
			Provider:   c.provider,
			StatusCode: httpResponse.StatusCode,
			Message:    message,
		}
	}
	return body, nil
}

func toWireMessage(message ChatMessage) chatCompletionsMessage {
	wire := chatCompletionsMessage{
		Role:       message.Role,
		ToolCallID: message.ToolCallID,
		Name:       message.Name,
	}
	if message.Content != "" || len(message.ToolCalls) == 0 {
		content := message.Content
		wire.Content = &content
	}
	for _, call := range message.ToolCalls {
		arguments := call.Arguments
		if strings.TrimSpace(arguments) == "" {
			arguments = "{}"
		}
		wire.ToolCalls = append(wire.ToolCalls, chatCompletionsToolCall{
			ID:   call.ID,
			Type: "function",
			Function: chatCompletionsCall{
				Name:      call.Name,
				Arguments: arguments,
			},
		})
	}
	return wire
}

type chatCompletionsRequest struct {
	Model       string                   `json:"model"`
	Messages    []chatCompletionsMessage `json:"messages"`
	Tools       []chatCompletionsTool    `json:"tools,omitempty"`
	Temperature float64                  `json:"temperature"`
	MaxTokens   int                      `json:"max_tokens,omitempty"`
}

type chatCompletionsMessage struct {
	Role       string                    `json:"role"`
	Content    *string                   `json:"content"`
	ToolCalls  []chatCompletionsToolCall `json:"tool_calls,omitempty"`
	ToolCallID string                    `json:"tool_call_id,omitempty"`
	Name       string                    `json:"name,omitempty"`
}

type chatCompletionsTool struct {
	Type     string                  `json:"type"`
	Function chatCompletionsFunction `json:"function"`
}

type chatCompletionsFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatCompletionsToolCall struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Function chatCompletionsCall `json:"function"`
}

type chatCompletionsCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatCompletionsResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Role      string                    `json:"role"`
			Content   any                       `json:"content"`
			ToolCalls []chatCompletionsToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingsResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func extractMessageText(content any) string {
	switch typed := content.(type) {
	case string:
		return strings.TrimSpace(typed)
	case []any:
		fragments := make([]string, 0, len(typed))
		for _, item := range typed {
			fragment, ok := item.(map[string]any)
			if !ok {
				continue
			}
			textValue, _ := fragment["text"].(string)
			if strings.TrimSpace(textValue) == "" {
				continue
			}
			fragments = append(fragments, strings.TrimSpace(textValue))
		}
		return strings.TrimSpace(strings.Join(fragments, "\n"))
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

type providerHTTPError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func isRetryableProviderError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *providerHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "timeout") || strings.Contains(message, "tempor")
}
