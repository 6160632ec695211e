package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"content-analyzer/internal/llm"
	"content-analyzer/internal/shared/telemetry"
)

const (
	DefaultModel = "gpt-4o-mini"
	maxErrorBody = 2048
)

var apiURL = "https://api.openai.com/v1/chat/completions"

// Client implements llm.Provider using OpenAI Chat Completions.
type Client struct {
	apiKey        string
	model         string
	httpClient    *http.Client
	noTemperature bool
}

// NewClient constructs an OpenAI client. Models listed in LLM_NO_TEMP0_MODELS
// are sent without a temperature.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:        apiKey,
		model:         model,
		httpClient:    &http.Client{},
		noTemperature: isGPT5(model) || inModelList(os.Getenv("LLM_NO_TEMP0_MODELS"), model),
	}, nil
}

func (c *Client) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string         `json:"model"`
	Messages            []chatMessage  `json:"messages"`
	Temperature         *float32       `json:"temperature,omitempty"`
	MaxTokens           int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	ResponseFormat      responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete sends the prompt as a user message. A model that rejects
// temperature 0 is retried once without it.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	out, status, apiErr, err := c.completeOnce(ctx, req, !c.noTemperature)
	if err == nil && apiErr != nil && isTemperatureUnsupported(apiErr) && !c.noTemperature {
		telemetry.Warn("llm.openai.temperature_retry", map[string]any{"model": c.model})
		out, status, apiErr, err = c.completeOnce(ctx, req, false)
	}
	if err != nil {
		return llm.Completion{}, c.fail(status, err)
	}
	if apiErr != nil {
		return llm.Completion{}, c.fail(status, fmt.Errorf("%s (%s)", apiErr.Message, apiErr.Type))
	}
	return out, nil
}

func (c *Client) completeOnce(ctx context.Context, req llm.Request, withTemperature bool) (llm.Completion, int, *apiError, error) {
	system := req.System
	if system == "" {
		system = llm.SystemInstruction
	}
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Prompt},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	if withTemperature {
		temp := float32(0)
		body.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		if isGPT5(c.model) {
			body.MaxCompletionTokens = req.MaxTokens
		} else {
			body.MaxTokens = req.MaxTokens
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return llm.Completion{}, 0, nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return llm.Completion{}, 0, nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return llm.Completion{}, 0, nil, fmt.Errorf("request: %w", ctxErr)
		}
		return llm.Completion{}, 0, nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Completion{}, 0, nil, fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(raw, &parsed)
	if decodeErr == nil && parsed.Error != nil {
		return llm.Completion{}, statusOrZero(resp.StatusCode), parsed.Error, nil
	}
	if resp.StatusCode >= 300 {
		msg := string(raw)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return llm.Completion{}, resp.StatusCode, nil, errors.New(strings.TrimSpace(msg))
	}
	if decodeErr != nil {
		return llm.Completion{}, 0, nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if len(parsed.Choices) == 0 {
		return llm.Completion{}, 0, nil, fmt.Errorf("response missing choices")
	}

	out := llm.Completion{
		Text:  parsed.Choices[0].Message.Content,
		Model: parsed.Model,
	}
	if out.Model == "" {
		out.Model = c.model
	}
	if parsed.Usage != nil {
		out.InputTokens = parsed.Usage.PromptTokens
		out.OutputTokens = parsed.Usage.CompletionTokens
		out.UsageReported = true
	}
	return out, 0, nil, nil
}

func (c *Client) fail(status int, err error) error {
	return &llm.ProviderError{Provider: c.Name(), StatusCode: status, Err: err}
}

func statusOrZero(status int) int {
	if status >= 300 {
		return status
	}
	return 0
}

func isTemperatureUnsupported(e *apiError) bool {
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "temperature") && (strings.Contains(msg, "unsupported") || strings.Contains(msg, "does not support"))
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

func inModelList(list, model string) bool {
	want := strings.ToLower(strings.TrimSpace(model))
	for _, item := range strings.Split(list, ",") {
		if strings.ToLower(strings.TrimSpace(item)) == want && want != "" {
			return true
		}
	}
	return false
}

var _ llm.Provider = (*Client)(nil)
