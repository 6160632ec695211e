package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"content-analyzer/internal/llm"
)

const (
	DefaultModel = "claude-sonnet-4-20250514"
	apiVersion   = "2023-06-01"
	maxErrorBody = 2048
)

var apiURL = "https://api.anthropic.com/v1/messages"

// Client implements llm.Provider using the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs an Anthropic client. An empty model selects DefaultModel.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}, nil
}

func (c *Client) Name() string { return "anthropic" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one user message and returns the first text block.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	payload, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return llm.Completion{}, c.fail(0, fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return llm.Completion{}, c.fail(0, err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return llm.Completion{}, c.fail(0, fmt.Errorf("request: %w", ctxErr))
		}
		return llm.Completion{}, c.fail(0, fmt.Errorf("request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Completion{}, c.fail(0, fmt.Errorf("read response: %w", err))
	}

	var parsed messagesResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(truncate(body, maxErrorBody)))
		if decodeErr == nil && parsed.Error != nil {
			msg = fmt.Sprintf("%s (%s)", parsed.Error.Message, parsed.Error.Type)
		}
		return llm.Completion{}, c.fail(resp.StatusCode, errors.New(msg))
	}
	if decodeErr != nil {
		return llm.Completion{}, c.fail(0, fmt.Errorf("decode response: %w", decodeErr))
	}
	if parsed.Error != nil {
		return llm.Completion{}, c.fail(0, fmt.Errorf("%s (%s)", parsed.Error.Message, parsed.Error.Type))
	}

	out := llm.Completion{Model: parsed.Model}
	if out.Model == "" {
		out.Model = c.model
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			out.Text = block.Text
			break
		}
	}
	if parsed.Usage != nil {
		out.InputTokens = parsed.Usage.InputTokens
		out.OutputTokens = parsed.Usage.OutputTokens
		out.UsageReported = true
	}
	return out, nil
}

func (c *Client) fail(status int, err error) error {
	return &llm.ProviderError{Provider: c.Name(), StatusCode: status, Err: err}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

var _ llm.Provider = (*Client)(nil)
