package vertex

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"content-analyzer/internal/llm"
)

const DefaultModel = "gemini-1.5-pro"

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Provider using Gemini models on Vertex AI.
type Client struct {
	model    string
	base     *genai.Client
	generate func(req llm.Request) generator
}

// NewClient connects to Vertex AI with application default credentials.
func NewClient(ctx context.Context, projectID, region, model string) (*Client, error) {
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(region) == "" {
		return nil, fmt.Errorf("VERTEX_PROJECT and VERTEX_REGION are required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	base, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	c := &Client{model: model, base: base}
	c.generate = func(req llm.Request) generator {
		m := base.GenerativeModel(model)
		m.GenerationConfig = genai.GenerationConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0.0),
		}
		if req.MaxTokens > 0 {
			m.SetMaxOutputTokens(int32(req.MaxTokens))
		}
		if req.System != "" {
			m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
		}
		return m
	}
	return c, nil
}

func (c *Client) Name() string { return "vertex" }

// Complete concatenates the text parts of the first candidate.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	resp, err := c.generate(req).GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return llm.Completion{}, &llm.ProviderError{Provider: c.Name(), Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llm.Completion{}, &llm.ProviderError{Provider: c.Name(), Err: fmt.Errorf("response has no candidates")}
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	out := llm.Completion{Text: b.String(), Model: c.model}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
		out.UsageReported = true
	}
	return out, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

var _ llm.Provider = (*Client)(nil)
