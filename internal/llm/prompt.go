package llm

import (
	_ "embed"
	"strings"
)

//go:embed prompts/analyze.txt
var analyzePrompt string

const (
	// DefaultMaxTokens bounds the analysis response length.
	DefaultMaxTokens = 500
	// SystemInstruction is sent as the system prompt of every analysis request.
	SystemInstruction = "You are a content analysis engine. Respond with a single JSON object only, without markdown fences or commentary."
)

// BuildPrompt appends content verbatim to the fixed response-shape template.
func BuildPrompt(content string) string {
	return strings.TrimRight(analyzePrompt, "\n") + content
}

// NewAnalysisRequest builds the request sent for one analysis run.
func NewAnalysisRequest(content string, maxTokens int) Request {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return Request{
		System:    SystemInstruction,
		Prompt:    BuildPrompt(content),
		MaxTokens: maxTokens,
	}
}
