package main

// Analyze a single file or stdin with the configured provider, without
// touching the record store:
//   go run ./cmd/analyze -file notes.pdf
//   echo "text" | go run ./cmd/analyze

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"content-analyzer/internal/bootstrap"
	"content-analyzer/internal/extract"
	"content-analyzer/internal/llm"
	"content-analyzer/internal/shared/config"
)

type output struct {
	Summary   string   `json:"summary"`
	Sentiment string   `json:"sentiment"`
	Tags      []string `json:"tags"`
	Model     string   `json:"model,omitempty"`
	Tokens    int      `json:"tokens_used"`
}

type options struct {
	filePath string
	rawOut   string
}

func main() {
	cfg := config.Load()

	var opts options
	flag.StringVar(&opts.filePath, "file", "", "Path to a text, PDF or DOCX file (default stdin)")
	flag.StringVar(&cfg.LLMProvider, "provider", cfg.LLMProvider, "Analysis provider (anthropic, openai, vertex)")
	flag.StringVar(&cfg.LLMModel, "model", cfg.LLMModel, "Provider model")
	flag.StringVar(&opts.rawOut, "raw", "", "Path to write the raw provider response (optional)")
	flag.Parse()

	if err := run(context.Background(), cfg, opts, os.Stdin, os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, opts options, stdin io.Reader, stdout io.Writer) error {
	content, err := readInput(ctx, opts.filePath, stdin)
	if err != nil {
		return err
	}

	client, err := bootstrap.BuildProvider(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := client.(io.Closer); ok {
		defer c.Close()
	}
	client = llm.NewRetrying(client, cfg.ProviderMaxRetries, 0)

	callCtx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
	defer cancel()
	completion, err := client.Complete(callCtx, llm.NewAnalysisRequest(content, cfg.ProviderMaxTokens))
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}

	if opts.rawOut != "" {
		if err := os.WriteFile(opts.rawOut, []byte(completion.Text), 0o644); err != nil {
			return fmt.Errorf("write raw response: %w", err)
		}
	}

	analysis, err := llm.ParseAnalysis(completion.Text)
	if err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{
		Summary:   analysis.Summary,
		Sentiment: string(analysis.Sentiment),
		Tags:      analysis.Tags,
		Model:     completion.Model,
		Tokens:    completion.Tokens(),
	}); err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}
	return nil
}

func readInput(ctx context.Context, path string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return extract.FromBytes(ctx, data, "text/plain", "stdin.txt")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	text, err := extract.FromBytes(ctx, data, "", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", path, err)
	}
	return text, nil
}
