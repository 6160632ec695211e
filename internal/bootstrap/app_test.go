package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"content-analyzer/internal/contentitems"
	"content-analyzer/internal/llm"
	"content-analyzer/internal/llm/anthropic"
	"content-analyzer/internal/shared/config"
	"content-analyzer/internal/shared/telemetry"
)

func devConfig() config.Config {
	cfg := config.Defaults()
	cfg.Env = "dev"
	return cfg
}

func TestBuildDevFallsBackToMemoryAndPlaceholder(t *testing.T) {
	var logs strings.Builder
	t.Cleanup(telemetry.SetOutput(&logs))

	app, err := Build(context.Background(), devConfig())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer app.Close()

	if app.DB != nil {
		t.Fatalf("expected no database in dev without DATABASE_URL")
	}
	if _, ok := app.ItemsRepo.(*contentitems.MemoryRepo); !ok {
		t.Fatalf("expected memory repo, got %T", app.ItemsRepo)
	}
	if app.Provider.Name() != "placeholder" {
		t.Fatalf("expected placeholder provider, got %s", app.Provider.Name())
	}
	if app.Archive != nil || app.Events != nil {
		t.Fatalf("expected optional collaborators to be disabled")
	}

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d: %s", resp.Code, resp.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"content":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected provider error from placeholder, got %d", resp.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["kind"] != "provider_error" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig()
	cfg.Env = "production"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildProvider(t *testing.T) {
	cfg := devConfig()
	cfg.AnthropicAPIKey = "test-key"
	p, err := BuildProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}
	if _, ok := p.(*anthropic.Client); !ok {
		t.Fatalf("expected anthropic client, got %T", p)
	}

	cfg = devConfig()
	cfg.Env = "production"
	cfg.LLMProvider = "openai"
	if _, err := BuildProvider(context.Background(), cfg); err == nil {
		t.Fatalf("expected missing key error in production")
	}

	cfg.Env = "local"
	p, err = BuildProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected placeholder in local env: %v", err)
	}
	if _, ok := p.(llm.PlaceholderProvider); !ok {
		t.Fatalf("expected placeholder provider, got %T", p)
	}
}

func TestBuildArchiveRequiresBucket(t *testing.T) {
	cfg := devConfig()
	cfg.ObjectStoreType = "s3"
	if _, err := buildArchive(context.Background(), cfg); err == nil {
		t.Fatalf("expected missing bucket error")
	}

	cfg.ObjectStoreType = "local"
	cfg.LocalStoreDir = t.TempDir()
	store, err := buildArchive(context.Background(), cfg)
	if err != nil || store == nil {
		t.Fatalf("expected local store, got %v %v", store, err)
	}
}
