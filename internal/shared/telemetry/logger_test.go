package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestWriteFlattensFieldsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Warn("pipeline.advisory_failed", map[string]any{
		"step":  "queue_complete",
		"error": errors.New("connection reset"),
		"msg":   "overridden",
	})

	line := strings.TrimSpace(buf.String())
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("decode log line %q: %v", line, err)
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected level warn, got %v", payload["level"])
	}
	if payload["msg"] != "pipeline.advisory_failed" {
		t.Fatalf("expected reserved msg key to win, got %v", payload["msg"])
	}
	if payload["error"] != "connection reset" {
		t.Fatalf("expected error rendered as string, got %v", payload["error"])
	}
	if payload["step"] != "queue_complete" {
		t.Fatalf("unexpected step: %v", payload["step"])
	}
}
