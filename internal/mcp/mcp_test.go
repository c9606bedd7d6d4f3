package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/vocap/internal/config"
	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/ops"
)

// testSetup opens a runtime with a temporary ledger and vault.
func testSetup(t *testing.T) (*ops.Runtime, string) {
	t.Helper()

	baseDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Vault = t.TempDir()

	rt, err := ops.Open(baseDir, cfg, nil, nil)
	if err != nil {
		t.Fatalf("failed to open runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close() })

	return rt, baseDir
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleCapture(t *testing.T) {
	rt, baseDir := testSetup(t)
	h := NewHandlers(rt, baseDir)
	ctx := context.Background()

	t.Run("records a note", func(t *testing.T) {
		result, err := h.HandleCapture(ctx, makeRequest(map[string]any{
			"text":      "take a note, learned something new today",
			"source_id": "mcp-1",
		}))
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)

		if output["recorded"] != float64(1) {
			t.Errorf("recorded = %v, want 1", output["recorded"])
		}
		results := output["results"].([]any)
		first := results[0].(map[string]any)
		if first["outcome"] != "recorded" {
			t.Errorf("outcome = %v, want recorded", first["outcome"])
		}
		if first["content"] != "learned something new today" {
			t.Errorf("content = %v", first["content"])
		}
		if first["source_id"] != "mcp-1" {
			t.Errorf("source_id = %v, want mcp-1", first["source_id"])
		}
	})

	t.Run("repeat is duplicate", func(t *testing.T) {
		result, _ := h.HandleCapture(ctx, makeRequest(map[string]any{
			"text": "Take a note learned something new today",
		}))
		output := parseOutput(t, result)
		first := output["results"].([]any)[0].(map[string]any)
		if first["outcome"] != "duplicate" {
			t.Errorf("outcome = %v, want duplicate", first["outcome"])
		}
	})

	t.Run("missing text", func(t *testing.T) {
		result, err := h.HandleCapture(ctx, makeRequest(map[string]any{}))
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		assertErrorCode(t, result, string(errors.ErrInvalidRequest))
	})

	t.Run("wrong argument type", func(t *testing.T) {
		result, _ := h.HandleCapture(ctx, makeRequest(map[string]any{"text": 42}))
		assertErrorCode(t, result, string(errors.ErrInvalidRequest))
	})
}

func TestHandleCapture_NoVault(t *testing.T) {
	rt, err := ops.Open(t.TempDir(), config.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("failed to open runtime: %v", err)
	}
	defer rt.Close()

	h := NewHandlers(rt, t.TempDir())
	result, _ := h.HandleCapture(context.Background(), makeRequest(map[string]any{"text": "take a note x"}))
	assertErrorCode(t, result, string(errors.ErrInvalidConfig))
}

func TestHandleClassify(t *testing.T) {
	rt, baseDir := testSetup(t)
	h := NewHandlers(rt, baseDir)

	result, err := h.HandleClassify(context.Background(), makeRequest(map[string]any{
		"text": "嗯，记任务：交报告",
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	if output["reason"] != "matched" {
		t.Errorf("reason = %v, want matched", output["reason"])
	}
	if output["category"] != "task" {
		t.Errorf("category = %v, want task", output["category"])
	}
	if output["content"] != "交报告" {
		t.Errorf("content = %v, want 交报告", output["content"])
	}
}

func TestHandleLedgerStatsAndPurge(t *testing.T) {
	rt, baseDir := testSetup(t)
	h := NewHandlers(rt, baseDir)
	ctx := context.Background()

	for _, text := range []string{"take a note one", "add a task two"} {
		if _, err := h.HandleCapture(ctx, makeRequest(map[string]any{"text": text})); err != nil {
			t.Fatalf("setup capture failed: %v", err)
		}
	}

	result, err := h.HandleLedgerStats(ctx, makeRequest(map[string]any{"limit": 1}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	stats := output["stats"].(map[string]any)
	if stats["entries"] != float64(2) {
		t.Errorf("entries = %v, want 2", stats["entries"])
	}
	if len(output["recent"].([]any)) != 1 {
		t.Errorf("recent = %v, want 1 entry", output["recent"])
	}

	result, _ = h.HandleLedgerStats(ctx, makeRequest(map[string]any{"limit": 0}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))

	result, _ = h.HandleLedgerStats(ctx, makeRequest(map[string]any{"limit": "five"}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))
	if msg := extractErrorMessage(result); !strings.Contains(msg, `\"limit\"`) || !strings.Contains(msg, `"argument":"limit"`) {
		t.Errorf("error should name the argument, got %s", msg)
	}

	result, err = h.HandleLedgerPurge(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output = parseOutput(t, result)
	if output["purged"] != float64(0) {
		t.Errorf("purged = %v, want 0 (entries are fresh)", output["purged"])
	}
}

func TestHandleNotesToday(t *testing.T) {
	rt, baseDir := testSetup(t)
	h := NewHandlers(rt, baseDir)
	ctx := context.Background()

	if _, err := h.HandleCapture(ctx, makeRequest(map[string]any{"text": "add a task pay rent"})); err != nil {
		t.Fatalf("setup capture failed: %v", err)
	}

	result, err := h.HandleNotesToday(ctx, makeRequest(map[string]any{"category": "task"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if output["exists"] != true {
		t.Errorf("exists = %v, want true", output["exists"])
	}
	entries := output["entries"].([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["content"] != "pay rent" {
		t.Errorf("entries = %v", entries)
	}

	result, _ = h.HandleNotesToday(ctx, makeRequest(map[string]any{"date": "yesterday"}))
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))
}

func TestServerRegistration(t *testing.T) {
	rt, baseDir := testSetup(t)

	s := NewServer(rt, baseDir, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"capture_utterance",
		"capture_classify",
		"ledger_stats",
		"ledger_purge",
		"notes_today",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	rt, baseDir := testSetup(t)

	rt.Config.DisabledTools = []string{"ledger_purge", "ledger_purge", "capture_utterance"}
	s := NewServer(rt, baseDir, "test")
	tools := s.ListTools()

	if len(tools) != 3 {
		t.Errorf("registered tool count = %d, want 3", len(tools))
	}
	for _, name := range []string{"ledger_purge", "capture_utterance"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	rt, baseDir := testSetup(t)

	rt.Config.DisabledTools = AllToolNames()
	s := NewServer(rt, baseDir, "test")

	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{
			name:    "all valid",
			input:   []string{"ledger_purge", "notes_today"},
			wantLen: 0,
		},
		{
			name:    "one unknown",
			input:   []string{"ledger_purge", "fake_tool"},
			wantLen: 1,
		},
		{
			name:    "all unknown",
			input:   []string{"foo", "bar", "baz"},
			wantLen: 3,
		},
		{
			name:    "empty list",
			input:   []string{},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()

	if len(names) != 5 {
		t.Errorf("AllToolNames() returned %d names, want 5", len(names))
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
	if names[0] != "capture_classify" {
		t.Errorf("AllToolNames() should be sorted, got %v", names)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	internal := errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied"))
	internal.Details = map[string]any{"path": "/tmp/secret.db"}
	r := errorResult(internal)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("results[2]: %w", errors.NewStorageFailure("note append", fmt.Errorf("disk full")))

	r := errorResult(wrappedErr)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrStorageFailure) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrStorageFailure)
	}
	msg := errObj["message"].(string)
	if !strings.Contains(msg, "results[2]") {
		t.Errorf("message should contain wrapper context 'results[2]', got: %s", msg)
	}
}

func TestErrorResult_PlainErrorIsInternal(t *testing.T) {
	r := errorResult(fmt.Errorf("boom"))
	assertErrorCode(t, r, "INTERNAL")
	if strings.Contains(extractErrorMessage(r), "boom") {
		t.Error("plain errors should not leak their message")
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewNotFound("abc"))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
