package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/ops"
	"github.com/hpungsan/vocap/internal/utterance"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	rt      *ops.Runtime
	baseDir string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(rt *ops.Runtime, baseDir string) *Handlers {
	return &Handlers{rt: rt, baseDir: baseDir}
}

// Request types for each tool

// CaptureRequest represents the arguments for capture_utterance.
type CaptureRequest struct {
	Text     string `json:"text"`
	SourceID string `json:"source_id,omitempty"`
}

// ClassifyRequest represents the arguments for capture_classify.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// LedgerStatsRequest represents the arguments for ledger_stats.
type LedgerStatsRequest struct {
	Limit *int `json:"limit,omitempty"`
}

// NotesTodayRequest represents the arguments for notes_today.
type NotesTodayRequest struct {
	Category string `json:"category,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Handler implementations

// HandleCapture handles the capture_utterance tool call.
func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	output, err := ops.Capture(ctx, h.rt, ops.CaptureInput{Text: input.Text, SourceID: input.SourceID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleClassify handles the capture_classify tool call.
func (h *Handlers) HandleClassify(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClassifyRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	output, err := ops.Classify(h.rt.Matcher, ops.ClassifyInput{Text: input.Text})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleLedgerStats handles the ledger_stats tool call.
func (h *Handlers) HandleLedgerStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LedgerStatsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	output, err := ops.LedgerStats(ctx, h.rt, ops.LedgerStatsInput{Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleLedgerPurge handles the ledger_purge tool call.
func (h *Handlers) HandleLedgerPurge(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	output, err := ops.Purge(ctx, h.rt)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleNotesToday handles the notes_today tool call.
func (h *Handlers) HandleNotesToday(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NotesTodayRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	output, err := ops.Today(h.rt, ops.TodayInput{
		Category: utterance.Category(input.Category),
		Date:     input.Date,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var vErr *errors.VocapError
	if stderrors.As(err, &vErr) {
		errorObj := map[string]any{
			"code":    vErr.Code,
			"message": errorMessage(err, vErr),
			"status":  vErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if vErr.Code != errors.ErrInternal && vErr.Details != nil {
			errorObj["details"] = vErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// errorMessage keeps the context of a wrapped error.
func errorMessage(err error, vErr *errors.VocapError) string {
	if err != error(vErr) {
		return err.Error()
	}
	return vErr.Message
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
