package mcp

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/vocap/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"capture_utterance": {
		def:     captureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapture },
	},
	"capture_classify": {
		def:     classifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassify },
	},
	"ledger_stats": {
		def:     ledgerStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLedgerStats },
	},
	"ledger_purge": {
		def:     ledgerPurgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLedgerPurge },
	},
	"notes_today": {
		def:     notesTodayToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNotesToday },
	},
}

// AllToolNames returns a sorted list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with vocap tools registered.
// Tools listed in rt.Config.DisabledTools are excluded from registration.
func NewServer(rt *ops.Runtime, baseDir, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"vocap",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(rt, baseDir)

	disabled := make(map[string]bool)
	for _, name := range rt.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(rt *ops.Runtime, baseDir, version string) error {
	s := NewServer(rt, baseDir, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
