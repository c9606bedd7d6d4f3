package mcp

import "github.com/mark3labs/mcp-go/mcp"

var captureToolDef = mcp.NewTool("capture_utterance",
	mcp.WithDescription("Capture a transcribed voice utterance. If it starts with the note or task keyword "+
		"(tolerating fillers, homophones and dropped words), the content is appended to today's note or task file. "+
		"Content seen within the dedup window is reported as duplicate and not written again."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Transcript text: one utterance, several lines, or a JSON chat payload"),
	),
	mcp.WithString("source_id",
		mcp.Description("Optional caller identifier echoed back in results"),
	),
)

var classifyToolDef = mcp.NewTool("capture_classify",
	mcp.WithDescription("Dry run: show how a transcript would be normalized and classified, without recording or writing anything."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Transcript text to classify"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var ledgerStatsToolDef = mcp.NewTool("ledger_stats",
	mcp.WithDescription("Summarize the dedup ledger: entry counts per category and the most recently seen fingerprints."),
	mcp.WithNumber("limit",
		mcp.Description("Number of recent entries to return (default 20, max 100)"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var ledgerPurgeToolDef = mcp.NewTool("ledger_purge",
	mcp.WithDescription("Remove dedup ledger entries not seen within the dedup window."),
	mcp.WithDestructiveHintAnnotation(true),
)

var notesTodayToolDef = mcp.NewTool("notes_today",
	mcp.WithDescription("Read a daily note or task file from the vault."),
	mcp.WithString("category",
		mcp.Description("'note' (default) or 'task'"),
		mcp.Enum("note", "task"),
	),
	mcp.WithString("date",
		mcp.Description("Day to read as YYYY-MM-DD (default today)"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)
