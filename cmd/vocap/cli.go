package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/vocap/internal/bridge"
	"github.com/hpungsan/vocap/internal/capture"
	"github.com/hpungsan/vocap/internal/config"
	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/httpapi"
	"github.com/hpungsan/vocap/internal/mcp"
	"github.com/hpungsan/vocap/internal/metrics"
	"github.com/hpungsan/vocap/internal/ops"
	"github.com/hpungsan/vocap/internal/source"
	"github.com/hpungsan/vocap/internal/utterance"
)

// maxStdinBytes bounds piped input for capture and classify.
const maxStdinBytes = 1 << 20

// cliEnv carries what every command needs before the runtime is opened.
type cliEnv struct {
	baseDir string
	cfg     *config.Config
	logger  *zap.Logger
}

// open builds the runtime. Commands close it when done.
func (e *cliEnv) open(rec capture.Recorder) (*ops.Runtime, error) {
	return ops.Open(e.baseDir, e.cfg, e.logger, rec)
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *cliEnv) *cli.App {
	app := &cli.App{
		Name:    "vocap",
		Usage:   "Capture voice notes and tasks into a notes vault",
		Version: Version,
		Commands: []*cli.Command{
			runCmd(env),
			captureCmd(env),
			classifyCmd(env),
			purgeCmd(env),
			ledgerCmd(env),
			todayCmd(env),
			setupCmd(env),
			mcpCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// runCmd creates the run command.
func runCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the capture bridge: watch sources and write notes until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "watch", Usage: "Transcript file to watch (overrides watch_file)"},
			&cli.StringFlag{Name: "http", Usage: "Ingest API listen address (overrides http_addr; empty disables)"},
			&cli.StringFlag{Name: "nats", Usage: "NATS server URL (overrides nats_url)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *env.cfg
			if c.IsSet("watch") {
				cfg.WatchFile = config.ExpandHome(c.String("watch"))
			}
			if c.IsSet("http") {
				cfg.HTTPAddr = c.String("http")
			}
			if c.IsSet("nats") {
				cfg.NATSURL = c.String("nats")
			}
			if err := cfg.ValidateVault(); err != nil {
				return outputError(err)
			}
			if cfg.WatchFile == "" && cfg.HTTPAddr == "" && cfg.NATSURL == "" {
				return outputError(errors.NewInvalidConfig("sources", "no source configured; set watch_file, http_addr or nats_url"))
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(reg)

			runEnv := &cliEnv{baseDir: env.baseDir, cfg: &cfg, logger: env.logger}
			rt, err := runEnv.open(m)
			if err != nil {
				return outputError(err)
			}
			defer rt.Close()

			opts := bridge.Options{
				Capturer:      rt.Pipeline,
				Purger:        rt.Ledger,
				PurgeInterval: cfg.PurgeInterval,
				Workers:       cfg.Workers,
				Recorder:      m,
				Logger:        env.logger,
			}
			if cfg.WatchFile != "" {
				opts.Sources = append(opts.Sources, &source.FileWatcher{
					Path:      cfg.WatchFile,
					TailLines: cfg.TailLines,
					Interval:  cfg.PollInterval,
					Logger:    env.logger,
					OnError:   func(error) { m.RecordSourceError("file") },
				})
			}
			if cfg.NATSURL != "" {
				opts.Sources = append(opts.Sources, &source.NATS{
					URL:     cfg.NATSURL,
					Subject: cfg.NATSSubject,
					Logger:  env.logger,
				})
			}
			if cfg.HTTPAddr != "" {
				srv, err := httpapi.NewServer(rt.Pipeline, rt.Ledger, reg, env.logger)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				opts.Server = srv
				opts.ServerAddr = cfg.HTTPAddr
			}

			b, err := bridge.New(opts)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			env.logger.Info("vocap running",
				zap.String("vault", cfg.Vault),
				zap.Duration("dedup_window", cfg.DedupWindow),
				zap.Int("rule_set_version", utterance.RuleSetVersion),
			)
			if err := b.Run(ctx); err != nil && !stderrors.Is(err, context.Canceled) {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// captureCmd creates the capture command.
func captureCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Capture an utterance (argument or stdin) into the vault",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source-id", Usage: "Identifier echoed back in results"},
		},
		Action: func(c *cli.Context) error {
			text, err := textInput(c)
			if err != nil {
				return outputError(err)
			}

			rt, err := env.open(nil)
			if err != nil {
				return outputError(err)
			}
			defer rt.Close()

			output, err := ops.Capture(c.Context, rt, ops.CaptureInput{
				Text:     text,
				SourceID: c.String("source-id"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// classifyCmd creates the classify command.
func classifyCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Show how an utterance would be classified, without writing anything",
		ArgsUsage: "[text]",
		Action: func(c *cli.Context) error {
			text, err := textInput(c)
			if err != nil {
				return outputError(err)
			}

			matcher, err := utterance.NewMatcher(utterance.RuleConfig{
				KeywordNote: env.cfg.KeywordNote,
				KeywordTask: env.cfg.KeywordTask,
				Homophones:  env.cfg.Homophones,
				Fillers:     env.cfg.Fillers,
			})
			if err != nil {
				return outputError(errors.NewInvalidConfig("keywords", err.Error()))
			}

			output, err := ops.Classify(matcher, ops.ClassifyInput{Text: text})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Remove ledger entries not seen within the dedup window",
		Action: func(c *cli.Context) error {
			rt, err := env.open(nil)
			if err != nil {
				return outputError(err)
			}
			defer rt.Close()

			output, err := ops.Purge(c.Context, rt)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// ledgerCmd creates the ledger command.
func ledgerCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "Show dedup ledger statistics and recent entries",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Number of recent entries (default 20, max 100)"},
		},
		Action: func(c *cli.Context) error {
			rt, err := env.open(nil)
			if err != nil {
				return outputError(err)
			}
			defer rt.Close()

			input := ops.LedgerStatsInput{}
			if c.IsSet("limit") {
				limit := c.Int("limit")
				input.Limit = &limit
			}

			output, err := ops.LedgerStats(c.Context, rt, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// todayCmd creates the today command.
func todayCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "today",
		Usage: "Show today's captured notes (or tasks)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "tasks", Aliases: []string{"t"}, Usage: "Show tasks instead of notes"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Day to show as YYYY-MM-DD"},
		},
		Action: func(c *cli.Context) error {
			rt, err := env.open(nil)
			if err != nil {
				return outputError(err)
			}
			defer rt.Close()

			input := ops.TodayInput{Category: utterance.CategoryNote, Date: c.String("date")}
			if c.Bool("tasks") {
				input.Category = utterance.CategoryTask
			}

			output, err := ops.Today(rt, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// setupCmd creates the setup command.
func setupCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Save the vault path, or discover vaults in common locations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "vault", Usage: "Path to the notes vault"},
			&cli.BoolFlag{Name: "discover", Usage: "List vaults found in common locations"},
		},
		Action: func(c *cli.Context) error {
			vault := c.String("vault")
			discover := c.Bool("discover")
			if (vault == "") == !discover {
				return outputError(errors.NewInvalidRequest("specify exactly one of --vault or --discover"))
			}

			output, err := ops.Setup(env.baseDir, ops.SetupInput{Vault: vault, Discover: discover})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(env *cliEnv) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(env.cfg.DisabledTools); len(unknown) > 0 {
				env.logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
			}

			rt, err := env.open(nil)
			if err != nil {
				return outputError(err)
			}
			defer rt.Close()

			return mcp.Run(rt, env.baseDir, Version)
		},
	}
}

// Helper functions

// textInput returns the joined arguments, or stdin when there are none.
func textInput(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return strings.Join(c.Args().Slice(), " "), nil
	}
	if !stdinHasData() {
		return "", errors.NewInvalidRequest("text is required as an argument or via stdin")
	}
	text, err := readStdin(maxStdinBytes)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.NewInvalidRequest("text is required")
	}
	return text, nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var vErr *errors.VocapError
	if stderrors.As(err, &vErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", vErr.Code, vErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}
