// Package ops implements the operations shared by the CLI and the MCP server.
package ops

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/hpungsan/vocap/internal/capture"
	"github.com/hpungsan/vocap/internal/config"
	"github.com/hpungsan/vocap/internal/db"
	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/ledger"
	"github.com/hpungsan/vocap/internal/notes"
	"github.com/hpungsan/vocap/internal/utterance"
)

// Listing limits
const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
)

// Runtime bundles the opened dependencies of one vocap process.
type Runtime struct {
	Config   *config.Config
	DB       *sql.DB
	Ledger   *ledger.Ledger
	Matcher  *utterance.Matcher
	Pipeline *capture.Pipeline

	// Store is nil when no vault is configured.
	Store *notes.Store
}

// Open initializes the database and builds the capture pipeline from cfg.
// cfg must already be validated. A configured vault must exist.
func Open(baseDir string, cfg *config.Config, logger *zap.Logger, rec capture.Recorder) (*Runtime, error) {
	matcher, err := utterance.NewMatcher(utterance.RuleConfig{
		KeywordNote: cfg.KeywordNote,
		KeywordTask: cfg.KeywordTask,
		Homophones:  cfg.Homophones,
		Fillers:     cfg.Fillers,
	})
	if err != nil {
		return nil, errors.NewInvalidConfig("keywords", err.Error())
	}

	var store *notes.Store
	if cfg.Vault != "" {
		if err := cfg.ValidateVault(); err != nil {
			return nil, err
		}
		store = notes.NewStore(cfg.Vault, cfg.NotesDir, cfg.TasksDir)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		return nil, errors.NewStorageFailure("open ledger", err)
	}
	l := ledger.New(database, cfg.DedupWindow)

	opts := capture.Options{
		Matcher:       matcher,
		Ledger:        l,
		LedgerTimeout: cfg.LedgerTimeout,
		Logger:        logger,
		Recorder:      rec,
	}
	if store != nil {
		opts.Sink = store
	}
	pipeline, err := capture.New(opts)
	if err != nil {
		database.Close()
		return nil, errors.NewInternal(err)
	}

	return &Runtime{
		Config:   cfg,
		DB:       database,
		Ledger:   l,
		Matcher:  matcher,
		Pipeline: pipeline,
		Store:    store,
	}, nil
}

// Close releases the database.
func (r *Runtime) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// requireStore returns the note store or an INVALID_CONFIG error.
func (r *Runtime) requireStore() (*notes.Store, error) {
	if r.Store == nil {
		return nil, errors.NewInvalidConfig("vault", "not set; run 'vocap setup --vault <path>'")
	}
	return r.Store, nil
}

// clampLimit applies the default and maximum to an optional limit.
func clampLimit(limit *int, def, max int) (int, error) {
	if limit == nil {
		return def, nil
	}
	if *limit < 1 {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("limit must be at least 1, got %d", *limit))
	}
	if *limit > max {
		return max, nil
	}
	return *limit, nil
}
