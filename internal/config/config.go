package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	vErrors "github.com/hpungsan/vocap/internal/errors"
)

// FileName is the config file name inside the base directory.
const FileName = "config.yaml"

// EnvPrefix is the prefix for environment overrides (VOCAP_DEDUP_WINDOW -> dedup_window).
const EnvPrefix = "VOCAP_"

const maxConfigFileSize = 1024 * 1024

// Config holds application configuration.
type Config struct {
	// Vault is the root directory of the notes vault.
	Vault string `koanf:"vault"`

	// NotesDir and TasksDir are relative to Vault.
	NotesDir string `koanf:"notes_dir"`
	TasksDir string `koanf:"tasks_dir"`

	// KeywordNote and KeywordTask are the canonical trigger keywords.
	// Each expands into the fuzzy rule set of the command matcher.
	KeywordNote string `koanf:"keyword_note"`
	KeywordTask string `koanf:"keyword_task"`

	// Homophones adds transcription variants per keyword on top of the built-in table.
	Homophones map[string][]string `koanf:"homophones"`

	// Fillers adds filler tokens on top of the built-in list.
	Fillers []string `koanf:"fillers"`

	// DedupWindow is the retention window of the dedup ledger.
	DedupWindow time.Duration `koanf:"dedup_window"`

	// PollInterval is the observation cadence of polling sources.
	PollInterval time.Duration `koanf:"poll_interval"`

	// PurgeInterval is how often expired ledger entries are removed while running.
	PurgeInterval time.Duration `koanf:"purge_interval"`

	// LedgerTimeout bounds every ledger call made by the capture pipeline.
	LedgerTimeout time.Duration `koanf:"ledger_timeout"`

	// Workers bounds concurrent capture calls in the bridge.
	Workers int `koanf:"workers"`

	// WatchFile is an optional transcript file observed by the file source.
	WatchFile string `koanf:"watch_file"`

	// TailLines is how many trailing lines each file scan re-emits.
	TailLines int `koanf:"tail_lines"`

	// HTTPAddr is the listen address of the ingest API. Empty disables it.
	HTTPAddr string `koanf:"http_addr"`

	// NATSURL enables the NATS source when set.
	NATSURL     string `koanf:"nats_url"`
	NATSSubject string `koanf:"nats_subject"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `koanf:"disabled_tools"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		NotesDir:      "Inbox/Voice Notes",
		TasksDir:      "Tasks",
		KeywordNote:   "take a note",
		KeywordTask:   "add a task",
		DedupWindow:   36 * time.Hour,
		PollInterval:  10 * time.Second,
		PurgeInterval: time.Hour,
		LedgerTimeout: 5 * time.Second,
		Workers:       4,
		TailLines:     10,
		HTTPAddr:      "127.0.0.1:8765",
		NATSSubject:   "vocap.utterances",
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Load loads configuration from baseDir/config.yaml, then applies VOCAP_*
// environment overrides on top of the defaults.
// A missing file is not an error. The result is not validated; call Validate.
func Load(baseDir string) (*Config, error) {
	k := koanf.New(".")

	content, err := readConfigFile(filepath.Join(baseDir, FileName))
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Vault = ExpandHome(strings.TrimSpace(cfg.Vault))
	cfg.WatchFile = ExpandHome(strings.TrimSpace(cfg.WatchFile))
	cfg.Fillers = mergeStringSlice(nil, cfg.Fillers)
	cfg.DisabledTools = mergeStringSlice(nil, cfg.DisabledTools)

	return cfg, nil
}

// readConfigFile returns nil content if the file doesn't exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// Validate checks every option the capture core consumes.
// It does not require a vault; see ValidateVault.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.KeywordNote) == "" {
		return vErrors.NewInvalidConfig("keyword_note", "must not be empty")
	}
	if strings.TrimSpace(c.KeywordTask) == "" {
		return vErrors.NewInvalidConfig("keyword_task", "must not be empty")
	}
	if strings.EqualFold(strings.TrimSpace(c.KeywordNote), strings.TrimSpace(c.KeywordTask)) {
		return vErrors.NewInvalidConfig("keyword_task", "must differ from keyword_note")
	}
	if c.DedupWindow < time.Hour || c.DedupWindow > 168*time.Hour {
		return vErrors.NewInvalidConfig("dedup_window", fmt.Sprintf("must be between 1h and 168h, got %s", c.DedupWindow))
	}
	if c.PollInterval < time.Second || c.PollInterval > 300*time.Second {
		return vErrors.NewInvalidConfig("poll_interval", fmt.Sprintf("must be between 1s and 300s, got %s", c.PollInterval))
	}
	if c.PurgeInterval < time.Minute {
		return vErrors.NewInvalidConfig("purge_interval", "must be at least 1m")
	}
	if c.LedgerTimeout <= 0 {
		return vErrors.NewInvalidConfig("ledger_timeout", "must be positive")
	}
	if c.Workers < 1 || c.Workers > 64 {
		return vErrors.NewInvalidConfig("workers", "must be between 1 and 64")
	}
	if c.TailLines < 1 || c.TailLines > 1000 {
		return vErrors.NewInvalidConfig("tail_lines", "must be between 1 and 1000")
	}
	if err := validateSubdir("notes_dir", c.NotesDir); err != nil {
		return err
	}
	if err := validateSubdir("tasks_dir", c.TasksDir); err != nil {
		return err
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return vErrors.NewInvalidConfig("log_level", fmt.Sprintf("unknown level %q", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return vErrors.NewInvalidConfig("log_format", "must be 'json' or 'console'")
	}
	if c.NATSURL != "" && strings.TrimSpace(c.NATSSubject) == "" {
		return vErrors.NewInvalidConfig("nats_subject", "required when nats_url is set")
	}
	return nil
}

// ValidateVault checks that the vault is configured and is an existing directory.
func (c *Config) ValidateVault() error {
	if c.Vault == "" {
		return vErrors.NewInvalidConfig("vault", "not set; run 'vocap setup --vault <path>'")
	}
	info, err := os.Stat(c.Vault)
	if err != nil {
		if os.IsNotExist(err) {
			return vErrors.NewNotFound(c.Vault)
		}
		return vErrors.NewInternal(err)
	}
	if !info.IsDir() {
		return vErrors.NewInvalidConfig("vault", "must be a directory")
	}
	return nil
}

// validateSubdir rejects absolute or escaping vault subdirectories.
func validateSubdir(key, dir string) error {
	if strings.TrimSpace(dir) == "" {
		return vErrors.NewInvalidConfig(key, "must not be empty")
	}
	if filepath.IsAbs(dir) {
		return vErrors.NewInvalidConfig(key, "must be relative to the vault")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return vErrors.NewInvalidConfig(key, "must not contain directory traversal (..)")
		}
	}
	return nil
}

// SetVault writes the vault path into baseDir/config.yaml, keeping other keys.
func SetVault(baseDir, vault string) error {
	path := filepath.Join(baseDir, FileName)

	doc := map[string]any{}
	content, err := readConfigFile(path)
	if err != nil {
		return err
	}
	if len(content) > 0 {
		if err := yamlv3.Unmarshal(content, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", FileName, err)
		}
	}
	doc["vault"] = vault

	out, err := yamlv3.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}
	return os.WriteFile(path, out, 0600)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
