package ops

import (
	"testing"

	"github.com/hpungsan/vocap/internal/config"
	"github.com/hpungsan/vocap/internal/errors"
)

// newTestRuntime opens a runtime with a fresh ledger and vault.
func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Vault = t.TempDir()

	rt, err := Open(t.TempDir(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestOpen_WithoutVault(t *testing.T) {
	rt, err := Open(t.TempDir(), config.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rt.Close()

	if rt.Store != nil {
		t.Error("Store should be nil without a vault")
	}
	if _, err := rt.requireStore(); !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("requireStore error = %v, want INVALID_CONFIG", err)
	}
}

func TestOpen_MissingVault(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Vault = "/nonexistent/vault/path"

	_, err := Open(t.TempDir(), cfg, nil, nil)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Open error = %v, want NOT_FOUND", err)
	}
}

func TestOpen_EqualKeywords(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.KeywordTask = cfg.KeywordNote

	_, err := Open(t.TempDir(), cfg, nil, nil)
	if !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("Open error = %v, want INVALID_CONFIG", err)
	}
}

func TestClampLimit(t *testing.T) {
	intPtr := func(i int) *int { return &i }

	tests := []struct {
		name    string
		limit   *int
		want    int
		wantErr bool
	}{
		{"default", nil, 20, false},
		{"within range", intPtr(5), 5, false},
		{"clamped", intPtr(500), 100, false},
		{"zero", intPtr(0), 0, true},
		{"negative", intPtr(-1), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := clampLimit(tt.limit, DefaultRecentLimit, MaxRecentLimit)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidRequest) {
					t.Errorf("clampLimit error = %v, want INVALID_REQUEST", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("clampLimit failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("clampLimit = %d, want %d", got, tt.want)
			}
		})
	}
}

func intPtr(v int) *int { return &v }
