package ops

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/hpungsan/vocap/internal/config"
	"github.com/hpungsan/vocap/internal/errors"
)

// vaultMarker is the settings directory every Obsidian vault contains.
const vaultMarker = ".obsidian"

// SetupInput contains parameters for the Setup operation.
type SetupInput struct {
	// Vault is saved to the config file when set.
	Vault string
	// Discover lists candidate vaults instead of saving one.
	Discover bool
	// SearchRoots overrides the discovery locations (tests).
	SearchRoots []string
}

// SetupOutput contains the result of the Setup operation.
type SetupOutput struct {
	Vault      string   `json:"vault,omitempty"`
	Saved      bool     `json:"saved"`
	Candidates []string `json:"candidates,omitempty"`
	Message    string   `json:"message"`
}

// Setup saves the vault path or discovers candidate vaults.
func Setup(baseDir string, input SetupInput) (*SetupOutput, error) {
	if input.Discover {
		roots := input.SearchRoots
		if roots == nil {
			var err error
			if roots, err = defaultSearchRoots(); err != nil {
				return nil, err
			}
		}
		found := DiscoverVaults(roots)
		msg := "No vaults found; pass --vault <path>"
		if len(found) > 0 {
			msg = "Found vaults; save one with --vault <path>"
		}
		return &SetupOutput{Candidates: found, Message: msg}, nil
	}

	vault, err := ValidateVaultPath(input.Vault)
	if err != nil {
		return nil, err
	}
	if err := config.SetVault(baseDir, vault); err != nil {
		return nil, errors.NewInternal(err)
	}
	out := &SetupOutput{Vault: vault, Saved: true, Message: "Vault saved to " + filepath.Join(baseDir, config.FileName)}
	if _, err := os.Stat(filepath.Join(vault, vaultMarker)); err != nil {
		out.Message += " (no .obsidian folder found; is this a vault?)"
	}
	return out, nil
}

// DiscoverVaults returns directories that are, or directly contain, a vault.
func DiscoverVaults(roots []string) []string {
	seen := map[string]bool{}
	var found []string
	add := func(dir string) {
		if info, err := os.Stat(filepath.Join(dir, vaultMarker)); err == nil && info.IsDir() && !seen[dir] {
			seen[dir] = true
			found = append(found, dir)
		}
	}

	for _, root := range roots {
		add(root)
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				add(filepath.Join(root, e.Name()))
			}
		}
	}
	sort.Strings(found)
	return found
}

func defaultSearchRoots() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return []string{
		filepath.Join(home, "Documents", "Obsidian"),
		filepath.Join(home, "Documents"),
		filepath.Join(home, "Dropbox", "Obsidian"),
		filepath.Join(home, "OneDrive", "Obsidian"),
		filepath.Join(home, "Library", "Mobile Documents", "iCloud~md~obsidian", "Documents"),
		filepath.Join(home, "Obsidian"),
	}, nil
}
