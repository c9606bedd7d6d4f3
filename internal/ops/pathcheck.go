package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/vocap/internal/config"
	"github.com/hpungsan/vocap/internal/errors"
)

// ValidateVaultPath checks a user-supplied vault path and returns it absolute
// with symlinks resolved. It checks:
// 1. Path traversal (.. sequences)
// 2. Existence and directory type
func ValidateVaultPath(path string) (string, error) {
	path = config.ExpandHome(strings.TrimSpace(path))
	if path == "" {
		return "", errors.NewInvalidRequest("vault path is required")
	}

	if containsTraversal(path) {
		return "", errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFound(absPath)
		}
		return "", errors.NewInternal(err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if !info.IsDir() {
		return "", errors.NewInvalidRequest("vault must be a directory")
	}

	return resolved, nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms (e.g., user input)
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
