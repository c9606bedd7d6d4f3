//go:build windows

package notes

import (
	"os"

	"github.com/hpungsan/vocap/internal/errors"
)

// openAppendNoFollow opens a daily file for appending.
// On Windows, O_NOFOLLOW is not available. Symlink creation needs elevated
// privileges there, and checkInsideVault still rejects escaping directories.
func openAppendNoFollow(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
}

// openReadNoFollow opens a daily file for reading.
func openReadNoFollow(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(path)
		}
		return nil, err
	}
	return f, nil
}
