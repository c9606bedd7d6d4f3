//go:build !windows

package notes

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/hpungsan/vocap/internal/errors"
)

// openAppendNoFollow opens a daily file for appending with O_NOFOLLOW so a
// symlink planted at the final path component is never written through.
// O_CLOEXEC prevents FD leaks across exec.
//
// Directory components are checked by checkInsideVault before the open.
func openAppendNoFollow(path string) (*os.File, error) {
	flag := os.O_CREATE | os.O_RDWR | os.O_APPEND
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0644)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot write to symlink")
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}

// openReadNoFollow opens a daily file for reading with O_NOFOLLOW.
func openReadNoFollow(path string) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_RDONLY|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot read from symlink")
		}
		if stderrors.Is(err, syscall.ENOENT) {
			return nil, errors.NewNotFound(path)
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}
