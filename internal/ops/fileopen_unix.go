//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/hpungsan/beautify/internal/errors"
)

// openSourceNoFollow opens a source image read-only. O_NOFOLLOW rejects a
// symlinked final component; directory components are left to ValidatePath.
func openSourceNoFollow(path string) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_RDONLY|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0)
	switch {
	case err == nil:
		return os.NewFile(uintptr(fd), path), nil
	case stderrors.Is(err, syscall.ELOOP):
		return nil, errors.NewInvalidRequest("source image is a symlink")
	case stderrors.Is(err, syscall.ENOENT):
		return nil, errors.NewNotFound("file", path)
	case stderrors.Is(err, syscall.EISDIR):
		return nil, errors.NewInvalidRequest("source image is a directory")
	default:
		return nil, err
	}
}

// createTempNoFollow creates a fresh temp file for an output image. It fails
// if anything, symlink included, already sits at path.
func createTempNoFollow(path string) (*os.File, error) {
	flag := syscall.O_WRONLY | syscall.O_CREAT | syscall.O_EXCL | syscall.O_NOFOLLOW | syscall.O_CLOEXEC
	fd, err := syscall.Open(path, flag, 0600)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) || stderrors.Is(err, syscall.EEXIST) {
			return nil, errors.NewInvalidRequest("temp output path already exists")
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}
