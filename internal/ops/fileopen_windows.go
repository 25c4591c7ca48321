//go:build windows

package ops

import (
	"os"

	"github.com/hpungsan/beautify/internal/errors"
)

// openSourceNoFollow opens a source image read-only. Windows has no
// O_NOFOLLOW; ValidatePath has already rejected symlinks.
func openSourceNoFollow(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("file", path)
		}
		return nil, err
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		f.Close()
		return nil, errors.NewInvalidRequest("source image is a directory")
	}
	return f, nil
}

// createTempNoFollow creates a fresh temp file for an output image.
func createTempNoFollow(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.NewInvalidRequest("temp output path already exists")
		}
		return nil, err
	}
	return f, nil
}
