package ops

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hpungsan/beautify/internal/config"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/raster"
)

// loadSource validates and decodes a source image.
func loadSource(path string, cfg *config.Config) (image.Image, *raster.Metadata, error) {
	if err := ValidatePath(path, PathCheckRead, cfg); err != nil {
		return nil, nil, err
	}
	file, err := openSourceNoFollow(path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, nil, err
		}
		return nil, nil, errors.NewInternal(fmt.Errorf("failed to open source: %w", err))
	}
	defer file.Close()

	img, meta, err := raster.Decode(file, path)
	if err != nil {
		return nil, nil, errors.NewInvalidRequest(err.Error())
	}
	return img, meta, nil
}

// writeImage encodes img to path through a temp file and an atomic rename,
// leaving any existing file untouched on failure. Returns the bytes written.
func writeImage(path string, img image.Image, quality int, cfg *config.Config) (int64, error) {
	if err := ValidatePath(path, PathCheckWrite, cfg); err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to create output directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := createTempNoFollow(tempPath)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return 0, err
		}
		return 0, errors.NewInternal(fmt.Errorf("failed to create output file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := raster.Encode(file, filepath.Ext(path), img, quality); err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return 0, errors.NewInternal(err)
	}
	info, err := file.Stat()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to close output file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return 0, errors.NewInvalidRequest("output path is a symlink")
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return 0, errors.NewInvalidRequest("output already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return 0, errors.NewInternal(fmt.Errorf("failed to finalize output: %w", err))
	}

	success = true
	return info.Size(), nil
}

// defaultOutputPath builds ~/.beautify/outputs/<source>-<effect>-<timestamp>.<ext>.
// The source extension is kept when it can be written; otherwise PNG is used.
func defaultOutputPath(source, label string, now time.Time) (string, error) {
	dir, err := DefaultOutputsDir()
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(source))
	if !raster.SupportedOutput(source) {
		ext = ".png"
	}
	name := SanitizeForFilename(strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)))
	if label != "" {
		name += "-" + SanitizeForFilename(label)
	}
	filename := fmt.Sprintf("%s-%s%s", name, now.Format("2006-01-02T150405"), ext)
	return filepath.Join(dir, filename), nil
}
