package raster

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultJPEGQuality is used by Save when quality is out of range.
const DefaultJPEGQuality = 90

// Metadata is the camera information recorded alongside a processed image.
type Metadata struct {
	Format      string
	Width       int
	Height      int
	CameraMake  string
	CameraModel string
}

// Open decodes an image file and extracts its camera metadata.
// Missing or unreadable EXIF data is not an error.
func Open(path string) (image.Image, *Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return Decode(f, path)
}

// Decode reads an image from r. name is only used for logging.
func Decode(r io.ReadSeeker, name string) (image.Image, *Metadata, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode image: %w", err)
	}

	meta := &Metadata{
		Format: format,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}

	if _, err := r.Seek(0, io.SeekStart); err == nil {
		if exifData, err := imagemeta.Decode(r); err == nil {
			meta.CameraMake = strings.TrimSpace(exifData.Make)
			meta.CameraModel = strings.TrimSpace(exifData.Model)
		} else {
			log.Debug().Err(err).Str("path", name).Msg("No EXIF metadata")
		}
	}

	log.Debug().
		Str("path", name).
		Str("format", format).
		Int("width", meta.Width).
		Int("height", meta.Height).
		Str("camera", strings.TrimSpace(meta.CameraMake+" "+meta.CameraModel)).
		Msg("Image opened")

	return img, meta, nil
}

// Save encodes img to path by file extension (.png, .jpg, .jpeg).
func Save(path string, img image.Image, quality int) error {
	if !SupportedOutput(path) {
		return fmt.Errorf("unsupported output format: %s", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := Encode(f, filepath.Ext(path), img, quality); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes img in the format named by ext (".png", ".jpg", ".jpeg").
// JPEG quality outside 1..100 falls back to DefaultJPEGQuality.
func Encode(w io.Writer, ext string, img image.Image, quality int) error {
	var err error
	switch strings.ToLower(ext) {
	case ".png":
		err = png.Encode(w, img)
	case ".jpg", ".jpeg":
		if quality < 1 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return fmt.Errorf("unsupported output format: %s", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", ext, err)
	}
	return nil
}

// SupportedInput reports whether Open recognizes the path's extension.
func SupportedInput(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}

// SupportedOutput reports whether Save can write the given path.
func SupportedOutput(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
