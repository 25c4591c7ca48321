package ops

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/beautify/internal/config"
	"github.com/hpungsan/beautify/internal/effect"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/raster"
	"github.com/hpungsan/beautify/internal/thumbs"
)

// ThumbnailsInput contains parameters for the Thumbnails operation.
type ThumbnailsInput struct {
	Source   string // required
	Category string // optional, default: first category
	OutDir   string // optional, default: ~/.beautify/outputs
	Size     int    // optional, default: config thumbnail_size
}

// ThumbnailFile is one written thumbnail.
type ThumbnailFile struct {
	Effect string `json:"effect"`
	Name   string `json:"name"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ThumbnailsOutput contains the result of the Thumbnails operation.
type ThumbnailsOutput struct {
	Category   string          `json:"category"`
	Size       int             `json:"size"`
	Thumbnails []ThumbnailFile `json:"thumbnails"`
	Failed     int             `json:"failed"`
}

// Thumbnails renders one PNG per effect of a category. An effect that fails
// to render is reported in its entry; the others are still written.
func Thumbnails(ctx context.Context, cfg *config.Config, input ThumbnailsInput) (*ThumbnailsOutput, error) {
	if input.Source == "" {
		return nil, errors.NewInvalidRequest("source is required")
	}

	category := effect.Categories()[0]
	if input.Category != "" {
		c, err := effect.ParseCategory(input.Category)
		if err != nil {
			return nil, err
		}
		category = c
	}

	size := input.Size
	if size <= 0 {
		size = sessionOptions(cfg, true).ThumbnailSize
	}

	outDir := input.OutDir
	if outDir == "" {
		var err error
		if outDir, err = DefaultOutputsDir(); err != nil {
			return nil, err
		}
	}

	src, _, err := loadSource(input.Source, cfg)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx, "thumbnails"); err != nil {
		return nil, err
	}

	h := raster.New()
	base := h.NewImage(src)
	defer h.Delete(base)

	rendered, err := thumbs.New(h, size).RenderCategory(category, base, 0)
	if err != nil {
		return nil, err
	}

	stem := SanitizeForFilename(strings.TrimSuffix(filepath.Base(input.Source), filepath.Ext(input.Source)))
	out := &ThumbnailsOutput{
		Category:   string(category),
		Size:       size,
		Thumbnails: make([]ThumbnailFile, 0, len(rendered)),
	}
	for _, th := range rendered {
		if err := checkContext(ctx, "thumbnails"); err != nil {
			return nil, err
		}
		file := ThumbnailFile{
			Effect: th.Effect.String(),
			Name:   th.Name,
			Row:    th.Row,
			Col:    th.Col,
		}
		if th.Err != nil {
			file.Error = th.Err.Error()
			out.Failed++
			out.Thumbnails = append(out.Thumbnails, file)
			continue
		}

		path := filepath.Join(outDir, fmt.Sprintf("%s-%s-%s.png", stem, category, th.Effect.String()))
		if _, err := writeImage(path, th.Image, 0, cfg); err != nil {
			return nil, err
		}
		file.Path = path
		out.Thumbnails = append(out.Thumbnails, file)
	}

	log.Info().
		Str("source", input.Source).
		Str("category", string(category)).
		Int("written", len(out.Thumbnails)-out.Failed).
		Msg("Thumbnails rendered")
	return out, nil
}
