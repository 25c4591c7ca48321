package raster

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/hpungsan/beautify/internal/host"
)

// compositeLayers draws layers bottom to top onto dst.
func compositeLayers(dst *image.NRGBA, layers []*rasterLayer) {
	for _, l := range layers {
		compositeOver(dst, l.pix, l.opacity)
	}
}

// compositeOver blends src over dst in place using straight-alpha "normal"
// mode, with src alpha scaled by opacity percent.
func compositeOver(dst, src *image.NRGBA, opacity float64) {
	k := clampF(opacity, 0, 100) / 100
	if k == 0 {
		return
	}
	n := min(len(dst.Pix), len(src.Pix))
	for i := 0; i+3 < n; i += 4 {
		sa := float64(src.Pix[i+3]) / 255 * k
		if sa == 0 {
			continue
		}
		da := float64(dst.Pix[i+3]) / 255
		oa := sa + da*(1-sa)
		for c := 0; c < 3; c++ {
			s := float64(src.Pix[i+c])
			d := float64(dst.Pix[i+c])
			dst.Pix[i+c] = clamp8((s*sa + d*da*(1-sa)) / oa)
		}
		dst.Pix[i+3] = clamp8(oa * 255)
	}
}

// Thumbnail implements host.Host. Small images are returned at their own size.
func (h *Host) Thumbnail(img host.Image, maxW, maxH int) (image.Image, error) {
	if maxW <= 0 || maxH <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size %dx%d", maxW, maxH)
	}
	flat, err := h.Composite(img)
	if err != nil {
		return nil, err
	}

	b := flat.Bounds()
	w, hgt := ThumbnailDimensions(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && hgt == b.Dy() {
		return flat, nil
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, hgt))
	draw.CatmullRom.Scale(out, out.Bounds(), flat, b, draw.Src, nil)
	return out, nil
}

// ThumbnailDimensions fits width x height into maxW x maxH keeping aspect ratio.
// Never upscales.
func ThumbnailDimensions(width, height, maxW, maxH int) (int, int) {
	if width <= maxW && height <= maxH {
		return width, height
	}

	scale := min(float64(maxW)/float64(width), float64(maxH)/float64(height))
	w := max(int(float64(width)*scale), 1)
	h := max(int(float64(height)*scale), 1)
	return w, h
}
