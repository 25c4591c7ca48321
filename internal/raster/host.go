// Package raster is an in-memory implementation of host.Host. Images are
// stacks of NRGBA layers; compositing honours per-layer opacity.
//
// A Host is not safe for concurrent use. Sessions own their own Host or
// serialize access to a shared one.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/hpungsan/beautify/internal/host"
)

// ErrUnknownHandle is returned for image or layer handles the host does not hold.
var ErrUnknownHandle = errors.New("unknown handle")

// Stats counts handle lifecycle calls. Used to check resource balance.
type Stats struct {
	Created    int // images created via NewImage
	Duplicates int // images created via Duplicate
	Deletes    int
}

type rasterImage struct {
	id     host.Image
	bounds image.Rectangle
	layers []*rasterLayer // bottom to top
	active *rasterLayer
}

type rasterLayer struct {
	id      host.Layer
	owner   host.Image
	pix     *image.NRGBA
	opacity float64 // percent

	floating bool
	anchor   *rasterLayer // layer a floating selection was pasted over
}

// Host holds images and layers by handle.
type Host struct {
	nextID    int64
	images    map[host.Image]*rasterImage
	layers    map[host.Layer]*rasterLayer
	clipboard *image.NRGBA
	stats     Stats
}

var _ host.Host = (*Host)(nil)

// New creates an empty Host.
func New() *Host {
	return &Host{
		images: make(map[host.Image]*rasterImage),
		layers: make(map[host.Layer]*rasterLayer),
	}
}

// NewImage registers src as a single-layer image and returns its caller-owned handle.
func (h *Host) NewImage(src image.Image) host.Image {
	b := src.Bounds()
	pix := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(pix, pix.Bounds(), src, b.Min, draw.Src)

	img := h.newImage(pix.Bounds())
	l := h.newLayer(img.id, pix)
	img.layers = []*rasterLayer{l}
	img.active = l
	h.stats.Created++
	return img.id
}

// Stats returns the lifecycle counters.
func (h *Host) Stats() Stats {
	return h.stats
}

// Live returns the number of images currently held.
func (h *Host) Live() int {
	return len(h.images)
}

// Has reports whether img is a live handle.
func (h *Host) Has(img host.Image) bool {
	_, ok := h.images[img]
	return ok
}

// LayerCount returns the number of layers in img.
func (h *Host) LayerCount(img host.Image) (int, error) {
	ri, err := h.image(img)
	if err != nil {
		return 0, err
	}
	return len(ri.layers), nil
}

// LayerOpacity returns the opacity of a layer in percent.
func (h *Host) LayerOpacity(layer host.Layer) (float64, error) {
	l, err := h.layer(layer)
	if err != nil {
		return 0, err
	}
	return l.opacity, nil
}

// Duplicate implements host.Host.
func (h *Host) Duplicate(img host.Image) (host.Image, error) {
	src, err := h.image(img)
	if err != nil {
		return host.NoImage, err
	}

	dup := h.newImage(src.bounds)
	for _, l := range src.layers {
		if l.floating {
			continue
		}
		cp := h.newLayer(dup.id, clonePix(l.pix))
		cp.opacity = l.opacity
		dup.layers = append(dup.layers, cp)
		if l == src.active {
			dup.active = cp
		}
	}
	if dup.active == nil && len(dup.layers) > 0 {
		dup.active = dup.layers[len(dup.layers)-1]
	}
	h.stats.Duplicates++
	return dup.id, nil
}

// Delete implements host.Host.
func (h *Host) Delete(img host.Image) error {
	ri, err := h.image(img)
	if err != nil {
		return err
	}
	for _, l := range ri.layers {
		delete(h.layers, l.id)
	}
	delete(h.images, img)
	h.stats.Deletes++
	return nil
}

// ActiveLayer implements host.Host.
func (h *Host) ActiveLayer(img host.Image) (host.Layer, error) {
	ri, err := h.image(img)
	if err != nil {
		return host.NoLayer, err
	}
	if ri.active == nil {
		return host.NoLayer, fmt.Errorf("image %d has no layers", img)
	}
	return ri.active.id, nil
}

// InsertLayerFrom implements host.Host.
func (h *Host) InsertLayerFrom(dst, src host.Image) (host.Layer, error) {
	d, err := h.image(dst)
	if err != nil {
		return host.NoLayer, err
	}
	s, err := h.image(src)
	if err != nil {
		return host.NoLayer, err
	}

	flat := image.NewNRGBA(d.bounds)
	compositeLayers(flat, s.layers)

	l := h.newLayer(dst, flat)
	d.layers = append(d.layers, l)
	d.active = l
	return l.id, nil
}

// MergeDown implements host.Host. Every mode yields an image-sized layer since
// all layers share the image bounds.
func (h *Host) MergeDown(img host.Image, layer host.Layer, _ host.MergeMode) (host.Layer, error) {
	ri, err := h.image(img)
	if err != nil {
		return host.NoLayer, err
	}
	idx := -1
	for i, l := range ri.layers {
		if l.id == layer {
			idx = i
			break
		}
	}
	if idx < 0 {
		return host.NoLayer, fmt.Errorf("layer %d: %w", layer, ErrUnknownHandle)
	}
	if idx == 0 {
		return host.NoLayer, fmt.Errorf("layer %d is the bottom layer", layer)
	}

	top := ri.layers[idx]
	below := ri.layers[idx-1]
	compositeOver(below.pix, top.pix, top.opacity)

	ri.layers = append(ri.layers[:idx], ri.layers[idx+1:]...)
	delete(h.layers, top.id)
	ri.active = below
	return below.id, nil
}

// SetLayerOpacity implements host.Host.
func (h *Host) SetLayerOpacity(layer host.Layer, percent float64) error {
	l, err := h.layer(layer)
	if err != nil {
		return err
	}
	l.opacity = clampF(percent, 0, 100)
	return nil
}

// CopyRegion implements host.Host.
func (h *Host) CopyRegion(layer host.Layer) error {
	l, err := h.layer(layer)
	if err != nil {
		return err
	}
	h.clipboard = clonePix(l.pix)
	return nil
}

// PasteRegion implements host.Host.
func (h *Host) PasteRegion(target host.Layer) (host.Layer, error) {
	t, err := h.layer(target)
	if err != nil {
		return host.NoLayer, err
	}
	if h.clipboard == nil {
		return host.NoLayer, errors.New("clipboard is empty")
	}
	ri := h.images[t.owner]

	pix := image.NewNRGBA(ri.bounds)
	draw.Draw(pix, pix.Bounds(), h.clipboard, h.clipboard.Bounds().Min, draw.Src)

	fl := h.newLayer(ri.id, pix)
	fl.floating = true
	fl.anchor = t
	ri.layers = append(ri.layers, fl)
	ri.active = fl
	return fl.id, nil
}

// AnchorFloating implements host.Host.
func (h *Host) AnchorFloating(floating host.Layer) error {
	fl, err := h.layer(floating)
	if err != nil {
		return err
	}
	if !fl.floating || fl.anchor == nil {
		return fmt.Errorf("layer %d is not a floating selection", floating)
	}
	ri := h.images[fl.owner]
	draw.Draw(fl.anchor.pix, fl.anchor.pix.Bounds(), fl.pix, fl.pix.Bounds().Min, draw.Over)

	for i, l := range ri.layers {
		if l == fl {
			ri.layers = append(ri.layers[:i], ri.layers[i+1:]...)
			break
		}
	}
	delete(h.layers, fl.id)
	ri.active = fl.anchor
	return nil
}

// Composite returns the flattened visible result of img at full size.
func (h *Host) Composite(img host.Image) (*image.NRGBA, error) {
	ri, err := h.image(img)
	if err != nil {
		return nil, err
	}
	out := image.NewNRGBA(ri.bounds)
	compositeLayers(out, ri.layers)
	return out, nil
}

func (h *Host) newImage(bounds image.Rectangle) *rasterImage {
	h.nextID++
	ri := &rasterImage{id: host.Image(h.nextID), bounds: bounds}
	h.images[ri.id] = ri
	return ri
}

func (h *Host) newLayer(owner host.Image, pix *image.NRGBA) *rasterLayer {
	h.nextID++
	l := &rasterLayer{id: host.Layer(h.nextID), owner: owner, pix: pix, opacity: 100}
	h.layers[l.id] = l
	return l
}

func (h *Host) image(img host.Image) (*rasterImage, error) {
	ri, ok := h.images[img]
	if !ok {
		return nil, fmt.Errorf("image %d: %w", img, ErrUnknownHandle)
	}
	return ri, nil
}

func (h *Host) layer(layer host.Layer) (*rasterLayer, error) {
	l, ok := h.layers[layer]
	if !ok {
		return nil, fmt.Errorf("layer %d: %w", layer, ErrUnknownHandle)
	}
	return l, nil
}

func clonePix(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
