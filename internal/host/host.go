// Package host defines the capability interface the engine uses to drive an
// image-editing host. The engine never touches pixels; it only issues the
// operations below against opaque image and layer handles.
package host

import "image"

// Image is an opaque handle to a host-owned raster image.
// Whoever created a handle (via Duplicate or the host's own constructor) owns
// the right to Delete it. The zero value means "no image".
type Image int64

// Layer is an opaque handle to a layer inside an Image.
type Layer int64

const (
	NoImage Image = 0
	NoLayer Layer = 0
)

// Channel selects the channel a levels remap applies to.
type Channel int

const (
	ChannelValue Channel = iota // all color channels together
	ChannelRed
	ChannelGreen
	ChannelBlue
)

// HueRange selects which hues a hue/saturation call affects.
type HueRange int

const (
	AllHues HueRange = iota
	RedHues
	YellowHues
	GreenHues
	CyanHues
	BlueHues
	MagentaHues
)

// TonalRange is the shadows/midtones/highlights partition used by color balance.
type TonalRange int

const (
	Shadows TonalRange = iota
	Midtones
	Highlights
)

// TonalRanges lists every tonal range in application order.
var TonalRanges = []TonalRange{Shadows, Midtones, Highlights}

func (r TonalRange) String() string {
	switch r {
	case Shadows:
		return "shadows"
	case Midtones:
		return "midtones"
	case Highlights:
		return "highlights"
	}
	return "unknown"
}

// MergeMode controls the size of the layer produced by MergeDown.
type MergeMode int

const (
	ExpandAsNecessary MergeMode = iota
	ClipToImage
	ClipToBottomLayer
)

// Host is the image-editing capability consumed by the compositing engine,
// the thumbnail cache and the session controller. Every call is synchronous.
type Host interface {
	// Duplicate returns an independent, caller-owned copy of img.
	Duplicate(img Image) (Image, error)
	// Delete destroys a caller-owned image and every layer in it.
	Delete(img Image) error
	// ActiveLayer returns the layer operations apply to by default.
	ActiveLayer(img Image) (Layer, error)
	// InsertLayerFrom adds a flattened copy of src as the new top (and active)
	// layer of dst.
	InsertLayerFrom(dst, src Image) (Layer, error)
	// MergeDown flattens layer onto the layer beneath it and returns the result.
	MergeDown(img Image, layer Layer, mode MergeMode) (Layer, error)
	// SetLayerOpacity sets layer opacity in percent [0,100].
	SetLayerOpacity(layer Layer, percent float64) error

	// Levels remaps channel values linearly from [lowIn,highIn] to
	// [lowOut,highOut] with the given gamma.
	Levels(layer Layer, ch Channel, lowIn, highIn int, gamma float64, lowOut, highOut int) error
	// HueSaturation rotates hue (degrees) and scales lightness/saturation (percent).
	HueSaturation(layer Layer, r HueRange, hue, lightness, saturation float64) error
	// ColorBalance shifts the three color axes within one tonal range.
	ColorBalance(layer Layer, r TonalRange, preserveLuminosity bool, cyanRed, magentaGreen, yellowBlue float64) error
	// Desaturate converts the layer to luminance-only gray.
	Desaturate(layer Layer) error
	// Invert inverts every color channel.
	Invert(layer Layer) error
	// Sharpen applies an unsharp kernel of the given strength in percent.
	Sharpen(layer Layer, percent float64) error

	// Thumbnail renders the visible composite of img scaled to fit maxW x maxH.
	Thumbnail(img Image, maxW, maxH int) (image.Image, error)

	// CopyRegion copies the whole layer to the host clipboard.
	CopyRegion(layer Layer) error
	// PasteRegion pastes the clipboard as a floating selection over target.
	PasteRegion(target Layer) (Layer, error)
	// AnchorFloating merges a floating selection into the layer it was pasted on.
	AnchorFloating(floating Layer) error
}
