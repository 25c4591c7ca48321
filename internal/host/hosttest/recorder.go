// Package hosttest provides a recording host.Host for tests. It delegates to
// a real host, logs every call and can inject failures per operation.
package hosttest

import (
	"fmt"
	"image"
	"slices"

	"github.com/hpungsan/beautify/internal/host"
)

// Call is one recorded host operation.
type Call struct {
	Op   string
	Args []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s%v", c.Op, c.Args)
}

// Recorder wraps a host and records calls.
type Recorder struct {
	inner host.Host

	Calls      []Call
	Duplicates int
	Deletes    int

	fail map[string]error
	live map[host.Image]bool
}

var _ host.Host = (*Recorder)(nil)

// New wraps inner. Images created outside the recorder (sources) are not
// tracked as live.
func New(inner host.Host) *Recorder {
	return &Recorder{
		inner: inner,
		fail:  make(map[string]error),
		live:  make(map[host.Image]bool),
	}
}

// FailOn makes every subsequent call to op return err. A nil err clears it.
func (r *Recorder) FailOn(op string, err error) {
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

// Reset clears the call log but keeps handle accounting.
func (r *Recorder) Reset() {
	r.Calls = nil
}

// Count returns how many times op was called.
func (r *Recorder) Count(op string) int {
	n := 0
	for _, c := range r.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Find returns the recorded calls of op in order.
func (r *Recorder) Find(op string) []Call {
	var out []Call
	for _, c := range r.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Ops returns the op names in call order.
func (r *Recorder) Ops() []string {
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.Op
	}
	return out
}

// Live returns the duplicated handles that have not been deleted, sorted.
func (r *Recorder) Live() []host.Image {
	var out []host.Image
	for img := range r.live {
		out = append(out, img)
	}
	slices.Sort(out)
	return out
}

func (r *Recorder) record(op string, args ...any) error {
	r.Calls = append(r.Calls, Call{Op: op, Args: args})
	return r.fail[op]
}

func (r *Recorder) Duplicate(img host.Image) (host.Image, error) {
	if err := r.record("Duplicate", img); err != nil {
		return host.NoImage, err
	}
	dup, err := r.inner.Duplicate(img)
	if err != nil {
		return dup, err
	}
	r.Duplicates++
	r.live[dup] = true
	return dup, nil
}

func (r *Recorder) Delete(img host.Image) error {
	if err := r.record("Delete", img); err != nil {
		return err
	}
	if err := r.inner.Delete(img); err != nil {
		return err
	}
	if r.live[img] {
		r.Deletes++
		delete(r.live, img)
	}
	return nil
}

func (r *Recorder) ActiveLayer(img host.Image) (host.Layer, error) {
	if err := r.record("ActiveLayer", img); err != nil {
		return host.NoLayer, err
	}
	return r.inner.ActiveLayer(img)
}

func (r *Recorder) InsertLayerFrom(dst, src host.Image) (host.Layer, error) {
	if err := r.record("InsertLayerFrom", dst, src); err != nil {
		return host.NoLayer, err
	}
	return r.inner.InsertLayerFrom(dst, src)
}

func (r *Recorder) MergeDown(img host.Image, layer host.Layer, mode host.MergeMode) (host.Layer, error) {
	if err := r.record("MergeDown", img, layer, mode); err != nil {
		return host.NoLayer, err
	}
	return r.inner.MergeDown(img, layer, mode)
}

func (r *Recorder) SetLayerOpacity(layer host.Layer, percent float64) error {
	if err := r.record("SetLayerOpacity", layer, percent); err != nil {
		return err
	}
	return r.inner.SetLayerOpacity(layer, percent)
}

func (r *Recorder) Levels(layer host.Layer, ch host.Channel, lowIn, highIn int, gamma float64, lowOut, highOut int) error {
	if err := r.record("Levels", lowIn, highIn, gamma, lowOut, highOut); err != nil {
		return err
	}
	return r.inner.Levels(layer, ch, lowIn, highIn, gamma, lowOut, highOut)
}

func (r *Recorder) HueSaturation(layer host.Layer, hr host.HueRange, hue, lightness, saturation float64) error {
	if err := r.record("HueSaturation", hr, hue, lightness, saturation); err != nil {
		return err
	}
	return r.inner.HueSaturation(layer, hr, hue, lightness, saturation)
}

func (r *Recorder) ColorBalance(layer host.Layer, tr host.TonalRange, preserve bool, cyanRed, magentaGreen, yellowBlue float64) error {
	if err := r.record("ColorBalance", tr, preserve, cyanRed, magentaGreen, yellowBlue); err != nil {
		return err
	}
	return r.inner.ColorBalance(layer, tr, preserve, cyanRed, magentaGreen, yellowBlue)
}

func (r *Recorder) Desaturate(layer host.Layer) error {
	if err := r.record("Desaturate"); err != nil {
		return err
	}
	return r.inner.Desaturate(layer)
}

func (r *Recorder) Invert(layer host.Layer) error {
	if err := r.record("Invert"); err != nil {
		return err
	}
	return r.inner.Invert(layer)
}

func (r *Recorder) Sharpen(layer host.Layer, percent float64) error {
	if err := r.record("Sharpen", percent); err != nil {
		return err
	}
	return r.inner.Sharpen(layer, percent)
}

func (r *Recorder) Thumbnail(img host.Image, maxW, maxH int) (image.Image, error) {
	if err := r.record("Thumbnail", img, maxW, maxH); err != nil {
		return nil, err
	}
	return r.inner.Thumbnail(img, maxW, maxH)
}

func (r *Recorder) CopyRegion(layer host.Layer) error {
	if err := r.record("CopyRegion", layer); err != nil {
		return err
	}
	return r.inner.CopyRegion(layer)
}

func (r *Recorder) PasteRegion(target host.Layer) (host.Layer, error) {
	if err := r.record("PasteRegion", target); err != nil {
		return host.NoLayer, err
	}
	return r.inner.PasteRegion(target)
}

func (r *Recorder) AnchorFloating(floating host.Layer) error {
	if err := r.record("AnchorFloating", floating); err != nil {
		return err
	}
	return r.inner.AnchorFloating(floating)
}
