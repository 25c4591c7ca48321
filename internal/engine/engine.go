// Package engine is the compositing core. It turns a base image, a set of
// continuous adjustments and an optional effect at some opacity into a
// preview image, and owns every intermediate handle it creates on the way.
//
// The preview keeps the effect as a separate top layer at the selected
// opacity. Drawing the preview composites it; Commit merges it down.
package engine

import (
	"image"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/beautify/internal/adjust"
	"github.com/hpungsan/beautify/internal/effect"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/host"
)

// DefaultOpacity is the opacity applied when an effect is picked.
const DefaultOpacity = 100.0

// Selection is the active discrete effect. Opacity is meaningful only when
// Effect is not effect.None.
type Selection struct {
	Effect  effect.ID
	Opacity float64
}

// Active reports whether an effect is selected.
func (s Selection) Active() bool {
	return s.Effect != effect.None
}

// Levels is a linear remap from [LowIn,HighIn] to [LowOut,HighOut].
type Levels struct {
	LowIn   int
	HighIn  int
	Gamma   float64
	LowOut  int
	HighOut int
}

// LevelsFor maps brightness and contrast to a levels remap. Positive values
// squeeze the input range, negative values squeeze the output range.
// Contrast acts on both ends, brightness on the top end only. Gamma is fixed
// at 1.
func LevelsFor(brightness, contrast int) Levels {
	return Levels{
		LowIn:   max(contrast, 0),
		HighIn:  255 - max(brightness, 0) - max(contrast, 0),
		Gamma:   1,
		LowOut:  -min(contrast, 0),
		HighOut: 255 + min(brightness, 0) + min(contrast, 0),
	}
}

// Engine issues compositing operations against a host.
type Engine struct {
	host host.Host
}

// New creates an engine bound to h.
func New(h host.Host) *Engine {
	return &Engine{host: h}
}

// Host returns the host the engine drives.
func (e *Engine) Host() host.Host {
	return e.host
}

// ApplyAdjustments returns a new caller-owned image: base with levels,
// hue/saturation and color balance applied in that order. Steps whose
// contribution is zero are not issued.
func (e *Engine) ApplyAdjustments(base host.Image, state adjust.State) (host.Image, error) {
	out, err := e.host.Duplicate(base)
	if err != nil {
		return host.NoImage, errors.NewHostOperationFailed("duplicate", err)
	}
	if state.IsIdentity() {
		return out, nil
	}
	if err := e.adjustInPlace(out, state); err != nil {
		e.discard(out)
		return host.NoImage, err
	}
	return out, nil
}

func (e *Engine) adjustInPlace(img host.Image, state adjust.State) error {
	layer, err := e.host.ActiveLayer(img)
	if err != nil {
		return errors.NewHostOperationFailed("active_layer", err)
	}

	if state.HasLevels() {
		lv := LevelsFor(state.Brightness, state.Contrast)
		if err := e.host.Levels(layer, host.ChannelValue, lv.LowIn, lv.HighIn, lv.Gamma, lv.LowOut, lv.HighOut); err != nil {
			return errors.NewHostOperationFailed("levels", err)
		}
	}
	if state.HasHueSaturation() {
		if err := e.host.HueSaturation(layer, host.AllHues, state.Hue, 0, state.Saturation); err != nil {
			return errors.NewHostOperationFailed("hue_saturation", err)
		}
	}
	if state.HasColorBalance() {
		for _, r := range host.TonalRanges {
			if err := e.host.ColorBalance(layer, r, true, state.CyanRed, state.MagentaGreen, state.YellowBlue); err != nil {
				return errors.NewHostOperationFailed("color_balance", err)
			}
		}
	}
	return nil
}

// RenderPreview builds a new preview for ps without touching ps.Preview. It
// returns the new image and its effect layer (host.NoLayer when no effect is
// active). On error nothing new is left allocated and the displayed preview
// stays valid.
//
// While an effect is active, adjustments are recomputed from CommittedBase,
// which is snapshotted from Base the first time it is needed. With no effect
// active any snapshot is released.
func (e *Engine) RenderPreview(ps *PreviewState, state adjust.State, sel Selection) (host.Image, host.Layer, error) {
	if !sel.Active() {
		if err := e.dropCommittedBase(ps); err != nil {
			return host.NoImage, host.NoLayer, err
		}
		if state.IsIdentity() {
			img, err := e.host.Duplicate(ps.Base)
			if err != nil {
				return host.NoImage, host.NoLayer, errors.NewHostOperationFailed("duplicate", err)
			}
			return img, host.NoLayer, nil
		}
		img, err := e.ApplyAdjustments(ps.Base, state)
		return img, host.NoLayer, err
	}

	fx, err := effect.Get(sel.Effect)
	if err != nil {
		return host.NoImage, host.NoLayer, err
	}

	if ps.CommittedBase == host.NoImage {
		snap, err := e.host.Duplicate(ps.Base)
		if err != nil {
			return host.NoImage, host.NoLayer, errors.NewHostOperationFailed("duplicate", err)
		}
		ps.CommittedBase = snap
		log.Debug().Uint64("generation", ps.Generation).Msg("snapshot committed base")
	}

	adjusted, err := e.ApplyAdjustments(ps.CommittedBase, state)
	if err != nil {
		return host.NoImage, host.NoLayer, err
	}
	layer, err := e.addEffectLayer(adjusted, fx, sel.Opacity)
	if err != nil {
		e.discard(adjusted)
		return host.NoImage, host.NoLayer, err
	}
	return adjusted, layer, nil
}

// addEffectLayer runs fx on a copy of img and inserts the result as the top
// layer of img at opacity.
func (e *Engine) addEffectLayer(img host.Image, fx *effect.Effect, opacity float64) (host.Layer, error) {
	scratch, err := e.host.Duplicate(img)
	if err != nil {
		return host.NoLayer, errors.NewHostOperationFailed("duplicate", err)
	}
	defer e.discard(scratch)

	if err := fx.Transform(e.host, scratch); err != nil {
		return host.NoLayer, errors.NewHostOperationFailed("effect "+fx.Slug, err)
	}
	layer, err := e.host.InsertLayerFrom(img, scratch)
	if err != nil {
		return host.NoLayer, errors.NewHostOperationFailed("insert_layer", err)
	}
	if err := e.host.SetLayerOpacity(layer, opacity); err != nil {
		return host.NoLayer, errors.NewHostOperationFailed("set_layer_opacity", err)
	}
	return layer, nil
}

// Refresh renders a new preview and swaps it in, deleting the one it replaces.
func (e *Engine) Refresh(ps *PreviewState, state adjust.State, sel Selection) error {
	img, layer, err := e.RenderPreview(ps, state, sel)
	if err != nil {
		log.Warn().Err(err).Str("effect", sel.Effect.String()).Msg("preview recompute failed")
		return err
	}
	old := ps.Preview
	ps.Preview = img
	ps.EffectLayer = layer
	ps.pending = sel.Active() || !state.IsIdentity()
	if old != host.NoImage {
		if err := e.host.Delete(old); err != nil {
			log.Warn().Err(err).Int64("image", int64(old)).Msg("delete superseded preview")
		}
	}
	log.Debug().
		Str("effect", sel.Effect.String()).
		Float64("opacity", sel.Opacity).
		Uint64("generation", ps.Generation).
		Msg("preview refreshed")
	return nil
}

// SetEffectOpacity changes the opacity of the live effect layer. With no
// effect layer it does nothing.
func (e *Engine) SetEffectOpacity(ps *PreviewState, opacity float64) error {
	if ps.EffectLayer == host.NoLayer {
		return nil
	}
	if err := e.host.SetLayerOpacity(ps.EffectLayer, opacity); err != nil {
		return errors.NewHostOperationFailed("set_layer_opacity", err)
	}
	log.Debug().Float64("opacity", opacity).Msg("effect opacity")
	return nil
}

// Commit flattens the displayed preview into Base and releases
// CommittedBase. It returns the new Base. When the preview shows nothing
// beyond Base it does nothing, so repeated commits are harmless.
//
// The caller must reset its selection and adjustments afterwards: they are
// now part of Base.
func (e *Engine) Commit(ps *PreviewState) (host.Image, error) {
	if !ps.pending {
		return ps.Base, nil
	}

	// ps changes only once every host call has succeeded.
	next, err := e.host.Duplicate(ps.Preview)
	if err != nil {
		return ps.Base, errors.NewHostOperationFailed("duplicate", err)
	}
	if ps.EffectLayer != host.NoLayer {
		if err := e.flattenEffect(ps, next); err != nil {
			e.discard(next)
			return ps.Base, err
		}
		ps.EffectLayer = host.NoLayer
	}

	old := ps.Base
	ps.Base = ps.Preview
	ps.Preview = next
	ps.pending = false
	ps.Generation++
	e.discard(old)
	if err := e.dropCommittedBase(ps); err != nil {
		return ps.Base, err
	}

	log.Debug().Uint64("generation", ps.Generation).Msg("committed")
	return ps.Base, nil
}

// flattenEffect merges the effect layer of the preview and of its copy next,
// whose active layer is the copied effect layer. The preview is merged last
// so a failure leaves it untouched.
func (e *Engine) flattenEffect(ps *PreviewState, next host.Image) error {
	top, err := e.host.ActiveLayer(next)
	if err != nil {
		return errors.NewHostOperationFailed("active_layer", err)
	}
	if _, err := e.host.MergeDown(next, top, host.ClipToImage); err != nil {
		return errors.NewHostOperationFailed("merge_down", err)
	}
	if _, err := e.host.MergeDown(ps.Preview, ps.EffectLayer, host.ClipToImage); err != nil {
		return errors.NewHostOperationFailed("merge_down", err)
	}
	return nil
}

// Discard deletes every handle ps owns.
func (e *Engine) Discard(ps *PreviewState) {
	for _, img := range []host.Image{ps.Preview, ps.CommittedBase, ps.Base} {
		if img != host.NoImage {
			e.discard(img)
		}
	}
	*ps = PreviewState{Generation: ps.Generation}
}

// Thumbnail renders the visible preview scaled to fit edge x edge.
func (e *Engine) Thumbnail(ps *PreviewState, edge int) (image.Image, error) {
	img, err := e.host.Thumbnail(ps.Preview, edge, edge)
	if err != nil {
		return nil, errors.NewHostOperationFailed("thumbnail", err)
	}
	return img, nil
}

func (e *Engine) dropCommittedBase(ps *PreviewState) error {
	if ps.CommittedBase == host.NoImage {
		return nil
	}
	if err := e.host.Delete(ps.CommittedBase); err != nil {
		return errors.NewHostOperationFailed("delete", err)
	}
	ps.CommittedBase = host.NoImage
	return nil
}

// discard deletes a handle on a path that is already failing or done with it.
func (e *Engine) discard(img host.Image) {
	if err := e.host.Delete(img); err != nil {
		log.Warn().Err(err).Int64("image", int64(img)).Msg("delete image")
	}
}
