// Package session is the interactive controller over one destination image.
// It routes user events to the adjustment model, the compositing engine and
// the thumbnail cache, and keeps them consistent. A Session is not safe for
// concurrent use; callers serialize events.
package session

import (
	"image"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/beautify/internal/adjust"
	"github.com/hpungsan/beautify/internal/effect"
	"github.com/hpungsan/beautify/internal/engine"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/host"
	"github.com/hpungsan/beautify/internal/thumbs"
)

// State is the controller state.
type State int

const (
	Idle State = iota
	AdjustingOnly
	EffectActive
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AdjustingOnly:
		return "adjusting"
	case EffectActive:
		return "effect_active"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Options configures a session.
type Options struct {
	PreviewSize                  int
	ThumbnailSize                int
	DefaultOpacity               float64
	InvalidateThumbnailsOnCommit bool

	// Headless skips the thumbnail render on open. Used by one-shot runs
	// that never show a gallery.
	Headless bool
}

// DefaultOptions returns the stock sizes and opacity.
func DefaultOptions() Options {
	return Options{
		PreviewSize:    480,
		ThumbnailSize:  80,
		DefaultOpacity: engine.DefaultOpacity,
	}
}

// Result describes what an accepted session applied last.
type Result struct {
	Adjustments adjust.State
	Effect      effect.ID
	Opacity     float64
	Commits     uint64
}

// Session drives one editing dialog.
type Session struct {
	host host.Host
	eng  *engine.Engine
	dest host.Image
	opts Options

	adjust   *adjust.Model
	sel      engine.Selection
	ps       *engine.PreviewState
	thumbs   *thumbs.Cache
	category effect.Category
	closed   bool
}

// Open starts a session over dest. dest is only written by Accept. Unless
// headless, the first category's thumbnails are rendered before Open returns.
func Open(h host.Host, dest host.Image, opts Options) (*Session, error) {
	if opts.PreviewSize <= 0 || opts.ThumbnailSize <= 0 {
		return nil, errors.NewInvalidRequest("preview and thumbnail sizes must be positive")
	}
	eng := engine.New(h)
	ps, err := eng.Open(dest)
	if err != nil {
		return nil, err
	}

	s := &Session{
		host:     h,
		eng:      eng,
		dest:     dest,
		opts:     opts,
		adjust:   adjust.NewModel(),
		ps:       ps,
		thumbs:   thumbs.New(h, opts.ThumbnailSize, thumbs.WithInvalidateOnCommit(opts.InvalidateThumbnailsOnCommit)),
		category: effect.Categories()[0],
	}
	if !opts.Headless {
		if _, err := s.thumbs.RenderCategory(s.category, ps.Base, ps.Generation); err != nil {
			eng.Discard(ps)
			return nil, err
		}
	}
	log.Debug().Str("category", string(s.category)).Msg("session opened")
	return s, nil
}

// State returns the controller state.
func (s *Session) State() State {
	switch {
	case s.closed:
		return Closed
	case s.sel.Active():
		return EffectActive
	case !s.adjust.IsIdentity():
		return AdjustingOnly
	default:
		return Idle
	}
}

// Adjustments returns the current slider values.
func (s *Session) Adjustments() adjust.State {
	return s.adjust.State()
}

// Selection returns the active effect and its opacity.
func (s *Session) Selection() engine.Selection {
	return s.sel
}

// Category returns the category page last switched to.
func (s *Session) Category() effect.Category {
	return s.category
}

// Generation returns how many times the base has been committed.
func (s *Session) Generation() uint64 {
	return s.ps.Generation
}

// OnAdjustmentChange registers a listener for slider value changes,
// including resets caused by picking an effect or committing.
func (s *Session) OnAdjustmentChange(fn adjust.Listener) {
	s.adjust.OnChange(fn)
}

func (s *Session) checkOpen() error {
	if s.closed {
		return errors.NewInvalidState("session is closed")
	}
	return nil
}

// SetAdjustment changes one slider and recomputes the preview. Out-of-range
// values are clamped. If the recompute fails the slider keeps its previous
// value and the previous preview stays displayed.
func (s *Session) SetAdjustment(f adjust.Field, v float64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	prev := s.adjust.State().Get(f)
	nonIdentity, err := s.adjust.Set(f, v)
	if err != nil {
		return err
	}
	if s.adjust.State().Get(f) == prev {
		return nil
	}
	// Nothing to show and nothing shown: the preview already equals base.
	if !nonIdentity && !s.sel.Active() && !s.ps.Pending() {
		return nil
	}
	if err := s.eng.Refresh(s.ps, s.adjust.State(), s.sel); err != nil {
		_, _ = s.adjust.Set(f, prev)
		return err
	}
	return nil
}

func (s *Session) SetBrightness(v int) error       { return s.SetAdjustment(adjust.Brightness, float64(v)) }
func (s *Session) SetContrast(v int) error         { return s.SetAdjustment(adjust.Contrast, float64(v)) }
func (s *Session) SetSaturation(v float64) error   { return s.SetAdjustment(adjust.Saturation, v) }
func (s *Session) SetHue(v float64) error          { return s.SetAdjustment(adjust.Hue, v) }
func (s *Session) SetCyanRed(v float64) error      { return s.SetAdjustment(adjust.CyanRed, v) }
func (s *Session) SetMagentaGreen(v float64) error { return s.SetAdjustment(adjust.MagentaGreen, v) }
func (s *Session) SetYellowBlue(v float64) error   { return s.SetAdjustment(adjust.YellowBlue, v) }

// SelectEffect makes id the active effect. A previously active effect is
// dropped, pending adjustments are committed into the base, the sliders are
// reset and opacity returns to the default. It returns the sliders that were
// reset. effect.None drops the active effect and keeps the sliders.
func (s *Session) SelectEffect(id effect.ID) ([]adjust.Field, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if id == effect.None {
		return nil, s.dropEffect()
	}
	if _, err := effect.Get(id); err != nil {
		return nil, err
	}

	if err := s.dropEffect(); err != nil {
		return nil, err
	}
	if _, err := s.eng.Commit(s.ps); err != nil {
		return nil, err
	}
	_, changed := s.adjust.Reset()

	sel := engine.Selection{Effect: id, Opacity: s.opts.DefaultOpacity}
	if err := s.eng.Refresh(s.ps, s.adjust.State(), sel); err != nil {
		return changed, err
	}
	s.sel = sel
	log.Debug().Str("effect", id.String()).Float64("opacity", sel.Opacity).Msg("effect selected")
	return changed, nil
}

// dropEffect re-renders the preview without the active effect.
func (s *Session) dropEffect() error {
	if !s.sel.Active() {
		return nil
	}
	if err := s.eng.Refresh(s.ps, s.adjust.State(), engine.Selection{}); err != nil {
		return err
	}
	s.sel = engine.Selection{}
	return nil
}

// SetOpacity changes the active effect's opacity, clamped to [0,100]. With no
// active effect it is ignored.
func (s *Session) SetOpacity(percent float64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if math.IsNaN(percent) {
		return errors.NewInvalidParameter("opacity", percent)
	}
	if !s.sel.Active() {
		return nil
	}
	percent = min(max(percent, 0), 100)
	if err := s.eng.SetEffectOpacity(s.ps, percent); err != nil {
		return err
	}
	s.sel.Opacity = percent
	return nil
}

// SwitchCategory shows a category page, rendering its thumbnails if the
// cache does not hold them yet.
func (s *Session) SwitchCategory(c effect.Category) ([]thumbs.Thumbnail, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out, err := s.thumbs.RenderCategory(c, s.ps.Base, s.ps.Generation)
	if err != nil {
		return nil, err
	}
	s.category = c
	return out, nil
}

// Thumbnail returns a cached effect thumbnail of category, if rendered.
func (s *Session) Thumbnail(c effect.Category, id effect.ID) (thumbs.Thumbnail, bool) {
	return s.thumbs.Lookup(c, s.ps.Generation, id)
}

// Commit flattens the active effect and adjustments into the base. The
// selection clears and the sliders reset.
func (s *Session) Commit() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.eng.Commit(s.ps); err != nil {
		return err
	}
	s.sel = engine.Selection{}
	s.adjust.Reset()
	return nil
}

// CurrentPreview renders the displayed preview for redraw.
func (s *Session) CurrentPreview() (image.Image, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.eng.Thumbnail(s.ps, s.opts.PreviewSize)
}

// Accept commits everything and transfers the result onto the destination,
// then closes the session. Any failure is fatal: the session is closed and
// the destination is left as it was.
func (s *Session) Accept() (Result, error) {
	if err := s.checkOpen(); err != nil {
		return Result{}, err
	}
	res := Result{
		Adjustments: s.adjust.State(),
		Effect:      s.sel.Effect,
		Opacity:     s.sel.Opacity,
	}
	defer s.Cancel()

	if _, err := s.eng.Commit(s.ps); err != nil {
		return Result{}, errors.NewCommitFailed(err)
	}
	res.Commits = s.ps.Generation
	if err := s.transfer(); err != nil {
		log.Warn().Err(err).Msg("accept failed")
		return Result{}, errors.NewCommitFailed(err)
	}
	log.Debug().Str("effect", res.Effect.String()).Uint64("generation", res.Commits).Msg("accepted")
	return res, nil
}

// transfer pastes the flattened base over the destination's active layer.
func (s *Session) transfer() error {
	src, err := s.host.ActiveLayer(s.ps.Base)
	if err != nil {
		return err
	}
	dst, err := s.host.ActiveLayer(s.dest)
	if err != nil {
		return err
	}
	if err := s.host.CopyRegion(src); err != nil {
		return err
	}
	floating, err := s.host.PasteRegion(dst)
	if err != nil {
		return err
	}
	return s.host.AnchorFloating(floating)
}

// Cancel discards every working image. The destination is untouched.
// Calling it on a closed session does nothing.
func (s *Session) Cancel() {
	if s.closed {
		return
	}
	s.eng.Discard(s.ps)
	s.thumbs.Clear()
	s.sel = engine.Selection{}
	s.closed = true
}
