package engine

import (
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/host"
)

// PreviewState holds the long-lived handles of one session.
//
// Base is the flattened checkpoint. CommittedBase exists only while an effect
// is active and is the image adjustments are recomputed from. Preview is what
// is displayed; EffectLayer is its live effect layer, if any. Generation
// increments every time Base is replaced.
type PreviewState struct {
	Base          host.Image
	CommittedBase host.Image
	Preview       host.Image
	EffectLayer   host.Layer
	Generation    uint64

	// pending is set when Preview differs from Base.
	pending bool
}

// Open creates the state for a session over source. The engine owns Base and
// Preview; source stays with the caller.
func (e *Engine) Open(source host.Image) (*PreviewState, error) {
	base, err := e.host.Duplicate(source)
	if err != nil {
		return nil, errors.NewHostOperationFailed("duplicate", err)
	}
	preview, err := e.host.Duplicate(base)
	if err != nil {
		e.discard(base)
		return nil, errors.NewHostOperationFailed("duplicate", err)
	}
	return &PreviewState{Base: base, Preview: preview}, nil
}

// Handles returns the live handles ps references.
func (ps *PreviewState) Handles() []host.Image {
	var out []host.Image
	for _, img := range []host.Image{ps.Base, ps.CommittedBase, ps.Preview} {
		if img != host.NoImage {
			out = append(out, img)
		}
	}
	return out
}

// Pending reports whether Preview shows uncommitted work.
func (ps *PreviewState) Pending() bool {
	return ps.pending
}
