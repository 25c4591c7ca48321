package ops

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/beautify/internal/adjust"
	"github.com/hpungsan/beautify/internal/config"
	"github.com/hpungsan/beautify/internal/effect"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/session"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Adjustments is the external form of a set of slider values. Unset fields
// are zero.
type Adjustments struct {
	Brightness   *float64 `json:"brightness,omitempty"`
	Contrast     *float64 `json:"contrast,omitempty"`
	Saturation   *float64 `json:"saturation,omitempty"`
	Hue          *float64 `json:"hue,omitempty"`
	CyanRed      *float64 `json:"cyan_red,omitempty"`
	MagentaGreen *float64 `json:"magenta_green,omitempty"`
	YellowBlue   *float64 `json:"yellow_blue,omitempty"`
}

// IsEmpty reports whether no field is set.
func (a Adjustments) IsEmpty() bool {
	return a.Brightness == nil && a.Contrast == nil && a.Saturation == nil && a.Hue == nil &&
		a.CyanRed == nil && a.MagentaGreen == nil && a.YellowBlue == nil
}

// fields returns the set fields in slider order.
func (a Adjustments) fields() []fieldValue {
	var out []fieldValue
	add := func(f adjust.Field, v *float64) {
		if v != nil {
			out = append(out, fieldValue{f, *v})
		}
	}
	add(adjust.Brightness, a.Brightness)
	add(adjust.Contrast, a.Contrast)
	add(adjust.Saturation, a.Saturation)
	add(adjust.Hue, a.Hue)
	add(adjust.CyanRed, a.CyanRed)
	add(adjust.MagentaGreen, a.MagentaGreen)
	add(adjust.YellowBlue, a.YellowBlue)
	return out
}

// Set stores v under f. Unknown fields are ignored.
func (a *Adjustments) Set(f adjust.Field, v float64) {
	switch f {
	case adjust.Brightness:
		a.Brightness = &v
	case adjust.Contrast:
		a.Contrast = &v
	case adjust.Saturation:
		a.Saturation = &v
	case adjust.Hue:
		a.Hue = &v
	case adjust.CyanRed:
		a.CyanRed = &v
	case adjust.MagentaGreen:
		a.MagentaGreen = &v
	case adjust.YellowBlue:
		a.YellowBlue = &v
	}
}

// State clamps the set fields into an adjust.State.
func (a Adjustments) State() (adjust.State, error) {
	m := adjust.NewModel()
	for _, fv := range a.fields() {
		if _, err := m.Set(fv.field, fv.value); err != nil {
			return adjust.State{}, err
		}
	}
	return m.State(), nil
}

type fieldValue struct {
	field adjust.Field
	value float64
}

// AdjustmentsFrom converts a state into its external form, omitting zeros.
func AdjustmentsFrom(s adjust.State) Adjustments {
	var a Adjustments
	set := func(v float64) *float64 {
		if v == 0 {
			return nil
		}
		return &v
	}
	a.Brightness = set(float64(s.Brightness))
	a.Contrast = set(float64(s.Contrast))
	a.Saturation = set(s.Saturation)
	a.Hue = set(s.Hue)
	a.CyanRed = set(s.CyanRed)
	a.MagentaGreen = set(s.MagentaGreen)
	a.YellowBlue = set(s.YellowBlue)
	return a
}

// resolveEffect maps an external effect name to an id. Empty means none.
func resolveEffect(name string) (effect.ID, error) {
	if name == "" || name == "none" {
		return effect.None, nil
	}
	return effect.Lookup(name)
}

// sessionOptions builds controller options from config.
func sessionOptions(cfg *config.Config, headless bool) session.Options {
	opts := session.DefaultOptions()
	if cfg == nil {
		return opts
	}
	if cfg.PreviewSize > 0 {
		opts.PreviewSize = cfg.PreviewSize
	}
	if cfg.ThumbnailSize > 0 {
		opts.ThumbnailSize = cfg.ThumbnailSize
	}
	if cfg.DefaultOpacity > 0 {
		opts.DefaultOpacity = cfg.DefaultOpacity
	}
	opts.InvalidateThumbnailsOnCommit = cfg.InvalidateThumbnailsOnCommit
	opts.Headless = headless
	return opts
}

// outputQuality returns the configured JPEG quality.
func outputQuality(cfg *config.Config) int {
	if cfg == nil {
		return 0
	}
	return cfg.OutputQuality
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// checkContext returns a cancellation error once ctx is done.
func checkContext(ctx context.Context, op string) error {
	if ctx.Err() != nil {
		return errors.NewCancelled(op)
	}
	return nil
}
