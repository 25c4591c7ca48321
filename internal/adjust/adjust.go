// Package adjust holds the continuous tonal adjustment values of a session.
// It is pure data: nothing here touches images.
package adjust

import (
	"math"
	"slices"

	"github.com/hpungsan/beautify/internal/errors"
)

// Field names one continuous adjustment.
type Field string

const (
	Brightness   Field = "brightness"
	Contrast     Field = "contrast"
	Saturation   Field = "saturation"
	Hue          Field = "hue"
	CyanRed      Field = "cyan_red"
	MagentaGreen Field = "magenta_green"
	YellowBlue   Field = "yellow_blue"
)

// Fields lists every field in slider order.
var Fields = []Field{Brightness, Contrast, Saturation, Hue, CyanRed, MagentaGreen, YellowBlue}

// Range is the inclusive slider range of a field.
type Range struct {
	Min     float64
	Max     float64
	Integer bool
}

var ranges = map[Field]Range{
	Brightness:   {Min: -127, Max: 127, Integer: true},
	Contrast:     {Min: -50, Max: 50, Integer: true},
	Saturation:   {Min: -50, Max: 50},
	Hue:          {Min: -180, Max: 180},
	CyanRed:      {Min: -50, Max: 50},
	MagentaGreen: {Min: -50, Max: 50},
	YellowBlue:   {Min: -50, Max: 50},
}

// RangeOf returns the slider range for f.
func RangeOf(f Field) (Range, bool) {
	r, ok := ranges[f]
	return r, ok
}

// ParseField validates a field name coming from an external surface.
func ParseField(name string) (Field, error) {
	f := Field(name)
	if _, ok := ranges[f]; !ok {
		return "", errors.NewInvalidParameter("field", name)
	}
	return f, nil
}

// Clamp brings v into f's range, rounding integer fields.
// NaN and unknown fields are rejected; everything else is clamped.
func Clamp(f Field, v float64) (float64, error) {
	r, ok := ranges[f]
	if !ok {
		return 0, errors.NewInvalidParameter("field", string(f))
	}
	if math.IsNaN(v) {
		return 0, errors.NewInvalidParameter(string(f), "NaN")
	}
	if r.Integer {
		v = math.Round(v)
	}
	return min(max(v, r.Min), r.Max), nil
}

// State is the full set of continuous adjustments. The zero value is the
// identity adjustment.
type State struct {
	Brightness   int     `json:"brightness"`
	Contrast     int     `json:"contrast"`
	Saturation   float64 `json:"saturation"`
	Hue          float64 `json:"hue"`
	CyanRed      float64 `json:"cyan_red"`
	MagentaGreen float64 `json:"magenta_green"`
	YellowBlue   float64 `json:"yellow_blue"`
}

// IsIdentity reports whether every field is zero.
func (s State) IsIdentity() bool {
	return s == State{}
}

// HasLevels reports whether the brightness/contrast remap contributes.
func (s State) HasLevels() bool {
	return s.Brightness != 0 || s.Contrast != 0
}

// HasHueSaturation reports whether the hue/saturation rotation contributes.
func (s State) HasHueSaturation() bool {
	return s.Saturation != 0 || s.Hue != 0
}

// HasColorBalance reports whether the three-way color balance contributes.
func (s State) HasColorBalance() bool {
	return s.CyanRed != 0 || s.MagentaGreen != 0 || s.YellowBlue != 0
}

// Get returns the value of f.
func (s State) Get(f Field) float64 {
	switch f {
	case Brightness:
		return float64(s.Brightness)
	case Contrast:
		return float64(s.Contrast)
	case Saturation:
		return s.Saturation
	case Hue:
		return s.Hue
	case CyanRed:
		return s.CyanRed
	case MagentaGreen:
		return s.MagentaGreen
	case YellowBlue:
		return s.YellowBlue
	}
	return 0
}

func (s *State) set(f Field, v float64) {
	switch f {
	case Brightness:
		s.Brightness = int(v)
	case Contrast:
		s.Contrast = int(v)
	case Saturation:
		s.Saturation = v
	case Hue:
		s.Hue = v
	case CyanRed:
		s.CyanRed = v
	case MagentaGreen:
		s.MagentaGreen = v
	case YellowBlue:
		s.YellowBlue = v
	}
}

// Normalized returns a copy of s with every field clamped into range.
func (s State) Normalized() State {
	var out State
	for _, f := range Fields {
		v, err := Clamp(f, s.Get(f))
		if err != nil {
			continue
		}
		out.set(f, v)
	}
	return out
}

// Listener is notified after a field value changes.
type Listener func(f Field, value float64)

// Model holds the current adjustment state and notifies listeners on change.
type Model struct {
	state     State
	listeners []Listener
}

// NewModel returns a model at the identity state.
func NewModel() *Model {
	return &Model{}
}

// OnChange registers a listener called for every field that actually changes.
func (m *Model) OnChange(fn Listener) {
	m.listeners = append(m.listeners, fn)
}

// State returns a copy of the current values.
func (m *Model) State() State {
	return m.state
}

// IsIdentity reports whether all fields are zero.
func (m *Model) IsIdentity() bool {
	return m.state.IsIdentity()
}

// Set stores a clamped value and reports whether the resulting state differs
// from the identity.
func (m *Model) Set(f Field, v float64) (bool, error) {
	v, err := Clamp(f, v)
	if err != nil {
		return !m.state.IsIdentity(), err
	}
	if m.state.Get(f) != v {
		m.state.set(f, v)
		m.notify(f, v)
	}
	return !m.state.IsIdentity(), nil
}

// Load replaces every field (clamped) and returns the fields that changed.
func (m *Model) Load(s State) []Field {
	s = s.Normalized()
	var changed []Field
	for _, f := range Fields {
		if m.state.Get(f) != s.Get(f) {
			changed = append(changed, f)
		}
	}
	m.state = s
	for _, f := range changed {
		m.notify(f, s.Get(f))
	}
	return changed
}

// Reset zeroes every field. It returns the new state and the fields that
// were non-zero, so controls bound to those fields can be reset.
func (m *Model) Reset() (State, []Field) {
	changed := m.Load(State{})
	return m.state, changed
}

// Changed reports whether f is in the changed set returned by Reset or Load.
func Changed(changed []Field, f Field) bool {
	return slices.Contains(changed, f)
}

func (m *Model) notify(f Field, v float64) {
	for _, fn := range m.listeners {
		fn(f, v)
	}
}
