package raster

import (
	"fmt"
	"image"
	"math"

	"github.com/hpungsan/beautify/internal/host"
)

// Levels implements host.Host.
func (h *Host) Levels(layer host.Layer, ch host.Channel, lowIn, highIn int, gamma float64, lowOut, highOut int) error {
	l, err := h.layer(layer)
	if err != nil {
		return err
	}
	if highIn <= lowIn {
		return fmt.Errorf("levels: empty input range [%d,%d]", lowIn, highIn)
	}
	if gamma <= 0 {
		return fmt.Errorf("levels: gamma must be positive, got %v", gamma)
	}

	var lut [256]uint8
	for v := range lut {
		x := clampF((float64(v)-float64(lowIn))/float64(highIn-lowIn), 0, 1)
		if gamma != 1 {
			x = math.Pow(x, 1/gamma)
		}
		lut[v] = clamp8(float64(lowOut) + x*float64(highOut-lowOut))
	}

	var channels []int
	switch ch {
	case host.ChannelValue:
		channels = []int{0, 1, 2}
	case host.ChannelRed:
		channels = []int{0}
	case host.ChannelGreen:
		channels = []int{1}
	case host.ChannelBlue:
		channels = []int{2}
	default:
		return fmt.Errorf("levels: unsupported channel %d", ch)
	}

	forEachPixel(l.pix, func(p []uint8) {
		for _, c := range channels {
			p[c] = lut[p[c]]
		}
	})
	return nil
}

// HueSaturation implements host.Host. Only AllHues is supported.
func (h *Host) HueSaturation(layer host.Layer, r host.HueRange, hue, lightness, saturation float64) error {
	l, err := h.layer(layer)
	if err != nil {
		return err
	}
	if r != host.AllHues {
		return fmt.Errorf("hue_saturation: unsupported hue range %d", r)
	}

	forEachPixel(l.pix, func(p []uint8) {
		hh, s, li := rgbToHSL(p[0], p[1], p[2])
		hh = math.Mod(hh+hue/360+1, 1)
		if saturation > 0 {
			s += (1 - s) * saturation / 100
		} else {
			s *= 1 + saturation/100
		}
		if lightness > 0 {
			li += (1 - li) * lightness / 100
		} else {
			li *= 1 + lightness/100
		}
		p[0], p[1], p[2] = hslToRGB(hh, clampF(s, 0, 1), clampF(li, 0, 1))
	})
	return nil
}

// ColorBalance implements host.Host. Deltas are in [-100,100]; each range is
// weighted by pixel lightness so shadows, midtones and highlights overlap smoothly.
func (h *Host) ColorBalance(layer host.Layer, r host.TonalRange, preserveLuminosity bool, cyanRed, magentaGreen, yellowBlue float64) error {
	l, err := h.layer(layer)
	if err != nil {
		return err
	}

	weight := func(li float64) float64 {
		switch r {
		case host.Shadows:
			return clampF((0.5-li)/0.5, 0, 1)
		case host.Highlights:
			return clampF((li-0.5)/0.5, 0, 1)
		default:
			return clampF(1-math.Abs(li-0.5)*2, 0, 1)
		}
	}
	if r < host.Shadows || r > host.Highlights {
		return fmt.Errorf("color_balance: unsupported tonal range %d", r)
	}

	forEachPixel(l.pix, func(p []uint8) {
		rf, gf, bf := float64(p[0]), float64(p[1]), float64(p[2])
		before := luma(rf, gf, bf)
		w := weight(before / 255)
		rf += cyanRed * w * 1.275
		gf += magentaGreen * w * 1.275
		bf += yellowBlue * w * 1.275
		if preserveLuminosity {
			d := before - luma(rf, gf, bf)
			rf, gf, bf = rf+d, gf+d, bf+d
		}
		p[0], p[1], p[2] = clamp8(rf), clamp8(gf), clamp8(bf)
	})
	return nil
}

// Desaturate implements host.Host.
func (h *Host) Desaturate(layer host.Layer) error {
	l, err := h.layer(layer)
	if err != nil {
		return err
	}
	forEachPixel(l.pix, func(p []uint8) {
		y := clamp8(luma(float64(p[0]), float64(p[1]), float64(p[2])))
		p[0], p[1], p[2] = y, y, y
	})
	return nil
}

// Invert implements host.Host.
func (h *Host) Invert(layer host.Layer) error {
	l, err := h.layer(layer)
	if err != nil {
		return err
	}
	forEachPixel(l.pix, func(p []uint8) {
		p[0], p[1], p[2] = 255-p[0], 255-p[1], 255-p[2]
	})
	return nil
}

// Sharpen implements host.Host with a 3x3 cross unsharp kernel.
func (h *Host) Sharpen(layer host.Layer, percent float64) error {
	l, err := h.layer(layer)
	if err != nil {
		return err
	}
	a := clampF(percent, 0, 100) / 100
	if a == 0 {
		return nil
	}

	src := clonePix(l.pix)
	b := src.Bounds()
	at := func(x, y, c int) float64 {
		x = min(max(x, b.Min.X), b.Max.X-1)
		y = min(max(y, b.Min.Y), b.Max.Y-1)
		return float64(src.Pix[src.PixOffset(x, y)+c])
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			off := l.pix.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := at(x, y, c)*(1+4*a) - a*(at(x-1, y, c)+at(x+1, y, c)+at(x, y-1, c)+at(x, y+1, c))
				l.pix.Pix[off+c] = clamp8(v)
			}
		}
	}
	return nil
}

func forEachPixel(img *image.NRGBA, fn func(p []uint8)) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		fn(img.Pix[i : i+4 : i+4])
	}
}

func luma(r, g, b float64) float64 {
	return 0.30*r + 0.59*g + 0.11*b
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp8(v float64) uint8 {
	return uint8(clampF(math.Round(v), 0, 255))
}

func rgbToHSL(r8, g8, b8 uint8) (h, s, l float64) {
	r, g, b := float64(r8)/255, float64(g8)/255, float64(b8)/255
	mx := max(r, g, b)
	mn := min(r, g, b)
	l = (mx + mn) / 2
	if mx == mn {
		return 0, 0, l
	}
	d := mx - mn
	if l > 0.5 {
		s = d / (2 - mx - mn)
	} else {
		s = d / (mx + mn)
	}
	switch mx {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return h / 6, s, l
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	if s == 0 {
		v := clamp8(l * 255)
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return clamp8(hueToRGB(p, q, h+1.0/3) * 255),
		clamp8(hueToRGB(p, q, h) * 255),
		clamp8(hueToRGB(p, q, h-1.0/3) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}
