package effect

import "github.com/hpungsan/beautify/internal/host"

// step is one host operation applied to the active layer.
type step func(h host.Host, layer host.Layer) error

// recipe builds a Transform that runs steps in order on the active layer.
func recipe(steps ...step) Transform {
	return func(h host.Host, img host.Image) error {
		layer, err := h.ActiveLayer(img)
		if err != nil {
			return err
		}
		for _, s := range steps {
			if err := s(h, layer); err != nil {
				return err
			}
		}
		return nil
	}
}

func levels(lowIn, highIn int, gamma float64, lowOut, highOut int) step {
	return func(h host.Host, layer host.Layer) error {
		return h.Levels(layer, host.ChannelValue, lowIn, highIn, gamma, lowOut, highOut)
	}
}

func hueSat(hue, lightness, saturation float64) step {
	return func(h host.Host, layer host.Layer) error {
		return h.HueSaturation(layer, host.AllHues, hue, lightness, saturation)
	}
}

func balance(r host.TonalRange, cyanRed, magentaGreen, yellowBlue float64) step {
	return func(h host.Host, layer host.Layer) error {
		return h.ColorBalance(layer, r, true, cyanRed, magentaGreen, yellowBlue)
	}
}

func desaturate() step {
	return func(h host.Host, layer host.Layer) error {
		return h.Desaturate(layer)
	}
}

func invert() step {
	return func(h host.Host, layer host.Layer) error {
		return h.Invert(layer)
	}
}

func sharpen(percent float64) step {
	return func(h host.Host, layer host.Layer) error {
		return h.Sharpen(layer, percent)
	}
}
