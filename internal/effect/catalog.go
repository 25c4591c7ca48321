package effect

import "github.com/hpungsan/beautify/internal/host"

func init() {
	declareCategory(Basic, "Basic")
	declareCategory(LOMO, "LOMO")
	declareCategory(Studio, "Studio")
	declareCategory(Fashion, "Fashion")

	register(Basic, Effect{ID: SoftLight, Name: "Soft Light",
		Description: "Lifts the midtones and softens color for a *gentle glow*.",
		Transform:   recipe(levels(0, 255, 1.15, 0, 255), hueSat(0, 0, -10))})
	register(Basic, Effect{ID: Warm, Name: "Warm",
		Description: "Pushes midtones and highlights toward **red and yellow**.",
		Transform:   recipe(balance(host.Midtones, 20, 0, -20), balance(host.Highlights, 10, 0, -10))})
	register(Basic, Effect{ID: Sharpen, Name: "Sharpen",
		Description: "Crisper edges through a light unsharp mask.",
		Transform:   recipe(sharpen(50))})
	register(Basic, Effect{ID: StrongContrast, Name: "Strong Contrast",
		Description: "Clips the tonal range and adds a touch of saturation.",
		Transform:   recipe(levels(30, 225, 1, 0, 255), hueSat(0, 0, 10))})
	register(Basic, Effect{ID: SmartColor, Name: "Smart Color",
		Description: "Vivid color with a slight black and white point stretch.",
		Transform:   recipe(hueSat(0, 0, 30), levels(10, 245, 1, 0, 255))})
	register(Basic, Effect{ID: Invert, Name: "Invert",
		Description: "Photographic negative.",
		Transform:   recipe(invert())})

	register(LOMO, Effect{ID: GothicStyle, Name: "Gothic Style",
		Description: "Monochrome with crushed blacks and **cold shadows**.",
		Transform:   recipe(desaturate(), levels(40, 215, 0.9, 0, 255), balance(host.Shadows, -10, 0, 15))})
	register(LOMO, Effect{ID: ClassicHDR, Name: "Classic HDR",
		Description: "Local detail, stretched tones and saturated color.",
		Transform:   recipe(sharpen(60), levels(20, 235, 1.1, 0, 255), hueSat(0, 0, 20))})
	register(LOMO, Effect{ID: Impression, Name: "Impression",
		Description: "Faded blacks and muted, slightly green-blue midtones.",
		Transform:   recipe(hueSat(0, 0, -30), balance(host.Midtones, 0, -10, 10), levels(0, 255, 1.2, 20, 255))})

	register(Studio, Effect{ID: LittleFresh, Name: "Little Fresh",
		Description: "Bright, airy and cool.",
		Transform:   recipe(levels(0, 255, 1.25, 10, 255), balance(host.Midtones, -10, 5, 10), hueSat(0, 0, -10))})
	register(Studio, Effect{ID: PinkLady, Name: "Pink Lady",
		Description: "Rosy skin tones with soft highlights.",
		Transform:   recipe(balance(host.Midtones, 25, -15, 0), balance(host.Highlights, 10, -5, 5), levels(0, 255, 1.1, 0, 255))})
	register(Studio, Effect{ID: ABao, Name: "A Bao",
		Description: "Warm portrait tone with extra color.",
		Transform:   recipe(balance(host.Midtones, 15, 0, -10), hueSat(0, 0, 15), levels(0, 245, 1.1, 0, 255))})
	register(Studio, Effect{ID: IceSpirit, Name: "Ice Spirit",
		Description: "Icy cyan-blue cast, desaturated.",
		Transform:   recipe(balance(host.Midtones, -25, 0, 30), balance(host.Highlights, -10, 0, 15), hueSat(0, 0, -20))})
	register(Studio, Effect{ID: Japanese, Name: "Japanese",
		Description: "Overexposed, low-contrast film look.",
		Transform:   recipe(levels(0, 255, 1.3, 25, 250), hueSat(0, 0, -25), balance(host.Midtones, -5, 5, 10))})
	register(Studio, Effect{ID: NewJapanese, Name: "New Japanese",
		Description: "A cleaner take on *Japanese* with green-blue midtones.",
		Transform:   recipe(levels(0, 255, 1.2, 15, 255), balance(host.Midtones, 0, 10, 15), hueSat(0, 0, -15))})
	register(Studio, Effect{ID: WarmYellow, Name: "Warm Yellow",
		Description: "Golden-hour yellow cast.",
		Transform:   recipe(balance(host.Midtones, 15, 0, -35), hueSat(0, 0, 10))})
	register(Studio, Effect{ID: Blues, Name: "Blues",
		Description: "Deep blue midtones and shadows.",
		Transform:   recipe(balance(host.Midtones, -20, 0, 35), balance(host.Shadows, -10, 0, 20))})
	register(Studio, Effect{ID: PurpleFantasy, Name: "Purple Fantasy",
		Description: "Magenta-violet fantasy grade.",
		Transform:   recipe(balance(host.Midtones, 15, -30, 30), hueSat(-10, 0, 0))})

	register(Fashion, Effect{ID: BrightRed, Name: "Bright Red",
		Description: "Saturated, red-forward color.",
		Transform:   recipe(hueSat(0, 0, 40), balance(host.Midtones, 30, 0, 0))})
	register(Fashion, Effect{ID: ChristmasEve, Name: "Eve", Aliases: []string{"Christmas Eve"},
		Description: "Blue night shadows against warm highlights.",
		Transform:   recipe(balance(host.Shadows, 0, 0, 30), balance(host.Highlights, 20, 0, -20), levels(10, 245, 1, 0, 255))})
	register(Fashion, Effect{ID: Astral, Name: "Astral",
		Description: "Dark violet-blue space tones.",
		Transform:   recipe(balance(host.Midtones, -10, -20, 40), levels(0, 255, 0.85, 0, 255))})
	register(Fashion, Effect{ID: PickLight, Name: "Pick Light",
		Description: "Opens up the highlights.",
		Transform:   recipe(levels(0, 220, 1.2, 0, 255), hueSat(0, 0, 5))})
}
