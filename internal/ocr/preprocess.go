package ocr

import (
	"image"

	"github.com/disintegration/imaging"
)

// Strategy names the contrast adjustment chosen for an image.
type Strategy string

const (
	StrategyLighten      Strategy = "lighten"
	StrategyDarken       Strategy = "darken"
	StrategyHighContrast Strategy = "high_contrast"
	StrategyNormal       Strategy = "normal"
)

// PreprocessConfig tunes the filter chain run before recognition.
type PreprocessConfig struct {
	MaxDimension     int     `yaml:"max_dimension"`
	DarkLevel        float64 `yaml:"dark_level"`
	LightLevel       float64 `yaml:"light_level"`
	DominantFraction float64 `yaml:"dominant_fraction"`
	SparseFraction   float64 `yaml:"sparse_fraction"`
}

// DefaultPreprocessConfig returns the stock filter settings.
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		MaxDimension:     1600,
		DarkLevel:        0.2,
		LightLevel:       0.8,
		DominantFraction: 0.4,
		SparseFraction:   0.1,
	}
}

// Preprocess bounds the image size and applies one of four contrast
// strategies picked from the luminance histogram. The result is grayscale.
func Preprocess(img image.Image, cfg PreprocessConfig) (*image.NRGBA, Strategy) {
	var fitted *image.NRGBA
	b := img.Bounds()
	if cfg.MaxDimension > 0 && (b.Dx() > cfg.MaxDimension || b.Dy() > cfg.MaxDimension) {
		fitted = imaging.Fit(img, cfg.MaxDimension, cfg.MaxDimension, imaging.Lanczos)
	} else {
		fitted = imaging.Clone(img)
	}

	dark, light := luminanceFractions(fitted, cfg)
	strategy := chooseStrategy(dark, light, cfg)

	var out *image.NRGBA
	switch strategy {
	case StrategyLighten:
		out = imaging.AdjustGamma(imaging.AdjustBrightness(fitted, 25), 1.3)
	case StrategyDarken:
		out = imaging.AdjustContrast(imaging.AdjustBrightness(fitted, -20), 15)
	case StrategyHighContrast:
		out = imaging.AdjustSigmoid(fitted, 0.5, 6)
	default:
		out = imaging.Sharpen(imaging.AdjustContrast(fitted, 10), 0.5)
	}
	return imaging.Grayscale(out), strategy
}

// luminanceFractions returns the share of pixels below DarkLevel and above LightLevel.
func luminanceFractions(img image.Image, cfg PreprocessConfig) (dark, light float64) {
	hist := imaging.Histogram(img)
	darkBin := int(cfg.DarkLevel * 255)
	lightBin := int(cfg.LightLevel * 255)
	for i, v := range hist {
		if i < darkBin {
			dark += v
		} else if i > lightBin {
			light += v
		}
	}
	return dark, light
}

func chooseStrategy(dark, light float64, cfg PreprocessConfig) Strategy {
	switch {
	case dark > cfg.DominantFraction:
		return StrategyLighten
	case light > cfg.DominantFraction:
		return StrategyDarken
	case dark < cfg.SparseFraction && light < cfg.SparseFraction:
		return StrategyHighContrast
	default:
		return StrategyNormal
	}
}
