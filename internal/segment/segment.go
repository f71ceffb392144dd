// Package segment splits a shelf photo into per-book vertical slices by
// finding peaks in a column edge histogram.
package segment

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// Config tunes peak finding.
type Config struct {
	AnalysisWidth int     `yaml:"analysis_width"`
	Window        int     `yaml:"window"`
	K             float64 `yaml:"k"`
	MinWidth      int     `yaml:"min_width"`
	MaxBooks      int     `yaml:"max_books"`
}

// DefaultConfig returns the stock segmentation settings.
func DefaultConfig() Config {
	return Config{
		AnalysisWidth: 800,
		Window:        5,
		K:             1.0,
		MinWidth:      40,
		MaxBooks:      20,
	}
}

// Segment returns full-height slices of img in source coordinates, left
// to right. An image without separators yields a single slice.
func Segment(img image.Image, cfg Config) []image.Rectangle {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}

	src := img
	if cfg.AnalysisWidth > 0 && b.Dx() > cfg.AnalysisWidth {
		src = imaging.Resize(img, cfg.AnalysisWidth, 0, imaging.Box)
	}
	analysis := imaging.Grayscale(src)
	scale := float64(b.Dx()) / float64(analysis.Bounds().Dx())

	profile := Smooth(ColumnGradients(analysis), cfg.Window)
	minGap := int(math.Ceil(float64(cfg.MinWidth) / scale))
	peaks := Peaks(profile, cfg.K, minGap)

	cuts := []int{b.Min.X}
	for _, p := range peaks {
		cuts = append(cuts, b.Min.X+int(math.Round((float64(p)+0.5)*scale)))
	}
	cuts = append(cuts, b.Max.X)

	var slices []image.Rectangle
	for i := 0; i+1 < len(cuts); i++ {
		if cuts[i+1]-cuts[i] < cfg.MinWidth {
			continue
		}
		slices = append(slices, image.Rect(cuts[i], b.Min.Y, cuts[i+1], b.Max.Y))
		if cfg.MaxBooks > 0 && len(slices) == cfg.MaxBooks {
			break
		}
	}
	if len(slices) == 0 {
		return []image.Rectangle{b}
	}
	return slices
}

// ColumnGradients sums |I(x+1,y) - I(x,y)| down each column of a
// grayscale image. The result has one entry per column boundary.
func ColumnGradients(gray *image.NRGBA) []float64 {
	b := gray.Bounds()
	w := b.Dx()
	if w < 2 {
		return nil
	}
	cols := make([]float64, w-1)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X-1; x++ {
			a := gray.Pix[gray.PixOffset(x, y)]
			c := gray.Pix[gray.PixOffset(x+1, y)]
			cols[x-b.Min.X] += math.Abs(float64(a) - float64(c))
		}
	}
	return cols
}

// Smooth applies a centred moving average of the given window.
func Smooth(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		return append([]float64(nil), values...)
	}
	half := window / 2
	out := make([]float64, len(values))
	for i := range values {
		lo, hi := max(0, i-half), min(len(values)-1, i+half)
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

// Peaks returns local maxima above mean + k*stddev, at least minGap apart,
// sorted by position. When two peaks are too close the stronger one wins.
func Peaks(values []float64, k float64, minGap int) []int {
	if len(values) < 3 {
		return nil
	}
	mean, std := meanStd(values)
	threshold := mean + k*std

	var candidates []int
	for i := 1; i < len(values)-1; i++ {
		v := values[i]
		if v > threshold && v > 0 && v >= values[i-1] && v > values[i+1] {
			candidates = append(candidates, i)
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return values[candidates[a]] > values[candidates[b]]
	})

	var accepted []int
	for _, c := range candidates {
		ok := true
		for _, a := range accepted {
			if abs(a-c) < minGap {
				ok = false
				break
			}
		}
		if ok {
			accepted = append(accepted, c)
		}
	}
	sort.Ints(accepted)
	return accepted
}

func meanStd(values []float64) (float64, float64) {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
