package classify

import (
	"image"
	"math"
)

// Delta is one signal's contribution to the running scores.
type Delta struct {
	ISBN  float64
	Cover float64
	Spine float64
	Shelf float64
}

func (d Delta) add(o Delta) Delta {
	return Delta{d.ISBN + o.ISBN, d.Cover + o.Cover, d.Spine + o.Spine, d.Shelf + o.Shelf}
}

// AspectDelta scores the height/width ratio. Branches are exclusive.
func AspectDelta(ratio float64, cfg AspectConfig) Delta {
	switch {
	case ratio > cfg.SpineRatio:
		return Delta{Spine: cfg.SpineBonus, Shelf: cfg.SpineShelfBonus}
	case ratio >= cfg.CoverMin && ratio <= cfg.CoverMax:
		return Delta{Cover: cfg.CoverBonus}
	case ratio < cfg.ShelfRatio:
		return Delta{Shelf: cfg.ShelfBonus, Spine: cfg.ShelfSpineBonus}
	default:
		return Delta{Cover: cfg.BalancedBonus, Spine: cfg.BalancedBonus, Shelf: cfg.BalancedBonus}
	}
}

// EdgeCounts samples img every stride pixels and counts gradients above
// threshold. Vertical edges are changes along x, horizontal edges changes
// along y. Gradients are summed over the RGB channels in 8-bit units.
func EdgeCounts(img *image.NRGBA, stride, threshold int) (horizontal, vertical int) {
	if stride < 1 {
		stride = 1
	}
	b := img.Bounds()
	for y := b.Min.Y; y+stride < b.Max.Y; y += stride {
		for x := b.Min.X; x+stride < b.Max.X; x += stride {
			p := img.PixOffset(x, y)
			right := img.PixOffset(x+stride, y)
			below := img.PixOffset(x, y+stride)
			if channelDiff(img.Pix, p, right) > threshold {
				vertical++
			}
			if channelDiff(img.Pix, p, below) > threshold {
				horizontal++
			}
		}
	}
	return horizontal, vertical
}

func channelDiff(pix []uint8, a, b int) int {
	d := 0
	for c := 0; c < 3; c++ {
		v := int(pix[a+c]) - int(pix[b+c])
		if v < 0 {
			v = -v
		}
		d += v
	}
	return d
}

// EdgeDelta turns edge counts into a score contribution. An image with no
// edges at all contributes nothing.
func EdgeDelta(horizontal, vertical int, cfg EdgeConfig) Delta {
	h, v := float64(horizontal), float64(vertical)
	switch {
	case h == 0 && v == 0:
		return Delta{}
	case v > 0 && h/v >= cfg.BalancedMin && h/v <= cfg.BalancedMax:
		return Delta{Cover: cfg.CoverBonus}
	case h > cfg.Dominance*v:
		return Delta{Spine: cfg.SpineBonus}
	case v > cfg.Dominance*h:
		return Delta{Shelf: cfg.ShelfBonus}
	default:
		return Delta{}
	}
}

// Cell is the colour summary of one grid cell.
type Cell struct {
	Mean     [3]float64
	Variance float64
}

// Grid splits img into a 3x3 grid and returns per-cell mean RGB and the
// mean per-channel variance, row-major.
func Grid(img *image.NRGBA, stride int) [9]Cell {
	if stride < 1 {
		stride = 1
	}
	var sum, sq [9][3]float64
	var n [9]float64

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := b.Min.Y; y < b.Max.Y; y += stride {
		row := min((y-b.Min.Y)*3/h, 2)
		for x := b.Min.X; x < b.Max.X; x += stride {
			col := min((x-b.Min.X)*3/w, 2)
			i := row*3 + col
			p := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := float64(img.Pix[p+c])
				sum[i][c] += v
				sq[i][c] += v * v
			}
			n[i]++
		}
	}

	var cells [9]Cell
	for i := range cells {
		if n[i] == 0 {
			continue
		}
		variance := 0.0
		for c := 0; c < 3; c++ {
			mean := sum[i][c] / n[i]
			cells[i].Mean[c] = mean
			variance += sq[i][c]/n[i] - mean*mean
		}
		cells[i].Variance = variance / 3
	}
	return cells
}

// ColorDeviation is the average RGB distance of the eight outer cells from
// the centre cell.
func ColorDeviation(cells [9]Cell) float64 {
	center := cells[4].Mean
	total := 0.0
	for i, c := range cells {
		if i == 4 {
			continue
		}
		dr := c.Mean[0] - center[0]
		dg := c.Mean[1] - center[1]
		db := c.Mean[2] - center[2]
		total += math.Sqrt(dr*dr + dg*dg + db*db)
	}
	return total / 8
}

// ColorDelta scores the colour deviation.
func ColorDelta(deviation float64, cfg ColorConfig) Delta {
	switch {
	case deviation < cfg.SpineMax:
		return Delta{Spine: cfg.SpineBonus}
	case deviation < cfg.CoverMax:
		return Delta{Cover: cfg.CoverBonus}
	case deviation > cfg.ShelfMin:
		return Delta{Shelf: cfg.ShelfBonus}
	default:
		return Delta{}
	}
}
