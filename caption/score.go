package caption

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// Region is a rectangle in source-frame coordinates
type Region struct {
	X, Y, W, H int
}

// loadGray decodes an image file and converts it to grayscale.
func loadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for yy := b.Min.Y; yy < b.Max.Y; yy++ {
		for xx := b.Min.X; xx < b.Max.X; xx++ {
			gray.Set(xx-b.Min.X, yy-b.Min.Y, src.At(xx, yy))
		}
	}
	return gray, nil
}

// EdgeMap applies a 3x3 Laplacian edge filter (center 8, neighbors -1)
// and returns per-pixel edge magnitudes clamped to [0,255]. Border pixels
// stay zero.
func EdgeMap(img *image.Gray) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	at := func(x, y int) int { return int(img.GrayAt(x, y).Y) }

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := 8*at(x, y) -
				at(x-1, y-1) - at(x, y-1) - at(x+1, y-1) -
				at(x-1, y) - at(x+1, y) -
				at(x-1, y+1) - at(x, y+1) - at(x+1, y+1)
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			out.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return out
}

// CellScores partitions an edge map into a rows×cols grid and returns the
// mean edge intensity of each cell, row-major, normalized to [0,1].
// Trailing pixels that don't fill a whole cell are ignored.
func CellScores(edges *image.Gray, rows, cols int) []float64 {
	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()
	cellW := w / cols
	cellH := h / rows
	scores := make([]float64, rows*cols)
	if cellW == 0 || cellH == 0 {
		return scores
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var sum int
			for y := r * cellH; y < (r+1)*cellH; y++ {
				for x := c * cellW; x < (c+1)*cellW; x++ {
					sum += int(edges.GrayAt(x, y).Y)
				}
			}
			scores[r*cols+c] = float64(sum) / float64(cellW*cellH) / 255.0
		}
	}
	return scores
}

// PickRegion averages cell scores across all sampled frames and returns
// the cell with the lowest average edge density — the visually emptiest
// spot. Ties resolve to the first (lowest) index, so the choice is stable
// for identical inputs. Returns nil when no frames are available.
func PickRegion(frames []*image.Gray, rows, cols int) *Region {
	if len(frames) == 0 {
		return nil
	}

	accum := make([]float64, rows*cols)
	for _, frame := range frames {
		for i, s := range CellScores(EdgeMap(frame), rows, cols) {
			accum[i] += s
		}
	}

	best := 0
	for i := 1; i < len(accum); i++ {
		if accum[i] < accum[best] {
			best = i
		}
	}

	b := frames[0].Bounds()
	cellW := b.Dx() / cols
	cellH := b.Dy() / rows
	r := best / cols
	c := best % cols
	return &Region{X: c * cellW, Y: r * cellH, W: cellW, H: cellH}
}
