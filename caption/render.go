package caption

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"postbot/types"
)

const (
	textPadding = 10
	wrapMargin  = 20
	lineSpacing = 4
)

type renderParams struct {
	FrameW, FrameH int
	X, Y           int
	BoxW, BoxH     int
	Gradient       [2]types.RGBA
	Text           string
	Font           string
	FontDir        string
	FontSize       int
	Color          string
}

// renderCaption draws the gradient box and wrapped narration text onto a
// transparent full-frame canvas and writes it as PNG. The canvas matches
// the source frame size so the composer can overlay it at 0:0.
func renderCaption(outPath string, p renderParams) error {
	canvas := image.NewNRGBA(image.Rect(0, 0, p.FrameW, p.FrameH))

	drawGradientBox(canvas, p.X, p.Y, p.BoxW, p.BoxH, p.Gradient)

	face := loadFace(p.FontDir, p.Font, float64(p.FontSize))
	lines := WrapText(p.Text, face, p.BoxW-wrapMargin)
	drawLines(canvas, lines, face, p.X+textPadding, p.Y+textPadding, parseHexColor(p.Color))

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, canvas)
}

// drawGradientBox fills a rectangle with a vertical two-stop gradient,
// linearly interpolated per scanline.
func drawGradientBox(dst *image.NRGBA, x, y, w, h int, stops [2]types.RGBA) {
	c1, c2 := stops[0], stops[1]
	denom := float64(h - 1)
	if denom < 1 {
		denom = 1
	}
	for i := 0; i < h; i++ {
		t := float64(i) / denom
		line := color.NRGBA{
			R: lerp(c1.R, c2.R, t),
			G: lerp(c1.G, c2.G, t),
			B: lerp(c1.B, c2.B, t),
			A: lerp(c1.A, c2.A, t),
		}
		for j := 0; j < w; j++ {
			px, py := x+j, y+i
			if px >= 0 && py >= 0 && px < dst.Bounds().Dx() && py < dst.Bounds().Dy() {
				dst.SetNRGBA(px, py, line)
			}
		}
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}

// WrapText wraps text greedily against the measured rendered width: words
// are appended while the line fits, and the overflowing word opens the
// next line. A single word wider than maxWidth still gets its own line.
func WrapText(text string, face font.Face, maxWidth int) []string {
	words := strings.Fields(text)
	var lines []string
	var cur []string
	for _, w := range words {
		cur = append(cur, w)
		if measure(face, strings.Join(cur, " ")) > maxWidth && len(cur) > 1 {
			cur = cur[:len(cur)-1]
			lines = append(lines, strings.Join(cur, " "))
			cur = []string{w}
		}
	}
	if len(cur) > 0 {
		lines = append(lines, strings.Join(cur, " "))
	}
	return lines
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// drawLines renders wrapped lines left-aligned from (x, y). Text that
// outgrows the box overflows rather than reflowing — placement favors
// empty regions, so overflow stays rare and legible.
func drawLines(dst *image.NRGBA, lines []string, face font.Face, x, y int, col color.NRGBA) {
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil() + lineSpacing
	baseline := y + metrics.Ascent.Ceil()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
	}
	for i, line := range lines {
		d.Dot = fixed.P(x, baseline+i*lineHeight)
		d.DrawString(line)
	}
}

// loadFace tries <fontDir>/<name>.ttf then .otf, falling back to the
// built-in bitmap face when the font can't be resolved.
func loadFace(fontDir, name string, size float64) font.Face {
	if size < 8 {
		size = 8
	}
	if fontDir != "" && name != "" {
		for _, ext := range []string{".ttf", ".otf"} {
			data, err := os.ReadFile(filepath.Join(fontDir, name+ext))
			if err != nil {
				continue
			}
			fnt, err := opentype.Parse(data)
			if err != nil {
				continue
			}
			face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
				Size: size, DPI: 72, Hinting: font.HintingFull,
			})
			if err == nil {
				return face
			}
		}
	}
	return basicfont.Face7x13
}

func parseHexColor(s string) color.NRGBA {
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return white
	}
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		hi := hexVal(s[i*2])
		lo := hexVal(s[i*2+1])
		if hi < 0 || lo < 0 {
			return white
		}
		rgb[i] = uint8(hi<<4 | lo)
	}
	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// rotateHue shifts a color's hue by deg degrees, preserving alpha.
func rotateHue(c types.RGBA, deg float64) types.RGBA {
	h, s, v := rgbToHSV(c.R, c.G, c.B)
	h = math.Mod(h+deg, 360)
	if h < 0 {
		h += 360
	}
	r, g, b := hsvToRGB(h, s, v)
	return types.RGBA{R: r, G: g, B: b, A: c.A}
}

func rgbToHSV(r8, g8, b8 uint8) (h, s, v float64) {
	r, g, b := float64(r8)/255, float64(g8)/255, float64(b8)/255
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	v = max
	d := max - min
	if max > 0 {
		s = d / max
	}
	if d == 0 {
		return 0, s, v
	}
	switch max {
	case r:
		h = 60 * math.Mod((g-b)/d, 6)
	case g:
		h = 60 * ((b-r)/d + 2)
	default:
		h = 60 * ((r-g)/d + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return uint8((r + m) * 255), uint8((g + m) * 255), uint8((b + m) * 255)
}
