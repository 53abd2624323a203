package caption

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	"postbot/config"
	"postbot/media"
	"postbot/types"
)

// Placer decides where a caption can sit on arbitrary footage without
// covering the interesting parts, and renders the caption asset.
type Placer struct {
	cfg *config.Config
}

// New creates a new Placer
func New(cfg *config.Config) *Placer {
	return &Placer{cfg: cfg}
}

// Place samples frames from the footage, scores them for visual busyness,
// renders caption.png into workdir and returns the placement plan.
func (p *Placer) Place(ctx context.Context, videoPath, narration, workdir string, theme types.ThemeStyle, overrides *types.CaptionOverrides) (*types.CaptionPlan, string, error) {
	log.Println("[caption] Sampling frames for placement...")

	framesDir := filepath.Join(workdir, "frames")
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, "", fmt.Errorf("create frames dir: %w", err)
	}

	sampleCount := p.cfg.Caption.SampleFrames
	if sampleCount <= 0 {
		sampleCount = 3
	}
	framePaths, duration := media.SampleFrames(ctx, videoPath, framesDir, sampleCount)

	frames := decodeFrames(framePaths)
	width, height := 1280, 720
	if len(frames) > 0 {
		b := frames[0].Bounds()
		width, height = b.Dx(), b.Dy()
	}

	forceBottom := overrides != nil && overrides.Placement == "bottom"

	var region *Region
	if !forceBottom && len(frames) > 0 {
		region = PickRegion(frames, p.gridRows(), p.gridCols())
	}

	var x, y, boxW, boxH int
	if region == nil {
		// bottom-center fallback, independent of footage content
		x, y, boxW, boxH = FallbackRegion(width, height)
		log.Println("[caption] Using bottom-center fallback region")
	} else {
		// shrink within the winning cell to leave a margin
		boxW = int(float64(region.W) * 0.9)
		boxH = int(float64(region.H) * 0.6)
		x = region.X + (region.W-boxW)/2
		y = region.Y + (region.H-boxH)/2
		log.Printf("[caption] Selected region (%d,%d) %dx%d", x, y, boxW, boxH)
	}

	gradient := theme.Gradient
	fontName := theme.Font
	fontSize := int(float64(boxH) * p.fontSizeRatio())
	if overrides != nil {
		if overrides.Hue != 0 {
			gradient[0] = rotateHue(gradient[0], float64(overrides.Hue))
			gradient[1] = rotateHue(gradient[1], float64(overrides.Hue))
		}
		if overrides.Font != "" {
			fontName = overrides.Font
		}
		if overrides.FontSize > 0 {
			fontSize = overrides.FontSize
		}
	}

	capPath := filepath.Join(workdir, "caption.png")
	if err := renderCaption(capPath, renderParams{
		FrameW:   width,
		FrameH:   height,
		X:        x,
		Y:        y,
		BoxW:     boxW,
		BoxH:     boxH,
		Gradient: gradient,
		Text:     narration,
		Font:     fontName,
		FontDir:  p.cfg.Caption.FontDir,
		FontSize: fontSize,
		Color:    theme.Color,
	}); err != nil {
		return nil, "", fmt.Errorf("render caption: %w", err)
	}

	plan := &types.CaptionPlan{
		X: x, Y: y, W: boxW, H: boxH,
		Gradient: gradient,
		FadeIn:   p.fade(p.cfg.Caption.FadeInSec),
		FadeOut:  p.fade(p.cfg.Caption.FadeOutSec),
		Duration: duration,
	}

	// persisted beside the asset for postmortem inspection
	meta := map[string]any{
		"caption_path": capPath,
		"placement":    map[string]int{"x": x, "y": y, "w": boxW, "h": boxH},
		"duration":     plan.Duration,
		"fade_in":      plan.FadeIn,
		"fade_out":     plan.FadeOut,
	}
	if data, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(workdir, "caption_meta.json"), data, 0644)
	}

	log.Printf("[caption] ✅ Caption rendered: %s", capPath)
	return plan, capPath, nil
}

func (p *Placer) gridRows() int {
	if p.cfg.Caption.GridRows > 0 {
		return p.cfg.Caption.GridRows
	}
	return 3
}

func (p *Placer) gridCols() int {
	if p.cfg.Caption.GridCols > 0 {
		return p.cfg.Caption.GridCols
	}
	return 3
}

func (p *Placer) fontSizeRatio() float64 {
	if p.cfg.Caption.FontSizeRatio > 0 {
		return p.cfg.Caption.FontSizeRatio
	}
	return 0.42
}

func (p *Placer) fade(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0.5
}

// FallbackRegion is the content-independent placement: 90% width, 15%
// height, top edge at 78% of the frame height, horizontally centered.
func FallbackRegion(width, height int) (x, y, w, h int) {
	w = int(float64(width) * 0.9)
	x = (width - w) / 2
	y = int(float64(height) * 0.78)
	h = int(float64(height) * 0.15)
	return x, y, w, h
}

func decodeFrames(paths []string) []*image.Gray {
	var frames []*image.Gray
	for _, p := range paths {
		img, err := loadGray(p)
		if err != nil {
			log.Printf("[caption] Skipping unreadable frame %s: %v", p, err)
			continue
		}
		frames = append(frames, img)
	}
	return frames
}
