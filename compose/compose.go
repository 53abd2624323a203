package compose

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"postbot/config"
	"postbot/media"
	"postbot/types"
)

// Composer drives the external media tool to assemble the final artifact
type Composer struct {
	cfg *config.Config
}

// New creates a new Composer
func New(cfg *config.Config) *Composer {
	return &Composer{cfg: cfg}
}

// Mux combines the footage's video stream with the synthesized narration,
// trimmed to the shorter of the two.
func (c *Composer) Mux(ctx context.Context, videoPath, audioPath, outPath string) (string, error) {
	log.Println("[compose] Muxing narration onto footage...")

	if err := media.Run(ctx, "mux audio/video",
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		outPath,
	); err != nil {
		return "", err
	}

	log.Printf("[compose] ✅ Mixed A/V: %s", outPath)
	return outPath, nil
}

// FadeOutStart computes when the caption's fade-out begins: fadeOut
// seconds before the end, clamped to zero for very short clips.
func FadeOutStart(duration, fadeOut float64) float64 {
	start := duration - fadeOut
	if start < 0 {
		return 0
	}
	return start
}

// Overlay composites the caption asset onto the muxed video with alpha
// fades, then normalizes to 1080x1920 portrait at 30fps. When the clip
// duration is unknown only the fade-in is applied.
func (c *Composer) Overlay(ctx context.Context, videoPath, captionPath string, plan *types.CaptionPlan, outPath string) (string, error) {
	log.Printf("[compose] Merging caption → fade_in=%.2f, fade_out=%.2f, dur=%.2f", plan.FadeIn, plan.FadeOut, plan.Duration)

	var fadeFilter string
	if plan.Duration > 0 {
		fadeFilter = fmt.Sprintf(
			"[1:v]format=rgba,fade=t=in:st=0:d=%g:alpha=1,fade=t=out:st=%g:d=%g:alpha=1[cap];"+
				"[0:v][cap]overlay=0:0:format=auto[v]",
			plan.FadeIn, FadeOutStart(plan.Duration, plan.FadeOut), plan.FadeOut,
		)
	} else {
		fadeFilter = fmt.Sprintf(
			"[1:v]format=rgba,fade=t=in:st=0:d=%g:alpha=1[cap];"+
				"[0:v][cap]overlay=0:0:format=auto[v]",
			plan.FadeIn,
		)
	}

	// portrait normalization: aspect-preserving scale, black pad, 30fps
	scaleFilter := "[v]scale=1080:1920:force_original_aspect_ratio=decrease," +
		"pad=1080:1920:(ow-iw)/2:(oh-ih)/2:black[vfinal]"
	filterComplex := fadeFilter + ";" + scaleFilter

	if err := media.Run(ctx, "caption overlay",
		"-y",
		"-i", videoPath,
		"-i", captionPath,
		"-filter_complex", filterComplex,
		"-map", "[vfinal]",
		"-map", "0:a?",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-r", "30",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-shortest",
		"-movflags", "+faststart",
		outPath,
	); err != nil {
		return "", err
	}

	log.Printf("[compose] ✅ Caption merged: %s", outPath)

	// Optional per-word subtitles. Failure here never fails the run.
	if burned, ok := c.burnSubtitles(ctx, outPath); ok {
		return burned, nil
	}
	return outPath, nil
}

func subbedName(outPath string) string {
	dir := filepath.Dir(outPath)
	base := filepath.Base(outPath)
	ext := filepath.Ext(base)
	return filepath.Join(dir, base[:len(base)-len(ext)]+"_subbed"+ext)
}
