package compose

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"postbot/media"
)

const subtitleFile = "captions.ass"

// burnSubtitles looks for a subtitle track next to the composed output
// and attempts a second pass that burns it in. Different ffmpeg builds
// expose the filter under different names, so each variant is tried in
// order; the first one that exits cleanly and produces a non-empty file
// wins. When every variant fails the un-subtitled output stands.
func (c *Composer) burnSubtitles(ctx context.Context, outPath string) (string, bool) {
	dir := filepath.Dir(outPath)
	assPath := filepath.Join(dir, subtitleFile)
	if _, err := os.Stat(assPath); err != nil {
		return "", false
	}

	burned := subbedName(outPath)

	// run with cwd beside the subtitle file and pass a relative name:
	// absolute paths trip the filter's option parsing on some platforms
	variants := []string{
		"subtitles=" + subtitleFile,
		"ass=" + subtitleFile,
	}

	for _, filt := range variants {
		log.Printf("[compose] Burning subtitles with filter %q...", filt)
		err := c.tryBurn(ctx, dir, outPath, filt, burned)
		if err != nil {
			log.Printf("[compose] Subtitle burn attempt %q failed: %v", filt, err)
			continue
		}
		if fi, statErr := os.Stat(burned); statErr == nil && fi.Size() > 0 {
			log.Printf("[compose] ✅ Subtitles burned: %s", burned)
			return burned, true
		}
		log.Printf("[compose] Subtitle burn with %q produced empty output — trying next variant", filt)
	}

	log.Println("[compose] All subtitle burn variants failed — keeping un-subtitled output")
	return "", false
}

func (c *Composer) tryBurn(ctx context.Context, dir, inPath, filter, outPath string) error {
	return media.RunInDir(ctx, dir, "subtitle burn",
		"-y",
		"-i", inPath,
		"-vf", filter,
		"-c:a", "copy",
		outPath,
	)
}

// EscapeFilterPath escapes a path for use inside an ffmpeg filter
// expression (colons and backslashes are filter syntax).
func EscapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ReplaceAll(path, ":", "\\:")
	return path
}
