package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// EncodeError is a non-zero exit from ffmpeg/ffprobe with its stderr
// captured, so job messages are self-sufficient for debugging.
type EncodeError struct {
	Op     string
	Stderr string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, strings.TrimSpace(e.Stderr))
}

// CheckTools verifies ffmpeg and ffprobe are on PATH. Called once at
// startup so a missing tool fails fast instead of failing the first run.
func CheckTools() error {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%s not found on PATH: %w", tool, err)
		}
	}
	return nil
}

// ProbeDuration returns the container duration of a media file in seconds.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, &EncodeError{Op: "ffprobe duration", Stderr: stderr.String()}
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return dur, nil
}

// ExtractFrame grabs a single frame at time t into outFile (jpg).
func ExtractFrame(ctx context.Context, videoPath string, t float64, outFile string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-ss", fmt.Sprintf("%.3f", t),
		"-i", videoPath,
		"-frames:v", "1",
		outFile,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &EncodeError{Op: "ffmpeg frame extract", Stderr: stderr.String()}
	}
	if fi, err := os.Stat(outFile); err != nil || fi.Size() == 0 {
		return fmt.Errorf("frame extract produced no output at t=%.3f", t)
	}
	return nil
}

// SampleFrames extracts count frames at evenly spaced timestamps and
// returns their paths plus the probed duration. A failed probe falls back
// to a nominal duration rather than aborting — the caption placer can
// still work from whatever frames land.
func SampleFrames(ctx context.Context, videoPath, outDir string, count int) ([]string, float64) {
	const fallbackDuration = 5.0

	duration, err := ProbeDuration(ctx, videoPath)
	if err != nil || duration <= 0 {
		duration = fallbackDuration
	}

	var frames []string
	for i := 0; i < count; i++ {
		t := duration * (float64(i) + 0.5) / float64(count)
		if t < 0 {
			t = 0
		}
		out := filepath.Join(outDir, fmt.Sprintf("frame_%d.jpg", i))
		if err := ExtractFrame(ctx, videoPath, t, out); err != nil {
			continue
		}
		frames = append(frames, out)
	}
	return frames, duration
}

// Run executes an ffmpeg invocation, surfacing stderr on failure.
func Run(ctx context.Context, op string, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &EncodeError{Op: op, Stderr: stderr.String()}
	}
	return nil
}

// RunInDir is Run with a working directory, for filters that need
// relative paths (the subtitles filter chokes on drive-letter colons).
func RunInDir(ctx context.Context, dir, op string, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &EncodeError{Op: op, Stderr: stderr.String()}
	}
	return nil
}
