package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"postbot/config"
	"postbot/types"
)

// ErrStageTimeout marks a stage that exceeded its bounded wait
var ErrStageTimeout = errors.New("stage timed out")

// ErrDependencyUnavailable marks a required collaborator that could not
// be located or initialized — a configuration problem, not retryable
var ErrDependencyUnavailable = errors.New("required dependency unavailable")

// Collaborator contracts. The orchestrator accepts interfaces so tests
// can substitute fakes for the provider-backed implementations.
type Narrator interface {
	Run(ctx context.Context, topic, theme, style string, targetSeconds int) (string, error)
}

type Synthesizer interface {
	Run(ctx context.Context, text, voiceID, outFile string) (string, error)
}

type FootageFetcher interface {
	Run(ctx context.Context, topic, outFile string) (string, error)
}

type CaptionPlacer interface {
	Place(ctx context.Context, videoPath, narration, workdir string, theme types.ThemeStyle, overrides *types.CaptionOverrides) (*types.CaptionPlan, string, error)
}

type Composer interface {
	Mux(ctx context.Context, videoPath, audioPath, outPath string) (string, error)
	Overlay(ctx context.Context, videoPath, captionPath string, plan *types.CaptionPlan, outPath string) (string, error)
}

// Housekeeper records a history entry for a completed run and prunes old
// run directories. Best-effort: a housekeeping failure never fails a run.
type Housekeeper interface {
	Finish(runID string, cfg types.RunConfig, finalPath string)
}

// ProgressFunc receives stage-boundary updates. It is only called after
// a stage completes, so a concurrent status query never reports a
// half-finished stage.
type ProgressFunc func(percent int, message string)

// Orchestrator sequences the pipeline stages with partial parallelism
// and a per-stage timeout.
type Orchestrator struct {
	cfg         *config.Config
	narrator    Narrator
	synthesizer Synthesizer
	footage     FootageFetcher
	placer      CaptionPlacer
	composer    Composer
	housekeeper Housekeeper
	timeout     time.Duration
}

// New wires the orchestrator. Every collaborator is required; a nil one
// is a startup configuration error.
func New(cfg *config.Config, narrator Narrator, synthesizer Synthesizer, footage FootageFetcher, placer CaptionPlacer, composer Composer, housekeeper Housekeeper) (*Orchestrator, error) {
	missing := ""
	switch {
	case cfg == nil:
		missing = "config"
	case narrator == nil:
		missing = "narrator"
	case synthesizer == nil:
		missing = "synthesizer"
	case footage == nil:
		missing = "footage fetcher"
	case placer == nil:
		missing = "caption placer"
	case composer == nil:
		missing = "composer"
	case housekeeper == nil:
		missing = "housekeeper"
	}
	if missing != "" {
		return nil, fmt.Errorf("%s: %w", missing, ErrDependencyUnavailable)
	}

	timeout := time.Duration(cfg.Pipeline.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 240 * time.Second
	}
	return &Orchestrator{
		cfg:         cfg,
		narrator:    narrator,
		synthesizer: synthesizer,
		footage:     footage,
		placer:      placer,
		composer:    composer,
		housekeeper: housekeeper,
		timeout:     timeout,
	}, nil
}

// Run executes one full run inside workdir and returns the final artifact
// path. Any stage error aborts the run; files already produced stay in
// the workdir for postmortem inspection. Cancelling a stage also cancels
// its context, so in-flight external-tool subprocesses are killed rather
// than orphaned.
func (o *Orchestrator) Run(ctx context.Context, rc types.RunConfig, workdir string, progress ProgressFunc) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if progress == nil {
		progress = func(int, string) {}
	}

	theme := o.cfg.Theme(rc.Theme)
	targetSeconds := types.StyleTargetSeconds(rc.Style)
	log.Printf("[pipeline] 🚀 Starting run: topic=%q style=%q theme=%q workdir=%s", rc.Topic, rc.Style, rc.Theme, workdir)

	bgPath := filepath.Join(workdir, "bg.mp4")
	audioPath := filepath.Join(workdir, "narration.mp3")
	mergedPath := filepath.Join(workdir, "merged.mp4")
	finalPath := filepath.Join(workdir, "final.mp4")

	// Stage 1+2: narration and footage fetch are independent — run them
	// concurrently, then launch TTS the moment narration lands while the
	// footage download keeps going.
	g, gctx := errgroup.WithContext(ctx)
	narrCh := make(chan string, 1)
	footCh := make(chan string, 1)
	ttsCh := make(chan string, 1)

	g.Go(func() error {
		text, err := o.narrator.Run(gctx, rc.Topic, rc.Theme, rc.Style, targetSeconds)
		if err != nil {
			return fmt.Errorf("narration: %w", err)
		}
		narrCh <- text
		return nil
	})
	g.Go(func() error {
		video, err := o.footage.Run(gctx, rc.Topic, bgPath)
		if err != nil {
			return fmt.Errorf("footage fetch: %w", err)
		}
		footCh <- video
		return nil
	})

	narration, err := o.await(gctx, g, narrCh, "narration")
	if err != nil {
		return "", err
	}
	log.Printf("[pipeline] 🧠 Narration ready (%d chars)", len(narration))
	progress(15, "Narration ready")

	g.Go(func() error {
		audio, err := o.synthesizer.Run(gctx, narration, rc.VoiceID, audioPath)
		if err != nil {
			return fmt.Errorf("speech synthesis: %w", err)
		}
		ttsCh <- audio
		return nil
	})

	video, err := o.await(gctx, g, footCh, "footage fetch")
	if err != nil {
		return "", err
	}
	log.Printf("[pipeline] 🎬 Footage fetched: %s", video)
	progress(30, "Footage fetched")

	audio, err := o.await(gctx, g, ttsCh, "speech synthesis")
	if err != nil {
		return "", err
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	log.Printf("[pipeline] 🎤 TTS done: %s", audio)
	progress(45, "Speech synthesized")

	// Stage 3: caption placement needs both footage and narration text
	var plan *types.CaptionPlan
	var captionPath string
	err = o.stage(ctx, "caption placement", func(sctx context.Context) error {
		var perr error
		plan, captionPath, perr = o.placer.Place(sctx, video, narration, workdir, theme, rc.Caption)
		return perr
	})
	if err != nil {
		return "", err
	}
	progress(60, "Caption placed")

	// Stage 4: mux narration onto footage
	var merged string
	err = o.stage(ctx, "audio/video mux", func(sctx context.Context) error {
		var merr error
		merged, merr = o.composer.Mux(sctx, video, audio, mergedPath)
		return merr
	})
	if err != nil {
		return "", err
	}
	progress(75, "Audio muxed")

	// Stage 5: caption overlay produces the final artifact
	var final string
	err = o.stage(ctx, "caption overlay", func(sctx context.Context) error {
		var oerr error
		final, oerr = o.composer.Overlay(sctx, merged, captionPath, plan, finalPath)
		return oerr
	})
	if err != nil {
		return "", err
	}
	progress(90, "Final composed")

	o.housekeeper.Finish(filepath.Base(workdir), rc, final)

	log.Printf("[pipeline] ✅ Final video: %s", final)
	return final, nil
}

// await waits for one parallel-phase result with the per-stage timeout.
// A sibling failure cancels the group context and surfaces that error;
// a timeout surfaces ErrStageTimeout tagged with the stage name.
func (o *Orchestrator) await(gctx context.Context, g *errgroup.Group, ch <-chan string, stageName string) (string, error) {
	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v, nil
	case <-timer.C:
		return "", fmt.Errorf("%s: %w", stageName, ErrStageTimeout)
	case <-gctx.Done():
		if err := g.Wait(); err != nil {
			return "", err
		}
		return "", gctx.Err()
	}
}

// stage runs one sequential stage under its own deadline.
func (o *Orchestrator) stage(ctx context.Context, stageName string, fn func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(sctx) }()

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(sctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%s: %w", stageName, ErrStageTimeout)
			}
			return fmt.Errorf("%s: %w", stageName, err)
		}
		return nil
	case <-sctx.Done():
		if errors.Is(sctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", stageName, ErrStageTimeout)
		}
		return sctx.Err()
	}
}
