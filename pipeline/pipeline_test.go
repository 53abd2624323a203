package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"postbot/config"
	"postbot/types"
)

type fakeNarrator struct {
	text  string
	err   error
	delay time.Duration
}

func (f *fakeNarrator) Run(ctx context.Context, topic, theme, style string, targetSeconds int) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

type fakeSynthesizer struct{ err error }

func (f *fakeSynthesizer) Run(ctx context.Context, text, voiceID, outFile string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return outFile, nil
}

type fakeFootage struct{ err error }

func (f *fakeFootage) Run(ctx context.Context, topic, outFile string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return outFile, nil
}

type fakePlacer struct {
	calls int
	delay time.Duration
}

func (f *fakePlacer) Place(ctx context.Context, videoPath, narration, workdir string, theme types.ThemeStyle, overrides *types.CaptionOverrides) (*types.CaptionPlan, string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
	return &types.CaptionPlan{X: 10, Y: 20, W: 100, H: 50, FadeIn: 0.5, FadeOut: 0.5, Duration: 5},
		filepath.Join(workdir, "caption.png"), nil
}

type fakeComposer struct {
	mu       sync.Mutex
	muxed    bool
	overlaid bool
}

func (f *fakeComposer) Mux(ctx context.Context, videoPath, audioPath, outPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muxed = true
	return outPath, nil
}

func (f *fakeComposer) Overlay(ctx context.Context, videoPath, captionPath string, plan *types.CaptionPlan, outPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.muxed {
		return "", fmt.Errorf("overlay before mux")
	}
	f.overlaid = true
	return outPath, nil
}

type fakeHousekeeper struct {
	mu     sync.Mutex
	runID  string
	final  string
	called bool
}

func (f *fakeHousekeeper) Finish(runID string, cfg types.RunConfig, finalPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	f.runID = runID
	f.final = finalPath
}

func testConfig(timeoutSeconds int) *config.Config {
	cfg := config.Defaults()
	cfg.Pipeline.TimeoutSeconds = timeoutSeconds
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, n Narrator, s Synthesizer, f FootageFetcher, p CaptionPlacer, c Composer, h Housekeeper) *Orchestrator {
	t.Helper()
	o, err := New(cfg, n, s, f, p, c, h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestNewRejectsNilCollaborators(t *testing.T) {
	cfg := testConfig(240)
	_, err := New(cfg, nil, &fakeSynthesizer{}, &fakeFootage{}, &fakePlacer{}, &fakeComposer{}, &fakeHousekeeper{})
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("nil narrator err = %v, want ErrDependencyUnavailable", err)
	}
	_, err = New(cfg, &fakeNarrator{}, &fakeSynthesizer{}, &fakeFootage{}, &fakePlacer{}, nil, &fakeHousekeeper{})
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("nil composer err = %v, want ErrDependencyUnavailable", err)
	}
}

func TestRunSuccessPath(t *testing.T) {
	workdir := t.TempDir()
	composer := &fakeComposer{}
	keeper := &fakeHousekeeper{}
	placer := &fakePlacer{}

	o := newTestOrchestrator(t, testConfig(240),
		&fakeNarrator{text: "a short narration"},
		&fakeSynthesizer{}, &fakeFootage{}, placer, composer, keeper)

	var progress []int
	final, err := o.Run(context.Background(), types.RunConfig{Topic: "ocean waves", Style: "post"}, workdir,
		func(p int, _ string) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final != filepath.Join(workdir, "final.mp4") {
		t.Errorf("final = %q", final)
	}

	want := []int{15, 30, 45, 60, 75, 90}
	if len(progress) != len(want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("progress = %v, want %v", progress, want)
		}
	}

	if !composer.overlaid {
		t.Error("overlay never ran")
	}
	if placer.calls != 1 {
		t.Errorf("placer ran %d times", placer.calls)
	}
	if !keeper.called {
		t.Error("housekeeper never ran")
	}
	if keeper.runID != filepath.Base(workdir) {
		t.Errorf("housekeeper run id = %q, want %q", keeper.runID, filepath.Base(workdir))
	}
}

func TestRunFootageFailureAbortsRun(t *testing.T) {
	workdir := t.TempDir()
	composer := &fakeComposer{}
	placer := &fakePlacer{}
	sentinel := errors.New("no footage found")

	o := newTestOrchestrator(t, testConfig(240),
		&fakeNarrator{text: "text"},
		&fakeSynthesizer{}, &fakeFootage{err: sentinel}, placer, composer, &fakeHousekeeper{})

	_, err := o.Run(context.Background(), types.RunConfig{Topic: "x"}, workdir, nil)
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want wrapped sentinel", err)
	}
	if placer.calls != 0 {
		t.Error("caption placement ran after footage failure")
	}
	if composer.muxed || composer.overlaid {
		t.Error("composer ran after footage failure")
	}
}

func TestRunNarrationTimeout(t *testing.T) {
	workdir := t.TempDir()
	o := newTestOrchestrator(t, testConfig(1),
		&fakeNarrator{text: "late", delay: 3 * time.Second},
		&fakeSynthesizer{}, &fakeFootage{}, &fakePlacer{}, &fakeComposer{}, &fakeHousekeeper{})

	start := time.Now()
	_, err := o.Run(context.Background(), types.RunConfig{Topic: "x"}, workdir, nil)
	if !errors.Is(err, ErrStageTimeout) {
		t.Fatalf("err = %v, want ErrStageTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2500*time.Millisecond {
		t.Errorf("timeout took %v, want about 1s", elapsed)
	}
}

func TestRunSequentialStageTimeout(t *testing.T) {
	workdir := t.TempDir()
	composer := &fakeComposer{}
	o := newTestOrchestrator(t, testConfig(1),
		&fakeNarrator{text: "text"},
		&fakeSynthesizer{}, &fakeFootage{},
		&fakePlacer{delay: 3 * time.Second}, composer, &fakeHousekeeper{})

	_, err := o.Run(context.Background(), types.RunConfig{Topic: "x"}, workdir, nil)
	if !errors.Is(err, ErrStageTimeout) {
		t.Fatalf("err = %v, want ErrStageTimeout", err)
	}
	if composer.muxed {
		t.Error("mux ran after caption placement timed out")
	}
}

func TestRunFilesStayForPostmortem(t *testing.T) {
	workdir := t.TempDir()
	marker := filepath.Join(workdir, "bg.mp4")
	if err := os.WriteFile(marker, []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator(t, testConfig(240),
		&fakeNarrator{err: errors.New("provider down")},
		&fakeSynthesizer{}, &fakeFootage{}, &fakePlacer{}, &fakeComposer{}, &fakeHousekeeper{})

	if _, err := o.Run(context.Background(), types.RunConfig{Topic: "x"}, workdir, nil); err == nil {
		t.Fatal("expected failure")
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("workdir file removed on failure: %v", err)
	}
}
