package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"postbot/config"
	"postbot/jobs"
	"postbot/types"
)

type recordingLauncher struct {
	mu      sync.Mutex
	tracker *jobs.Tracker
	runs    []types.RunConfig
	err     error
}

func (l *recordingLauncher) Launch(rc types.RunConfig) (*jobs.Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.runs = append(l.runs, rc)
	return l.tracker.Create(""), nil
}

type fixedSuggester struct {
	topics []string
	err    error
}

func (s fixedSuggester) Suggest(ctx context.Context, limit int) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.topics, nil
}

func scheduleConfig(topics []string) *config.Config {
	cfg := config.Defaults()
	cfg.Schedule.Enabled = true
	cfg.Schedule.Times = []string{"09:00"}
	cfg.Schedule.Topics = topics
	cfg.Schedule.Style = "post"
	cfg.Schedule.Theme = "calm"
	return cfg
}

func TestPickTopicRotatesConfiguredList(t *testing.T) {
	cfg := scheduleConfig([]string{"alpha", "beta"})
	s := New(cfg, &recordingLauncher{tracker: jobs.NewTracker()}, jobs.NewTracker(), nil, nil)

	want := []string{"alpha", "beta", "alpha", "beta"}
	for i, w := range want {
		got, err := s.pickTopic(context.Background())
		if err != nil {
			t.Fatalf("pickTopic #%d: %v", i, err)
		}
		if got != w {
			t.Errorf("pickTopic #%d = %q, want %q", i, got, w)
		}
	}
}

func TestPickTopicFallsBackToSuggester(t *testing.T) {
	cfg := scheduleConfig(nil)
	s := New(cfg, &recordingLauncher{tracker: jobs.NewTracker()}, jobs.NewTracker(),
		fixedSuggester{topics: []string{"trending thing"}}, nil)

	got, err := s.pickTopic(context.Background())
	if err != nil {
		t.Fatalf("pickTopic: %v", err)
	}
	if got != "trending thing" {
		t.Errorf("pickTopic = %q", got)
	}
}

func TestPickTopicNoSourcesFails(t *testing.T) {
	cfg := scheduleConfig(nil)
	s := New(cfg, &recordingLauncher{tracker: jobs.NewTracker()}, jobs.NewTracker(), nil, nil)
	if _, err := s.pickTopic(context.Background()); err == nil {
		t.Fatal("expected error with no topics and no suggester")
	}
}

func TestFireLaunchesRunWithScheduleSettings(t *testing.T) {
	cfg := scheduleConfig([]string{"city at night"})
	tracker := jobs.NewTracker()
	launcher := &recordingLauncher{tracker: tracker}
	s := New(cfg, launcher, tracker, nil, nil)

	s.fire(context.Background(), "09:00")

	launcher.mu.Lock()
	defer launcher.mu.Unlock()
	if len(launcher.runs) != 1 {
		t.Fatalf("launched %d runs, want 1", len(launcher.runs))
	}
	rc := launcher.runs[0]
	if rc.Topic != "city at night" || rc.Style != "post" || rc.Theme != "calm" {
		t.Errorf("run config = %+v", rc)
	}
	if !rc.SavePreview {
		t.Error("scheduled runs should keep a preview copy")
	}
}

func TestFireSkipsWhenNoTopicAvailable(t *testing.T) {
	cfg := scheduleConfig(nil)
	tracker := jobs.NewTracker()
	launcher := &recordingLauncher{tracker: tracker}
	s := New(cfg, launcher, tracker, fixedSuggester{err: fmt.Errorf("reddit down")}, nil)

	s.fire(context.Background(), "09:00")

	launcher.mu.Lock()
	defer launcher.mu.Unlock()
	if len(launcher.runs) != 0 {
		t.Errorf("fired %d runs despite topic failure", len(launcher.runs))
	}
}
