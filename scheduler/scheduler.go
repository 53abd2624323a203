package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"postbot/config"
	"postbot/jobs"
	"postbot/types"
)

// Launcher starts a run in the background. Satisfied by the HTTP service
// so scheduled and API-submitted runs go through the same path.
type Launcher interface {
	Launch(rc types.RunConfig) (*jobs.Job, error)
}

// Suggester provides topic candidates when no fixed topic list is
// configured.
type Suggester interface {
	Suggest(ctx context.Context, limit int) ([]string, error)
}

// Uploader publishes a finished video.
type Uploader interface {
	Run(ctx context.Context, videoFile, title, description string) (string, string, error)
}

// Scheduler fires runs at configured wall-clock times
type Scheduler struct {
	cfg       *config.Config
	launcher  Launcher
	tracker   *jobs.Tracker
	suggester Suggester
	uploader  Uploader

	nextTopic int
	now       func() time.Time
}

// New wires the scheduler. suggester and uploader may be nil; those
// features are then skipped.
func New(cfg *config.Config, launcher Launcher, tracker *jobs.Tracker, suggester Suggester, uploader Uploader) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		launcher:  launcher,
		tracker:   tracker,
		suggester: suggester,
		uploader:  uploader,
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled, firing each configured HH:MM slot at
// most once per day. Slot times are local time.
func (s *Scheduler) Run(ctx context.Context) {
	if len(s.cfg.Schedule.Times) == 0 {
		log.Println("[scheduler] No times configured — scheduler idle")
		<-ctx.Done()
		return
	}
	log.Printf("[scheduler] 🚀 Active with slots %v", s.cfg.Schedule.Times)

	fired := make(map[string]string) // slot -> date it last fired

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[scheduler] Stopped")
			return
		case <-ticker.C:
			now := s.now()
			today := now.Format("2006-01-02")
			clock := now.Format("15:04")
			for _, slot := range s.cfg.Schedule.Times {
				if slot != clock || fired[slot] == today {
					continue
				}
				fired[slot] = today
				s.fire(ctx, slot)
			}
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, slot string) {
	topic, err := s.pickTopic(ctx)
	if err != nil {
		log.Printf("[scheduler] Slot %s skipped: %v", slot, err)
		return
	}

	rc := types.RunConfig{
		Topic:       topic,
		Style:       s.cfg.Schedule.Style,
		Theme:       s.cfg.Schedule.Theme,
		SavePreview: true,
	}
	job, err := s.launcher.Launch(rc)
	if err != nil {
		log.Printf("[scheduler] Slot %s launch failed: %v", slot, err)
		return
	}
	log.Printf("[scheduler] 🎬 Slot %s fired: job=%s topic=%q", slot, job.ID, topic)

	if s.cfg.Schedule.AutoUpload && s.uploader != nil {
		go s.uploadWhenDone(ctx, job.ID, topic)
	}
}

// pickTopic rotates through the configured topic list; with no list it
// asks the suggester for a trending one.
func (s *Scheduler) pickTopic(ctx context.Context) (string, error) {
	if topics := s.cfg.Schedule.Topics; len(topics) > 0 {
		topic := topics[s.nextTopic%len(topics)]
		s.nextTopic++
		return topic, nil
	}
	if s.suggester == nil {
		return "", fmt.Errorf("no topics configured and no suggester available")
	}
	suggestions, err := s.suggester.Suggest(ctx, 1)
	if err != nil {
		return "", fmt.Errorf("topic suggestion: %w", err)
	}
	return suggestions[0], nil
}

// uploadWhenDone polls the job until it settles, then uploads the final
// artifact. The poll window matches the worst case of a full run with
// every stage at its timeout.
func (s *Scheduler) uploadWhenDone(ctx context.Context, jobID, topic string) {
	deadline := time.Now().Add(30 * time.Minute)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
		}

		job, err := s.tracker.Get(jobID)
		if err != nil {
			log.Printf("[scheduler] Upload watch lost job %s: %v", jobID, err)
			return
		}
		switch job.Status {
		case jobs.StatusFailed:
			log.Printf("[scheduler] Job %s failed — skipping upload", jobID)
			return
		case jobs.StatusDone:
			final := job.FinalCopy
			if final == "" {
				final = job.Final
			}
			if _, _, err := s.uploader.Run(ctx, final, topic, "Generated short: "+topic); err != nil {
				log.Printf("[scheduler] Upload for job %s failed: %v", jobID, err)
			}
			return
		}
	}
	log.Printf("[scheduler] Gave up waiting on job %s for upload", jobID)
}
