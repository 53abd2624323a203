package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"postbot/caption"
	"postbot/compose"
	"postbot/config"
	"postbot/footage"
	"postbot/history"
	"postbot/jobs"
	"postbot/media"
	"postbot/narrate"
	"postbot/pipeline"
	"postbot/scheduler"
	"postbot/server"
	"postbot/topics"
	"postbot/tts"
	"postbot/upload"
)

func main() {
	// Load .env (local dev only — deployments use real env vars)
	_ = godotenv.Load()

	cfg := config.Load("config.yaml")

	if err := checkEnvironment(); err != nil {
		log.Fatalf("❌ Startup check failed: %v", err)
	}

	// Ensure required dirs exist
	for _, dir := range []string{cfg.Paths.Content, cfg.Paths.History, cfg.Paths.Posted, cfg.Paths.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create dir %s: %v", dir, err)
		}
	}

	recorder := history.New(cfg.Paths.History, cfg.Paths.Content, cfg.Pipeline.KeepRuns)
	orchestrator, err := pipeline.New(
		cfg,
		narrate.New(cfg),
		tts.New(cfg),
		footage.New(cfg),
		caption.New(cfg),
		compose.New(cfg),
		recorder,
	)
	if err != nil {
		log.Fatalf("❌ Pipeline wiring failed: %v", err)
	}

	tracker := jobs.NewTracker()
	svc := server.New(cfg, tracker, orchestrator)

	if cfg.Schedule.Enabled {
		var suggester scheduler.Suggester
		if s, err := topics.New(cfg); err != nil {
			log.Printf("⚠️  Topic suggester unavailable: %v", err)
		} else {
			suggester = s
		}
		var uploader scheduler.Uploader
		if cfg.Schedule.AutoUpload {
			uploader = upload.New(cfg)
		}
		sched := scheduler.New(cfg, svc, tracker, suggester, uploader)
		go sched.Run(context.Background())
	}

	addr := ":" + strconv.Itoa(listenPort(cfg))
	log.Printf("🚀 postbot API listening on %s", addr)
	if err := http.ListenAndServe(addr, svc.Router()); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}

// checkEnvironment fails fast when an external tool or provider key the
// pipeline cannot run without is missing.
func checkEnvironment() error {
	if err := media.CheckTools(); err != nil {
		return err
	}
	for _, key := range []string{"OPENAI_API_KEY", "ELEVEN_API_KEY", "PEXELS_API_KEY"} {
		if os.Getenv(key) == "" {
			return fmt.Errorf("%s not set: %w", key, pipeline.ErrDependencyUnavailable)
		}
	}
	return nil
}

// listenPort prefers the PORT env var (container platforms set it) over
// the config file.
func listenPort(cfg *config.Config) int {
	if p := os.Getenv("PORT"); p != "" {
		if port, err := strconv.Atoi(p); err == nil && port > 0 {
			return port
		}
	}
	if cfg.Server.Port > 0 {
		return cfg.Server.Port
	}
	return 8000
}
