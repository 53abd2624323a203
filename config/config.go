package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"postbot/types"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Narration NarrationConfig `yaml:"narration"`
	TTS       TTSConfig       `yaml:"tts"`
	Footage   FootageConfig   `yaml:"footage"`
	Caption   CaptionConfig   `yaml:"caption"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Upload    UploadConfig    `yaml:"upload"`
	Paths     PathsConfig     `yaml:"paths"`

	Themes       map[string]types.ThemeStyle `yaml:"themes"`
	DefaultTheme string                      `yaml:"default_theme"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PipelineConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	KeepRuns       int     `yaml:"keep_runs"`
	WordsPerSecond float64 `yaml:"words_per_second"`
}

type NarrationConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type TTSConfig struct {
	VoiceID string `yaml:"voice_id"`
	Model   string `yaml:"model"`
}

type FootageConfig struct {
	PerPage int `yaml:"per_page"`
}

type CaptionConfig struct {
	SampleFrames  int     `yaml:"sample_frames"`
	GridRows      int     `yaml:"grid_rows"`
	GridCols      int     `yaml:"grid_cols"`
	FadeInSec     float64 `yaml:"fade_in_sec"`
	FadeOutSec    float64 `yaml:"fade_out_sec"`
	FontDir       string  `yaml:"font_dir"`
	FontSizeRatio float64 `yaml:"font_size_ratio"`
}

type ScheduleConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Times      []string `yaml:"times"` // "HH:MM" local
	Topics     []string `yaml:"topics"`
	Subreddits []string `yaml:"subreddits"`
	Style      string   `yaml:"style"`
	Theme      string   `yaml:"theme"`
	AutoUpload bool     `yaml:"auto_upload"`
}

type UploadConfig struct {
	Visibility        string `yaml:"visibility"`
	CategoryID        string `yaml:"category_id"`
	NotifySubscribers bool   `yaml:"notify_subscribers"`
	MadeForKids       bool   `yaml:"made_for_kids"`
	DefaultLanguage   string `yaml:"default_language"`
}

type PathsConfig struct {
	Content string `yaml:"content"`
	History string `yaml:"history"`
	Posted  string `yaml:"posted"`
	Logs    string `yaml:"logs"`
}

// Defaults returns the built-in configuration used when config.yaml is
// missing or unreadable. The theme palette matches the caption gradients
// the compositor was tuned against.
func Defaults() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8000},
		Pipeline: PipelineConfig{TimeoutSeconds: 240, KeepRuns: 20, WordsPerSecond: 3.8},
		Narration: NarrationConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.8,
		},
		TTS:     TTSConfig{Model: "eleven_multilingual_v2"},
		Footage: FootageConfig{PerPage: 1},
		Caption: CaptionConfig{
			SampleFrames:  3,
			GridRows:      3,
			GridCols:      3,
			FadeInSec:     0.5,
			FadeOutSec:    0.5,
			FontSizeRatio: 0.42,
		},
		Schedule: ScheduleConfig{Style: "post", Theme: "auto"},
		Upload: UploadConfig{
			Visibility:      "public",
			CategoryID:      "22",
			DefaultLanguage: "en",
		},
		Paths: PathsConfig{
			Content: "content",
			History: "history",
			Posted:  "posted",
			Logs:    "logs",
		},
		Themes: map[string]types.ThemeStyle{
			"calm": {
				Font: "Inter", Color: "#FFFFFF", Background: "#142350",
				Gradient: [2]types.RGBA{{R: 20, G: 35, B: 80, A: 180}, {R: 60, G: 120, B: 200, A: 140}},
			},
			"energetic": {
				Font: "Montserrat", Color: "#FFFFFF", Background: "#D26E0A",
				Gradient: [2]types.RGBA{{R: 210, G: 110, B: 10, A: 180}, {R: 255, G: 190, B: 60, A: 140}},
			},
			"mystery": {
				Font: "Oswald", Color: "#FFFFFF", Background: "#1E003C",
				Gradient: [2]types.RGBA{{R: 30, G: 0, B: 60, A: 180}, {R: 70, G: 30, B: 120, A: 140}},
			},
			"auto": {
				Font: "Arial", Color: "#FFFFFF", Background: "#000000",
				Gradient: [2]types.RGBA{{R: 0, G: 0, B: 0, A: 160}, {R: 255, G: 255, B: 255, A: 0}},
			},
		},
		DefaultTheme: "auto",
	}
}

// Load reads config.yaml and merges it over the built-in defaults.
// A missing or malformed file is not fatal — the defaults carry the system.
func Load(path string) *Config {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] %s not readable (%v) — using defaults", path, err)
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] %s invalid (%v) — using defaults", path, err)
		return Defaults()
	}

	// Themes from the file extend the built-ins rather than replacing them,
	// so the default palette names always resolve.
	base := Defaults()
	for name, theme := range base.Themes {
		if _, ok := cfg.Themes[name]; !ok {
			cfg.Themes[name] = theme
		}
	}
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = base.DefaultTheme
	}
	if cfg.Pipeline.TimeoutSeconds <= 0 {
		cfg.Pipeline.TimeoutSeconds = base.Pipeline.TimeoutSeconds
	}
	if cfg.Pipeline.KeepRuns <= 0 {
		cfg.Pipeline.KeepRuns = base.Pipeline.KeepRuns
	}
	return cfg
}

// Theme resolves a theme by name, falling back to the default theme when
// the name is unknown or empty.
func (c *Config) Theme(name string) types.ThemeStyle {
	if name != "" {
		if t, ok := c.Themes[name]; ok {
			return t
		}
		log.Printf("[config] theme %q not found — falling back to %q", name, c.DefaultTheme)
	}
	if t, ok := c.Themes[c.DefaultTheme]; ok {
		return t
	}
	return Defaults().Themes["auto"]
}
