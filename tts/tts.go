package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"postbot/config"
)

const defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

// Synthesizer turns narration text into speech via the ElevenLabs API
type Synthesizer struct {
	cfg        *config.Config
	httpClient *http.Client
}

// New creates a new Synthesizer
func New(cfg *config.Config) *Synthesizer {
	return &Synthesizer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

// Run synthesizes text into an mp3 at outFile. voiceID overrides the
// configured voice when non-empty.
func (s *Synthesizer) Run(ctx context.Context, text, voiceID, outFile string) (string, error) {
	apiKey := os.Getenv("ELEVEN_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("ELEVEN_API_KEY not set")
	}

	if voiceID == "" {
		voiceID = s.cfg.TTS.VoiceID
	}
	if voiceID == "" {
		voiceID = defaultVoiceID
	}

	log.Printf("[tts] Synthesizing %d chars with voice %s...", len(text), voiceID)

	bodyBytes, err := json.Marshal(ttsRequest{Text: text, ModelID: s.cfg.TTS.Model})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("https://api.elevenlabs.io/v1/text-to-speech/%s", voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("xi-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("tts provider HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	// A valid mp3 is never this small — treat it as an error body
	if len(data) < 100 {
		return "", fmt.Errorf("tts response too small (%d bytes) — likely an error", len(data))
	}

	if err := os.WriteFile(outFile, data, 0644); err != nil {
		return "", err
	}

	log.Printf("[tts] ✅ Audio saved: %s (%.1f KB)", outFile, float64(len(data))/1024)
	return outFile, nil
}
