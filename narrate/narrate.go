package narrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"postbot/config"
)

const chatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// Narrator generates narration text via an OpenAI-compatible chat API
type Narrator struct {
	cfg        *config.Config
	httpClient *http.Client
}

// New creates a new Narrator
func New(cfg *config.Config) *Narrator {
	return &Narrator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// TargetWords converts a target narration duration to a word budget.
// Speech averages about wordsPerSecond words/sec; six words is the floor
// so even a 1-second ad gets a usable line.
func TargetWords(targetSeconds int, wordsPerSecond float64) int {
	if wordsPerSecond <= 0 {
		wordsPerSecond = 3.8
	}
	words := int(math.Round(float64(targetSeconds) * wordsPerSecond))
	if words < 6 {
		words = 6
	}
	return words
}

// Run generates narration for a topic that should read aloud in roughly
// targetSeconds. Returns the narration text only, ready for TTS.
func (n *Narrator) Run(ctx context.Context, topic, theme, style string, targetSeconds int) (string, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}

	targetWords := TargetWords(targetSeconds, n.cfg.Pipeline.WordsPerSecond)
	log.Printf("[narrate] Generating narration for %q (~%d words)...", topic, targetWords)

	prompt := fmt.Sprintf(
		"Write a short narration about '%s', tone: %s, style: %s. "+
			"Produce approximately %d words (aim for audio ~%d seconds). "+
			"Keep it punchy, natural, and ready-to-read for TTS. Return only the narration text.",
		topic, theme, style, targetWords, targetSeconds,
	)

	reqBody := chatRequest{
		Model: n.cfg.Narration.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a concise advertising copywriter."},
			{Role: "user", Content: prompt},
		},
		Temperature: n.cfg.Narration.Temperature,
		MaxTokens:   targetWords * 2,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", chatCompletionsURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("narration request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("parse narration response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("narration provider: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("narration provider returned no choices")
	}

	narration := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if narration == "" {
		return "", fmt.Errorf("narration provider returned empty text")
	}

	log.Printf("[narrate] ✅ Narration ready (%d chars)", len(narration))
	return narration, nil
}
