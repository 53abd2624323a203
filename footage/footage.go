package footage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"postbot/config"
)

// ErrNoFootage is returned when the provider has no clips for a topic
var ErrNoFootage = errors.New("no stock footage found")

// Fetcher downloads background footage from the Pexels video API
type Fetcher struct {
	cfg        *config.Config
	httpClient *http.Client
}

// New creates a new Fetcher
func New(cfg *config.Config) *Fetcher {
	return &Fetcher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type searchResponse struct {
	Videos []struct {
		ID         int `json:"id"`
		VideoFiles []struct {
			Link   string `json:"link"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"video_files"`
	} `json:"videos"`
}

// Run searches for footage matching the topic and downloads the first
// result to outFile. Returns ErrNoFootage when the search comes back empty.
func (f *Fetcher) Run(ctx context.Context, topic, outFile string) (string, error) {
	apiKey := os.Getenv("PEXELS_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("PEXELS_API_KEY not set")
	}

	log.Printf("[footage] Searching stock footage for %q...", topic)

	perPage := f.cfg.Footage.PerPage
	if perPage <= 0 {
		perPage = 1
	}
	searchURL := fmt.Sprintf("https://api.pexels.com/videos/search?query=%s&per_page=%d",
		url.QueryEscape(topic), perPage)

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("footage search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("footage provider HTTP %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse footage response: %w", err)
	}
	if len(parsed.Videos) == 0 || len(parsed.Videos[0].VideoFiles) == 0 {
		return "", fmt.Errorf("%w for topic %q", ErrNoFootage, topic)
	}

	link := parsed.Videos[0].VideoFiles[0].Link
	if err := f.download(ctx, link, outFile); err != nil {
		return "", fmt.Errorf("footage download: %w", err)
	}

	log.Printf("[footage] ✅ Footage saved: %s", outFile)
	return outFile, nil
}

func (f *Fetcher) download(ctx context.Context, link, outFile string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", link, nil)
	if err != nil {
		return err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from footage CDN", resp.StatusCode)
	}

	out, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer out.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return err
	}
	if n < 1024 {
		return fmt.Errorf("downloaded file too small (%d bytes) — likely an error page", n)
	}
	return nil
}
