package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"postbot/config"
)

// Uploader publishes finished videos to YouTube via Data API v3
type Uploader struct {
	cfg *config.Config
}

// New creates a new Uploader
func New(cfg *config.Config) *Uploader {
	return &Uploader{cfg: cfg}
}

// Run uploads the video and returns its id and watch URL. Title and
// description are derived from the run topic when not provided by the
// caller.
func (u *Uploader) Run(ctx context.Context, videoFile, title, description string) (string, string, error) {
	log.Println("[upload] Authenticating with YouTube API...")

	client, err := u.oauthClient(ctx)
	if err != nil {
		return "", "", fmt.Errorf("youtube auth: %w", err)
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", "", fmt.Errorf("youtube service: %w", err)
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(videoFile), filepath.Ext(videoFile))
	}
	log.Printf("[upload] Uploading: %q", title)

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                trimTitle(title),
			Description:          description,
			CategoryId:           u.cfg.Upload.CategoryID,
			DefaultLanguage:      u.cfg.Upload.DefaultLanguage,
			DefaultAudioLanguage: u.cfg.Upload.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           u.cfg.Upload.Visibility,
			SelfDeclaredMadeForKids: u.cfg.Upload.MadeForKids,
		},
	}

	f, err := os.Open(videoFile)
	if err != nil {
		return "", "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		log.Printf("[upload] File size: %.1f MB", float64(fi.Size())/1024/1024)
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.NotifySubscribers(u.cfg.Upload.NotifySubscribers)
	call.Media(f)

	uploaded, err := call.Do()
	if err != nil {
		return "", "", fmt.Errorf("youtube upload: %w", err)
	}

	videoID := uploaded.Id
	videoURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	log.Printf("[upload] ✅ Uploaded: %s", videoURL)

	if err := u.logUpload(videoID, videoURL, videoFile, title); err != nil {
		log.Printf("[upload] Warning: could not write upload log: %v", err)
	}
	return videoID, videoURL, nil
}

// YouTube caps titles at 100 characters
func trimTitle(title string) string {
	if len(title) <= 100 {
		return title
	}
	return title[:97] + "..."
}

// oauthClient builds an HTTP client from env refresh-token credentials.
// The token expiry is backdated so the first request always refreshes.
func (u *Uploader) oauthClient(ctx context.Context) (*http.Client, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")

	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
	}
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	}

	return &http.Client{
		Transport: &oauth2.Transport{Source: conf.TokenSource(ctx, token)},
	}, nil
}

// logUpload appends an upload record under the logs directory
func (u *Uploader) logUpload(videoID, videoURL, videoFile, title string) error {
	if err := os.MkdirAll(u.cfg.Paths.Logs, 0755); err != nil {
		return err
	}
	entry := map[string]any{
		"video_id":    videoID,
		"video_url":   videoURL,
		"title":       title,
		"video_file":  videoFile,
		"uploaded_at": time.Now().UTC().Format(time.RFC3339),
	}
	logFile := filepath.Join(u.cfg.Paths.Logs, "upload_"+time.Now().Format("20060102_150405")+".json")
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(logFile, data, 0644); err != nil {
		return err
	}
	log.Printf("[upload] Upload log saved: %s", logFile)
	return nil
}
