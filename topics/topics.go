package topics

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/vartanbeno/go-reddit/v2/reddit"

	"postbot/config"
)

// stopTitles filter out stickied/meta posts that make bad video topics
var stopTitles = []string{
	"megathread", "daily thread", "weekly thread", "mod post", "announcement",
}

// Suggester pulls trending post titles from configured subreddits and
// ranks them as topic candidates for scheduled runs.
type Suggester struct {
	cfg    *config.Config
	client *reddit.Client
}

// New creates a Suggester with a read-only client. Listing hot posts
// needs no user credentials.
func New(cfg *config.Config) (*Suggester, error) {
	client, err := reddit.NewReadonlyClient()
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return &Suggester{cfg: cfg, client: client}, nil
}

type candidate struct {
	title string
	score int
}

// Suggest returns up to limit topic candidates ordered by engagement.
// Per-subreddit failures are logged and skipped; only an empty overall
// result is an error.
func (s *Suggester) Suggest(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	subreddits := s.cfg.Schedule.Subreddits
	if len(subreddits) == 0 {
		return nil, fmt.Errorf("no subreddits configured")
	}

	var candidates []candidate
	for _, sub := range subreddits {
		posts, _, err := s.client.Subreddit.HotPosts(ctx, sub, &reddit.ListOptions{Limit: 25})
		if err != nil {
			log.Printf("[topics] r/%s listing failed: %v", sub, err)
			continue
		}
		for _, post := range posts {
			if post.Stickied || !usableTitle(post.Title) {
				continue
			}
			candidates = append(candidates, candidate{
				title: strings.TrimSpace(post.Title),
				score: post.Score + post.NumberOfComments,
			})
		}
		log.Printf("[topics] r/%s: %d posts considered", sub, len(posts))
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no usable topics found in %v", subreddits)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	seen := make(map[string]bool)
	var out []string
	for _, c := range candidates {
		key := strings.ToLower(c.title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c.title)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func usableTitle(title string) bool {
	t := strings.TrimSpace(title)
	if len(t) < 15 || len(t) > 200 {
		return false
	}
	lower := strings.ToLower(t)
	for _, stop := range stopTitles {
		if strings.Contains(lower, stop) {
			return false
		}
	}
	return true
}
