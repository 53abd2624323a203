package history

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"postbot/types"
)

const metadataFile = "metadata.json"

// Entry is one appended record per completed run. Never mutated after
// append.
type Entry struct {
	RunID     string `json:"run_id"`
	Topic     string `json:"topic"`
	Style     string `json:"style"`
	Theme     string `json:"theme"`
	Video     string `json:"video"`
	CreatedAt string `json:"created_at"`
}

type register struct {
	Runs []Entry `json:"runs"`
}

// Recorder appends run metadata and prunes old run directories
type Recorder struct {
	historyDir string
	contentDir string
	keepRuns   int
}

// New creates a Recorder. historyDir holds the metadata register,
// contentDir holds per-run working directories subject to retention.
func New(historyDir, contentDir string, keepRuns int) *Recorder {
	if keepRuns <= 0 {
		keepRuns = 20
	}
	return &Recorder{historyDir: historyDir, contentDir: contentDir, keepRuns: keepRuns}
}

// Finish implements the pipeline housekeeper: record the run, then prune.
// Both steps are best-effort — a housekeeping failure never fails a run.
func (r *Recorder) Finish(runID string, cfg types.RunConfig, finalPath string) {
	entry := Entry{
		RunID:     runID,
		Topic:     cfg.Topic,
		Style:     cfg.Style,
		Theme:     cfg.Theme,
		Video:     finalPath,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.Append(entry); err != nil {
		log.Printf("[history] Warning: could not append run metadata: %v", err)
	}
	if err := r.Rotate(); err != nil {
		log.Printf("[history] Warning: retention pruning failed: %v", err)
	}
}

// Append adds one entry to the metadata register atomically: the whole
// register is rewritten to a temp file and renamed over the original, so
// a crash mid-write never corrupts history.
func (r *Recorder) Append(entry Entry) error {
	if err := os.MkdirAll(r.historyDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(r.historyDir, metadataFile)

	var reg register
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &reg); err != nil {
			log.Printf("[history] Warning: %s unreadable, starting fresh: %v", path, err)
			reg = register{}
		}
	}
	reg.Runs = append(reg.Runs, entry)

	data, err := json.MarshalIndent(&reg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.historyDir, "metadata_*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	// close before rename — rename of an open file fails on some platforms
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}

	log.Printf("[history] Metadata appended for run: %s", entry.RunID)
	return nil
}

// Rotate keeps only the newest keepRuns run directories under contentDir,
// oldest first by modification time (run ids are random, so names carry
// no ordering).
func (r *Recorder) Rotate() error {
	entries, err := os.ReadDir(r.contentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	type runDir struct {
		name string
		mod  time.Time
	}
	var dirs []runDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, runDir{name: e.Name(), mod: info.ModTime()})
	}
	if len(dirs) <= r.keepRuns {
		return nil
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].mod.Before(dirs[j].mod) })
	toRemove := dirs[:len(dirs)-r.keepRuns]
	for _, rd := range toRemove {
		dir := filepath.Join(r.contentDir, rd.name)
		if err := forceRemove(dir); err != nil {
			log.Printf("[history] Warning: could not remove %s: %v", dir, err)
			continue
		}
		log.Printf("[history] 🧹 Deleted old run: %s", dir)
	}
	log.Printf("[history] Cleanup complete. Kept %d of %d.", r.keepRuns, len(dirs))
	return nil
}

// forceRemove deletes a directory tree, retrying readonly files with
// write permission restored first.
func forceRemove(dir string) error {
	err := os.RemoveAll(dir)
	if err == nil {
		return nil
	}

	// best effort chmod pass for readonly/locked files, then retry
	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, werr error) error {
		if werr != nil {
			return nil
		}
		mode := info.Mode() | 0200
		if info.IsDir() {
			mode |= 0300
		}
		_ = os.Chmod(path, mode)
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("chmod pass: %w", walkErr)
	}
	return os.RemoveAll(dir)
}
