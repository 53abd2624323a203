package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"postbot/types"
)

func readRegister(t *testing.T, historyDir string) register {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(historyDir, metadataFile))
	if err != nil {
		t.Fatalf("read register: %v", err)
	}
	var reg register
	if err := json.Unmarshal(data, &reg); err != nil {
		t.Fatalf("parse register: %v", err)
	}
	return reg
}

func TestAppendCreatesAndGrowsRegister(t *testing.T) {
	historyDir := t.TempDir()
	r := New(historyDir, t.TempDir(), 20)

	if err := r.Append(Entry{RunID: "run1", Topic: "first"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := r.Append(Entry{RunID: "run2", Topic: "second"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	reg := readRegister(t, historyDir)
	if len(reg.Runs) != 2 {
		t.Fatalf("register has %d runs, want 2", len(reg.Runs))
	}
	if reg.Runs[0].RunID != "run1" || reg.Runs[1].RunID != "run2" {
		t.Errorf("append order wrong: %+v", reg.Runs)
	}
}

func TestAppendSurvivesCorruptRegister(t *testing.T) {
	historyDir := t.TempDir()
	path := filepath.Join(historyDir, metadataFile)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	r := New(historyDir, t.TempDir(), 20)
	if err := r.Append(Entry{RunID: "fresh"}); err != nil {
		t.Fatalf("Append over corrupt file: %v", err)
	}

	reg := readRegister(t, historyDir)
	if len(reg.Runs) != 1 || reg.Runs[0].RunID != "fresh" {
		t.Errorf("register after recovery: %+v", reg.Runs)
	}
}

func TestRotateKeepsNewestRuns(t *testing.T) {
	contentDir := t.TempDir()
	names := []string{"aaa111", "bbb222", "ccc333", "ddd444", "eee555"}
	base := time.Now().Add(-time.Hour)
	for i, name := range names {
		dir := filepath.Join(contentDir, name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		// ids are random, so retention must order by mtime, not name
		mt := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(dir, mt, mt); err != nil {
			t.Fatal(err)
		}
	}

	r := New(t.TempDir(), contentDir, 2)
	if err := r.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	entries, err := os.ReadDir(contentDir)
	if err != nil {
		t.Fatal(err)
	}
	var remaining []string
	for _, e := range entries {
		remaining = append(remaining, e.Name())
	}
	if len(remaining) != 2 {
		t.Fatalf("remaining dirs = %v, want 2 newest", remaining)
	}
	for _, want := range []string{"ddd444", "eee555"} {
		found := false
		for _, got := range remaining {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Errorf("newest dir %s was deleted; remaining %v", want, remaining)
		}
	}
}

func TestRotateUnderLimitIsNoop(t *testing.T) {
	contentDir := t.TempDir()
	for _, name := range []string{"one", "two"} {
		if err := os.MkdirAll(filepath.Join(contentDir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}

	r := New(t.TempDir(), contentDir, 5)
	if err := r.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	entries, _ := os.ReadDir(contentDir)
	if len(entries) != 2 {
		t.Errorf("noop rotate removed dirs, %d left", len(entries))
	}
}

func TestRotateMissingContentDir(t *testing.T) {
	r := New(t.TempDir(), filepath.Join(t.TempDir(), "absent"), 5)
	if err := r.Rotate(); err != nil {
		t.Errorf("Rotate on missing dir: %v", err)
	}
}

func TestFinishRecordsEntry(t *testing.T) {
	historyDir := t.TempDir()
	r := New(historyDir, t.TempDir(), 20)

	r.Finish("abc123def456", types.RunConfig{Topic: "city lights", Style: "post", Theme: "calm"}, "/content/abc123def456/final.mp4")

	reg := readRegister(t, historyDir)
	if len(reg.Runs) != 1 {
		t.Fatalf("register has %d runs, want 1", len(reg.Runs))
	}
	got := reg.Runs[0]
	if got.RunID != "abc123def456" || got.Topic != "city lights" || got.Video != "/content/abc123def456/final.mp4" {
		t.Errorf("entry = %+v", got)
	}
	if _, err := time.Parse(time.RFC3339, got.CreatedAt); err != nil {
		t.Errorf("created_at %q not RFC3339: %v", got.CreatedAt, err)
	}
}
