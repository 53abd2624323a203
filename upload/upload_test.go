package upload

import (
	"strings"
	"testing"
)

func TestTrimTitle(t *testing.T) {
	short := "Generated short: rainy streets"
	if got := trimTitle(short); got != short {
		t.Errorf("short title modified: %q", got)
	}

	long := strings.Repeat("a", 150)
	got := trimTitle(long)
	if len(got) != 100 {
		t.Errorf("trimmed title length = %d, want 100", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("trimmed title missing ellipsis: %q", got)
	}
}
