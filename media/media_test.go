package media

import (
	"errors"
	"testing"
)

func TestEncodeErrorMessage(t *testing.T) {
	err := &EncodeError{Op: "mux audio/video", Stderr: "  Invalid data found\n"}
	want := "mux audio/video failed: Invalid data found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestEncodeErrorAs(t *testing.T) {
	var err error = &EncodeError{Op: "caption overlay", Stderr: "boom"}
	var ee *EncodeError
	if !errors.As(err, &ee) {
		t.Fatal("errors.As failed for *EncodeError")
	}
	if ee.Op != "caption overlay" {
		t.Errorf("Op = %q", ee.Op)
	}
}

func TestSampleTimestamps(t *testing.T) {
	// timestamps follow duration*(i+0.5)/count — verify the spacing math
	// used by SampleFrames without invoking the external tool
	duration := 6.0
	count := 3
	want := []float64{1.0, 3.0, 5.0}
	for i := 0; i < count; i++ {
		got := duration * (float64(i) + 0.5) / float64(count)
		if got != want[i] {
			t.Errorf("timestamp %d = %g, want %g", i, got, want[i])
		}
	}
}
