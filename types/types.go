package types

// RGBA is one gradient color stop. Alpha is straight (not premultiplied).
type RGBA struct {
	R uint8 `yaml:"r" json:"r"`
	G uint8 `yaml:"g" json:"g"`
	B uint8 `yaml:"b" json:"b"`
	A uint8 `yaml:"a" json:"a"`
}

// ThemeStyle is a named visual preset resolved from config
type ThemeStyle struct {
	Font       string `yaml:"font" json:"font"`
	Color      string `yaml:"color" json:"color"`
	Background string `yaml:"bg" json:"bg"`
	Gradient   [2]RGBA `yaml:"gradient" json:"gradient"`
}

// CaptionOverrides are optional per-run caption settings from the caller
type CaptionOverrides struct {
	Placement string `json:"placement,omitempty"` // "auto" | "bottom"
	Hue       int    `json:"hue,omitempty"`
	Font      string `json:"font,omitempty"`
	FontSize  int    `json:"font_size,omitempty"`
}

// RunConfig describes one requested video run. Immutable once the run starts.
type RunConfig struct {
	Topic       string            `json:"topic"`
	Style       string            `json:"style"` // ad | post | story
	Theme       string            `json:"theme"`
	Caption     *CaptionOverrides `json:"caption,omitempty"`
	VoiceID     string            `json:"voice_id,omitempty"`
	SavePreview bool              `json:"save_preview"`
}

// CaptionPlan is the placement and timing decision for one run's caption.
// Produced once by the caption placer, consumed by the composer.
type CaptionPlan struct {
	X        int     `json:"x"`
	Y        int     `json:"y"`
	W        int     `json:"w"`
	H        int     `json:"h"`
	Gradient [2]RGBA `json:"gradient"`
	FadeIn   float64 `json:"fade_in"`
	FadeOut  float64 `json:"fade_out"`
	Duration float64 `json:"duration"` // probed clip duration; 0 = unknown
}

// styleTargetSeconds maps a run style to its target narration length
var styleTargetSeconds = map[string]int{
	"ad":    10,
	"post":  30,
	"story": 90,
}

// StyleTargetSeconds returns the target narration duration for a style.
// Unknown styles default to 30 seconds.
func StyleTargetSeconds(style string) int {
	if s, ok := styleTargetSeconds[style]; ok {
		return s
	}
	return 30
}
