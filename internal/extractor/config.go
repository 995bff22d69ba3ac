package extractor

import "time"

type Backend string

const (
	BackendChromedp Backend = "chromedp"
	BackendStatic   Backend = "static"
)

// Config holds the extraction options. There is deliberately no environment
// or file based configuration; values are fixed at construction time.
type Config struct {
	// Backend selects the registered extraction backend.
	Backend Backend

	// ChromePath points at the Chrome/Chromium executable. Empty means
	// chromedp discovers the browser itself.
	ChromePath string

	// Timeout bounds each page-load and element-wait step.
	Timeout time.Duration

	// IdleAfter is how long the network must stay quiet before a rendered
	// page is considered settled and its HTML is scanned.
	IdleAfter time.Duration

	// Headless runs the browser without a visible window.
	Headless bool

	// MaxFrameDepth caps how many nested iframes are followed.
	MaxFrameDepth int

	// WindowWidth and WindowHeight set the browser viewport.
	WindowWidth  int
	WindowHeight int
}

// DefaultConfig returns a Config populated with the service defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendChromedp,
		ChromePath:    "",
		Timeout:       20 * time.Second,
		IdleAfter:     2 * time.Second,
		Headless:      true,
		MaxFrameDepth: 3,
		WindowWidth:   1920,
		WindowHeight:  1080,
	}
}
