package extractor

import (
	"context"
	"errors"
	"time"
)

// ErrNoVideo is returned when every lookup strategy came up empty. The API
// layer maps it to 404.
var ErrNoVideo = errors.New("no video URL found")

// Extractor resolves a page URL into a playable video URL by walking the
// page's iframe nesting.
type Extractor interface {
	// Extract navigates pageURL and returns the first playable video source
	// it finds. onEvent may be nil; when set it receives progress events as
	// the fallback chain advances.
	Extract(ctx context.Context, pageURL string, onEvent EventFunc) (*Result, error)

	Close() error
}

// Result is a successful extraction.
type Result struct {
	// RequestID correlates log lines, progress events and history records.
	RequestID string `json:"request_id"`

	PageURL  string `json:"page_url"`
	VideoURL string `json:"video_url"`

	// Source names the strategy that produced the URL: "iframe", "page",
	// "iframe-scan" or "script".
	Source string `json:"source"`

	Duration    time.Duration `json:"duration"`
	ExtractedAt time.Time     `json:"extracted_at"`
}

// Event is a progress notification emitted while an extraction runs.
type Event struct {
	RequestID string        `json:"request_id"`
	Stage     Stage         `json:"stage"`
	URL       string        `json:"url,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// EventFunc receives progress events. Implementations must be fast; they run
// inline with the extraction.
type EventFunc func(Event)

// Stage identifies a step of the fallback chain.
type Stage string

const (
	StageNavigate   Stage = "navigate"
	StageWaitIframe Stage = "wait_iframe"
	StageEnterFrame Stage = "enter_iframe"
	StageWaitVideo  Stage = "wait_video"
	StageScanHTML   Stage = "scan_html"
	StageFound      Stage = "found"
)
