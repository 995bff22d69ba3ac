package extractor

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/rhuertas/streamproxy/internal/logging"
	"github.com/rhuertas/streamproxy/internal/webclient"
)

// StaticExtractor fetches raw HTML over plain HTTP and applies the same scan
// as the browser fallback. It cannot execute scripts, so it only defeats
// iframe nesting that is present in the served markup. It exists for
// environments without Chrome and for hermetic tests.
type StaticExtractor struct {
	cfg    Config
	wc     webclient.WebClient
	logger logging.Logger
}

func NewStaticExtractor(cfg Config, logger logging.Logger, wc webclient.WebClient) *StaticExtractor {
	componentLogger := logger.With(logging.Field{Key: "backend", Value: "static"})
	return &StaticExtractor{cfg: cfg, wc: wc, logger: componentLogger}
}

func (se *StaticExtractor) Extract(ctx context.Context, pageURL string, onEvent EventFunc) (*Result, error) {
	if pageURL == "" {
		return nil, fmt.Errorf("static extractor: empty page URL")
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	id := uuid.New().String()
	started := time.Now()
	log := se.logger.With(logging.Field{Key: "request_id", Value: id})
	emit := func(stage Stage, u string) {
		onEvent(Event{RequestID: id, Stage: stage, URL: u, Elapsed: time.Since(started)})
	}

	ctx, cancel := context.WithTimeout(ctx, se.cfg.Timeout)
	defer cancel()

	current := pageURL
	for depth := 0; depth <= se.cfg.MaxFrameDepth; depth++ {
		emit(StageNavigate, current)
		log.Info("fetching page",
			logging.Field{Key: "url", Value: current},
			logging.Field{Key: "depth", Value: depth})

		resp, err := se.wc.Get(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", current, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 400 {
			return nil, fmt.Errorf("fetching %s: unexpected status %d", current, resp.StatusCode)
		}

		html := string(resp.Body)

		emit(StageScanHTML, current)
		if src, source := FindVideoURL(html); src != "" {
			resolved := resolveRef(current, src)
			if depth > 0 && source == "page" {
				source = "iframe"
			}
			emit(StageFound, resolved)
			log.Info("video found",
				logging.Field{Key: "video_url", Value: resolved},
				logging.Field{Key: "source", Value: source})
			return &Result{
				RequestID:   id,
				PageURL:     pageURL,
				VideoURL:    resolved,
				Source:      source,
				Duration:    time.Since(started),
				ExtractedAt: time.Now(),
			}, nil
		}

		emit(StageWaitIframe, current)
		frameSrc := FirstIframeSrc(html)
		if frameSrc == "" {
			break
		}
		emit(StageEnterFrame, frameSrc)
		current = resolveRef(current, frameSrc)
	}

	log.Warn("no video URL found", logging.Field{Key: "url", Value: pageURL})
	return nil, ErrNoVideo
}

func (se *StaticExtractor) Close() error {
	return se.wc.Close()
}

// resolveRef resolves ref against base, tolerating malformed input by
// returning ref unchanged.
func resolveRef(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
