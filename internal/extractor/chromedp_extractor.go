package extractor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/rhuertas/streamproxy/internal/logging"
)

// iframeSrcJS finds the largest visible iframe (min 100x100) and returns its
// src URL. Returns null while no suitable iframe exists, which keeps
// chromedp.Poll waiting.
const iframeSrcJS = `
(function() {
  const iframes = document.querySelectorAll('iframe');
  let best = null, maxArea = 0;
  for (const f of iframes) {
    const r = f.getBoundingClientRect();
    const a = r.width * r.height;
    if (a > maxArea && r.width > 100 && r.height > 100) { maxArea = a; best = f; }
  }
  if (best && best.src && !best.src.startsWith('about:')) return best.src;
  return null;
})()
`

// videoSrcJS returns the playable source of the first video element, or null.
const videoSrcJS = `
(function() {
  const v = document.querySelector('video');
  if (!v) return null;
  if (v.src) return v.src;
  if (v.currentSrc) return v.currentSrc;
  const s = v.querySelector('source[src]');
  if (s && s.src) return s.src;
  return null;
})()
`

// ChromedpExtractor drives a real Chrome instance. Every Extract call gets
// its own browser, released on all exit paths via deferred cancels.
type ChromedpExtractor struct {
	cfg    Config
	logger logging.Logger
}

func NewChromedpExtractor(cfg Config, logger logging.Logger) (*ChromedpExtractor, error) {
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("chromedp extractor: timeout must be positive, got %v", cfg.Timeout)
	}
	componentLogger := logger.With(logging.Field{Key: "backend", Value: "chromedp"})
	componentLogger.Info("created chromedp extractor",
		logging.Field{Key: "timeout", Value: cfg.Timeout.String()},
		logging.Field{Key: "headless", Value: cfg.Headless})
	return &ChromedpExtractor{cfg: cfg, logger: componentLogger}, nil
}

// waitNetworkIdle returns a channel that is closed once no network request
// has been in flight for idleAfter. Callers should select on it together
// with ctx.Done().
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) <-chan struct{} {
	idleCh := make(chan struct{})
	var activeReqs int32
	var timer *time.Timer
	var timerMutex sync.Mutex
	var once sync.Once

	startTimer := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()

		if timer != nil {
			timer.Stop()
		}

		timer = time.AfterFunc(idleAfter, func() {
			if atomic.LoadInt32(&activeReqs) == 0 {
				once.Do(func() { close(idleCh) })
			}
		})
	}

	// A page that issues no requests at all still goes idle.
	startTimer()

	chromedp.ListenTarget(ctx,
		func(ev any) {
			switch e := ev.(type) {
			case *network.EventRequestWillBeSent:
				// A redirect hop re-emits requestWillBeSent for the same
				// request, but the chain gets a single loadingFinished.
				// Counting hops would leave activeReqs stuck above zero.
				if e.RedirectResponse == nil {
					atomic.AddInt32(&activeReqs, 1)
				}
			case *network.EventLoadingFinished, *network.EventLoadingFailed:
				if atomic.AddInt32(&activeReqs, -1) <= 0 {
					startTimer()
				}
			}
		})

	return idleCh
}

// awaitIdle blocks until idleCh closes, the timeout elapses, or ctx is
// canceled. A page that never goes idle (live players hold media requests
// open indefinitely) must not stall the fallback chain, so hitting the
// timeout is not an error; the caller scans whatever has rendered.
func awaitIdle(ctx context.Context, idleCh <-chan struct{}, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-idleCh:
		return nil
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ce *ChromedpExtractor) Extract(ctx context.Context, pageURL string, onEvent EventFunc) (*Result, error) {
	if pageURL == "" {
		return nil, fmt.Errorf("chromedp extractor: empty page URL")
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	id := uuid.New().String()
	started := time.Now()
	log := ce.logger.With(logging.Field{Key: "request_id", Value: id})
	emit := func(stage Stage, url string) {
		onEvent(Event{RequestID: id, Stage: stage, URL: url, Elapsed: time.Since(started)})
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, ce.allocatorOptions()...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	// Network events feed the idle tracker consulted before HTML scans.
	if err := ce.run(browserCtx, network.Enable()); err != nil {
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	idleCh := waitNetworkIdle(browserCtx, ce.cfg.IdleAfter)

	emit(StageNavigate, pageURL)
	log.Info("navigating", logging.Field{Key: "url", Value: pageURL})
	if err := ce.run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("navigating to %s: %w", pageURL, err)
	}

	// Walk into nested iframes by navigating directly to each frame URL.
	// Making the frame the top document sidesteps cross-origin frame
	// access restrictions.
	emit(StageWaitIframe, pageURL)
	current := pageURL
	depth := 0
	frameSrc, _ := ce.poll(browserCtx, iframeSrcJS, ce.cfg.Timeout)
	for frameSrc != "" && depth < ce.cfg.MaxFrameDepth {
		emit(StageEnterFrame, frameSrc)
		log.Info("entering iframe",
			logging.Field{Key: "src", Value: frameSrc},
			logging.Field{Key: "depth", Value: depth + 1})
		if err := ce.run(browserCtx,
			chromedp.Navigate(frameSrc),
			chromedp.WaitReady("body", chromedp.ByQuery),
		); err != nil {
			return nil, fmt.Errorf("navigating into iframe %s: %w", frameSrc, err)
		}
		current = frameSrc
		depth++

		// A player frame may itself embed the real player.
		frameSrc, _ = ce.poll(browserCtx, iframeSrcJS, ce.cfg.IdleAfter)
	}

	// Wait for a video element on whatever document we ended on. When no
	// iframe was entered the video is either already there or absent, so
	// only a short wait is warranted.
	videoWait := ce.cfg.Timeout
	if depth == 0 {
		videoWait = ce.cfg.IdleAfter
	}
	emit(StageWaitVideo, current)
	if src, err := ce.poll(browserCtx, videoSrcJS, videoWait); err == nil && src != "" {
		source := "iframe"
		if depth == 0 {
			source = "page"
		}
		return ce.finish(id, pageURL, src, source, started, emit, log), nil
	}

	// Let the network settle, then scan the rendered HTML for sources the
	// video element lookup missed (lazy players, m3u8 URLs in scripts).
	if err := awaitIdle(browserCtx, idleCh, ce.cfg.Timeout); err != nil {
		return nil, fmt.Errorf("waiting for network idle: %w", err)
	}
	emit(StageScanHTML, current)
	var html string
	if err := ce.run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("capturing rendered HTML: %w", err)
	}
	if src, source := FindVideoURL(html); src != "" {
		if depth > 0 && source == "page" {
			source = "iframe-scan"
		}
		return ce.finish(id, pageURL, src, source, started, emit, log), nil
	}

	// The frame chain had nothing; go back to the outer page and retry a
	// direct lookup there before giving up.
	if depth > 0 {
		log.Info("no video in frame chain, retrying outer page",
			logging.Field{Key: "url", Value: pageURL})
		if err := ce.run(browserCtx,
			chromedp.Navigate(pageURL),
			chromedp.WaitReady("body", chromedp.ByQuery),
		); err != nil {
			return nil, fmt.Errorf("returning to %s: %w", pageURL, err)
		}
		emit(StageWaitVideo, pageURL)
		if src, err := ce.poll(browserCtx, videoSrcJS, ce.cfg.IdleAfter); err == nil && src != "" {
			return ce.finish(id, pageURL, src, "page", started, emit, log), nil
		}
		emit(StageScanHTML, pageURL)
		if err := ce.run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err == nil {
			if src, source := FindVideoURL(html); src != "" {
				return ce.finish(id, pageURL, src, source, started, emit, log), nil
			}
		}
	}

	log.Warn("no video URL found",
		logging.Field{Key: "url", Value: pageURL},
		logging.Field{Key: "depth", Value: depth})
	return nil, ErrNoVideo
}

func (ce *ChromedpExtractor) Close() error {
	ce.logger.Info("closing chromedp extractor")
	return nil
}

func (ce *ChromedpExtractor) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(ce.cfg.WindowWidth, ce.cfg.WindowHeight),
	)
	if !ce.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if ce.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(ce.cfg.ChromePath))
	}
	return opts
}

// run executes actions bounded by the per-step timeout.
func (ce *ChromedpExtractor) run(ctx context.Context, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(ctx, ce.cfg.Timeout)
	defer cancel()
	return chromedp.Run(stepCtx, actions...)
}

// poll evaluates js in the page until it returns a non-null value or the
// timeout expires. Polling runs in-browser via requestAnimationFrame;
// WithPollingTimeout(0) disables Poll's internal timeout so the context
// deadline is the effective limit.
func (ce *ChromedpExtractor) poll(ctx context.Context, js string, timeout time.Duration) (string, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var out string
	err := chromedp.Run(pollCtx, chromedp.Poll(js, &out, chromedp.WithPollingTimeout(0)))
	return out, err
}

func (ce *ChromedpExtractor) finish(id, pageURL, videoURL, source string, started time.Time, emit func(Stage, string), log logging.Logger) *Result {
	emit(StageFound, videoURL)
	log.Info("video found",
		logging.Field{Key: "video_url", Value: videoURL},
		logging.Field{Key: "source", Value: source},
		logging.Field{Key: "duration", Value: time.Since(started).String()})
	return &Result{
		RequestID:   id,
		PageURL:     pageURL,
		VideoURL:    videoURL,
		Source:      source,
		Duration:    time.Since(started),
		ExtractedAt: time.Now(),
	}
}
