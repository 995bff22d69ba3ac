package extractor_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rhuertas/streamproxy/internal/extractor"
	"github.com/rhuertas/streamproxy/internal/logging"
	"github.com/rhuertas/streamproxy/internal/testutil"
	"github.com/rhuertas/streamproxy/internal/webclient"
)

func newStaticExtractor(t *testing.T, ts *httptest.Server) *extractor.StaticExtractor {
	t.Helper()

	logger := &testutil.DummyLogger{}
	wc, err := webclient.NewNetHTTPClient(webclient.Config{}, logger, ts.Client())
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}

	cfg := extractor.DefaultConfig()
	cfg.Backend = extractor.BackendStatic
	cfg.Timeout = 5 * time.Second

	return extractor.NewStaticExtractor(cfg, logger, wc)
}

// ─── Extraction through nested iframes ──────────────────────────────────

func TestStaticExtractor_VideoBehindIframe(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><iframe src="/embed" width="640" height="360"></iframe></body></html>`)
	})
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><video src="/media/stream.mp4"></video></body></html>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	se := newStaticExtractor(t, ts)
	defer se.Close()

	res, err := se.Extract(context.Background(), ts.URL+"/", nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if want := ts.URL + "/media/stream.mp4"; res.VideoURL != want {
		t.Errorf("VideoURL = %q, want %q", res.VideoURL, want)
	}
	if res.Source != "iframe" {
		t.Errorf("Source = %q, want iframe", res.Source)
	}
	if res.RequestID == "" {
		t.Error("expected non-empty RequestID")
	}
}

func TestStaticExtractor_VideoOnOuterPage(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<video src="https://cdn.example.com/direct.mp4"></video>`)
	}))
	defer ts.Close()

	se := newStaticExtractor(t, ts)
	defer se.Close()

	res, err := se.Extract(context.Background(), ts.URL, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.VideoURL != "https://cdn.example.com/direct.mp4" {
		t.Errorf("VideoURL = %q", res.VideoURL)
	}
	if res.Source != "page" {
		t.Errorf("Source = %q, want page", res.Source)
	}
}

func TestStaticExtractor_M3U8InScript(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<iframe src="/player"></iframe>`)
	})
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<script>jwplayer().setup({file: "https://live.example.com/hls/master.m3u8"});</script>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	se := newStaticExtractor(t, ts)
	defer se.Close()

	res, err := se.Extract(context.Background(), ts.URL+"/", nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.VideoURL != "https://live.example.com/hls/master.m3u8" {
		t.Errorf("VideoURL = %q", res.VideoURL)
	}
	if res.Source != "script" {
		t.Errorf("Source = %q, want script", res.Source)
	}
}

// ─── Failure modes ───────────────────────────────────────────────────────

func TestStaticExtractor_NoVideo(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>just text</p></body></html>`)
	}))
	defer ts.Close()

	se := newStaticExtractor(t, ts)
	defer se.Close()

	_, err := se.Extract(context.Background(), ts.URL, nil)
	if !errors.Is(err, extractor.ErrNoVideo) {
		t.Fatalf("expected ErrNoVideo, got %v", err)
	}
}

func TestStaticExtractor_IframeLoopStopsAtMaxDepth(t *testing.T) {
	t.Parallel()

	// /loop embeds itself forever
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<iframe src="/loop"></iframe>`)
	}))
	defer ts.Close()

	se := newStaticExtractor(t, ts)
	defer se.Close()

	_, err := se.Extract(context.Background(), ts.URL+"/loop", nil)
	if !errors.Is(err, extractor.ErrNoVideo) {
		t.Fatalf("expected ErrNoVideo, got %v", err)
	}
}

func TestStaticExtractor_UpstreamError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	se := newStaticExtractor(t, ts)
	defer se.Close()

	_, err := se.Extract(context.Background(), ts.URL, nil)
	if err == nil {
		t.Fatal("expected error for upstream 500")
	}
	if errors.Is(err, extractor.ErrNoVideo) {
		t.Fatalf("upstream failure must not be reported as ErrNoVideo: %v", err)
	}
}

func TestStaticExtractor_EmptyURL(t *testing.T) {
	t.Parallel()

	logger := &testutil.DummyLogger{}
	se := extractor.NewStaticExtractor(extractor.DefaultConfig(), logger, &testutil.DummyWebClient{})

	if _, err := se.Extract(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

// ─── Progress events ─────────────────────────────────────────────────────

func TestStaticExtractor_EmitsProgressEvents(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<iframe src="/embed"></iframe>`)
	})
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<video src="/v.mp4"></video>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	se := newStaticExtractor(t, ts)
	defer se.Close()

	var stages []extractor.Stage
	_, err := se.Extract(context.Background(), ts.URL+"/", func(ev extractor.Event) {
		stages = append(stages, ev.Stage)
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(stages) == 0 {
		t.Fatal("expected progress events")
	}
	if stages[0] != extractor.StageNavigate {
		t.Errorf("first stage = %q, want %q", stages[0], extractor.StageNavigate)
	}
	if stages[len(stages)-1] != extractor.StageFound {
		t.Errorf("last stage = %q, want %q", stages[len(stages)-1], extractor.StageFound)
	}
}

// fieldLogger records the fields of every Info call, keyed by message.
type fieldLogger struct {
	mu    sync.Mutex
	infos map[string]map[string]any
}

func (l *fieldLogger) Debug(msg string, fields ...logging.Field) {}
func (l *fieldLogger) Warn(msg string, fields ...logging.Field)  {}
func (l *fieldLogger) Error(msg string, fields ...logging.Field) {}
func (l *fieldLogger) With(fields ...logging.Field) logging.Logger {
	return l
}

func (l *fieldLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.infos == nil {
		l.infos = make(map[string]map[string]any)
	}
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	l.infos[msg] = m
}

func (l *fieldLogger) fields(msg string) map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.infos[msg]
}

func TestStaticExtractor_FoundLogMatchesResultSource(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<iframe src="/embed"></iframe>`)
	})
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<video src="/v.mp4"></video>`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	logger := &fieldLogger{}
	wc, err := webclient.NewNetHTTPClient(webclient.Config{}, logger, ts.Client())
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}

	cfg := extractor.DefaultConfig()
	cfg.Backend = extractor.BackendStatic
	cfg.Timeout = 5 * time.Second

	se := extractor.NewStaticExtractor(cfg, logger, wc)
	defer se.Close()

	res, err := se.Extract(context.Background(), ts.URL+"/", nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Source != "iframe" {
		t.Fatalf("Source = %q, want iframe", res.Source)
	}

	// The video sits behind an iframe, so the log must report the same
	// source the caller sees, not the raw scan classification.
	found := logger.fields("video found")
	if found == nil {
		t.Fatal(`expected a "video found" log entry`)
	}
	if got := found["source"]; got != res.Source {
		t.Errorf("logged source = %v, want %q", got, res.Source)
	}
}
