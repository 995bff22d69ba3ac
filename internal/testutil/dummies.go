// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rhuertas/streamproxy/internal/extractor"
	"github.com/rhuertas/streamproxy/internal/logging"
	"github.com/rhuertas/streamproxy/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// By default it returns body "ok:<url>" with status 200.
// Set FailURLs[url] = true to force an error for a specific URL.
// Set Bodies[url] to serve specific content. Statuses[url] overrides 200.
type DummyWebClient struct {
	ResponseDelay time.Duration
	FailURLs      map[string]bool
	Bodies        map[string]string
	Statuses      map[string]int
	mu            sync.Mutex
	Requests      []*webclient.Request
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, errors.New("dummy fetch fail")
	}

	body := "ok:" + req.URL
	if d.Bodies != nil {
		if b, ok := d.Bodies[req.URL]; ok {
			body = b
		}
	}
	status := 200
	if d.Statuses != nil {
		if st, ok := d.Statuses[req.URL]; ok {
			status = st
		}
	}

	return &webclient.Response{
		Request:    req,
		Body:       []byte(body),
		StatusCode: status,
		FetchedAt:  time.Now(),
	}, nil
}

func (d *DummyWebClient) Get(ctx context.Context, url string) (*webclient.Response, error) {
	return d.Do(ctx, &webclient.Request{Method: "GET", URL: url})
}

func (d *DummyWebClient) Close() error { return nil }

// ─── Extractor ─────────────────────────────────────────────────────────

// DummyExtractor implements extractor.Extractor with canned results keyed by
// page URL. Unknown URLs return Err (default extractor.ErrNoVideo).
type DummyExtractor struct {
	Results map[string]*extractor.Result
	Err     error
	Events  []extractor.Event

	mu    sync.Mutex
	Calls []string
}

func (d *DummyExtractor) Extract(ctx context.Context, pageURL string, onEvent extractor.EventFunc) (*extractor.Result, error) {
	d.mu.Lock()
	d.Calls = append(d.Calls, pageURL)
	d.mu.Unlock()

	if onEvent != nil {
		for _, ev := range d.Events {
			onEvent(ev)
		}
	}

	if d.Results != nil {
		if res, ok := d.Results[pageURL]; ok {
			return res, nil
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}
	return nil, extractor.ErrNoVideo
}

func (d *DummyExtractor) Close() error { return nil }
