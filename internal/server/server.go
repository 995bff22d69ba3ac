package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/rhuertas/streamproxy/internal/app"
	"github.com/rhuertas/streamproxy/internal/extractor"
	"github.com/rhuertas/streamproxy/internal/history"
	"github.com/rhuertas/streamproxy/internal/logging"
	"github.com/rhuertas/streamproxy/internal/webclient"

	_ "github.com/rhuertas/streamproxy/docs/swagger" // generated OpenAPI spec
	_ "modernc.org/sqlite"                           // SQLite driver
)

const (
	serviceName    = "stream-proxy"
	serviceVersion = "1.0"
)

// Server is the HTTP + WebSocket API surface of the stream proxy.
type Server struct {
	cfg       Config
	extractor extractor.Extractor
	probe     webclient.WebClient
	history   *history.Store
	router    chi.Router
	upgrader  websocket.Upgrader
	logger    logging.Logger
	historyDB *sql.DB
}

// NewServer creates a new Server with its own extractor backend and history
// store.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AppConfig == nil {
		cfg.AppConfig = app.DefaultConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	// Make sure storage root exists
	storageRoot, err := expandPath(cfg.AppConfig.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("expanding storage root path: %w", err)
	}
	cfg.AppConfig.StorageRoot = storageRoot
	if err := os.MkdirAll(cfg.AppConfig.StorageRoot, 0755); err != nil {
		logger.Warn("creating storage root directory",
			logging.Field{Key: "path", Value: cfg.AppConfig.StorageRoot},
			logging.Field{Key: "error", Value: err.Error()})
	}

	// Set up the history DB
	db, err := sql.Open("sqlite", filepath.Join(cfg.AppConfig.StorageRoot, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	store, err := history.NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history store: %w", err)
	}

	ex := cfg.Extractor
	if ex == nil {
		ex, err = extractor.NewExtractor(cfg.AppConfig.ExtractorCfg, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating extractor: %w", err)
		}
	}

	probe := cfg.ProbeClient
	if probe == nil {
		probe, err = webclient.NewNetHTTPClient(cfg.AppConfig.WebClientCfg, logger, nil)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating probe client: %w", err)
		}
	}

	r := chi.NewRouter()
	s := &Server{
		cfg:       cfg,
		extractor: ex,
		probe:     probe,
		history:   store,
		router:    r,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
		historyDB: db,
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/api/extract-stream", s.optionsHandler("POST"))
	r.Options("/api/proxy-iframe", s.optionsHandler("POST"))

	r.Get("/health", s.handleHealth)
	r.Post("/api/extract-stream", s.handleExtractStream)
	r.Post("/api/proxy-iframe", s.handleProxyIframe)
	r.Get("/api/config", s.handleGetConfig)
	r.Get("/api/history", s.handleHistory)

	// WebSocket for extraction progress
	r.Get("/ws/extract", s.handleExtractWS)

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

// optionsHandler answers CORS preflight with an empty 200 body, matching
// what embedding frontends expect from this API.
func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusOK)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down the extractor and underlying resources.
func (s *Server) Close() {
	if s.historyDB != nil {
		s.historyDB.Close()
	}
	if s.extractor != nil {
		s.extractor.Close()
	}
	if s.probe != nil {
		s.probe.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // extractions can outlive any fixed write window
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}

// --- HTTP handlers ---

// handleHealth godoc
// @Summary Health check
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: serviceName,
		Version: serviceVersion,
	})
}

// handleExtractStream godoc
// @Summary Extract a playable video URL from an iframe-nesting page
// @Accept json
// @Produce json
// @Param request body ExtractStreamRequest true "page URL"
// @Success 200 {object} ExtractStreamResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/extract-stream [post]
func (s *Server) handleExtractStream(w http.ResponseWriter, r *http.Request) {
	var body ExtractStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("decoding extract-stream body", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		s.logger.Warn("extract-stream: missing url")
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	s.logger.Info("extracting stream", logging.Field{Key: "url", Value: body.URL})
	started := time.Now()
	res, err := s.extractor.Extract(r.Context(), body.URL, nil)
	s.recordExtraction(r, body.URL, res, err, time.Since(started))

	if err != nil {
		if errors.Is(err, extractor.ErrNoVideo) {
			s.logger.Warn("no video URL found", logging.Field{Key: "url", Value: body.URL})
			writeError(w, http.StatusNotFound, "no video URL found in the iframe")
			return
		}
		s.logger.Error("extracting stream", logging.Field{Key: "url", Value: body.URL}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("stream extracted",
		logging.Field{Key: "url", Value: body.URL},
		logging.Field{Key: "video_url", Value: res.VideoURL},
		logging.Field{Key: "source", Value: res.Source})
	writeJSON(w, http.StatusOK, ExtractStreamResponse{
		Success:  true,
		VideoURL: res.VideoURL,
		Message:  "stream extracted successfully",
	})
}

// handleProxyIframe godoc
// @Summary Return an embeddable iframe URL after probing it
// @Accept json
// @Produce json
// @Param request body ProxyIframeRequest true "iframe URL"
// @Success 200 {object} ProxyIframeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/proxy-iframe [post]
func (s *Server) handleProxyIframe(w http.ResponseWriter, r *http.Request) {
	var body ProxyIframeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("decoding proxy-iframe body", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		s.logger.Warn("proxy-iframe: missing url")
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	resp, err := s.probe.Get(r.Context(), body.URL)
	if err != nil {
		s.logger.Warn("probing iframe URL",
			logging.Field{Key: "url", Value: body.URL},
			logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadGateway, fmt.Sprintf("iframe URL not reachable: %v", err))
		return
	}
	if resp.StatusCode >= 400 {
		s.logger.Warn("probing iframe URL: upstream error",
			logging.Field{Key: "url", Value: body.URL},
			logging.Field{Key: "status", Value: resp.StatusCode})
		writeError(w, http.StatusBadGateway, fmt.Sprintf("iframe URL returned status %d", resp.StatusCode))
		return
	}

	s.logger.Info("proxy-iframe ready", logging.Field{Key: "url", Value: body.URL})
	writeJSON(w, http.StatusOK, ProxyIframeResponse{
		Success:   true,
		IframeURL: body.URL,
		Message:   "URL ready to embed",
	})
}

// handleGetConfig godoc
// @Summary Echo the static service configuration
// @Produce json
// @Success 200 {object} ConfigResponse
// @Router /api/config [get]
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	exCfg := s.cfg.AppConfig.ExtractorCfg
	writeJSON(w, http.StatusOK, ConfigResponse{
		Backend:        string(exCfg.Backend),
		ChromePath:     exCfg.ChromePath,
		TimeoutSeconds: int(exCfg.Timeout.Seconds()),
		Headless:       exCfg.Headless,
		Endpoints: []string{
			"/health",
			"/api/extract-stream (POST)",
			"/api/proxy-iframe (POST)",
			"/api/config (GET)",
			"/api/history (GET)",
			"/ws/extract (GET)",
		},
	})
}

// handleHistory godoc
// @Summary List recent extraction attempts
// @Produce json
// @Param limit query int false "max records, default 50"
// @Success 200 {array} history.Record
// @Failure 500 {object} ErrorResponse
// @Router /api/history [get]
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Warn("listing extraction history", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("listed extraction history", logging.Field{Key: "count", Value: len(recs)})
	writeJSON(w, http.StatusOK, recs)
}

// WebSockets

func (s *Server) handleExtractWS(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	if strings.TrimSpace(pageURL) == "" {
		_ = conn.WriteJSON(ErrorResponse{Success: false, Error: "url is required"})
		return
	}

	started := time.Now()
	res, err := s.extractor.Extract(r.Context(), pageURL, func(ev extractor.Event) {
		_ = conn.WriteJSON(ev)
	})
	s.recordExtraction(r, pageURL, res, err, time.Since(started))

	if err != nil {
		s.logger.Warn("ws extraction failed",
			logging.Field{Key: "url", Value: pageURL},
			logging.Field{Key: "error", Value: err.Error()})
		_ = conn.WriteJSON(ErrorResponse{Success: false, Error: err.Error()})
		return
	}

	_ = conn.WriteJSON(ExtractStreamResponse{
		Success:  true,
		VideoURL: res.VideoURL,
		Message:  "stream extracted successfully",
	})
}

// recordExtraction writes one history record for an attempt. Failures to
// record are logged, never surfaced to the client.
func (s *Server) recordExtraction(r *http.Request, pageURL string, res *extractor.Result, exErr error, elapsed time.Duration) {
	rec := &history.Record{
		PageURL:    pageURL,
		DurationMS: elapsed.Milliseconds(),
	}
	if res != nil {
		rec.ID = res.RequestID
		rec.VideoURL = res.VideoURL
		rec.Source = res.Source
		rec.Success = true
		rec.DurationMS = res.Duration.Milliseconds()
	} else {
		rec.ID = uuid.New().String()
	}
	if exErr != nil {
		rec.Error = exErr.Error()
	}

	if err := s.history.Record(r.Context(), rec); err != nil {
		s.logger.Warn("recording extraction",
			logging.Field{Key: "id", Value: rec.ID},
			logging.Field{Key: "error", Value: err.Error()})
	}
}

func expandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}
