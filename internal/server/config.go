package server

import (
	"github.com/rhuertas/streamproxy/internal/app"
	"github.com/rhuertas/streamproxy/internal/extractor"
	"github.com/rhuertas/streamproxy/internal/logging"
	"github.com/rhuertas/streamproxy/internal/webclient"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// AppConfig holds the aggregated service configuration. Nil means
	// app.DefaultConfig().
	AppConfig *app.Config

	// Logger is the logger used by the server and its components. Nil means
	// a development StdoutLogger.
	Logger logging.Logger

	// Extractor overrides the backend built from AppConfig. Used by tests.
	Extractor extractor.Extractor

	// ProbeClient overrides the reachability probe client. Used by tests.
	ProbeClient webclient.WebClient
}
