package app

import (
	"github.com/rhuertas/streamproxy/internal/extractor"
	"github.com/rhuertas/streamproxy/internal/webclient"
)

// Config aggregates the runtime configuration of the service. All values are
// fixed constants with no environment or file overrides.
type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// StorageRoot is the base path where the history database lives.
	StorageRoot string

	// Extractor configuration
	ExtractorCfg extractor.Config

	// WebClient configuration (iframe reachability probe)
	WebClientCfg webclient.Config
}

// DefaultConfig returns a Config populated with the service defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:   ":5000",
		StorageRoot:  "~/.config/streamproxy",
		ExtractorCfg: extractor.DefaultConfig(),
		WebClientCfg: webclient.DefaultConfig(),
	}
}
