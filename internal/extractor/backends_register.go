package extractor

import (
	"github.com/rhuertas/streamproxy/internal/logging"
	"github.com/rhuertas/streamproxy/internal/webclient"
)

// RegisterDefaultBackends registers the chromedp and static backends. Call
// this early in main() to make backends available to NewExtractor.
func RegisterDefaultBackends() {
	RegisterBackend(string(BackendChromedp), func(cfg Config, logger logging.Logger) (Extractor, error) {
		return NewChromedpExtractor(cfg, logger)
	})

	RegisterBackend(string(BackendStatic), func(cfg Config, logger logging.Logger) (Extractor, error) {
		wc, err := webclient.NewNetHTTPClient(webclient.Config{Timeout: cfg.Timeout}, logger, nil)
		if err != nil {
			return nil, err
		}
		return NewStaticExtractor(cfg, logger, wc), nil
	})
}
