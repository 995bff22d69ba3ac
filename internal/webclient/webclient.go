package webclient

import "context"

// WebClient is a minimal HTTP client abstraction. The static extraction
// backend and the iframe reachability probe go through it so tests can
// inject doubles.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	// Get is a convenience method for simple GET requests
	Get(ctx context.Context, url string) (*Response, error)

	Close() error
}
