package webclient

import "time"

// Config holds options for constructing a WebClient.
type Config struct {
	// Timeout bounds every request issued through the client.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
	}
}
