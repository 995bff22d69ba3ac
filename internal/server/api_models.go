package server

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Service string `json:"service" example:"stream-proxy"`
	Version string `json:"version" example:"1.0"`
}

// ExtractStreamRequest asks the service to resolve a page into a video URL.
type ExtractStreamRequest struct {
	URL string `json:"url" example:"https://example.com/stream/stream-532.php"`
}

// ExtractStreamResponse is the success payload of /api/extract-stream.
type ExtractStreamResponse struct {
	Success  bool   `json:"success" example:"true"`
	VideoURL string `json:"video_url" example:"https://cdn.example.com/live/index.m3u8"`
	Message  string `json:"message" example:"stream extracted successfully"`
}

// ProxyIframeRequest asks for an embeddable iframe URL.
type ProxyIframeRequest struct {
	URL string `json:"url" example:"https://example.com/embed/player"`
}

// ProxyIframeResponse is the success payload of /api/proxy-iframe.
type ProxyIframeResponse struct {
	Success   bool   `json:"success" example:"true"`
	IframeURL string `json:"iframe_url" example:"https://example.com/embed/player"`
	Message   string `json:"message" example:"URL ready to embed"`
}

// ConfigResponse echoes the static service configuration.
type ConfigResponse struct {
	Backend        string   `json:"backend" example:"chromedp"`
	ChromePath     string   `json:"chrome_path" example:"/usr/bin/chromium"`
	TimeoutSeconds int      `json:"timeout" example:"20"`
	Headless       bool     `json:"headless" example:"true"`
	Endpoints      []string `json:"endpoints"`
}

// ErrorResponse is the uniform error payload returned by the API.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Error   string `json:"error" example:"url is required"`
}
