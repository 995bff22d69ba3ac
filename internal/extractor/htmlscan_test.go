package extractor_test

import (
	"testing"

	"github.com/rhuertas/streamproxy/internal/extractor"
)

func TestFindVideoURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		html       string
		wantURL    string
		wantSource string
	}{
		{
			name:       "video with src attribute",
			html:       `<html><body><video src="https://cdn.example.com/v.mp4"></video></body></html>`,
			wantURL:    "https://cdn.example.com/v.mp4",
			wantSource: "page",
		},
		{
			name:       "video with source child",
			html:       `<html><body><video controls><source src="/media/v.webm" type="video/webm"></video></body></html>`,
			wantURL:    "/media/v.webm",
			wantSource: "page",
		},
		{
			name:       "src attribute wins over source child",
			html:       `<video src="first.mp4"><source src="second.mp4"></video>`,
			wantURL:    "first.mp4",
			wantSource: "page",
		},
		{
			name:       "m3u8 URL inside script",
			html:       `<script>var player = init({file: "https://live.example.com/hls/stream.m3u8?token=abc"});</script>`,
			wantURL:    "https://live.example.com/hls/stream.m3u8?token=abc",
			wantSource: "script",
		},
		{
			name:       "m3u8 in single quotes",
			html:       `<script>var s = 'http://cdn.example.com/index.m3u8';</script>`,
			wantURL:    "http://cdn.example.com/index.m3u8",
			wantSource: "script",
		},
		{
			name:    "script mentioning m3u8 without a URL",
			html:    `<script>// supports m3u8 playback</script>`,
			wantURL: "",
		},
		{
			name:    "no video at all",
			html:    `<html><body><p>nothing here</p></body></html>`,
			wantURL: "",
		},
		{
			name:    "video without src",
			html:    `<video controls></video>`,
			wantURL: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gotURL, gotSource := extractor.FindVideoURL(tt.html)
			if gotURL != tt.wantURL {
				t.Errorf("FindVideoURL url = %q, want %q", gotURL, tt.wantURL)
			}
			if tt.wantURL != "" && gotSource != tt.wantSource {
				t.Errorf("FindVideoURL source = %q, want %q", gotSource, tt.wantSource)
			}
		})
	}
}

func TestFirstIframeSrc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "plain iframe",
			html: `<iframe src="https://embed.example.com/player"></iframe>`,
			want: "https://embed.example.com/player",
		},
		{
			name: "skips about:blank",
			html: `<iframe src="about:blank"></iframe><iframe src="/real"></iframe>`,
			want: "/real",
		},
		{
			name: "skips javascript pseudo URL",
			html: `<iframe src="javascript:void(0)"></iframe>`,
			want: "",
		},
		{
			name: "no iframe",
			html: `<p>none</p>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extractor.FirstIframeSrc(tt.html); got != tt.want {
				t.Errorf("FirstIframeSrc = %q, want %q", got, tt.want)
			}
		})
	}
}
