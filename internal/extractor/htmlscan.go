package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// m3u8URLRe matches absolute HLS playlist URLs embedded in script bodies.
var m3u8URLRe = regexp.MustCompile(`https?://[^\s'"\\<>]+\.m3u8[^\s'"\\<>]*`)

// FindVideoURL scans rendered HTML for a playable source. Lookup order:
// a <video> src attribute, a <source> child of a <video>, then any .m3u8
// URL inside a <script> body. Returns the URL and the strategy name, or
// ("", "") when nothing matched.
func FindVideoURL(html string) (videoURL, source string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}

	if src, ok := doc.Find("video[src]").First().Attr("src"); ok && src != "" {
		return src, "page"
	}

	if src, ok := doc.Find("video source[src]").First().Attr("src"); ok && src != "" {
		return src, "page"
	}

	var found string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := m3u8URLRe.FindString(s.Text()); m != "" {
			found = m
			return false
		}
		return true
	})
	if found != "" {
		return found, "script"
	}

	return "", ""
}

// FirstIframeSrc returns the src of the first iframe in the HTML, or "".
// Frames without a usable src (empty, about: or javascript: pseudo URLs)
// are skipped.
func FirstIframeSrc(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var found string
	doc.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "about:") || strings.HasPrefix(src, "javascript:") {
			return true
		}
		found = src
		return false
	})
	return found
}
