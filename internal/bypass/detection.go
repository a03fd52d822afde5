package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Page is the part of a provider response the detectors inspect.
type Page struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether a search provider answered with an anti-bot
// challenge instead of results, and names the source.
type Detector func(p Page) (detected bool, source string)

// DefaultDetectors returns the detectors applied to every provider response.
func DefaultDetectors() []Detector {
	return []Detector{
		detectDuckDuckGo,
		detectGoogle,
		detectCloudflare,
		detectAkamai,
	}
}

// Analyze runs p through detectors and returns the first hit.
func Analyze(p Page, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if detected, source := d(p); detected {
			return true, source
		}
	}
	return false, ""
}

func header(h http.Header, key string) string {
	if h == nil {
		return ""
	}
	return h.Get(key)
}

// detectDuckDuckGo spots the "anomaly" interstitial the HTML endpoint serves
// to clients it suspects of automation. It usually arrives as 202 or 403.
func detectDuckDuckGo(p Page) (bool, string) {
	if p.StatusCode != http.StatusAccepted && p.StatusCode != http.StatusForbidden && p.StatusCode != http.StatusOK {
		return false, ""
	}
	if bytes.Contains(p.Body, []byte("anomaly-modal")) ||
		bytes.Contains(p.Body, []byte("bots use DuckDuckGo too")) {
		return true, "DuckDuckGo"
	}
	return false, ""
}

// detectGoogle spots the /sorry/ unusual-traffic page.
func detectGoogle(p Page) (bool, string) {
	if strings.Contains(header(p.Header, "Location"), "/sorry/") {
		return true, "Google"
	}
	if bytes.Contains(p.Body, []byte("Our systems have detected unusual traffic")) {
		return true, "Google"
	}
	return false, ""
}

func detectCloudflare(p Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden && p.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(p.Header, "Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(p.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(p.Body, []byte("cf-turnstile")) ||
		bytes.Contains(p.Body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}

func detectAkamai(p Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(p.Header, "Server")), "akamai") {
		return true, "Akamai"
	}
	if bytes.Contains(p.Body, []byte("Reference #")) && bytes.Contains(p.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}
