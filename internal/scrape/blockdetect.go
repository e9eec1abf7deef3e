package scrape

import (
	"net/http"
	"strings"
)

// BlockType labels a response that looks like an anti-bot interstitial
// rather than the requested page.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// interstitialMaxBytes bounds the body size of a challenge page. Larger
// pages carrying captcha markers are real pages with a form on them.
const interstitialMaxBytes = 8 * 1024

// DetectBlock labels a response. It never fails a fetch; a blocked static
// page is still handed to the extractor and the rendered tiers get their
// turn afterwards.
func DetectBlock(status int, header http.Header, body []byte) BlockType {
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		if header.Get("cf-ray") != "" || header.Get("cf-mitigated") != "" ||
			strings.EqualFold(header.Get("server"), "cloudflare") {
			return BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cf-challenge") {
		return BlockCloudflare
	}

	if len(body) > interstitialMaxBytes {
		return BlockNone
	}

	if strings.Contains(lower, "captcha") {
		return BlockCaptcha
	}

	if strings.Contains(lower, "<noscript") && strings.Contains(lower, "enable javascript") {
		return BlockJSShell
	}
	if strings.Contains(lower, `http-equiv="refresh"`) {
		return BlockJSShell
	}
	return BlockNone
}
