// Package platform decides whether a URL belongs to a supported media source.
package platform

import (
	"regexp"
	"strings"
)

// UnknownLabel is returned for URLs whose host is not in the supported table.
const UnknownLabel = "❓ Unknown"

// entry order matters: the first host substring found in the URL wins.
var supported = []struct {
	host  string
	label string
}{
	{"youtube.com", "🎬 YouTube"},
	{"youtu.be", "🎬 YouTube"},
	{"tiktok.com", "🎵 TikTok"},
	{"instagram.com", "📸 Instagram"},
	{"facebook.com", "📚 Facebook"},
	{"twitter.com", "🐦 Twitter"},
	{"x.com", "🐦 X (Twitter)"},
	{"soundcloud.com", "🎵 SoundCloud"},
	{"open.spotify.com", "🎧 Spotify"},
	{"vimeo.com", "🎥 Vimeo"},
}

// urlPattern mirrors the classic scheme-plus-reserved-punctuation grammar:
// http(s) scheme followed by alphanumerics, reserved punctuation and %XX escapes.
var urlPattern = regexp.MustCompile(`https?://(?:[a-zA-Z0-9$\-_@.&+!*(),/=?#:~]|%[0-9a-fA-F]{2})+`)

// IsSupported reports whether any known host substring appears in the URL.
func IsSupported(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range supported {
		if strings.Contains(lower, p.host) {
			return true
		}
	}
	return false
}

// Label returns the display name of the platform hosting the URL, or
// UnknownLabel when no host substring matches.
func Label(rawURL string) string {
	lower := strings.ToLower(rawURL)
	for _, p := range supported {
		if strings.Contains(lower, p.host) {
			return p.label
		}
	}
	return UnknownLabel
}

// Labels returns the display names of all supported platforms, in table order,
// for rendering the "supported platforms" list.
func Labels() []string {
	names := make([]string, 0, len(supported))
	seen := make(map[string]bool, len(supported))
	for _, p := range supported {
		if seen[p.label] {
			continue
		}
		seen[p.label] = true
		names = append(names, p.label)
	}
	return names
}

// AudioOnly reports whether the URL's source serves no video payload, so
// only an audio download can be offered.
func AudioOnly(rawURL string) bool {
	return strings.Contains(strings.ToLower(rawURL), "open.spotify.com")
}

// ExtractFirstURL scans free-form text for the first well-formed http(s) URL.
func ExtractFirstURL(text string) (string, bool) {
	match := urlPattern.FindString(text)
	if match == "" {
		return "", false
	}
	return match, true
}
