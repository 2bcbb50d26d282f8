// Package youtube resolves video references and downloads their audio.
package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"notetube/internal/domain"
)

// videoIDPattern matches an 11-character ID after "v=" or a path separator,
// rejecting longer tokens such as channel IDs.
var videoIDPattern = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})(?:[^0-9A-Za-z_-]|$)`)

// VideoReference is a validated video URL and its canonical ID.
type VideoReference struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// WatchURL returns the canonical watch URL for the referenced video.
func (r VideoReference) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + r.ID
}

// NewVideoReference validates rawURL and extracts its video ID.
func NewVideoReference(rawURL string) (VideoReference, error) {
	id, err := ExtractVideoID(rawURL)
	if err != nil {
		return VideoReference{}, err
	}
	return VideoReference{URL: strings.TrimSpace(rawURL), ID: id}, nil
}

// ExtractVideoID returns the 11-character ID from watch, short, embed,
// shorts and live URL shapes.
func ExtractVideoID(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: url is empty", domain.ErrInvalidReference)
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidReference, trimmed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidReference, parsed.Scheme)
	}
	if !isYouTubeHost(parsed.Hostname()) {
		return "", fmt.Errorf("%w: %q is not a YouTube host", domain.ErrInvalidReference, parsed.Hostname())
	}

	target := parsed.EscapedPath()
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}

	match := videoIDPattern.FindStringSubmatch(target)
	if match == nil {
		return "", fmt.Errorf("%w: no video id in %s", domain.ErrInvalidReference, trimmed)
	}
	return match[1], nil
}

func isYouTubeHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, base := range []string{"youtube.com", "youtu.be", "youtube-nocookie.com"} {
		if host == base || strings.HasSuffix(host, "."+base) {
			return true
		}
	}
	return false
}
