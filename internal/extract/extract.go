// Package extract wraps the external yt-dlp binary behind a small adapter:
// read-only metadata probes and format-aware downloads with progress samples.
package extract

import "context"

// Format selects what the fetch operation should produce.
type Format string

const (
	FormatVideo Format = "video"
	FormatAudio Format = "audio"
)

// AudioExt is the container extension of extracted audio.
const AudioExt = ".mp3"

// Metadata is the ephemeral result of a probe; it is rendered once into a
// confirmation prompt and not retained.
type Metadata struct {
	Title     string
	Duration  int
	Uploader  string
	ViewCount int64
	Thumbnail string
	Encodings []Encoding
}

// Encoding describes one available representation of the media.
type Encoding struct {
	ID         string
	Ext        string
	Resolution string
	Note       string
}

// Progress is one sample of an in-flight download, reported at the
// underlying tool's own cadence.
type Progress struct {
	Percent float64
	Rate    string
}

// ProgressFunc receives progress samples. Implementations must not block.
type ProgressFunc func(Progress)

// Adapter is the media-extraction capability: probe metadata without
// downloading payload bytes, or fetch a file into a sink directory.
type Adapter interface {
	Probe(ctx context.Context, url string) (Metadata, error)
	Fetch(ctx context.Context, url string, format Format, dir string, progress ProgressFunc) (string, error)
}

// Service routes each URL to the extractor that understands it: Spotify
// links go through the Web API prober and come back as a search-backed
// audio fetch, everything else hits yt-dlp directly.
type Service struct {
	ytdlp   *YTDLP
	spotify *SpotifyProber
}

func NewService(ytdlp *YTDLP, spotify *SpotifyProber) *Service {
	return &Service{ytdlp: ytdlp, spotify: spotify}
}

func (s *Service) Probe(ctx context.Context, url string) (Metadata, error) {
	if s.spotify != nil && s.spotify.Handles(url) {
		return s.spotify.Probe(ctx, url)
	}
	return s.ytdlp.Probe(ctx, url)
}

func (s *Service) Fetch(ctx context.Context, url string, format Format, dir string, progress ProgressFunc) (string, error) {
	if s.spotify != nil && s.spotify.Handles(url) {
		// Spotify does not serve payload bytes; resolve the track to a
		// search query and let yt-dlp fetch the audio.
		meta, err := s.spotify.Probe(ctx, url)
		if err != nil {
			return "", err
		}
		return s.ytdlp.Fetch(ctx, s.spotify.SearchQuery(meta), FormatAudio, dir, progress)
	}
	return s.ytdlp.Fetch(ctx, url, format, dir, progress)
}
