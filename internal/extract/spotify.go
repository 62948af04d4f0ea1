package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/zmb3/spotify/v2"
)

// trackURLPattern picks the track ID out of an open.spotify.com link,
// tolerating the intl-xx path segment some shares carry.
var trackURLPattern = regexp.MustCompile(`open\.spotify\.com/(?:intl-[a-z]+/)?track/([A-Za-z0-9]+)`)

// SpotifyProber resolves Spotify track links to metadata through the Web
// API. Spotify serves no payload bytes, so downloads are redirected to a
// yt-dlp search built from the track's artist and title.
type SpotifyProber struct {
	client *spotify.Client
}

func NewSpotifyProber(client *spotify.Client) *SpotifyProber {
	if client == nil {
		return nil
	}
	return &SpotifyProber{client: client}
}

// Handles reports whether the URL is a Spotify track link.
func (s *SpotifyProber) Handles(url string) bool {
	return trackURLPattern.MatchString(url)
}

func (s *SpotifyProber) Probe(ctx context.Context, url string) (Metadata, error) {
	m := trackURLPattern.FindStringSubmatch(url)
	if m == nil {
		return Metadata{}, &Error{Kind: FailUnavailable, Op: "probe", Detail: "not a spotify track link"}
	}

	track, err := s.client.GetTrack(ctx, spotify.ID(m[1]))
	if err != nil {
		return Metadata{}, classifySpotify(err)
	}
	return trackMetadata(track), nil
}

func trackMetadata(track *spotify.FullTrack) Metadata {
	meta := Metadata{
		Title:    track.Name,
		Duration: int(track.Duration) / 1000, // Duration is Numeric milliseconds
		Uploader: artistNames(track),
	}
	if len(track.Album.Images) > 0 {
		meta.Thumbnail = track.Album.Images[0].URL
	}
	return meta
}

// SearchQuery builds the yt-dlp query that stands in for the track.
func (s *SpotifyProber) SearchQuery(meta Metadata) string {
	return fmt.Sprintf("ytsearch1:%s %s", meta.Uploader, meta.Title)
}

func artistNames(track *spotify.FullTrack) string {
	names := make([]string, 0, len(track.Artists))
	for _, a := range track.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func classifySpotify(err error) *Error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			return &Error{Kind: FailUnavailable, Op: "probe", Detail: apiErr.Message, Err: err}
		case http.StatusForbidden, http.StatusUnauthorized:
			return &Error{Kind: FailAccessDenied, Op: "probe", Detail: apiErr.Message, Err: err}
		}
	}
	return &Error{Kind: FailNetwork, Op: "probe", Err: err}
}
