package extract

import (
	"context"
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	execErr := errors.New("exit status 1")

	tests := []struct {
		name   string
		output string
		want   FailKind
	}{
		{"forbidden", "ERROR: unable to download video data: HTTP Error 403: Forbidden", FailAccessDenied},
		{"private", "ERROR: [youtube] ABC: Private video. Sign in if you've been granted access", FailPrivate},
		{"removed", "ERROR: [youtube] ABC: Video unavailable. This video has been removed by the uploader", FailUnavailable},
		{"geo", "ERROR: The uploader has not made this video available in your country", FailGeoBlocked},
		{"dns", "ERROR: Unable to download webpage: <urlopen error [Errno -3] Temporary failure in name resolution>", FailNetwork},
		{"mystery", "ERROR: something nobody has seen before", FailUnknown},
		{"empty output", "", FailUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("fetch", tt.output, execErr)
			if err.Kind != tt.want {
				t.Errorf("classify(%q) kind = %s, want %s", tt.output, err.Kind, tt.want)
			}
			if !errors.Is(err, execErr) {
				t.Error("classified error should wrap the original error")
			}
		})
	}
}

func TestClassifyTimeout(t *testing.T) {
	err := classify("probe", "", context.DeadlineExceeded)
	if err.Kind != FailNetwork {
		t.Errorf("deadline exceeded should classify as network, got %s", err.Kind)
	}
}

func TestKindOf(t *testing.T) {
	wrapped := &Error{Kind: FailPrivate, Op: "fetch"}
	if got := KindOf(wrapped); got != FailPrivate {
		t.Errorf("KindOf = %s, want %s", got, FailPrivate)
	}
	if got := KindOf(errors.New("plain")); got != FailUnknown {
		t.Errorf("KindOf(plain error) = %s, want %s", got, FailUnknown)
	}
	if got := KindOf(nil); got != FailUnknown {
		t.Errorf("KindOf(nil) = %s, want %s", got, FailUnknown)
	}
}

func TestSpotifyTrackURLPattern(t *testing.T) {
	tests := []struct {
		url string
		id  string
	}{
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC"},
		{"https://open.spotify.com/intl-de/track/4uLU6hMCjMI75M1A2tKUQC?si=xyz", "4uLU6hMCjMI75M1A2tKUQC"},
		{"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", ""},
		{"https://youtube.com/watch?v=ABC", ""},
	}

	for _, tt := range tests {
		m := trackURLPattern.FindStringSubmatch(tt.url)
		if tt.id == "" {
			if m != nil {
				t.Errorf("%q should not match, got %v", tt.url, m)
			}
			continue
		}
		if m == nil || m[1] != tt.id {
			t.Errorf("%q: extracted %v, want id %q", tt.url, m, tt.id)
		}
	}
}
