package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FailKind discriminates extraction failures so callers never have to
// pattern-match error text themselves.
type FailKind int

const (
	FailUnknown FailKind = iota
	FailNetwork
	FailUnavailable
	FailPrivate
	FailGeoBlocked
	FailAccessDenied
)

func (k FailKind) String() string {
	switch k {
	case FailNetwork:
		return "network"
	case FailUnavailable:
		return "unavailable"
	case FailPrivate:
		return "private"
	case FailGeoBlocked:
		return "geo-blocked"
	case FailAccessDenied:
		return "access-denied"
	default:
		return "unknown"
	}
}

// Error is a classified extraction failure. Op is "probe" or "fetch".
type Error struct {
	Kind   FailKind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s failed (%s): %s", e.Op, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from any error, defaulting to FailUnknown.
func KindOf(err error) FailKind {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Kind
	}
	return FailUnknown
}

// classifier patterns observed in yt-dlp output. Checked in order; the first
// match wins, so the more specific content errors come before the network
// catch-alls.
var failPatterns = []struct {
	needle string
	kind   FailKind
}{
	{"http error 403", FailAccessDenied},
	{"access denied", FailAccessDenied},
	{"sign in to confirm", FailAccessDenied},
	{"private video", FailPrivate},
	{"this video is private", FailPrivate},
	{"video unavailable", FailUnavailable},
	{"content isn't available", FailUnavailable},
	{"has been removed", FailUnavailable},
	{"404", FailUnavailable},
	{"available in your country", FailGeoBlocked},
	{"geo restricted", FailGeoBlocked},
	{"geo-restricted", FailGeoBlocked},
	{"timed out", FailNetwork},
	{"timeout", FailNetwork},
	{"connection refused", FailNetwork},
	{"connection reset", FailNetwork},
	{"temporary failure in name resolution", FailNetwork},
	{"unable to download webpage", FailNetwork},
	{"network is unreachable", FailNetwork},
}

// classify turns a failed yt-dlp invocation into a discriminated Error.
func classify(op, output string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: FailNetwork, Op: op, Detail: "operation timed out", Err: err}
	}

	lower := strings.ToLower(output)
	for _, p := range failPatterns {
		if strings.Contains(lower, p.needle) {
			return &Error{Kind: p.kind, Op: op, Detail: firstLine(output), Err: err}
		}
	}
	return &Error{Kind: FailUnknown, Op: op, Detail: firstLine(output), Err: err}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
