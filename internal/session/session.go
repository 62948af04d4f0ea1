// Package session runs one download from button press to delivered file:
// resolve the token, fetch into a scratch directory, validate the size,
// hand the file to the notifier and always tear the directory down.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Abdualzizsm/bot2/internal/extract"
	"github.com/Abdualzizsm/bot2/internal/platform"
	"github.com/Abdualzizsm/bot2/internal/token"
)

// State is the lifecycle position of a single download session.
type State int

const (
	StateIdle State = iota
	StateAnalyzing
	StateAwaitingSelection
	StateDownloading
	StateValidating
	StateDelivering
	StateCleanedUp
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnalyzing:
		return "analyzing"
	case StateAwaitingSelection:
		return "awaiting_selection"
	case StateDownloading:
		return "downloading"
	case StateValidating:
		return "validating"
	case StateDelivering:
		return "delivering"
	case StateCleanedUp:
		return "cleaned_up"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Key identifies a session by the chat and the status message the bot is
// editing for it. One chat can run several sessions on different messages.
type Key struct {
	ChatID    int64
	MessageID int
}

// DirName is the per-session scratch directory, unique per key.
func (k Key) DirName() string {
	return fmt.Sprintf("download_%d_%d", k.ChatID, k.MessageID)
}

// Notifier is the slice of the chat transport the orchestrator needs.
type Notifier interface {
	EditText(chatID int64, messageID int, text string) error
	SendVideo(chatID int64, path, caption string) error
	SendAudio(chatID int64, path, caption string) error
}

var (
	// ErrUnknownToken means the callback token is not in the registry,
	// usually because it was evicted or the process restarted.
	ErrUnknownToken = errors.New("session: unknown or expired token")

	// ErrBusy means a session is already running for this key.
	ErrBusy = errors.New("session: download already in progress")
)

// TooLargeError is returned when a fetched file exceeds the delivery ceiling.
type TooLargeError struct {
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("session: file is %d bytes, limit %d", e.Size, e.Limit)
}

// Orchestrator owns the scratch root and fans downloads out one goroutine
// per session, with at most one live session per key.
type Orchestrator struct {
	registry      *token.Registry
	adapter       extract.Adapter
	notifier      Notifier
	root          string
	maxBytes      int64
	progressEvery time.Duration

	mu     sync.Mutex
	active map[Key]State

	completed atomic.Int64
	failed    atomic.Int64
}

func NewOrchestrator(reg *token.Registry, adapter extract.Adapter, notifier Notifier, root string, maxBytes int64, progressEvery time.Duration) *Orchestrator {
	return &Orchestrator{
		registry:      reg,
		adapter:       adapter,
		notifier:      notifier,
		root:          root,
		maxBytes:      maxBytes,
		progressEvery: progressEvery,
		active:        map[Key]State{},
	}
}

// Analyze probes the URL and registers it under a short token for the
// inline keyboard. The metadata is rendered once by the caller and dropped.
func (o *Orchestrator) Analyze(ctx context.Context, url string) (extract.Metadata, string, error) {
	meta, err := o.adapter.Probe(ctx, url)
	if err != nil {
		return extract.Metadata{}, "", err
	}
	return meta, o.registry.Put(url), nil
}

// Active reports how many sessions are currently running.
func (o *Orchestrator) Active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// Completed and Failed are lifetime counters for the status endpoint.
func (o *Orchestrator) Completed() int64 { return o.completed.Load() }
func (o *Orchestrator) Failed() int64    { return o.failed.Load() }

func (o *Orchestrator) setState(key Key, s State) {
	o.mu.Lock()
	o.active[key] = s
	o.mu.Unlock()
	log.Printf("session %s: %s", key.DirName(), s)
}

// Download runs the full session for a resolved token. It blocks until the
// file is delivered or the session fails; the scratch directory is removed
// on every path out.
func (o *Orchestrator) Download(ctx context.Context, key Key, tok string, format extract.Format) error {
	url, ok := o.registry.Resolve(tok)
	if !ok {
		return ErrUnknownToken
	}

	o.mu.Lock()
	if _, running := o.active[key]; running {
		o.mu.Unlock()
		return ErrBusy
	}
	o.active[key] = StateDownloading
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.active, key)
		o.mu.Unlock()
	}()

	err := o.run(ctx, key, url, format)
	if err != nil {
		o.failed.Add(1)
		o.setState(key, StateErrored)
		return err
	}
	o.completed.Add(1)
	return nil
}

func (o *Orchestrator) run(ctx context.Context, key Key, url string, format extract.Format) error {
	dir := filepath.Join(o.root, key.DirName())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("session: create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("session %s: cleanup failed: %v", key.DirName(), err)
		} else {
			o.setState(key, StateCleanedUp)
		}
	}()

	label := platform.Label(url)

	// Progress samples arrive at the tool's cadence; a small buffer and a
	// non-blocking send keep the fetch pipeline from ever stalling on a
	// slow Telegram edit.
	samples := make(chan extract.Progress, 8)
	consumerDone := make(chan struct{})
	go o.reportProgress(key, label, samples, consumerDone)

	path, fetchErr := o.adapter.Fetch(ctx, url, format, dir, func(p extract.Progress) {
		select {
		case samples <- p:
		default:
		}
	})
	close(samples)
	<-consumerDone

	if fetchErr != nil {
		return fetchErr
	}

	o.setState(key, StateValidating)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("session: stat downloaded file: %w", err)
	}
	if info.Size() > o.maxBytes {
		return &TooLargeError{Size: info.Size(), Limit: o.maxBytes}
	}

	o.setState(key, StateDelivering)
	if err := o.notifier.EditText(key.ChatID, key.MessageID, "📤 Uploading to Telegram..."); err != nil {
		log.Printf("session %s: status edit failed: %v", key.DirName(), err)
	}

	// Some sources (Spotify) always come back as audio regardless of the
	// requested format, so delivery follows the produced file.
	caption := fmt.Sprintf("🎬 %s · best quality", label)
	send := o.notifier.SendVideo
	if format == extract.FormatAudio || filepath.Ext(path) == extract.AudioExt {
		caption = fmt.Sprintf("🎵 %s · mp3 192kbps", label)
		send = o.notifier.SendAudio
	}
	if err := send(key.ChatID, path, caption); err != nil {
		return fmt.Errorf("session: deliver file: %w", err)
	}

	if err := o.notifier.EditText(key.ChatID, key.MessageID, "✅ Done! Enjoy."); err != nil {
		log.Printf("session %s: final edit failed: %v", key.DirName(), err)
	}
	return nil
}

// reportProgress is the single consumer of one session's sample stream. It
// edits the status message at most once per progressEvery.
func (o *Orchestrator) reportProgress(key Key, label string, samples <-chan extract.Progress, done chan<- struct{}) {
	defer close(done)
	var lastEdit time.Time
	for p := range samples {
		if time.Since(lastEdit) < o.progressEvery {
			continue
		}
		lastEdit = time.Now()
		text := fmt.Sprintf("⬇️ Downloading from %s... %.1f%%", label, p.Percent)
		if p.Rate != "" && p.Rate != "?" {
			text = fmt.Sprintf("%s (%s)", text, p.Rate)
		}
		if err := o.notifier.EditText(key.ChatID, key.MessageID, text); err != nil {
			log.Printf("session %s: progress edit failed: %v", key.DirName(), err)
		}
	}
}

// UserMessage turns an orchestrator error into the text shown in chat.
func UserMessage(err error) string {
	var tooBig *TooLargeError
	switch {
	case errors.Is(err, ErrUnknownToken):
		return "⌛ This link has expired. Please send the URL again."
	case errors.Is(err, ErrBusy):
		return "⏳ A download is already running for this message."
	case errors.As(err, &tooBig):
		return fmt.Sprintf("❌ File is too large for Telegram (%.1f MB, limit %.0f MB). Try the audio version.",
			float64(tooBig.Size)/(1024*1024), float64(tooBig.Limit)/(1024*1024))
	}

	switch extract.KindOf(err) {
	case extract.FailNetwork:
		return "🌐 Network problem while reaching the source. Please try again."
	case extract.FailUnavailable:
		return "🚫 This media is unavailable or was removed."
	case extract.FailPrivate:
		return "🔒 This media is private and cannot be downloaded."
	case extract.FailGeoBlocked:
		return "🌍 This media is not available in the server's region."
	case extract.FailAccessDenied:
		return "⛔ The source refused the request (access denied)."
	default:
		return "❌ Download failed. Please try a different link."
	}
}
