package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abdualzizsm/bot2/internal/extract"
	"github.com/Abdualzizsm/bot2/internal/token"
)

type fakeAdapter struct {
	meta      extract.Metadata
	probeErr  error
	fetchErr  error
	fileName  string
	fileSize  int
	samples   []extract.Progress
	unblock   chan struct{} // when non-nil, Fetch waits on it
	fetchedMu sync.Mutex
	fetched   int
}

func (f *fakeAdapter) Probe(ctx context.Context, url string) (extract.Metadata, error) {
	return f.meta, f.probeErr
}

func (f *fakeAdapter) Fetch(ctx context.Context, url string, format extract.Format, dir string, progress extract.ProgressFunc) (string, error) {
	f.fetchedMu.Lock()
	f.fetched++
	f.fetchedMu.Unlock()
	if f.unblock != nil {
		<-f.unblock
	}
	for _, p := range f.samples {
		progress(p)
	}
	if f.fetchErr != nil {
		return "", f.fetchErr
	}
	name := f.fileName
	if name == "" {
		name = "clip.mp4"
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, f.fileSize), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeAdapter) fetchCount() int {
	f.fetchedMu.Lock()
	defer f.fetchedMu.Unlock()
	return f.fetched
}

type fakeNotifier struct {
	mu            sync.Mutex
	edits         []string
	videos        []string
	audios        []string
	audioCaptions []string
	sendErr       error
}

func (n *fakeNotifier) EditText(chatID int64, messageID int, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.edits = append(n.edits, text)
	return nil
}

func (n *fakeNotifier) SendVideo(chatID int64, path, caption string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.videos = append(n.videos, path)
	return nil
}

func (n *fakeNotifier) SendAudio(chatID int64, path, caption string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.audios = append(n.audios, path)
	n.audioCaptions = append(n.audioCaptions, caption)
	return nil
}

func (n *fakeNotifier) progressEdits() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.edits {
		if strings.HasPrefix(e, "⬇️") {
			count++
		}
	}
	return count
}

func newTestOrchestrator(t *testing.T, a extract.Adapter, n Notifier, maxBytes int64) (*Orchestrator, *token.Registry, string) {
	t.Helper()
	root := t.TempDir()
	reg := token.NewRegistry(token.DefaultCapacity)
	return NewOrchestrator(reg, a, n, root, maxBytes, time.Hour), reg, root
}

func TestDownloadSuccessCleansUp(t *testing.T) {
	adapter := &fakeAdapter{fileSize: 1024}
	notifier := &fakeNotifier{}
	o, reg, root := newTestOrchestrator(t, adapter, notifier, 50*1024*1024)

	tok := reg.Put("https://youtu.be/abc")
	key := Key{ChatID: 7, MessageID: 11}
	if err := o.Download(context.Background(), key, tok, extract.FormatVideo); err != nil {
		t.Fatalf("Download: %v", err)
	}

	if len(notifier.videos) != 1 {
		t.Errorf("expected 1 delivered video, got %d", len(notifier.videos))
	}
	if _, err := os.Stat(filepath.Join(root, key.DirName())); !os.IsNotExist(err) {
		t.Error("scratch directory should be removed after success")
	}
	if o.Completed() != 1 || o.Failed() != 0 {
		t.Errorf("counters = %d completed / %d failed", o.Completed(), o.Failed())
	}
	if o.Active() != 0 {
		t.Errorf("Active() = %d after completion", o.Active())
	}
}

func TestDownloadAudioUsesAudioSend(t *testing.T) {
	adapter := &fakeAdapter{fileName: "song.mp3", fileSize: 512}
	notifier := &fakeNotifier{}
	o, reg, _ := newTestOrchestrator(t, adapter, notifier, 50*1024*1024)

	tok := reg.Put("https://soundcloud.com/x/y")
	if err := o.Download(context.Background(), Key{ChatID: 1, MessageID: 2}, tok, extract.FormatAudio); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(notifier.audios) != 1 || len(notifier.videos) != 0 {
		t.Errorf("audio format should go through SendAudio, got %d audio / %d video", len(notifier.audios), len(notifier.videos))
	}
}

func TestDownloadDeliversByProducedFile(t *testing.T) {
	// A source that only serves audio hands back an mp3 even when video was
	// requested; delivery must follow the file, not the button.
	adapter := &fakeAdapter{fileName: "track.mp3", fileSize: 256}
	notifier := &fakeNotifier{}
	o, reg, _ := newTestOrchestrator(t, adapter, notifier, 50*1024*1024)

	tok := reg.Put("https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC")
	if err := o.Download(context.Background(), Key{ChatID: 2, MessageID: 3}, tok, extract.FormatVideo); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(notifier.videos) != 0 || len(notifier.audios) != 1 {
		t.Fatalf("mp3 output must go through SendAudio, got %d video / %d audio", len(notifier.videos), len(notifier.audios))
	}
	if !strings.Contains(notifier.audioCaptions[0], "mp3") {
		t.Errorf("caption %q should describe audio", notifier.audioCaptions[0])
	}
}

func TestDownloadDeliveryFailureCleansUp(t *testing.T) {
	adapter := &fakeAdapter{fileSize: 64}
	notifier := &fakeNotifier{sendErr: errors.New("request entity too large")}
	o, reg, root := newTestOrchestrator(t, adapter, notifier, 50*1024*1024)

	tok := reg.Put("https://youtu.be/abc")
	key := Key{ChatID: 8, MessageID: 9}
	err := o.Download(context.Background(), key, tok, extract.FormatVideo)
	if err == nil {
		t.Fatal("delivery failure must surface as an error")
	}
	if _, statErr := os.Stat(filepath.Join(root, key.DirName())); !os.IsNotExist(statErr) {
		t.Error("scratch directory should be removed after a failed delivery")
	}
	if o.Failed() != 1 || o.Completed() != 0 {
		t.Errorf("counters = %d completed / %d failed", o.Completed(), o.Failed())
	}
}

func TestDownloadOversizeNeverDelivered(t *testing.T) {
	adapter := &fakeAdapter{fileSize: 2048}
	notifier := &fakeNotifier{}
	o, reg, root := newTestOrchestrator(t, adapter, notifier, 1024)

	tok := reg.Put("https://youtu.be/big")
	key := Key{ChatID: 3, MessageID: 4}
	err := o.Download(context.Background(), key, tok, extract.FormatVideo)

	var tooBig *TooLargeError
	if !errors.As(err, &tooBig) {
		t.Fatalf("expected TooLargeError, got %v", err)
	}
	if tooBig.Size != 2048 || tooBig.Limit != 1024 {
		t.Errorf("TooLargeError = %+v", tooBig)
	}
	if len(notifier.videos) != 0 || len(notifier.audios) != 0 {
		t.Error("oversize file must never be delivered")
	}
	if _, err := os.Stat(filepath.Join(root, key.DirName())); !os.IsNotExist(err) {
		t.Error("scratch directory should be removed after oversize rejection")
	}
	if o.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", o.Failed())
	}
}

func TestDownloadFetchErrorCleansUp(t *testing.T) {
	adapter := &fakeAdapter{fetchErr: &extract.Error{Kind: extract.FailPrivate, Op: "fetch"}}
	notifier := &fakeNotifier{}
	o, reg, root := newTestOrchestrator(t, adapter, notifier, 50*1024*1024)

	tok := reg.Put("https://instagram.com/p/xyz")
	key := Key{ChatID: 5, MessageID: 6}
	err := o.Download(context.Background(), key, tok, extract.FormatVideo)
	if extract.KindOf(err) != extract.FailPrivate {
		t.Fatalf("expected private failure to propagate, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, key.DirName())); !os.IsNotExist(err) {
		t.Error("scratch directory should be removed after a failed fetch")
	}
}

func TestDownloadUnknownToken(t *testing.T) {
	adapter := &fakeAdapter{}
	o, _, _ := newTestOrchestrator(t, adapter, &fakeNotifier{}, 1024)

	err := o.Download(context.Background(), Key{ChatID: 1, MessageID: 1}, "deadbeef", extract.FormatVideo)
	if !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if adapter.fetchCount() != 0 {
		t.Error("unknown token must not reach the fetcher")
	}
}

func TestDownloadRejectsConcurrentSameKey(t *testing.T) {
	adapter := &fakeAdapter{fileSize: 16, unblock: make(chan struct{})}
	o, reg, _ := newTestOrchestrator(t, adapter, &fakeNotifier{}, 1024)

	tok := reg.Put("https://youtu.be/slow")
	key := Key{ChatID: 9, MessageID: 9}

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- o.Download(context.Background(), key, tok, extract.FormatVideo)
	}()

	// Wait for the first session to enter Fetch.
	for adapter.fetchCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	if err := o.Download(context.Background(), key, tok, extract.FormatVideo); !errors.Is(err, ErrBusy) {
		t.Errorf("second download on the same key: got %v, want ErrBusy", err)
	}

	close(adapter.unblock)
	if err := <-firstDone; err != nil {
		t.Fatalf("first download: %v", err)
	}
}

func TestProgressEditsAreThrottled(t *testing.T) {
	samples := make([]extract.Progress, 6)
	for i := range samples {
		samples[i] = extract.Progress{Percent: float64(i+1) * 15, Rate: "1.00MiB/s"}
	}
	adapter := &fakeAdapter{fileSize: 16, samples: samples}
	notifier := &fakeNotifier{}
	o, reg, _ := newTestOrchestrator(t, adapter, notifier, 1024)

	tok := reg.Put("https://youtu.be/abc")
	if err := o.Download(context.Background(), Key{ChatID: 1, MessageID: 2}, tok, extract.FormatVideo); err != nil {
		t.Fatalf("Download: %v", err)
	}

	// progressEvery is an hour in tests, so only the first sample edits.
	if got := notifier.progressEdits(); got != 1 {
		t.Errorf("expected exactly 1 progress edit, got %d", got)
	}
}

func TestAnalyzeRegistersToken(t *testing.T) {
	adapter := &fakeAdapter{meta: extract.Metadata{Title: "Clip"}}
	o, reg, _ := newTestOrchestrator(t, adapter, &fakeNotifier{}, 1024)

	meta, tok, err := o.Analyze(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if meta.Title != "Clip" {
		t.Errorf("metadata title = %q", meta.Title)
	}
	url, ok := reg.Resolve(tok)
	if !ok || url != "https://youtu.be/abc" {
		t.Errorf("token %q resolves to %q (ok=%v)", tok, url, ok)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"expired", ErrUnknownToken, "expired"},
		{"busy", ErrBusy, "already running"},
		{"too large", &TooLargeError{Size: 60 << 20, Limit: 50 << 20}, "too large"},
		{"network", &extract.Error{Kind: extract.FailNetwork}, "Network"},
		{"private", &extract.Error{Kind: extract.FailPrivate}, "private"},
		{"geo", &extract.Error{Kind: extract.FailGeoBlocked}, "region"},
		{"fallback", errors.New("boom"), "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("UserMessage(%v) = %q, want substring %q", tt.err, got, tt.want)
			}
		})
	}
}
