package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// YTDLP drives the yt-dlp binary.
type YTDLP struct {
	path         string
	cookiesPath  string
	probeTimeout time.Duration
	probeRetries int
}

func NewYTDLP(path, cookiesPath string, probeTimeout time.Duration, probeRetries int) *YTDLP {
	if path == "" {
		path = "yt-dlp"
	}
	if probeTimeout <= 0 {
		probeTimeout = 30 * time.Second
	}
	return &YTDLP{
		path:         path,
		cookiesPath:  cookiesPath,
		probeTimeout: probeTimeout,
		probeRetries: probeRetries,
	}
}

// probeInfo is the subset of yt-dlp's -J output the bot renders.
type probeInfo struct {
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Uploader  string  `json:"uploader"`
	ViewCount int64   `json:"view_count"`
	Thumbnail string  `json:"thumbnail"`
	Formats   []struct {
		FormatID   string `json:"format_id"`
		Ext        string `json:"ext"`
		Resolution string `json:"resolution"`
		FormatNote string `json:"format_note"`
	} `json:"formats"`
}

// Probe runs a read-only metadata query. No payload bytes are downloaded.
// Network failures are retried within the configured budget; content
// failures (private, removed, geo-blocked) are returned immediately.
func (d *YTDLP) Probe(ctx context.Context, url string) (Metadata, error) {
	var lastErr error
	for attempt := 0; attempt <= d.probeRetries; attempt++ {
		meta, err := d.probeOnce(ctx, url)
		if err == nil {
			return meta, nil
		}
		lastErr = err
		if KindOf(err) != FailNetwork {
			break
		}
		log.Printf("probe attempt %d for %s failed: %v", attempt+1, url, err)
	}
	return Metadata{}, lastErr
}

func (d *YTDLP) probeOnce(ctx context.Context, url string) (Metadata, error) {
	actx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	args := []string{"-J", "--no-playlist", "--no-warnings"}
	args = d.appendCookies(args)
	args = append(args, url)

	cmd := exec.CommandContext(actx, d.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if actx.Err() == context.DeadlineExceeded {
			return Metadata{}, classify("probe", stderr.String(), actx.Err())
		}
		return Metadata{}, classify("probe", stderr.String(), err)
	}

	var info probeInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return Metadata{}, &Error{Kind: FailUnknown, Op: "probe", Detail: "unreadable metadata", Err: err}
	}
	return info.toMetadata(), nil
}

func (p probeInfo) toMetadata() Metadata {
	meta := Metadata{
		Title:     p.Title,
		Duration:  int(p.Duration),
		Uploader:  p.Uploader,
		ViewCount: p.ViewCount,
		Thumbnail: p.Thumbnail,
	}
	for _, f := range p.Formats {
		meta.Encodings = append(meta.Encodings, Encoding{
			ID:         f.FormatID,
			Ext:        f.Ext,
			Resolution: f.Resolution,
			Note:       f.FormatNote,
		})
	}
	return meta
}

// Fetch downloads the media into dir, choosing the highest-quality encoding
// for the requested format. Progress lines from yt-dlp are parsed and fed to
// the callback at the tool's own cadence.
func (d *YTDLP) Fetch(ctx context.Context, url string, format Format, dir string, progress ProgressFunc) (string, error) {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--newline",
		"--restrict-filenames",
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
	}
	if format == FormatAudio {
		args = append(args,
			"-f", "bestaudio/best",
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", "192K",
		)
	} else {
		args = append(args, "-f", "best[ext=mp4]/best")
	}
	args = d.appendCookies(args)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, d.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &Error{Kind: FailUnknown, Op: "fetch", Err: err}
	}

	if err := cmd.Start(); err != nil {
		return "", &Error{Kind: FailUnknown, Op: "fetch", Err: err}
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if p, ok := parseProgressLine(scanner.Text()); ok && progress != nil {
			progress(p)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", classify("fetch", stderr.String(), ctx.Err())
		}
		return "", classify("fetch", stderr.String(), err)
	}

	path, err := newestFile(dir)
	if err != nil {
		return "", &Error{Kind: FailUnknown, Op: "fetch", Detail: "no output file", Err: err}
	}
	return path, nil
}

func (d *YTDLP) appendCookies(args []string) []string {
	if d.cookiesPath != "" {
		return append(args, "--cookies", d.cookiesPath)
	}
	return args
}

// progressLine matches yt-dlp --newline output such as
// "[download]  42.1% of 9.96MiB at 2.51MiB/s ETA 00:02".
var progressLine = regexp.MustCompile(`^\[download\]\s+([0-9.]+)% of\s+~?\s*\S+(?:\s+at\s+(\S+))?`)

func parseProgressLine(line string) (Progress, bool) {
	m := progressLine.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Progress{}, false
	}
	rate := m[2]
	if rate == "" || rate == "Unknown" {
		rate = "?"
	}
	return Progress{Percent: percent, Rate: rate}, true
}

// newestFile returns the most recently modified regular file in dir,
// ignoring yt-dlp's intermediate artifacts.
func newestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var newest string
	var newestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, name)
			newestMod = info.ModTime()
		}
	}

	if newest == "" {
		return "", fmt.Errorf("no downloaded file found in %s", dir)
	}
	return newest, nil
}
