package ytdlp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"time"

	"nugget/internal/nugget"
	"nugget/internal/segment"
	"nugget/internal/services"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithTimeout bounds each yt-dlp invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

const defaultTimeout = 60 * time.Second

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// New constructs a yt-dlp client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: defaultTimeout,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// metadata mirrors the subset of yt-dlp's --dump-json output we consume.
type metadata struct {
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
	Thumbnail  string  `json:"thumbnail"`
	Uploader   string  `json:"uploader"`
	Channel    string  `json:"channel"`
}

// FetchMetadata resolves one video reference into its metadata without
// downloading any media.
func (c *Client) FetchMetadata(ctx context.Context, reference string) (nugget.VideoInfo, error) {
	var info nugget.VideoInfo
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return info, fmt.Errorf("%w: video reference required", services.ErrValidation)
	}

	args := []string{"--dump-json", "--no-download", "--no-playlist", "--no-warnings", reference}
	var payload strings.Builder
	err := c.run(ctx, args, func(line string) {
		payload.WriteString(line)
		payload.WriteByte('\n')
	})
	if err != nil {
		return info, services.Wrap(services.ErrFetch, "fetch", "metadata", "yt-dlp failed for "+reference, err)
	}

	var meta metadata
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload.String())), &meta); err != nil {
		return info, services.Wrap(services.ErrFetch, "fetch", "metadata", "parse yt-dlp output", err)
	}
	if meta.Duration <= 0 {
		return info, fmt.Errorf("%w: fetch: metadata: %q reports no duration (live stream?)", services.ErrFetch, reference)
	}

	info.Title = strings.TrimSpace(meta.Title)
	if info.Title == "" {
		info.Title = titleFromReference(reference)
	}
	info.Duration = meta.Duration
	info.URL = meta.WebpageURL
	if info.URL == "" {
		info.URL = reference
	}
	info.Thumbnail = meta.Thumbnail
	info.Uploader = meta.Uploader
	if info.Uploader == "" {
		info.Uploader = meta.Channel
	}
	return info, nil
}

// titleFromReference derives a display title from the reference itself when
// the source reports none, using the last path segment of the URL.
func titleFromReference(reference string) string {
	candidate := reference
	if parsed, err := url.Parse(reference); err == nil && parsed.Path != "" {
		candidate = strings.Trim(parsed.Path, "/")
	}
	if idx := strings.LastIndex(candidate, "/"); idx >= 0 {
		candidate = candidate[idx+1:]
	}
	return segment.CleanTitle(candidate)
}

// ExpandPlaylist lists the video URLs contained in a playlist reference,
// preserving playlist order.
func (c *Client) ExpandPlaylist(ctx context.Context, reference string) ([]string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: playlist reference required", services.ErrValidation)
	}

	args := []string{"--flat-playlist", "--print", "url", "--no-warnings", reference}
	var urls []string
	err := c.run(ctx, args, func(line string) {
		line = strings.TrimSpace(line)
		if line != "" {
			urls = append(urls, line)
		}
	})
	if err != nil {
		return nil, services.Wrap(services.ErrFetch, "fetch", "playlist", "yt-dlp failed for "+reference, err)
	}
	return urls, nil
}

// DownloadAudio extracts the audio track of one video into destDir as WAV
// and returns the file path. Used only when transcription is enabled.
func (c *Client) DownloadAudio(ctx context.Context, reference, destDir string) (string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", fmt.Errorf("%w: video reference required", services.ErrValidation)
	}
	if strings.TrimSpace(destDir) == "" {
		return "", fmt.Errorf("%w: destination directory required", services.ErrValidation)
	}

	args := []string{
		"--extract-audio",
		"--audio-format", "wav",
		"--no-playlist",
		"--no-warnings",
		"--output", destDir + "/%(id)s.%(ext)s",
		"--print", "after_move:filepath",
		reference,
	}
	var path string
	err := c.run(ctx, args, func(line string) {
		line = strings.TrimSpace(line)
		if line != "" {
			path = line
		}
	})
	if err != nil {
		return "", services.Wrap(services.ErrFetch, "transcribe", "audio", "yt-dlp failed for "+reference, err)
	}
	if path == "" {
		return "", fmt.Errorf("%w: transcribe: audio: yt-dlp reported no output file for %q", services.ErrFetch, reference)
	}
	return path, nil
}

func (c *Client) run(ctx context.Context, args []string, onStdout func(string)) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.exec.Run(ctx, c.binary, args, onStdout)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 1024*1024), 8*1024*1024)
		for scanner.Scan() {
			if onStdout != nil {
				onStdout(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			scanErr = err
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, lastLine(msg))
		}
		return err
	}
	return scanErr
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
