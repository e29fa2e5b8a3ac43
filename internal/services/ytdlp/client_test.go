package ytdlp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nugget/internal/services"
)

type stubExecutor struct {
	lines []string
	err   error
	args  []string
}

func (s *stubExecutor) Run(_ context.Context, _ string, args []string, onStdout func(string)) error {
	s.args = args
	for _, line := range s.lines {
		onStdout(line)
	}
	return s.err
}

func TestFetchMetadataParsesDumpJSON(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		`{"title":"Go Concurrency Patterns","duration":3120.0,"webpage_url":"https://example.com/watch?v=abc","thumbnail":"https://example.com/t.jpg","uploader":"GopherCon"}`,
	}}
	client, err := New("yt-dlp", WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	info, err := client.FetchMetadata(context.Background(), "https://example.com/watch?v=abc")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if info.Title != "Go Concurrency Patterns" || info.Duration != 3120 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Uploader != "GopherCon" {
		t.Fatalf("uploader not mapped: %+v", info)
	}
	for _, flag := range []string{"--dump-json", "--no-download", "--no-playlist"} {
		found := false
		for _, arg := range exec.args {
			if arg == flag {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing flag %s in %v", flag, exec.args)
		}
	}
}

func TestFetchMetadataFallsBackToChannel(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		`{"title":"Talk","duration":60,"channel":"Some Channel"}`,
	}}
	client, _ := New("yt-dlp", WithExecutor(exec))
	info, err := client.FetchMetadata(context.Background(), "ref")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if info.Uploader != "Some Channel" {
		t.Fatalf("expected channel fallback, got %q", info.Uploader)
	}
	if info.URL != "ref" {
		t.Fatalf("expected reference fallback for URL, got %q", info.URL)
	}
}

func TestFetchMetadataDerivesTitleFromReference(t *testing.T) {
	exec := &stubExecutor{lines: []string{`{"duration":60}`}}
	client, _ := New("yt-dlp", WithExecutor(exec))
	info, err := client.FetchMetadata(context.Background(), "https://example.com/videos/go-scheduler-deep_dive")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if info.Title != "Go Scheduler Deep Dive" {
		t.Fatalf("expected derived title, got %q", info.Title)
	}
}

func TestFetchMetadataRejectsZeroDuration(t *testing.T) {
	exec := &stubExecutor{lines: []string{`{"title":"Live","duration":0}`}}
	client, _ := New("yt-dlp", WithExecutor(exec))
	if _, err := client.FetchMetadata(context.Background(), "ref"); !errors.Is(err, services.ErrFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestFetchMetadataWrapsExecFailure(t *testing.T) {
	exec := &stubExecutor{err: errors.New("exit status 1: ERROR: video unavailable")}
	client, _ := New("yt-dlp", WithExecutor(exec))
	_, err := client.FetchMetadata(context.Background(), "ref")
	if !errors.Is(err, services.ErrFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if !strings.Contains(err.Error(), "video unavailable") {
		t.Fatalf("cause not preserved: %v", err)
	}
}

func TestFetchMetadataEmptyReference(t *testing.T) {
	client, _ := New("yt-dlp", WithExecutor(&stubExecutor{}))
	if _, err := client.FetchMetadata(context.Background(), "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExpandPlaylistKeepsOrder(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		"https://example.com/watch?v=1",
		"",
		"https://example.com/watch?v=2",
		"https://example.com/watch?v=3",
	}}
	client, _ := New("yt-dlp", WithExecutor(exec))
	urls, err := client.ExpandPlaylist(context.Background(), "https://example.com/list")
	if err != nil {
		t.Fatalf("ExpandPlaylist: %v", err)
	}
	if len(urls) != 3 || urls[0] != "https://example.com/watch?v=1" || urls[2] != "https://example.com/watch?v=3" {
		t.Fatalf("unexpected urls: %v", urls)
	}
	found := false
	for _, arg := range exec.args {
		if arg == "--flat-playlist" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing --flat-playlist in %v", exec.args)
	}
}

func TestDownloadAudioReturnsPrintedPath(t *testing.T) {
	exec := &stubExecutor{lines: []string{"/cache/abc123.wav"}}
	client, _ := New("yt-dlp", WithExecutor(exec))
	path, err := client.DownloadAudio(context.Background(), "ref", "/cache")
	if err != nil {
		t.Fatalf("DownloadAudio: %v", err)
	}
	if path != "/cache/abc123.wav" {
		t.Fatalf("unexpected path: %q", path)
	}
}

func TestDownloadAudioRequiresOutput(t *testing.T) {
	client, _ := New("yt-dlp", WithExecutor(&stubExecutor{}))
	if _, err := client.DownloadAudio(context.Background(), "ref", "/cache"); !errors.Is(err, services.ErrFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty binary")
	}
}
