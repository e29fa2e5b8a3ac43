package export_test

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"nugget/internal/export"
	"nugget/internal/nugget"
)

func sampleNuggets() []nugget.Nugget {
	return []nugget.Nugget{
		{
			ID:         "n-1",
			Title:      "Intro, with commas",
			StartTime:  0,
			EndTime:    30,
			Transcript: `He said "hello" and left.`,
			Tags:       []string{"tutorial", "video-nugget"},
			CreatedAt:  "2026-03-14T09:00:00Z",
		},
		{
			ID:        "n-2",
			Title:     "Middle",
			StartTime: 25,
			EndTime:   55,
			Tags:      []string{"video-nugget"},
			CreatedAt: "2026-03-14T09:00:00Z",
		},
	}
}

func TestRenderJSONRoundTrips(t *testing.T) {
	data, err := export.Render(sampleNuggets(), export.FormatJSON)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	var decoded []nugget.Nugget
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal exported JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].ID != "n-1" || decoded[0].Transcript != `He said "hello" and left.` {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	for _, format := range []export.Format{export.FormatJSON, export.FormatCSV, export.FormatMarkdown} {
		first, err := export.Render(sampleNuggets(), format)
		if err != nil {
			t.Fatalf("Render %s failed: %v", format, err)
		}
		second, err := export.Render(sampleNuggets(), format)
		if err != nil {
			t.Fatalf("Render %s failed: %v", format, err)
		}
		if !bytes.Equal(first, second) {
			t.Fatalf("%s export is not byte-identical across runs", format)
		}
	}
}

func TestRenderCSVQuoting(t *testing.T) {
	data, err := export.Render(sampleNuggets(), export.FormatCSV)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 records, got %d lines", len(lines))
	}
	if lines[0] != "id,title,start_time,end_time,tags,created_at,transcript" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	// Title with a comma and transcript with quotes must survive CSV quoting.
	if !strings.Contains(lines[1], `"Intro, with commas"`) {
		t.Fatalf("expected quoted title in %q", lines[1])
	}
	if !strings.Contains(lines[1], `""hello""`) {
		t.Fatalf("expected escaped quotes in %q", lines[1])
	}
}

func TestRenderMarkdownSections(t *testing.T) {
	data, err := export.Render(sampleNuggets(), export.FormatMarkdown)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"# Video Nuggets",
		"## 1 - Intro, with commas",
		"**Time:** 0.00s - 30.00s",
		"**Tags:** tutorial, video-nugget",
		"## 2 - Middle",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in markdown output:\n%s", want, content)
		}
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path, err := export.WriteFile(sampleNuggets(), export.FormatMarkdown, dir, "nuggets_test")
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if !strings.HasSuffix(path, "nuggets_test.md") {
		t.Fatalf("unexpected path %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	if format, ok := export.ParseFormat(" Markdown "); !ok || format != export.FormatMarkdown {
		t.Fatalf("unexpected parse result %v %v", format, ok)
	}
	if _, ok := export.ParseFormat("xml"); ok {
		t.Fatal("xml must not parse")
	}
}

func TestRenderSubtitles(t *testing.T) {
	analysis := nugget.SpeechAnalysis{Segments: []nugget.TranscriptSegment{
		{StartTime: 0, EndTime: 2.5, Text: "Hello there."},
		{StartTime: 2.5, EndTime: 3661.25, Text: "And goodbye."},
	}}

	srt, err := export.RenderSubtitles(analysis, export.SubtitleSRT)
	if err != nil {
		t.Fatalf("RenderSubtitles failed: %v", err)
	}
	if !strings.Contains(string(srt), "1\n00:00:00,000 --> 00:00:02,500\nHello there.") {
		t.Fatalf("unexpected SRT output:\n%s", srt)
	}
	if !strings.Contains(string(srt), "01:01:01,250") {
		t.Fatalf("expected hour-range timestamp in SRT output:\n%s", srt)
	}

	vtt, err := export.RenderSubtitles(analysis, export.SubtitleVTT)
	if err != nil {
		t.Fatalf("RenderSubtitles failed: %v", err)
	}
	if !strings.HasPrefix(string(vtt), "WEBVTT\n\n") {
		t.Fatalf("VTT output must start with header:\n%s", vtt)
	}
	if !strings.Contains(string(vtt), "00:00:02.500") {
		t.Fatalf("expected dot separator in VTT output:\n%s", vtt)
	}
}
