package segment_test

import (
	"testing"
	"time"

	"nugget/internal/nugget"
	"nugget/internal/segment"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func TestSliceProducesOverlappingWindows(t *testing.T) {
	info := nugget.VideoInfo{Title: "Go Tutorial", Duration: 95, URL: "https://example.com/v"}
	nuggets, err := segment.Slice(info, segment.Options{NuggetDuration: 30, OverlapDuration: 5, Now: fixedNow})
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if len(nuggets) == 0 {
		t.Fatal("expected nuggets")
	}

	for i, n := range nuggets {
		if n.StartTime >= n.EndTime {
			t.Fatalf("nugget %d has inverted window: %v >= %v", i, n.StartTime, n.EndTime)
		}
		if n.EndTime > info.Duration {
			t.Fatalf("nugget %d exceeds video duration: %v", i, n.EndTime)
		}
		if i > 0 {
			prev := nuggets[i-1]
			if n.StartTime <= prev.StartTime {
				t.Fatalf("start times must be strictly increasing, got %v after %v", n.StartTime, prev.StartTime)
			}
			if got := prev.EndTime - n.StartTime; got != 5 {
				t.Fatalf("expected 5s overlap between nuggets %d and %d, got %v", i-1, i, got)
			}
		}
	}

	if nuggets[0].Title != "Go Tutorial - Part 1" {
		t.Fatalf("unexpected first title %q", nuggets[0].Title)
	}
}

func TestSliceStopsNearEnd(t *testing.T) {
	// 31s video, 30s windows, 5s overlap: the walk re-enters at 25s and
	// produces a clamped second window [25,31].
	info := nugget.VideoInfo{Title: "Short", Duration: 31}
	nuggets, err := segment.Slice(info, segment.Options{NuggetDuration: 30, OverlapDuration: 5, Now: fixedNow})
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if len(nuggets) != 2 {
		t.Fatalf("expected 2 nuggets, got %d", len(nuggets))
	}
	if nuggets[1].EndTime != 31 {
		t.Fatalf("final window must clamp to duration, got %v", nuggets[1].EndTime)
	}

	// A video barely longer than one window stops after the first nugget.
	info.Duration = 30.5
	nuggets, err = segment.Slice(info, segment.Options{NuggetDuration: 30, OverlapDuration: 0, Now: fixedNow})
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if len(nuggets) != 1 {
		t.Fatalf("expected 1 nugget, got %d", len(nuggets))
	}
}

func TestSliceTerminatesWhenFinalWindowClamps(t *testing.T) {
	// The last window ends clamped at 95s while the overlap would step the
	// walk back to 90s; the slice must still finish with that window.
	info := nugget.VideoInfo{Title: "Long Form", Duration: 95}
	nuggets, err := segment.Slice(info, segment.Options{NuggetDuration: 30, OverlapDuration: 5, Now: fixedNow})
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if len(nuggets) != 4 {
		t.Fatalf("expected 4 nuggets, got %d", len(nuggets))
	}
	last := nuggets[len(nuggets)-1]
	if last.StartTime != 75 || last.EndTime != 95 {
		t.Fatalf("unexpected final window [%v,%v]", last.StartTime, last.EndTime)
	}

	// Larger overlaps step back further; the clamped window still ends the
	// walk immediately.
	info.Duration = 50
	nuggets, err = segment.Slice(info, segment.Options{NuggetDuration: 30, OverlapDuration: 10, Now: fixedNow})
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if len(nuggets) != 2 {
		t.Fatalf("expected 2 nuggets, got %d", len(nuggets))
	}
	if got := nuggets[1]; got.StartTime != 20 || got.EndTime != 50 {
		t.Fatalf("unexpected final window [%v,%v]", got.StartTime, got.EndTime)
	}
}

func TestSliceRejectsBadOptions(t *testing.T) {
	info := nugget.VideoInfo{Title: "X", Duration: 60}
	if _, err := segment.Slice(info, segment.Options{NuggetDuration: 0}); err == nil {
		t.Fatal("expected error for zero duration")
	}
	if _, err := segment.Slice(info, segment.Options{NuggetDuration: 10, OverlapDuration: 10}); err == nil {
		t.Fatal("expected error for overlap >= duration")
	}
	if _, err := segment.Slice(nugget.VideoInfo{Duration: 0}, segment.Options{NuggetDuration: 10}); err == nil {
		t.Fatal("expected error for zero video duration")
	}
}

func TestDeriveTags(t *testing.T) {
	tags := segment.DeriveTags("Ultimate Tech Review and Cooking Tutorial")
	want := map[string]bool{"technology": true, "review": true, "cooking": true, "tutorial": true, "video-nugget": true}
	if len(tags) != len(want) {
		t.Fatalf("unexpected tags %v", tags)
	}
	for _, tag := range tags {
		if !want[tag] {
			t.Fatalf("unexpected tag %q in %v", tag, tags)
		}
	}

	plain := segment.DeriveTags("Untagged Content")
	if len(plain) != 1 || plain[0] != "video-nugget" {
		t.Fatalf("expected only the base tag, got %v", plain)
	}
}

func TestCleanTitle(t *testing.T) {
	if got := segment.CleanTitle("my_video-file.name"); got != "My Video File Name" {
		t.Fatalf("unexpected cleaned title %q", got)
	}
	if got := segment.CleanTitle("!!!"); got != "Untitled Video" {
		t.Fatalf("unexpected fallback title %q", got)
	}
}

func TestTranscriptFor(t *testing.T) {
	analysis := nugget.SpeechAnalysis{Segments: []nugget.TranscriptSegment{
		{StartTime: 0, EndTime: 10, Text: "intro"},
		{StartTime: 10, EndTime: 20, Text: "middle"},
		{StartTime: 20, EndTime: 30, Text: "end"},
	}}
	if got := segment.TranscriptFor(analysis, 5, 15); got != "intro middle" {
		t.Fatalf("unexpected transcript %q", got)
	}
	if got := segment.TranscriptFor(analysis, 30, 40); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}
