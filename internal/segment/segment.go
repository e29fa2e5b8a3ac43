// Package segment slices a video into timestamped nugget windows.
package segment

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"nugget/internal/nugget"
)

// Options controls how a video is sliced into nuggets.
type Options struct {
	// NuggetDuration is the window length in seconds.
	NuggetDuration float64
	// OverlapDuration is how far each window reaches back into the previous
	// one, in seconds. Overlap is produced deliberately and never deduplicated.
	OverlapDuration float64
	// Now supplies nugget creation timestamps; defaults to time.Now.
	Now func() time.Time
}

// Slice produces nuggets covering the video chronologically. Start times are
// strictly increasing; adjacent nuggets overlap by OverlapDuration. The final
// window is clamped to the video duration, and the walk stops once less than
// one second of source remains.
func Slice(info nugget.VideoInfo, opts Options) ([]nugget.Nugget, error) {
	if opts.NuggetDuration <= 0 {
		return nil, fmt.Errorf("nugget duration must be positive, got %v", opts.NuggetDuration)
	}
	if opts.OverlapDuration < 0 || opts.OverlapDuration >= opts.NuggetDuration {
		return nil, fmt.Errorf("overlap duration must be in [0, nugget duration), got %v", opts.OverlapDuration)
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("video duration must be positive, got %v", info.Duration)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	tags := DeriveTags(info.Title)

	var nuggets []nugget.Nugget
	current := 0.0
	index := 1
	for current < info.Duration {
		end := current + opts.NuggetDuration
		if end > info.Duration {
			end = info.Duration
		}
		nuggets = append(nuggets, nugget.Nugget{
			ID:        uuid.NewString(),
			Title:     fmt.Sprintf("%s - Part %d", info.Title, index),
			StartTime: current,
			EndTime:   end,
			Tags:      tags,
			CreatedAt: now().UTC().Format(time.RFC3339),
		})

		// A clamped window is the last one; stepping back by the overlap
		// from a clamped end would never advance the walk.
		if end >= info.Duration {
			break
		}
		current = end - opts.OverlapDuration
		if current >= info.Duration-1.0 {
			break
		}
		index++
	}

	return nuggets, nil
}

var keywordTags = []struct {
	keywords []string
	tag      string
}{
	{[]string{"tutorial"}, "tutorial"},
	{[]string{"review"}, "review"},
	{[]string{"music"}, "music"},
	{[]string{"tech", "technology"}, "technology"},
	{[]string{"gaming", "game"}, "gaming"},
	{[]string{"cooking", "recipe"}, "cooking"},
}

// DeriveTags derives content tags from keywords in the video title. Every
// nugget additionally carries the "video-nugget" tag.
func DeriveTags(title string) []string {
	lower := strings.ToLower(title)
	var tags []string
	for _, entry := range keywordTags {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				tags = append(tags, entry.tag)
				break
			}
		}
	}
	return append(tags, "video-nugget")
}

// CleanTitle normalizes a raw video title for display: separators collapse to
// single spaces and words are title-cased.
func CleanTitle(raw string) string {
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range raw {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled Video"
	}
	return cases.Title(language.Und).String(title)
}

// TranscriptFor returns the portion of a speech analysis that overlaps the
// nugget window, joined in segment order.
func TranscriptFor(analysis nugget.SpeechAnalysis, start, end float64) string {
	var parts []string
	for _, seg := range analysis.Segments {
		if seg.EndTime <= start || seg.StartTime >= end {
			continue
		}
		text := strings.TrimSpace(seg.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
