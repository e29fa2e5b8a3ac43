package export

import (
	"bytes"
	"fmt"
	"math"

	"nugget/internal/nugget"
)

// SubtitleFormat identifies one supported subtitle format.
type SubtitleFormat string

const (
	SubtitleSRT SubtitleFormat = "srt"
	SubtitleVTT SubtitleFormat = "vtt"
)

// RenderSubtitles serializes a speech analysis into subtitle cues.
func RenderSubtitles(analysis nugget.SpeechAnalysis, format SubtitleFormat) ([]byte, error) {
	switch format {
	case SubtitleSRT:
		return renderSRT(analysis), nil
	case SubtitleVTT:
		return renderVTT(analysis), nil
	default:
		return nil, fmt.Errorf("unknown subtitle format %q", format)
	}
}

func renderSRT(analysis nugget.SpeechAnalysis) []byte {
	var buf bytes.Buffer
	for i, seg := range analysis.Segments {
		fmt.Fprintf(&buf, "%d\n%s --> %s\n%s\n\n",
			i+1,
			subtitleTimestamp(seg.StartTime, ','),
			subtitleTimestamp(seg.EndTime, ','),
			seg.Text,
		)
	}
	return buf.Bytes()
}

func renderVTT(analysis nugget.SpeechAnalysis) []byte {
	var buf bytes.Buffer
	buf.WriteString("WEBVTT\n\n")
	for _, seg := range analysis.Segments {
		fmt.Fprintf(&buf, "%s --> %s\n%s\n\n",
			subtitleTimestamp(seg.StartTime, '.'),
			subtitleTimestamp(seg.EndTime, '.'),
			seg.Text,
		)
	}
	return buf.Bytes()
}

func subtitleTimestamp(seconds float64, millisSep byte) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	millis := int(math.Round((seconds - float64(whole)) * 1000))
	if millis >= 1000 {
		whole++
		millis -= 1000
	}
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", whole/3600, (whole%3600)/60, whole%60, millisSep, millis)
}
