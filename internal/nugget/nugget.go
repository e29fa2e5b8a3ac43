// Package nugget defines the domain value types shared across the pipeline:
// nuggets, video metadata, transcripts, and content analysis results.
package nugget

// Nugget is one time-bounded excerpt of a source video with optional
// transcript and tags. Within one item, nuggets are ordered by StartTime.
type Nugget struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	StartTime  float64  `json:"start_time"`
	EndTime    float64  `json:"end_time"`
	Transcript string   `json:"transcript,omitempty"`
	Tags       []string `json:"tags"`
	CreatedAt  string   `json:"created_at"`
}

// VideoInfo is the metadata fetched for one video reference.
type VideoInfo struct {
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	URL       string  `json:"url"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Uploader  string  `json:"uploader,omitempty"`
}

// TranscriptSegment is one timed span of recognized speech.
type TranscriptSegment struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	SpeakerID  string  `json:"speaker_id,omitempty"`
}

// SpeechAnalysis aggregates a full transcription run.
type SpeechAnalysis struct {
	Segments          []TranscriptSegment `json:"segments"`
	Language          string              `json:"language"`
	TotalSpeechTime   float64             `json:"total_speech_time"`
	WordCount         int                 `json:"word_count"`
	AverageConfidence float64             `json:"average_confidence"`
}

// FullText joins all segment texts into one transcript string.
func (a SpeechAnalysis) FullText() string {
	total := 0
	for _, seg := range a.Segments {
		total += len(seg.Text) + 1
	}
	buf := make([]byte, 0, total)
	for i, seg := range a.Segments {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, seg.Text...)
	}
	return string(buf)
}

// HighlightMoment marks a span the analyzer considers worth clipping.
type HighlightMoment struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
	MomentType string  `json:"moment_type"`
}

// ContentAnalysis is the AI analysis produced for one item's transcript.
type ContentAnalysis struct {
	Summary          string            `json:"summary"`
	KeyTopics        []string          `json:"key_topics"`
	SentimentScore   float64           `json:"sentiment_score"`
	EngagementScore  float64           `json:"engagement_score"`
	SuggestedTags    []string          `json:"suggested_tags"`
	HighlightMoments []HighlightMoment `json:"highlight_moments"`
	Categories       []string          `json:"content_categories"`
	DifficultyLevel  string            `json:"difficulty_level"`
}
