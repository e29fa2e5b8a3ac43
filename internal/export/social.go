package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nugget/internal/nugget"
)

const socialPostLimit = 280

// RenderSocialPosts produces one ready-to-post snippet per nugget: title,
// timestamp link suffix, and hashtags derived from the nugget tags, trimmed
// to a post-friendly length.
func RenderSocialPosts(nuggets []nugget.Nugget, info nugget.VideoInfo) []byte {
	var b strings.Builder
	b.WriteString("# Social Posts\n\n")
	for i, n := range nuggets {
		fmt.Fprintf(&b, "## Post %d\n\n", i+1)
		b.WriteString(socialPost(n, info))
		b.WriteString("\n\n---\n\n")
	}
	return []byte(b.String())
}

func socialPost(n nugget.Nugget, info nugget.VideoInfo) string {
	link := info.URL
	if link != "" {
		link = fmt.Sprintf("%s&t=%ds", link, int(n.StartTime))
		if !strings.Contains(info.URL, "?") {
			link = fmt.Sprintf("%s?t=%ds", info.URL, int(n.StartTime))
		}
	}

	var hashtags []string
	for _, tag := range n.Tags {
		hashtags = append(hashtags, "#"+strings.ReplaceAll(tag, "-", ""))
	}

	post := n.Title
	if link != "" {
		post += "\n" + link
	}
	if len(hashtags) > 0 {
		post += "\n" + strings.Join(hashtags, " ")
	}
	if len(post) > socialPostLimit {
		post = post[:socialPostLimit-3] + "..."
	}
	return post
}

// WriteSubtitleFile writes subtitle cues for a full transcription next to
// the other exports and returns the file path.
func WriteSubtitleFile(analysis nugget.SpeechAnalysis, format SubtitleFormat, dir, baseName string) (string, error) {
	data, err := RenderSubtitles(analysis, format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, baseName+"."+string(format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write subtitles: %w", err)
	}
	return path, nil
}

// WriteSocialFile writes the social post collection next to the other
// exports and returns the file path.
func WriteSocialFile(nuggets []nugget.Nugget, info nugget.VideoInfo, dir, baseName string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, baseName+"-social.md")
	if err := os.WriteFile(path, RenderSocialPosts(nuggets, info), 0o644); err != nil {
		return "", fmt.Errorf("write social posts: %w", err)
	}
	return path, nil
}
