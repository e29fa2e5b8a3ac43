// Package stages assembles the concrete pipeline stages from the application
// configuration: yt-dlp for metadata and audio, whisper for transcription,
// the LLM client for analysis, and the export writers.
package stages

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"nugget/internal/config"
	"nugget/internal/export"
	"nugget/internal/logging"
	"nugget/internal/nugget"
	"nugget/internal/pipeline"
	"nugget/internal/segment"
	"nugget/internal/services/llm"
	"nugget/internal/services/whisper"
	"nugget/internal/services/ytdlp"
)

const toolTimeout = 15 * time.Minute

// Build wires the stage set. The returned yt-dlp client is shared with the
// batch manager for playlist expansion.
func Build(cfg *config.Config, logger *slog.Logger) (pipeline.Stages, *ytdlp.Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	fetcher, err := ytdlp.New(cfg.Tools.YtDlpBinary, ytdlp.WithTimeout(toolTimeout))
	if err != nil {
		return pipeline.Stages{}, nil, err
	}
	transcriber, err := whisper.NewService(cfg.Tools.WhisperBinary, cfg.Tools.WhisperModel)
	if err != nil {
		return pipeline.Stages{}, nil, err
	}
	logger.Debug("transcription configured", logging.String("model", transcriber.Model()))
	analyzer := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})

	stages := pipeline.Stages{
		FetchMetadata: fetcher.FetchMetadata,
		Segment: func(_ context.Context, info nugget.VideoInfo, opts segment.Options) ([]nugget.Nugget, error) {
			return segment.Slice(info, opts)
		},
		Transcribe: func(ctx context.Context, reference string, info nugget.VideoInfo) (nugget.SpeechAnalysis, error) {
			audio, err := fetcher.DownloadAudio(ctx, reference, cfg.Paths.CacheDir)
			if err != nil {
				return nugget.SpeechAnalysis{}, err
			}
			defer os.Remove(audio)

			analysis, err := transcriber.Transcribe(ctx, audio, cfg.Paths.CacheDir)
			if err != nil {
				return nugget.SpeechAnalysis{}, err
			}

			// Subtitles are a transcription artifact: write them beside the
			// exports, best effort.
			base := FileBaseName(info.Title)
			for _, format := range []export.SubtitleFormat{export.SubtitleSRT, export.SubtitleVTT} {
				if _, err := export.WriteSubtitleFile(analysis, format, cfg.Paths.OutputDir, base); err != nil {
					logger.Warn("writing subtitles failed",
						logging.String("format", string(format)),
						logging.Error(err),
					)
				}
			}
			return analysis, nil
		},
		Analyze: func(ctx context.Context, transcript string, info nugget.VideoInfo) (nugget.ContentAnalysis, error) {
			return analyzer.AnalyzeContent(ctx, transcript, info)
		},
		Export: func(_ context.Context, nuggets []nugget.Nugget, formats []export.Format, outputDir, baseName string) ([]string, error) {
			files := make([]string, 0, len(formats))
			for _, format := range formats {
				path, err := export.WriteFile(nuggets, format, outputDir, baseName)
				if err != nil {
					return nil, err
				}
				files = append(files, path)
			}
			return files, nil
		},
		ExportSocial: func(_ context.Context, nuggets []nugget.Nugget, info nugget.VideoInfo, outputDir string) ([]string, error) {
			path, err := export.WriteSocialFile(nuggets, info, outputDir, FileBaseName(info.Title))
			if err != nil {
				return nil, err
			}
			return []string{path}, nil
		},
	}
	return stages, fetcher, nil
}

// FileBaseName converts a video title into a safe export file stem.
func FileBaseName(title string) string {
	title = strings.TrimSpace(strings.ToLower(title))
	if title == "" {
		return "video"
	}
	var b strings.Builder
	lastDash := false
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		return "video"
	}
	const limit = 80
	if len(name) > limit {
		name = strings.Trim(name[:limit], "-")
	}
	return name
}
