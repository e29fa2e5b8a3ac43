package config

const (
	defaultWorkspaceDir    = "~/.local/share/nugget"
	defaultOutputDir       = "~/nuggets"
	defaultLogDir          = "~/.local/share/nugget/logs"
	defaultCacheDir        = "~/.local/share/nugget/cache"
	defaultConcurrency     = 2
	defaultMaxRetries      = 2
	defaultNuggetDuration  = 30.0
	defaultOverlapDuration = 5.0
	defaultYtDlpBinary     = "yt-dlp"
	defaultWhisperBinary   = "whisper"
	defaultWhisperModel    = "base"
	defaultFFmpegBinary    = "ffmpeg"
	defaultLLMBaseURL      = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel        = "openai/gpt-4o-mini"
	defaultLLMTimeout      = 60
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
			CacheDir:     defaultCacheDir,
		},
		Batch: Batch{
			Concurrency:      defaultConcurrency,
			RetryFailed:      true,
			MaxRetries:       defaultMaxRetries,
			NuggetDuration:   defaultNuggetDuration,
			OverlapDuration:  defaultOverlapDuration,
			EnableTranscript: true,
			ExportFormats:    []string{"json"},
		},
		Tools: Tools{
			YtDlpBinary:   defaultYtDlpBinary,
			WhisperBinary: defaultWhisperBinary,
			WhisperModel:  defaultWhisperModel,
			FFmpegBinary:  defaultFFmpegBinary,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
