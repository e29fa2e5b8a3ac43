// Package ytdlp wraps the yt-dlp command line tool. Metadata retrieval and
// playlist expansion never download media; audio extraction is used only
// when a job enables transcription.
package ytdlp
