package model

import "strings"

// Mode selects what a generated command downloads.
type Mode string

const (
	ModeVideo      Mode = "video"
	ModeAudio      Mode = "audio"
	ModeSubtitles  Mode = "subtitles"
	ModeTranscribe Mode = "transcribe"
)

// Platform is the video host a URL belongs to.
type Platform string

const (
	PlatformNone     Platform = ""
	PlatformYouTube  Platform = "youtube"
	PlatformBilibili Platform = "bilibili"
)

// DownloadRequest is one user interaction: a URL, a mode and a destination.
type DownloadRequest struct {
	URL        string `json:"url"`
	Mode       Mode   `json:"mode"`
	OutputPath string `json:"outputPath,omitempty"`
}

// HistoryItem is a previously copied command.
type HistoryItem struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Mode      Mode   `json:"mode"`
	Command   string `json:"command"`
	Timestamp int64  `json:"timestamp"`
	Title     string `json:"title,omitempty"`
}

func AllModes() []Mode {
	return []Mode{ModeVideo, ModeAudio, ModeSubtitles, ModeTranscribe}
}

// ParseMode accepts the canonical mode names plus the aliases used by the
// HTTP trigger ("subtitle") and the CLI ("subs", "whisper").
func ParseMode(raw string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "video":
		return ModeVideo, true
	case "audio", "mp3":
		return ModeAudio, true
	case "subtitles", "subtitle", "subs":
		return ModeSubtitles, true
	case "transcribe", "transcription", "whisper":
		return ModeTranscribe, true
	default:
		return "", false
	}
}

// IsCompound reports whether the mode renders a multi-step shell script.
func (m Mode) IsCompound() bool {
	return m == ModeSubtitles || m == ModeTranscribe
}
