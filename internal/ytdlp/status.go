package ytdlp

import (
	"regexp"
	"strings"
)

var (
	reSpeed = regexp.MustCompile(`\bat\s+([^\s]+/s)`)
	reETA   = regexp.MustCompile(`\bETA\s+([0-9:]+)`)
	reOf    = regexp.MustCompile(`\bof\s+~?\s*([0-9.]+\s*[KMGT]?i?B)`)
	reFF    = regexp.MustCompile(`\bspeed=\s*([^\s]+)`)
)

// Phases reported by ParseStatus.
const (
	PhaseStarting     = "starting"
	PhaseMetadata     = "metadata"
	PhaseSubtitles    = "subtitles"
	PhaseDownloading  = "downloading"
	PhasePostprocess  = "post-processing"
	PhaseTranscribing = "transcribing"
)

// Status is the human-facing state of a run as read from its output.
type Status struct {
	Phase string
	Speed string
	ETA   string
	Total string
}

func NewStatus() Status {
	return Status{Phase: PhaseStarting}
}

// ParseStatus folds one output line into prev. Fields the line does not
// mention keep their previous value.
func ParseStatus(prev Status, line string) Status {
	l := strings.TrimSpace(strings.TrimPrefix(line, stderrPrefix))
	if l == "" {
		return prev
	}
	next := prev
	switch {
	case strings.HasPrefix(l, "[youtube]"), strings.HasPrefix(l, "[BiliBili]"), strings.HasPrefix(l, "[bilibili]"):
		next.Phase = PhaseMetadata
	case strings.HasPrefix(l, "[info]"):
		if strings.Contains(strings.ToLower(l), "subtitles") {
			next.Phase = PhaseSubtitles
		} else {
			next.Phase = PhaseMetadata
		}
	case strings.HasPrefix(l, "[download]"), strings.HasPrefix(l, "[progress]"):
		next.Phase = PhaseDownloading
	case strings.HasPrefix(l, "[Merger]"), strings.HasPrefix(l, "[ExtractAudio]"),
		strings.HasPrefix(l, "[EmbedSubtitle]"), strings.HasPrefix(l, "[EmbedThumbnail]"),
		strings.HasPrefix(l, "[Metadata]"), strings.HasPrefix(l, "[SubtitlesConvertor]"):
		next.Phase = PhasePostprocess
	case strings.Contains(l, "transcribing audio with whisper"), strings.HasPrefix(l, "Detected language:"):
		next.Phase = PhaseTranscribing
	}

	if next.Phase == PhaseDownloading {
		if m := reSpeed.FindStringSubmatch(l); len(m) > 1 {
			next.Speed = m[1]
		}
		if m := reETA.FindStringSubmatch(l); len(m) > 1 {
			next.ETA = m[1]
		}
		if m := reOf.FindStringSubmatch(l); len(m) > 1 {
			next.Total = strings.ReplaceAll(m[1], " ", "")
		}
	}
	if m := reFF.FindStringSubmatch(l); len(m) > 1 {
		next.Speed = m[1]
	}
	return next
}

// String renders the status for a one-line display.
func (s Status) String() string {
	parts := []string{s.Phase}
	if s.Total != "" {
		parts = append(parts, s.Total)
	}
	if s.Speed != "" {
		parts = append(parts, "at "+s.Speed)
	}
	if s.ETA != "" && s.Phase == PhaseDownloading {
		parts = append(parts, "ETA "+s.ETA)
	}
	return strings.Join(parts, " ")
}
