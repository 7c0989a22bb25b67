package command

import "strings"

const (
	DefaultAudioFormat  = "mp3"
	DefaultSubLangs     = "en.*,zh.*,-live_chat"
	DefaultWhisperModel = "base"
	DefaultScratchDir   = "${TMPDIR:-/tmp}"

	outputTemplate = "%(title)s/%(title)s.%(ext)s"
)

// Options tune the rendered flags. The zero value renders the defaults.
type Options struct {
	AudioFormat  string `json:"audio_format,omitempty"`
	SubLangs     string `json:"sub_langs,omitempty"`
	WhisperModel string `json:"whisper_model,omitempty"`
	ScratchDir   string `json:"scratch_dir,omitempty"`
}

func DefaultOptions() Options {
	return Options{
		AudioFormat:  DefaultAudioFormat,
		SubLangs:     DefaultSubLangs,
		WhisperModel: DefaultWhisperModel,
		ScratchDir:   DefaultScratchDir,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	o.AudioFormat = strings.ToLower(strings.TrimSpace(o.AudioFormat))
	if o.AudioFormat == "" {
		o.AudioFormat = def.AudioFormat
	}
	o.SubLangs = normalizeSubLangs(o.SubLangs)
	if strings.TrimSpace(o.WhisperModel) == "" {
		o.WhisperModel = def.WhisperModel
	}
	if strings.TrimSpace(o.ScratchDir) == "" {
		o.ScratchDir = def.ScratchDir
	}
	return o
}

func normalizeSubLangs(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", "default", "en+zh":
		return DefaultSubLangs
	case "english", "en":
		return "en.*,-live_chat"
	case "chinese", "zh":
		return "zh.*,-live_chat"
	case "all":
		return "all,-live_chat"
	default:
		return strings.TrimSpace(raw)
	}
}
