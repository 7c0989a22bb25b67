package command

import (
	"strings"

	"ytcmd/internal/model"
)

// Generate renders the shell command for req with the default options.
// It returns "" when the URL is empty or unsupported.
func Generate(req model.DownloadRequest, cls Classification) string {
	return GenerateWith(req, cls, DefaultOptions())
}

func GenerateWith(req model.DownloadRequest, cls Classification, opts Options) string {
	inv, ok := Build(req, cls, opts)
	if !ok {
		return ""
	}
	return inv.Display()
}

// Build returns the structured form of the command. ok is false when no
// command exists for req.
func Build(req model.DownloadRequest, cls Classification, opts Options) (Invocation, bool) {
	url := strings.TrimSpace(req.URL)
	if url == "" || !cls.Supported {
		return Invocation{}, false
	}
	opts = opts.normalized()
	outputPath := normalizeOutputPath(req.OutputPath)

	switch req.Mode {
	case model.ModeVideo, "":
		return videoInvocation(url, outputPath, cls.IsPlaylist, opts), true
	case model.ModeAudio:
		return audioInvocation(url, outputPath, cls.IsPlaylist, opts, false), true
	case model.ModeSubtitles:
		return Invocation{
			Mode:     model.ModeSubtitles,
			URL:      url,
			Playlist: cls.IsPlaylist,
			Script:   subtitlesScript(url, outputPath, cls.IsPlaylist, opts),
		}, true
	case model.ModeTranscribe:
		return Invocation{
			Mode:     model.ModeTranscribe,
			URL:      url,
			Playlist: cls.IsPlaylist,
			Script:   transcribeScript(url, outputPath, cls.IsPlaylist, opts),
		}, true
	default:
		return Invocation{}, false
	}
}

// GenerateFor classifies url and renders its command in one step.
func GenerateFor(req model.DownloadRequest, opts Options) (Invocation, Classification, bool) {
	cls := Classify(req.URL)
	inv, ok := Build(req, cls, opts)
	return inv, cls, ok
}

func playlistFlag(isPlaylist bool) string {
	if isPlaylist {
		return "--yes-playlist"
	}
	return "--no-playlist"
}

func normalizeOutputPath(raw string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return "."
	}
	if p != "/" {
		p = strings.TrimRight(p, "/")
	}
	return p
}

func outputFor(outputPath string) string {
	if outputPath == "/" {
		return "/" + outputTemplate
	}
	return outputPath + "/" + outputTemplate
}

func videoInvocation(url, outputPath string, isPlaylist bool, opts Options) Invocation {
	return Invocation{
		Mode:     model.ModeVideo,
		URL:      url,
		Playlist: isPlaylist,
		Flags: []string{
			playlistFlag(isPlaylist),
			"--ignore-errors",
			"-f", "bv*+ba/b",
			"--merge-output-format", "mp4",
			"--write-subs",
			"--write-auto-subs",
			"--sub-langs", opts.SubLangs,
			"--convert-subs", "srt",
			"--embed-subs",
			"--embed-thumbnail",
			"--embed-metadata",
		},
		Output: outputFor(outputPath),
	}
}

// audioInvocation extracts best audio. Inside compound scripts the file
// mtime must be the download time so the sentinel comparison works.
func audioInvocation(url, outputPath string, isPlaylist bool, opts Options, compound bool) Invocation {
	flags := []string{
		playlistFlag(isPlaylist),
		"--ignore-errors",
	}
	if compound {
		flags = append(flags, "--no-mtime")
	}
	flags = append(flags,
		"-f", "ba/b",
		"-x",
		"--audio-format", opts.AudioFormat,
		"--audio-quality", "0",
	)
	if !compound {
		flags = append(flags, "--embed-thumbnail", "--embed-metadata")
	}
	return Invocation{
		Mode:     model.ModeAudio,
		URL:      url,
		Playlist: isPlaylist,
		Flags:    flags,
		Output:   outputFor(outputPath),
	}
}

func subtitleOnlyInvocation(url, outputPath string, isPlaylist bool, opts Options) Invocation {
	return Invocation{
		Mode:     model.ModeSubtitles,
		URL:      url,
		Playlist: isPlaylist,
		Flags: []string{
			playlistFlag(isPlaylist),
			"--ignore-errors",
			"--no-mtime",
			"--skip-download",
			"--write-subs",
			"--write-auto-subs",
			"--sub-langs", opts.SubLangs,
			"--convert-subs", "srt",
		},
		Output: outputFor(outputPath),
	}
}
